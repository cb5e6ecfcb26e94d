package features

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"propertypro/server/internal/models"
)

// Scaling selects how numeric attributes are normalised.
type Scaling string

const (
	// MinMax maps observed values onto [0,1]; a missing value encodes as 0.5.
	MinMax Scaling = "minmax"
	// Standard centres on the mean with unit variance; a missing value encodes as 0.
	Standard Scaling = "standard"
)

// Numeric attribute names, in schema order.
const (
	ColPrice     = "num:price"
	ColBedrooms  = "num:bedrooms"
	ColBathrooms = "num:bathrooms"
	ColArea      = "num:area"
)

var numericColumns = []string{ColPrice, ColBedrooms, ColBathrooms, ColArea}

const (
	typePrefix    = "property_type="
	regionPrefix  = "region="
	amenityPrefix = "amenity="
)

// NumericScaler is the fitted transform of one numeric attribute.
type NumericScaler struct {
	Name    string  `json:"name"`
	Offset  float64 `json:"offset"`
	Scale   float64 `json:"scale"`
	Neutral float64 `json:"neutral"`
}

func (s NumericScaler) apply(v float64, ok bool) float64 {
	if !ok {
		return s.Neutral
	}
	return (v - s.Offset) / s.Scale
}

// Codec turns property records into fixed-width vectors. It is immutable
// once fitted and safe for concurrent use.
type Codec struct {
	Scaling       Scaling         `json:"scaling"`
	Numeric       []NumericScaler `json:"numeric"`
	PropertyTypes []string        `json:"property_types"`
	Regions       []string        `json:"regions"`
	Amenities     []string        `json:"amenities"`
}

// Fit learns scaling parameters and categorical vocabularies from props.
func Fit(props []models.PropertyRecord, scaling Scaling) *Codec {
	c := &Codec{Scaling: scaling}

	for _, name := range numericColumns {
		values := make([]float64, 0, len(props))
		for i := range props {
			if v, ok := numericValue(&props[i], name); ok {
				values = append(values, v)
			}
		}
		c.Numeric = append(c.Numeric, fitScaler(name, values, scaling))
	}

	types := make(map[string]bool)
	regions := make(map[string]bool)
	amenities := make(map[string]bool)
	for _, p := range props {
		if v := normalize(p.PropertyType); v != "" {
			types[v] = true
		}
		if v := normalize(p.Region); v != "" {
			regions[v] = true
		}
		for _, a := range p.Amenities {
			if v := normalize(a); v != "" {
				amenities[v] = true
			}
		}
	}
	c.PropertyTypes = sortedKeys(types)
	c.Regions = sortedKeys(regions)
	c.Amenities = sortedKeys(amenities)

	return c
}

func fitScaler(name string, values []float64, scaling Scaling) NumericScaler {
	s := NumericScaler{Name: name, Scale: 1}
	if scaling == MinMax {
		s.Neutral = 0.5
	}
	if len(values) == 0 {
		return s
	}

	switch scaling {
	case Standard:
		mean, variance := stat.PopMeanVariance(values, nil)
		s.Offset = mean
		if sd := math.Sqrt(variance); sd > 0 {
			s.Scale = sd
		}
	default:
		lo, hi := floats.Min(values), floats.Max(values)
		s.Offset = lo
		if hi > lo {
			s.Scale = hi - lo
		}
	}
	return s
}

// Width is the length of every encoded vector.
func (c *Codec) Width() int {
	return len(c.Numeric) + len(c.PropertyTypes) + len(c.Regions) + len(c.Amenities)
}

// Schema lists the column names in vector order.
func (c *Codec) Schema() Schema {
	schema := make(Schema, 0, c.Width())
	for _, s := range c.Numeric {
		schema = append(schema, s.Name)
	}
	for _, v := range c.PropertyTypes {
		schema = append(schema, typePrefix+v)
	}
	for _, v := range c.Regions {
		schema = append(schema, regionPrefix+v)
	}
	for _, v := range c.Amenities {
		schema = append(schema, amenityPrefix+v)
	}
	return schema
}

// Encode produces the feature vector of p. Categories not seen during
// Fit leave every indicator of that group at zero.
func (c *Codec) Encode(p *models.PropertyRecord) []float64 {
	vec := make([]float64, 0, c.Width())
	for _, s := range c.Numeric {
		v, ok := numericValue(p, s.Name)
		vec = append(vec, s.apply(v, ok))
	}
	vec = appendOneHot(vec, c.PropertyTypes, normalize(p.PropertyType))
	vec = appendOneHot(vec, c.Regions, normalize(p.Region))

	present := make(map[string]bool, len(p.Amenities))
	for _, a := range p.Amenities {
		present[normalize(a)] = true
	}
	for _, a := range c.Amenities {
		if present[a] {
			vec = append(vec, 1)
		} else {
			vec = append(vec, 0)
		}
	}
	return vec
}

// EncodeAll encodes every property, preserving order.
func (c *Codec) EncodeAll(props []models.PropertyRecord) [][]float64 {
	rows := make([][]float64, len(props))
	for i := range props {
		rows[i] = c.Encode(&props[i])
	}
	return rows
}

// Record is Encode keyed by column name.
func (c *Codec) Record(p *models.PropertyRecord) Record {
	vec := c.Encode(p)
	rec := make(Record, len(vec))
	for i, name := range c.Schema() {
		rec[name] = vec[i]
	}
	return rec
}

func appendOneHot(vec []float64, vocabulary []string, value string) []float64 {
	for _, v := range vocabulary {
		if v == value {
			vec = append(vec, 1)
		} else {
			vec = append(vec, 0)
		}
	}
	return vec
}

func numericValue(p *models.PropertyRecord, name string) (float64, bool) {
	switch name {
	case ColPrice:
		return p.Price, true
	case ColBedrooms:
		if p.Bedrooms != nil {
			return float64(*p.Bedrooms), true
		}
	case ColBathrooms:
		if p.Bathrooms != nil {
			return *p.Bathrooms, true
		}
	case ColArea:
		if p.Area != nil {
			return *p.Area, true
		}
	}
	return 0, false
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
