package models

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/paulmach/orb"
)

// DimensionKind names one preference dimension.
type DimensionKind string

const (
	KindPriceRange   DimensionKind = "price_range"
	KindLocation     DimensionKind = "location"
	KindBedrooms     DimensionKind = "bedrooms"
	KindBathrooms    DimensionKind = "bathrooms"
	KindPropertyType DimensionKind = "property_type"
	KindAmenities    DimensionKind = "amenities"
)

// MaxPreferenceWeight is the upper bound of a dimension weight.
const MaxPreferenceWeight = 5

// Kinds lists every dimension kind in a fixed order.
var Kinds = []DimensionKind{
	KindPriceRange,
	KindLocation,
	KindBedrooms,
	KindBathrooms,
	KindPropertyType,
	KindAmenities,
}

// Dimension is one variant of a user preference. Exactly one of the
// concrete types below implements it.
type Dimension interface {
	Kind() DimensionKind
}

type PriceRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Location is either a region name, a coordinate, or both.
type Location struct {
	Region string     `json:"region,omitempty"`
	Point  *orb.Point `json:"point,omitempty"`
}

type BedroomCount struct {
	N int `json:"n"`
}

type BathroomCount struct {
	N float64 `json:"n"`
}

type PropertyTypePref struct {
	Name string `json:"name"`
}

type AmenitySet struct {
	Names []string `json:"names"`
}

func (PriceRange) Kind() DimensionKind       { return KindPriceRange }
func (Location) Kind() DimensionKind         { return KindLocation }
func (BedroomCount) Kind() DimensionKind     { return KindBedrooms }
func (BathroomCount) Kind() DimensionKind    { return KindBathrooms }
func (PropertyTypePref) Kind() DimensionKind { return KindPropertyType }
func (AmenitySet) Kind() DimensionKind       { return KindAmenities }

// WeightedDimension pairs a dimension with its importance in [0,5].
// A weight of zero disables the dimension.
type WeightedDimension struct {
	Dimension Dimension `json:"dimension"`
	Weight    int       `json:"weight"`
}

// PreferenceSet holds at most one entry per dimension kind.
type PreferenceSet struct {
	UserID     int64               `json:"user_id"`
	Dimensions []WeightedDimension `json:"dimensions"`
}

// NewPreferenceSet builds a set, clamping weights and keeping the last
// entry when a kind is repeated.
func NewPreferenceSet(userID int64, dims ...WeightedDimension) *PreferenceSet {
	set := &PreferenceSet{UserID: userID}
	for _, d := range dims {
		set.Set(d.Dimension, d.Weight)
	}
	return set
}

// Set adds or replaces the entry for the dimension's kind.
func (s *PreferenceSet) Set(dim Dimension, weight int) {
	if dim == nil {
		return
	}
	weight = ClampWeight(weight)
	for i := range s.Dimensions {
		if s.Dimensions[i].Dimension.Kind() == dim.Kind() {
			s.Dimensions[i] = WeightedDimension{Dimension: dim, Weight: weight}
			return
		}
	}
	s.Dimensions = append(s.Dimensions, WeightedDimension{Dimension: dim, Weight: weight})
}

// Get returns the entry for kind, if any.
func (s *PreferenceSet) Get(kind DimensionKind) (WeightedDimension, bool) {
	if s == nil {
		return WeightedDimension{}, false
	}
	for _, d := range s.Dimensions {
		if d.Dimension.Kind() == kind {
			return d, true
		}
	}
	return WeightedDimension{}, false
}

// Active returns the entries with a non-zero weight.
func (s *PreferenceSet) Active() []WeightedDimension {
	if s == nil {
		return nil
	}
	active := make([]WeightedDimension, 0, len(s.Dimensions))
	for _, d := range s.Dimensions {
		if d.Weight > 0 {
			active = append(active, d)
		}
	}
	return active
}

// IsEmpty reports whether no dimension carries weight.
func (s *PreferenceSet) IsEmpty() bool {
	return len(s.Active()) == 0
}

func ClampWeight(w int) int {
	if w < 0 {
		return 0
	}
	if w > MaxPreferenceWeight {
		return MaxPreferenceWeight
	}
	return w
}

// ParseDimension decodes a stored preference value of the given kind.
func ParseDimension(kind string, raw []byte) (Dimension, error) {
	var (
		dim Dimension
		err error
	)
	switch DimensionKind(strings.ToLower(kind)) {
	case KindPriceRange:
		var v PriceRange
		err = json.Unmarshal(raw, &v)
		if err == nil && v.Max < v.Min {
			v.Min, v.Max = v.Max, v.Min
		}
		dim = v
	case KindLocation:
		var v Location
		err = json.Unmarshal(raw, &v)
		if err == nil && v.Region == "" && v.Point == nil {
			err = fmt.Errorf("location preference needs a region or a point")
		}
		dim = v
	case KindBedrooms:
		var v BedroomCount
		err = json.Unmarshal(raw, &v)
		dim = v
	case KindBathrooms:
		var v BathroomCount
		err = json.Unmarshal(raw, &v)
		dim = v
	case KindPropertyType:
		var v PropertyTypePref
		err = json.Unmarshal(raw, &v)
		dim = v
	case KindAmenities:
		var v AmenitySet
		err = json.Unmarshal(raw, &v)
		dim = v
	default:
		return nil, fmt.Errorf("unknown preference kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s preference: %w", kind, err)
	}
	return dim, nil
}

// EncodeDimension is the inverse of ParseDimension.
func EncodeDimension(dim Dimension) (string, []byte, error) {
	raw, err := json.Marshal(dim)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode %s preference: %w", dim.Kind(), err)
	}
	return string(dim.Kind()), raw, nil
}
