package trends

import (
	"os"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"propertypro/server/internal/models"
)

type Config struct {
	// Window is the number of monthly growth rates in the trailing mean
	Window int
	// MinGrowthRate is the mean monthly growth an area must exceed
	MinGrowthRate float64
	// MinSamples is the number of listings an area needs to be trusted
	MinSamples int
}

// MonthPoint is one month of a (region, type) price series.
type MonthPoint struct {
	Month    time.Time `json:"month"`
	AvgPrice float64   `json:"avg_price"`
	Count    int       `json:"count"`
	// Growth is the smoothed month-over-month growth; nil for the first month
	Growth *float64 `json:"growth"`
}

// Series is the price history of one (region, property type) pair.
type Series struct {
	Region       string       `json:"region"`
	PropertyType string       `json:"property_type"`
	Points       []MonthPoint `json:"points"`
	Samples      int          `json:"samples"`
	// GrowthRate is the mean of the trailing-window average of monthly
	// growth rates; the rates are smoothed, not the prices. Nil with fewer
	// than two months.
	GrowthRate *float64 `json:"growth_rate"`
}

// Area is a (region, property type) pair flagged as an investment area.
type Area struct {
	Region       string  `json:"region"`
	PropertyType string  `json:"property_type"`
	GrowthRate   float64 `json:"growth_rate"`
	Samples      int     `json:"samples"`
}

// Analyzer finds (region, type) areas whose prices are rising.
type Analyzer struct {
	cfg    Config
	logger *logrus.Logger
}

func NewAnalyzer(cfg Config, logger *logrus.Logger) *Analyzer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if cfg.Window <= 0 {
		cfg.Window = 3
	}
	return &Analyzer{cfg: cfg, logger: logger}
}

type seriesKey struct {
	region       string
	propertyType string
}

func keyOf(region, propertyType string) seriesKey {
	return seriesKey{
		region:       strings.ToLower(strings.TrimSpace(region)),
		propertyType: strings.ToLower(strings.TrimSpace(propertyType)),
	}
}

// Series groups dated listings into monthly mean-price series ordered by
// region then property type. Listings without a date or price are ignored.
func (a *Analyzer) Series(history []models.PropertyRecord) []Series {
	type bucket struct {
		sum   float64
		count int
	}
	type group struct {
		series Series
		months map[time.Time]*bucket
	}

	groups := make(map[seriesKey]*group)
	for _, p := range history {
		if p.ListedAt.IsZero() || p.Price <= 0 || p.Region == "" {
			continue
		}
		key := keyOf(p.Region, p.PropertyType)
		g, ok := groups[key]
		if !ok {
			g = &group{
				series: Series{Region: p.Region, PropertyType: p.PropertyType},
				months: make(map[time.Time]*bucket),
			}
			groups[key] = g
		}
		t := p.ListedAt.UTC()
		month := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		b, ok := g.months[month]
		if !ok {
			b = &bucket{}
			g.months[month] = b
		}
		b.sum += p.Price
		b.count++
		g.series.Samples++
	}

	out := make([]Series, 0, len(groups))
	for _, g := range groups {
		months := make([]time.Time, 0, len(g.months))
		for m := range g.months {
			months = append(months, m)
		}
		sort.Slice(months, func(i, j int) bool { return months[i].Before(months[j]) })

		s := g.series
		for _, m := range months {
			b := g.months[m]
			s.Points = append(s.Points, MonthPoint{Month: m, AvgPrice: b.sum / float64(b.count), Count: b.count})
		}
		a.smooth(&s)
		out = append(out, s)
	}

	sort.Slice(out, func(i, j int) bool {
		ki, kj := keyOf(out[i].Region, out[i].PropertyType), keyOf(out[j].Region, out[j].PropertyType)
		if ki.region != kj.region {
			return ki.region < kj.region
		}
		return ki.propertyType < kj.propertyType
	})
	return out
}

// smooth fills per-month growth with a trailing rolling mean of the
// month-over-month price change and sets the series growth rate.
func (a *Analyzer) smooth(s *Series) {
	if len(s.Points) < 2 {
		return
	}

	changes := make([]float64, 0, len(s.Points)-1)
	for i := 1; i < len(s.Points); i++ {
		prev := s.Points[i-1].AvgPrice
		changes = append(changes, (s.Points[i].AvgPrice-prev)/prev)
	}

	smoothed := make([]float64, len(changes))
	for i := range changes {
		start := i - a.cfg.Window + 1
		if start < 0 {
			start = 0
		}
		smoothed[i] = stat.Mean(changes[start:i+1], nil)
		g := smoothed[i]
		s.Points[i+1].Growth = &g
	}

	rate := stat.Mean(smoothed, nil)
	s.GrowthRate = &rate
}

// InvestmentAreas returns the series whose growth exceeds the configured
// rate with enough samples, fastest growing first.
func (a *Analyzer) InvestmentAreas(history []models.PropertyRecord) []Area {
	var areas []Area
	for _, s := range a.Series(history) {
		if s.GrowthRate == nil || *s.GrowthRate <= a.cfg.MinGrowthRate || s.Samples < a.cfg.MinSamples {
			continue
		}
		areas = append(areas, Area{
			Region:       s.Region,
			PropertyType: s.PropertyType,
			GrowthRate:   *s.GrowthRate,
			Samples:      s.Samples,
		})
	}

	sort.SliceStable(areas, func(i, j int) bool {
		return areas[i].GrowthRate > areas[j].GrowthRate
	})

	a.logger.WithFields(logrus.Fields{
		"listings": len(history),
		"areas":    len(areas),
	}).Debug("Investment areas computed")
	return areas
}

// Recommend lists active catalog entries inside investment areas, in
// area order then catalog order. A non-positive limit means no limit.
func (a *Analyzer) Recommend(history, catalog []models.PropertyRecord, limit int) []models.InvestmentListing {
	areas := a.InvestmentAreas(history)
	if len(areas) == 0 {
		return nil
	}

	var out []models.InvestmentListing
	for _, area := range areas {
		key := keyOf(area.Region, area.PropertyType)
		for i := range catalog {
			p := &catalog[i]
			if !p.IsActive() || keyOf(p.Region, p.PropertyType) != key {
				continue
			}
			out = append(out, models.InvestmentListing{
				PropertyID:   p.ID,
				Region:       p.Region,
				PropertyType: p.PropertyType,
				Price:        p.Price,
				GrowthRate:   area.GrowthRate,
			})
			if limit > 0 && len(out) >= limit {
				return out
			}
		}
	}
	return out
}
