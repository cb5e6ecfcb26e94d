package scoring

import (
	"math"
	"os"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"

	"propertypro/server/config"
	"propertypro/server/internal/features"
	"propertypro/server/internal/geometry"
	"propertypro/server/internal/models"
)

// NeutralMatchScore is reported when a user has no usable preferences.
const NeutralMatchScore = 50.0

// Scorer rates properties against a user's weighted preferences.
type Scorer struct {
	groups *config.RegionGroups
	logger *logrus.Logger
}

func NewScorer(groups *config.RegionGroups, logger *logrus.Logger) *Scorer {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Scorer{groups: groups, logger: logger}
}

// Batch carries the catalog-wide normalisers needed by the relative
// sub-scores (bedroom and bathroom range, maximum distance).
type Batch struct {
	bedroomSpan  float64
	bathroomSpan float64
	priceSpan    float64
	origin       *orb.Point
	maxDistance  float64
}

// NewBatch derives normalisers for scoring prefs against catalog.
func (s *Scorer) NewBatch(prefs *models.PreferenceSet, catalog []models.PropertyRecord) *Batch {
	b := &Batch{bedroomSpan: 1, bathroomSpan: 1, priceSpan: 1}

	var prices, bedrooms, bathrooms []float64
	for i := range catalog {
		prices = append(prices, catalog[i].Price)
		if catalog[i].Bedrooms != nil {
			bedrooms = append(bedrooms, float64(*catalog[i].Bedrooms))
		}
		if catalog[i].Bathrooms != nil {
			bathrooms = append(bathrooms, *catalog[i].Bathrooms)
		}
	}
	b.bedroomSpan = span(bedrooms)
	b.bathroomSpan = span(bathrooms)
	b.priceSpan = span(prices)

	if entry, ok := prefs.Get(models.KindLocation); ok && entry.Weight > 0 {
		if loc, ok := entry.Dimension.(models.Location); ok {
			b.origin = s.resolveOrigin(loc, catalog)
		}
		if b.origin != nil {
			for i := range catalog {
				if catalog[i].HasCoordinates() {
					b.maxDistance = math.Max(b.maxDistance, geometry.DistanceKm(*b.origin, catalog[i].Point()))
				}
			}
		}
	}
	return b
}

// resolveOrigin returns the preferred point, or the centroid of the
// preferred region (or of its group members) derived from the catalog.
func (s *Scorer) resolveOrigin(loc models.Location, catalog []models.PropertyRecord) *orb.Point {
	if loc.Point != nil {
		p := *loc.Point
		return &p
	}
	if loc.Region == "" {
		return nil
	}

	regions := geometry.BuildRegions(catalog)
	if c, ok := geometry.Centroid(regions, loc.Region); ok {
		return &c
	}

	group := s.groups.Get(loc.Region)
	if group == nil {
		return nil
	}
	var members orb.MultiPoint
	for _, name := range group.Regions {
		if c, ok := geometry.Centroid(regions, name); ok {
			members = append(members, c)
		}
	}
	if len(members) == 0 {
		return nil
	}
	c := members.Bound().Center()
	return &c
}

// SubScore rates one dimension for one property in [0,1].
func (s *Scorer) SubScore(b *Batch, dim models.Dimension, p *models.PropertyRecord) float64 {
	switch d := dim.(type) {
	case models.PriceRange:
		return priceScore(d, p.Price, b.priceSpan)
	case models.Location:
		return s.locationScore(b, d, p)
	case models.BedroomCount:
		if p.Bedrooms == nil {
			return 0
		}
		return countScore(float64(*p.Bedrooms), float64(d.N), b.bedroomSpan)
	case models.BathroomCount:
		if p.Bathrooms == nil {
			return 0
		}
		return countScore(*p.Bathrooms, d.N, b.bathroomSpan)
	case models.PropertyTypePref:
		if d.Name != "" && strings.EqualFold(strings.TrimSpace(d.Name), strings.TrimSpace(p.PropertyType)) {
			return 1
		}
		return 0
	case models.AmenitySet:
		if len(d.Names) == 0 {
			return 0
		}
		present := 0
		for _, name := range d.Names {
			if p.HasAmenity(name) {
				present++
			}
		}
		return float64(present) / float64(len(d.Names))
	default:
		return 0
	}
}

func (s *Scorer) locationScore(b *Batch, loc models.Location, p *models.PropertyRecord) float64 {
	if loc.Region != "" && s.groups.Matches(loc.Region, p.Region) {
		return 1
	}
	if b.origin == nil || !p.HasCoordinates() {
		return 0
	}
	if b.maxDistance <= 0 {
		return 1
	}
	return clamp01(1 - geometry.DistanceKm(*b.origin, p.Point())/b.maxDistance)
}

// priceScore is 1 inside the range and decays with the distance to the
// nearest bound, relative to the catalog price span.
func priceScore(r models.PriceRange, price, catalogSpan float64) float64 {
	if price >= r.Min && price <= r.Max {
		return 1
	}
	d := math.Min(math.Abs(price-r.Min), math.Abs(price-r.Max))
	return clamp01(1 - d/math.Max(catalogSpan, 1))
}

// countScore applies the bedroom/bathroom rule: exact beats one unit
// above, which beats anything further above; a shortfall costs half a
// unit more than the same surplus.
func countScore(value, preferred, span float64) float64 {
	diff := value - preferred
	var penalty float64
	switch {
	case diff == 0:
		penalty = 0
	case diff > 0 && diff <= 1:
		penalty = 0.5
	case diff > 1:
		penalty = diff
	default:
		penalty = -diff + 0.5
	}
	return clamp01(1 - penalty/span)
}

// Score returns the weighted sum of sub-scores for every catalog entry.
func (s *Scorer) Score(prefs *models.PreferenceSet, catalog []models.PropertyRecord) []float64 {
	scores := make([]float64, len(catalog))
	active := prefs.Active()
	if len(active) == 0 {
		return scores
	}

	b := s.NewBatch(prefs, catalog)
	for i := range catalog {
		for _, d := range active {
			scores[i] += float64(d.Weight) * s.SubScore(b, d.Dimension, &catalog[i])
		}
	}
	return scores
}

// Top returns the n best-scoring properties. Ties keep catalog order and
// properties matching nothing are left out.
func (s *Scorer) Top(prefs *models.PreferenceSet, catalog []models.PropertyRecord, n int) []models.ScoredProperty {
	if prefs.IsEmpty() || n <= 0 {
		return nil
	}

	scores := s.Score(prefs, catalog)
	order := make([]int, 0, len(catalog))
	for i, score := range scores {
		if score > 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})
	if len(order) > n {
		order = order[:n]
	}

	out := make([]models.ScoredProperty, len(order))
	for i, idx := range order {
		out[i] = models.ScoredProperty{PropertyID: catalog[idx].ID, Score: scores[idx]}
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":    prefs.UserID,
		"candidates": len(catalog),
		"returned":   len(out),
	}).Debug("Scored catalog against preferences")
	return out
}

// MatchScore expresses how well p fits prefs on a 0-100 scale.
func (s *Scorer) MatchScore(prefs *models.PreferenceSet, p *models.PropertyRecord, catalog []models.PropertyRecord) float64 {
	active := prefs.Active()
	if len(active) == 0 {
		return NeutralMatchScore
	}

	b := s.NewBatch(prefs, catalog)
	var total, weights float64
	for _, d := range active {
		total += float64(d.Weight) * s.SubScore(b, d.Dimension, p)
		weights += float64(d.Weight)
	}
	return math.Round(1000*total/weights) / 10
}

// MatchFeatures exposes each active dimension's sub-score and weight as
// named model features.
func (s *Scorer) MatchFeatures(b *Batch, prefs *models.PreferenceSet, p *models.PropertyRecord) features.Record {
	rec := make(features.Record)
	for _, d := range prefs.Active() {
		kind := string(d.Dimension.Kind())
		rec[MatchColumn(kind)] = s.SubScore(b, d.Dimension, p)
		rec[WeightColumn(kind)] = float64(d.Weight)
	}
	return rec
}

func MatchColumn(kind string) string  { return "pref:" + kind + ":match" }
func WeightColumn(kind string) string { return "pref:" + kind + ":weight" }

func span(values []float64) float64 {
	if len(values) == 0 {
		return 1
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return math.Max(hi-lo, 1)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
