package scoring

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertypro/server/config"
	"propertypro/server/internal/models"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func newTestScorer() *Scorer {
	groups := config.NewRegionGroups("", config.RegionGroup{
		Name:    "Greater Kingston",
		Regions: []string{"Kingston", "Portmore"},
	})
	return NewScorer(groups, logrus.New())
}

func catalog() []models.PropertyRecord {
	return []models.PropertyRecord{
		{ID: 1, Price: 150000, Bedrooms: intPtr(2), Bathrooms: floatPtr(1), PropertyType: "apartment", Region: "Kingston", Amenities: []string{"pool"}},
		{ID: 2, Price: 250000, Bedrooms: intPtr(3), Bathrooms: floatPtr(2), PropertyType: "house", Region: "Portmore", Amenities: []string{"pool", "gym"}},
		{ID: 3, Price: 400000, Bedrooms: intPtr(5), Bathrooms: floatPtr(3), PropertyType: "house", Region: "Negril"},
		{ID: 4, Price: 90000, PropertyType: "land", Region: "Negril"},
	}
}

func TestPriceScore(t *testing.T) {
	r := models.PriceRange{Min: 100, Max: 200}

	tests := []struct {
		name     string
		price    float64
		span     float64
		expected float64
	}{
		{"inside", 150, 1000, 1},
		{"on bound", 200, 1000, 1},
		{"just above", 250, 1000, 0.95},
		{"below", 75, 1000, 0.975},
		{"beyond catalog span", 1500, 1000, 0},
		{"degenerate span", 201, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, priceScore(r, tt.price, tt.span), 1e-9)
		})
	}
}

func TestSubScore_PriceUsesCatalogSpan(t *testing.T) {
	s := newTestScorer()
	props := []models.PropertyRecord{
		{ID: 1, Price: 100000},
		{ID: 2, Price: 120000},
		{ID: 3, Price: 1100000},
	}
	narrow := models.PriceRange{Min: 100000, Max: 110000}
	prefs := models.NewPreferenceSet(1, models.WeightedDimension{Dimension: narrow, Weight: 1})
	b := s.NewBatch(prefs, props)

	assert.Equal(t, 1.0, s.SubScore(b, narrow, &props[0]))
	assert.InDelta(t, 0.99, s.SubScore(b, narrow, &props[1]), 1e-9)
	assert.InDelta(t, 0.01, s.SubScore(b, narrow, &props[2]), 1e-9)
}

func TestCountScore_TieBreak(t *testing.T) {
	span := 4.0
	exact := countScore(3, 3, span)
	oneAbove := countScore(4, 3, span)
	twoAbove := countScore(5, 3, span)
	oneBelow := countScore(2, 3, span)

	assert.Equal(t, 1.0, exact)
	assert.Greater(t, exact, oneAbove)
	assert.Greater(t, oneAbove, twoAbove)
	assert.Greater(t, oneAbove, oneBelow)
	assert.InDelta(t, 0.625, oneBelow, 1e-9)
	assert.Equal(t, 0.0, countScore(10, 3, span))
}

func TestSubScore_MissingAttributesScoreZero(t *testing.T) {
	s := newTestScorer()
	b := s.NewBatch(nil, catalog())
	p := &models.PropertyRecord{ID: 9}

	assert.Equal(t, 0.0, s.SubScore(b, models.BedroomCount{N: 2}, p))
	assert.Equal(t, 0.0, s.SubScore(b, models.BathroomCount{N: 1}, p))
	assert.Equal(t, 0.0, s.SubScore(b, models.AmenitySet{}, p))
	assert.Equal(t, 0.0, s.SubScore(b, models.Location{Region: "Kingston"}, p))
}

func TestSubScore_LocationGroupAndDistance(t *testing.T) {
	s := newTestScorer()
	props := []models.PropertyRecord{
		{ID: 1, Region: "Kingston", Longitude: floatPtr(0), Latitude: floatPtr(0)},
		{ID: 2, Region: "Negril", Longitude: floatPtr(1), Latitude: floatPtr(0)},
		{ID: 3, Region: "Negril", Longitude: floatPtr(2), Latitude: floatPtr(0)},
	}

	prefs := models.NewPreferenceSet(1, models.WeightedDimension{Dimension: models.Location{Region: "Greater Kingston"}, Weight: 3})
	b := s.NewBatch(prefs, props)
	loc := models.Location{Region: "Greater Kingston"}

	assert.Equal(t, 1.0, s.SubScore(b, loc, &props[0]))
	assert.InDelta(t, 0.5, s.SubScore(b, loc, &props[1]), 1e-3)
	assert.InDelta(t, 0.0, s.SubScore(b, loc, &props[2]), 1e-9)

	point := orb.Point{2, 0}
	prefs = models.NewPreferenceSet(1, models.WeightedDimension{Dimension: models.Location{Point: &point}, Weight: 3})
	b = s.NewBatch(prefs, props)
	assert.Equal(t, 1.0, s.SubScore(b, models.Location{Point: &point}, &props[2]))
	assert.InDelta(t, 0.0, s.SubScore(b, models.Location{Point: &point}, &props[0]), 1e-9)
}

func TestScore_Monotonicity(t *testing.T) {
	s := newTestScorer()
	props := catalog()

	base := models.NewPreferenceSet(1,
		models.WeightedDimension{Dimension: models.PriceRange{Min: 100000, Max: 200000}, Weight: 2},
		models.WeightedDimension{Dimension: models.BedroomCount{N: 3}, Weight: 1},
		models.WeightedDimension{Dimension: models.PropertyTypePref{Name: "house"}, Weight: 1},
	)
	before := s.Score(base, props)

	for _, kind := range []models.DimensionKind{models.KindPriceRange, models.KindBedrooms, models.KindPropertyType} {
		t.Run(string(kind), func(t *testing.T) {
			raised := models.NewPreferenceSet(1, base.Dimensions...)
			entry, ok := raised.Get(kind)
			require.True(t, ok)
			raised.Set(entry.Dimension, entry.Weight+2)

			after := s.Score(raised, props)
			for i := range props {
				assert.GreaterOrEqual(t, after[i], before[i])
			}
		})
	}
}

func TestScore_ZeroWeightIsIgnored(t *testing.T) {
	s := newTestScorer()
	props := catalog()

	prefs := models.NewPreferenceSet(1, models.WeightedDimension{Dimension: models.PropertyTypePref{Name: "house"}, Weight: 4})
	withZero := models.NewPreferenceSet(1, prefs.Dimensions...)
	withZero.Set(models.AmenitySet{Names: []string{"pool"}}, 0)

	assert.Equal(t, s.Score(prefs, props), s.Score(withZero, props))
}

func TestTop(t *testing.T) {
	s := newTestScorer()
	props := catalog()

	prefs := models.NewPreferenceSet(1,
		models.WeightedDimension{Dimension: models.PropertyTypePref{Name: "House"}, Weight: 3},
		models.WeightedDimension{Dimension: models.AmenitySet{Names: []string{"pool", "gym"}}, Weight: 2},
	)

	top := s.Top(prefs, props, 2)
	require.Len(t, top, 2)
	assert.Equal(t, int64(2), top[0].PropertyID)
	assert.InDelta(t, 5.0, top[0].Score, 1e-9)
	assert.Equal(t, int64(3), top[1].PropertyID)

	all := s.Top(prefs, props, 10)
	assert.Len(t, all, 3, "property 4 matches nothing")

	assert.Nil(t, s.Top(nil, props, 5))
	assert.Nil(t, s.Top(prefs, props, 0))
}

func TestMatchScore(t *testing.T) {
	s := newTestScorer()
	props := catalog()

	assert.Equal(t, NeutralMatchScore, s.MatchScore(nil, &props[0], props))
	assert.Equal(t, NeutralMatchScore, s.MatchScore(models.NewPreferenceSet(1), &props[0], props))

	prefs := models.NewPreferenceSet(1,
		models.WeightedDimension{Dimension: models.PropertyTypePref{Name: "house"}, Weight: 1},
		models.WeightedDimension{Dimension: models.PriceRange{Min: 200000, Max: 300000}, Weight: 1},
	)
	assert.Equal(t, 100.0, s.MatchScore(prefs, &props[1], props))
	// 100k above the range over a 310k catalog span
	assert.InDelta(t, 83.9, s.MatchScore(prefs, &props[2], props), 1e-9)
}

func TestMatchFeatures(t *testing.T) {
	s := newTestScorer()
	props := catalog()

	prefs := models.NewPreferenceSet(1,
		models.WeightedDimension{Dimension: models.PriceRange{Min: 100000, Max: 200000}, Weight: 4},
		models.WeightedDimension{Dimension: models.BedroomCount{N: 2}, Weight: 0},
	)
	rec := s.MatchFeatures(s.NewBatch(prefs, props), prefs, &props[0])

	assert.Len(t, rec, 2)
	assert.Equal(t, 1.0, rec[MatchColumn("price_range")])
	assert.Equal(t, 4.0, rec[WeightColumn("price_range")])
}
