package trends

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertypro/server/internal/models"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(Config{Window: 3, MinGrowthRate: 0.01, MinSamples: 5}, logrus.New())
}

func month(m int) time.Time {
	return time.Date(2024, time.Month(m), 15, 12, 0, 0, 0, time.UTC)
}

// sales returns count listings in the given month averaging to price.
func sales(region, propertyType string, m int, price float64, count int) []models.PropertyRecord {
	out := make([]models.PropertyRecord, 0, count)
	for i := 0; i < count; i++ {
		offset := float64(i%2*2-1) * 5
		if count%2 == 1 && i == count-1 {
			offset = 0
		}
		out = append(out, models.PropertyRecord{
			Region:       region,
			PropertyType: propertyType,
			Price:        price + offset,
			ListedAt:     month(m),
			Status:       models.StatusSold,
		})
	}
	return out
}

func steadyGrowth(region, propertyType string) []models.PropertyRecord {
	var history []models.PropertyRecord
	history = append(history, sales(region, propertyType, 1, 100, 2)...)
	history = append(history, sales(region, propertyType, 2, 110, 2)...)
	history = append(history, sales(region, propertyType, 3, 121, 2)...)
	return history
}

func TestSeries_SteadyGrowth(t *testing.T) {
	series := newTestAnalyzer().Series(steadyGrowth("Kingston", "house"))
	require.Len(t, series, 1)

	s := series[0]
	assert.Equal(t, 6, s.Samples)
	require.Len(t, s.Points, 3)
	assert.InDelta(t, 100, s.Points[0].AvgPrice, 1e-9)
	assert.Nil(t, s.Points[0].Growth)
	require.NotNil(t, s.Points[2].Growth)
	assert.InDelta(t, 0.10, *s.Points[2].Growth, 1e-9)
	require.NotNil(t, s.GrowthRate)
	assert.InDelta(t, 0.10, *s.GrowthRate, 1e-9)
}

func TestInvestmentAreas(t *testing.T) {
	var history []models.PropertyRecord
	history = append(history, steadyGrowth("Kingston", "house")...)
	// flat prices
	history = append(history, sales("Negril", "villa", 1, 500, 3)...)
	history = append(history, sales("Negril", "villa", 2, 500, 3)...)
	// strong growth but only two samples
	history = append(history, sales("Portmore", "apartment", 1, 100, 1)...)
	history = append(history, sales("Portmore", "apartment", 2, 200, 1)...)
	// many samples in a single month
	history = append(history, sales("Ocho Rios", "house", 4, 300, 8)...)

	areas := newTestAnalyzer().InvestmentAreas(history)
	require.Len(t, areas, 1)
	assert.Equal(t, "Kingston", areas[0].Region)
	assert.InDelta(t, 0.10, areas[0].GrowthRate, 1e-9)
}

func TestInvestmentAreas_TwoSamplesNeverFlagged(t *testing.T) {
	history := []models.PropertyRecord{
		{Region: "Kingston", PropertyType: "house", Price: 100, ListedAt: month(1)},
		{Region: "Kingston", PropertyType: "house", Price: 300, ListedAt: month(2)},
	}
	assert.Empty(t, newTestAnalyzer().InvestmentAreas(history))
}

func TestSeries_SmoothingWindow(t *testing.T) {
	var history []models.PropertyRecord
	for m, price := range []float64{100, 200, 200, 200, 200} {
		history = append(history, models.PropertyRecord{Region: "R", PropertyType: "t", Price: price, ListedAt: month(m + 1)})
	}

	s := newTestAnalyzer().Series(history)[0]
	// changes are 1, 0, 0, 0; trailing mean of three
	expected := []float64{1, 0.5, 1.0 / 3, 0}
	for i, want := range expected {
		require.NotNil(t, s.Points[i+1].Growth)
		assert.InDelta(t, want, *s.Points[i+1].Growth, 1e-9)
	}
}

func TestRecommend(t *testing.T) {
	history := steadyGrowth("Kingston", "House")
	catalog := []models.PropertyRecord{
		{ID: 1, Region: "Kingston", PropertyType: "house", Price: 130, Status: models.StatusActive},
		{ID: 2, Region: "Kingston", PropertyType: "apartment", Price: 90, Status: models.StatusActive},
		{ID: 3, Region: "kingston", PropertyType: "HOUSE", Price: 140, Status: models.StatusSold},
		{ID: 4, Region: "Kingston", PropertyType: "house", Price: 150, Status: models.StatusActive},
	}

	got := newTestAnalyzer().Recommend(history, catalog, 0)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].PropertyID)
	assert.Equal(t, int64(4), got[1].PropertyID)
	assert.InDelta(t, 0.10, got[0].GrowthRate, 1e-9)

	limited := newTestAnalyzer().Recommend(history, catalog, 1)
	assert.Len(t, limited, 1)

	assert.Empty(t, newTestAnalyzer().Recommend(nil, catalog, 0))
}
