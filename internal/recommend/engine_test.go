package recommend

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"propertypro/server/internal/collaborative"
	"propertypro/server/internal/interest"
	"propertypro/server/internal/models"
	"propertypro/server/internal/scoring"
	"propertypro/server/internal/trends"
)

// MockSource is a mock implementation of models.DataSource
type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchProperties(ctx context.Context, filter *models.PropertyFilter) ([]models.PropertyRecord, error) {
	args := m.Called(ctx, filter)
	props, _ := args.Get(0).([]models.PropertyRecord)
	return filter.Apply(props), args.Error(1)
}

func (m *MockSource) FetchPreferences(ctx context.Context, userID int64) (*models.PreferenceSet, error) {
	args := m.Called(ctx, userID)
	prefs, _ := args.Get(0).(*models.PreferenceSet)
	return prefs, args.Error(1)
}

func (m *MockSource) FetchInteractions(ctx context.Context, userID int64) ([]models.InteractionRecord, error) {
	args := m.Called(ctx, userID)
	records, _ := args.Get(0).([]models.InteractionRecord)
	return records, args.Error(1)
}

func (m *MockSource) FetchPriceHistory(ctx context.Context, region string) ([]models.PropertyRecord, error) {
	args := m.Called(ctx, region)
	history, _ := args.Get(0).([]models.PropertyRecord)
	return history, args.Error(1)
}

func intPtr(v int) *int { return &v }

func testCatalog() []models.PropertyRecord {
	return []models.PropertyRecord{
		{ID: 1, Price: 150000, Bedrooms: intPtr(2), PropertyType: "house", Region: "Kingston", Status: models.StatusActive},
		{ID: 2, Price: 250000, Bedrooms: intPtr(3), PropertyType: "house", Region: "Kingston", Status: models.StatusActive},
		{ID: 3, Price: 350000, Bedrooms: intPtr(4), PropertyType: "villa", Region: "Negril", Status: models.StatusActive},
		{ID: 4, Price: 120000, Bedrooms: intPtr(1), PropertyType: "apartment", Region: "Portmore", Status: models.StatusActive},
		{ID: 5, Price: 200000, Bedrooms: intPtr(2), PropertyType: "house", Region: "Kingston", Status: models.StatusSold},
	}
}

func testInteractions() []models.InteractionRecord {
	return []models.InteractionRecord{
		{UserID: 1, PropertyID: 1, Action: models.ActionContact, Count: 1},
		{UserID: 2, PropertyID: 1, Action: models.ActionContact, Count: 1},
		{UserID: 2, PropertyID: 2, Action: models.ActionContact, Count: 1},
		{UserID: 2, PropertyID: 5, Action: models.ActionContact, Count: 1},
	}
}

func testHistory() []models.PropertyRecord {
	var history []models.PropertyRecord
	for m, price := range []float64{100000, 110000, 121000} {
		for i := 0; i < 2; i++ {
			history = append(history, models.PropertyRecord{
				Region:       "Kingston",
				PropertyType: "house",
				Price:        price,
				ListedAt:     time.Date(2024, time.Month(m+1), 10, 0, 0, 0, 0, time.UTC),
				Status:       models.StatusSold,
			})
		}
	}
	return history
}

func newTestEngine(t *testing.T, src models.DataSource) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	scorer := scoring.NewScorer(nil, logger)
	model := interest.NewModel(src, interest.NewStore(t.TempDir()), scorer, interest.Config{}, logger)
	return NewEngine(
		src,
		model,
		scorer,
		collaborative.NewFilter(collaborative.Config{Neighbors: 5, StrengthThreshold: 5}, logger),
		trends.NewAnalyzer(trends.Config{Window: 3, MinGrowthRate: 0.01, MinSamples: 5}, logger),
		Config{DefaultLimit: 10, MaxLimit: 100},
		logger,
	)
}

func standardSource() *MockSource {
	src := &MockSource{}
	src.On("FetchProperties", mock.Anything, mock.Anything).Return(testCatalog(), nil)
	src.On("FetchPreferences", mock.Anything, int64(1)).Return(models.NewPreferenceSet(1,
		models.WeightedDimension{Dimension: models.PropertyTypePref{Name: "house"}, Weight: 4},
	), nil)
	src.On("FetchPreferences", mock.Anything, mock.Anything).Return(nil, nil)
	src.On("FetchInteractions", mock.Anything, mock.Anything).Return(testInteractions(), nil)
	src.On("FetchPriceHistory", mock.Anything, mock.Anything).Return(testHistory(), nil)
	return src
}

func TestGetRecommendations_MergesProducers(t *testing.T) {
	e := newTestEngine(t, standardSource())

	recs := e.GetRecommendations(context.Background(), 1, 10)
	require.NotEmpty(t, recs)

	// property 2 is nominated by preference, collaborative and investment
	assert.Equal(t, int64(2), recs[0].PropertyID)
	assert.Equal(t, []models.Tag{models.TagPreference, models.TagCollaborative, models.TagInvestment}, recs[0].Types)
	require.NotNil(t, recs[0].Score)
	assert.InDelta(t, 4.0, *recs[0].Score, 1e-9)
	require.NotNil(t, recs[0].GrowthRate)
	assert.InDelta(t, 0.10, *recs[0].GrowthRate, 1e-9)

	seen := make(map[int64]bool)
	active := models.PropertyIndex(models.ActiveListings().Apply(testCatalog()))
	for i, r := range recs {
		assert.False(t, seen[r.PropertyID], "duplicate property %d", r.PropertyID)
		seen[r.PropertyID] = true
		_, ok := active[r.PropertyID]
		assert.True(t, ok, "property %d is not an active listing", r.PropertyID)
		if i > 0 {
			assert.LessOrEqual(t, len(r.Types), len(recs[i-1].Types))
		}
	}
	assert.False(t, seen[5], "sold listing must not be recommended")
}

func TestGetRecommendations_RespectsLimit(t *testing.T) {
	e := newTestEngine(t, standardSource())
	for _, limit := range []int{1, 2, 3} {
		recs := e.GetRecommendations(context.Background(), 1, limit)
		assert.LessOrEqual(t, len(recs), limit)
	}
}

func TestGetRecommendations_ProducerFailuresAreIsolated(t *testing.T) {
	src := &MockSource{}
	src.On("FetchProperties", mock.Anything, mock.Anything).Return(testCatalog(), nil)
	src.On("FetchPreferences", mock.Anything, mock.Anything).Return(nil, errors.New("preferences offline"))
	src.On("FetchInteractions", mock.Anything, mock.Anything).Return(testInteractions(), nil)
	src.On("FetchPriceHistory", mock.Anything, mock.Anything).Return(testHistory(), nil)

	e := newTestEngine(t, src)
	e.producers[2].run = func(context.Context, *request) ([]nomination, error) {
		panic("boom")
	}

	recs := e.GetRecommendations(context.Background(), 1, 10)
	require.NotEmpty(t, recs)
	for _, r := range recs {
		assert.Equal(t, []models.Tag{models.TagInvestment}, r.Types)
	}
}

func TestGetRecommendations_IsIdempotent(t *testing.T) {
	e := newTestEngine(t, standardSource())
	tied := 2.0
	e.producers[0].run = func(context.Context, *request) ([]nomination, error) {
		return []nomination{
			{propertyID: 3, score: &tied},
			{propertyID: 1, score: &tied},
			{propertyID: 4, score: &tied},
		}, nil
	}

	first := e.GetRecommendations(context.Background(), 1, 10)
	require.NotEmpty(t, first)

	for i := 0; i < 5; i++ {
		again := e.GetRecommendations(context.Background(), 1, 10)
		assert.Equal(t, first, again)
	}

	seen := make(map[int64]bool)
	for _, r := range first {
		assert.False(t, seen[r.PropertyID], "duplicate property %d", r.PropertyID)
		seen[r.PropertyID] = true
	}
	// properties 1 and 2 tie on the house preference
	assert.True(t, seen[1])
	assert.True(t, seen[2])
}

func TestGetRecommendations_EmptyCatalog(t *testing.T) {
	src := &MockSource{}
	src.On("FetchProperties", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	e := newTestEngine(t, src)
	recs := e.GetRecommendations(context.Background(), 1, 10)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)
}

func TestMerge(t *testing.T) {
	score := func(v float64) *float64 { return &v }
	catalog := []models.PropertyRecord{{ID: 1}, {ID: 2}, {ID: 3}}
	tags := []models.Tag{models.TagMLPrediction, models.TagPreference, models.TagInvestment}

	results := [][]nomination{
		{{propertyID: 1, score: score(3.2)}, {propertyID: 2, score: score(2.0)}},
		{{propertyID: 2, score: score(9.0)}, {propertyID: 99, score: score(1)}},
		{{propertyID: 3, growthRate: score(0.05)}, {propertyID: 2, growthRate: score(0.07)}},
	}

	out := merge(results, tags, catalog, 10)
	require.Len(t, out, 3)

	assert.Equal(t, int64(2), out[0].PropertyID)
	assert.Equal(t, []models.Tag{models.TagMLPrediction, models.TagPreference, models.TagInvestment}, out[0].Types)
	assert.Equal(t, 2.0, *out[0].Score, "first score wins")
	assert.Equal(t, 0.07, *out[0].GrowthRate)

	assert.Equal(t, int64(1), out[1].PropertyID)
	assert.Equal(t, int64(3), out[2].PropertyID)
	assert.Nil(t, out[2].Score)

	assert.Len(t, merge(results, tags, catalog, 1), 1)
}

func TestGetSimilar(t *testing.T) {
	e := newTestEngine(t, standardSource())

	similar, err := e.GetSimilar(context.Background(), 1, 10)
	require.NoError(t, err)
	require.NotEmpty(t, similar)
	for _, s := range similar {
		assert.NotEqual(t, int64(1), s.PropertyID)
		assert.NotEqual(t, int64(5), s.PropertyID, "inactive listings are not suggested")
	}
	assert.Equal(t, int64(2), similar[0].PropertyID)

	_, err = e.GetSimilar(context.Background(), 42, 10)
	assert.True(t, errors.Is(err, models.ErrUnknownEntity))
}

func TestMatchScore(t *testing.T) {
	e := newTestEngine(t, standardSource())

	score, err := e.MatchScore(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 100.0, score)

	score, err = e.MatchScore(context.Background(), 7, 2)
	require.NoError(t, err)
	assert.Equal(t, scoring.NeutralMatchScore, score)

	_, err = e.MatchScore(context.Background(), 1, 5)
	assert.True(t, errors.Is(err, models.ErrUnknownEntity))
}

func TestInvestmentProperties(t *testing.T) {
	e := newTestEngine(t, standardSource())

	listings, _, err := e.InvestmentProperties(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, int64(1), listings[0].PropertyID)
	assert.Equal(t, int64(2), listings[1].PropertyID)

	fc, err := e.InvestmentMap(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Empty(t, fc.Features, "listings without coordinates are not mapped")

	series, err := e.PriceTrends(context.Background(), "Kingston")
	require.NoError(t, err)
	require.Len(t, series, 1)
}

func TestRetrainAndStats(t *testing.T) {
	e := newTestEngine(t, standardSource())

	trained, err := e.Retrain(context.Background(), true)
	assert.False(t, trained)
	assert.True(t, errors.Is(err, models.ErrInsufficientData))

	stats, err := e.ModelStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.InteractionCount)
	assert.Nil(t, stats.ModelInfo)

	_, err = e.PredictInterest(context.Background(), 1, 2)
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
}
