package recommend

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"propertypro/server/internal/collaborative"
	"propertypro/server/internal/geometry"
	"propertypro/server/internal/interest"
	"propertypro/server/internal/metrics"
	"propertypro/server/internal/models"
	"propertypro/server/internal/scoring"
	"propertypro/server/internal/similarity"
	"propertypro/server/internal/trends"
)

type Config struct {
	DefaultLimit int
	MaxLimit     int
}

// Engine combines every recommendation producer behind the public
// operations. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	source    models.DataSource
	interest  *interest.Model
	scorer    *scoring.Scorer
	collab    *collaborative.Filter
	trends    *trends.Analyzer
	cfg       Config
	logger    *logrus.Logger
	producers []producer
}

// request is the shared input of one GetRecommendations call.
type request struct {
	id      string
	userID  int64
	limit   int
	catalog []models.PropertyRecord
}

// nomination is a producer's vote for one property.
type nomination struct {
	propertyID int64
	score      *float64
	growthRate *float64
}

type producer struct {
	name string
	tag  models.Tag
	run  func(ctx context.Context, req *request) ([]nomination, error)
}

func NewEngine(
	source models.DataSource,
	interestModel *interest.Model,
	scorer *scoring.Scorer,
	collab *collaborative.Filter,
	analyzer *trends.Analyzer,
	cfg Config,
	logger *logrus.Logger,
) *Engine {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = cfg.DefaultLimit
	}

	e := &Engine{
		source:   source,
		interest: interestModel,
		scorer:   scorer,
		collab:   collab,
		trends:   analyzer,
		cfg:      cfg,
		logger:   logger,
	}
	// Merge order is the order of this list.
	e.producers = []producer{
		{name: "ml_prediction", tag: models.TagMLPrediction, run: e.mlPredictions},
		{name: "preference", tag: models.TagPreference, run: e.preferenceMatches},
		{name: "collaborative", tag: models.TagCollaborative, run: e.collaborative},
		{name: "investment", tag: models.TagInvestment, run: e.investments},
	}
	return e
}

func (e *Engine) normalizeLimit(limit int) int {
	if limit <= 0 {
		return e.cfg.DefaultLimit
	}
	if limit > e.cfg.MaxLimit {
		return e.cfg.MaxLimit
	}
	return limit
}

// GetRecommendations merges every producer's nominations for userID. It
// never fails: producers that error are logged and skipped, and an empty
// list is a valid answer.
func (e *Engine) GetRecommendations(ctx context.Context, userID int64, limit int) []models.Recommendation {
	metrics.RecommendationRequests.WithLabelValues("recommendations").Inc()
	req := &request{id: uuid.NewString(), userID: userID, limit: e.normalizeLimit(limit)}
	log := e.logger.WithFields(logrus.Fields{
		"request_id": req.id,
		"user_id":    userID,
		"limit":      req.limit,
	})

	catalog, err := e.source.FetchProperties(ctx, models.ActiveListings())
	if err != nil {
		log.WithError(err).Error("Failed to fetch active catalog")
		return []models.Recommendation{}
	}
	if len(catalog) == 0 {
		log.Info("No active properties to recommend")
		return []models.Recommendation{}
	}
	req.catalog = catalog

	results := make([][]nomination, len(e.producers))
	var wg sync.WaitGroup
	for i, p := range e.producers {
		wg.Add(1)
		go func(i int, p producer) {
			defer wg.Done()
			results[i] = e.runProducer(ctx, p, req, log)
		}(i, p)
	}
	wg.Wait()

	tags := make([]models.Tag, len(e.producers))
	for i, p := range e.producers {
		tags[i] = p.tag
	}
	merged := merge(results, tags, catalog, req.limit)

	metrics.RecommendationResults.Observe(float64(len(merged)))
	log.WithField("returned", len(merged)).Info("Recommendations generated")
	return merged
}

// runProducer isolates one producer: errors and panics become an empty
// contribution.
func (e *Engine) runProducer(ctx context.Context, p producer, req *request, log *logrus.Entry) (out []nomination) {
	start := time.Now()
	log = log.WithField("producer", p.name)

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("Recommendation producer panicked")
			metrics.RecordProducer(p.name, time.Since(start), "panic")
			out = nil
		}
	}()

	out, err := p.run(ctx, req)
	switch {
	case err == nil:
		log.WithField("nominations", len(out)).Debug("Producer finished")
		metrics.RecordProducer(p.name, time.Since(start), "")
	case errors.Is(err, models.ErrModelUnavailable), errors.Is(err, models.ErrInsufficientData):
		log.WithError(err).Debug("Producer had nothing to contribute")
		metrics.RecordProducer(p.name, time.Since(start), "")
		out = nil
	default:
		log.WithError(err).Warn("Recommendation producer failed")
		metrics.RecordProducer(p.name, time.Since(start), "error")
		out = nil
	}
	return out
}

func (e *Engine) mlPredictions(ctx context.Context, req *request) ([]nomination, error) {
	scored, err := e.interest.Recommend(ctx, req.userID, req.limit)
	if err != nil {
		return nil, err
	}
	return scoredNominations(scored), nil
}

func (e *Engine) preferenceMatches(ctx context.Context, req *request) ([]nomination, error) {
	prefs, err := e.source.FetchPreferences(ctx, req.userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch preferences: %w", err)
	}
	if prefs.IsEmpty() {
		return nil, nil
	}
	return scoredNominations(e.scorer.Top(prefs, req.catalog, req.limit)), nil
}

func (e *Engine) collaborative(ctx context.Context, req *request) ([]nomination, error) {
	records, err := e.source.FetchInteractions(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch interactions: %w", err)
	}
	ids := e.collab.Recommend(records, req.userID, req.limit)
	out := make([]nomination, len(ids))
	for i, id := range ids {
		out[i] = nomination{propertyID: id}
	}
	return out, nil
}

func (e *Engine) investments(ctx context.Context, req *request) ([]nomination, error) {
	history, err := e.source.FetchPriceHistory(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	listings := e.trends.Recommend(history, req.catalog, req.limit)
	out := make([]nomination, len(listings))
	for i, l := range listings {
		rate := l.GrowthRate
		out[i] = nomination{propertyID: l.PropertyID, growthRate: &rate}
	}
	return out, nil
}

func scoredNominations(scored []models.ScoredProperty) []nomination {
	out := make([]nomination, len(scored))
	for i, s := range scored {
		score := s.Score
		out[i] = nomination{propertyID: s.PropertyID, score: &score}
	}
	return out
}

// merge folds nominations keyed by property id in producer order. The
// first score seen wins, as does the first growth rate; tags accumulate
// without duplicates. Properties outside catalog are dropped. The result
// is stably ordered by number of tags and cut to limit.
func merge(results [][]nomination, tags []models.Tag, catalog []models.PropertyRecord, limit int) []models.Recommendation {
	active := models.PropertyIndex(catalog)
	byID := make(map[int64]*models.Recommendation)
	var order []int64

	for i, noms := range results {
		for _, n := range noms {
			if _, ok := active[n.propertyID]; !ok {
				continue
			}
			rec, ok := byID[n.propertyID]
			if !ok {
				rec = &models.Recommendation{PropertyID: n.propertyID}
				byID[n.propertyID] = rec
				order = append(order, n.propertyID)
			}
			if !rec.HasTag(tags[i]) {
				rec.Types = append(rec.Types, tags[i])
			}
			if rec.Score == nil && n.score != nil {
				score := *n.score
				rec.Score = &score
			}
			if rec.GrowthRate == nil && n.growthRate != nil {
				rate := *n.growthRate
				rec.GrowthRate = &rate
			}
		}
	}

	out := make([]models.Recommendation, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Types) > len(out[j].Types)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetSimilar returns active properties most similar to propertyID.
func (e *Engine) GetSimilar(ctx context.Context, propertyID int64, limit int) ([]models.SimilarProperty, error) {
	metrics.RecommendationRequests.WithLabelValues("similar").Inc()
	catalog, err := e.source.FetchProperties(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch properties: %w", err)
	}

	active := make(map[int64]bool, len(catalog))
	for i := range catalog {
		if catalog[i].IsActive() {
			active[catalog[i].ID] = true
		}
	}

	idx := similarity.NewIndex(catalog)
	return idx.Similar(propertyID, e.normalizeLimit(limit), func(id int64) bool { return active[id] })
}

// PredictInterest scores one property for one user with the interest model.
func (e *Engine) PredictInterest(ctx context.Context, userID, propertyID int64) (*models.InterestPrediction, error) {
	metrics.RecommendationRequests.WithLabelValues("prediction").Inc()
	return e.interest.PredictInterest(ctx, userID, propertyID)
}

// Retrain trains the interest model; see interest.Model.Train.
func (e *Engine) Retrain(ctx context.Context, force bool) (bool, error) {
	return e.interest.Train(ctx, force)
}

func (e *Engine) ModelStats(ctx context.Context) (*models.ModelStats, error) {
	return e.interest.Stats(ctx)
}

// MatchScore rates one property against the user's preferences on 0-100.
func (e *Engine) MatchScore(ctx context.Context, userID, propertyID int64) (float64, error) {
	catalog, err := e.source.FetchProperties(ctx, models.ActiveListings())
	if err != nil {
		return 0, fmt.Errorf("failed to fetch properties: %w", err)
	}
	i, ok := models.PropertyIndex(catalog)[propertyID]
	if !ok {
		return 0, fmt.Errorf("%w: property %d", models.ErrUnknownEntity, propertyID)
	}
	prefs, err := e.source.FetchPreferences(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch preferences: %w", err)
	}
	return e.scorer.MatchScore(prefs, &catalog[i], catalog), nil
}

// PriceTrends returns the monthly price series for region, or all regions.
func (e *Engine) PriceTrends(ctx context.Context, region string) ([]trends.Series, error) {
	history, err := e.source.FetchPriceHistory(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	return e.trends.Series(history), nil
}

// InvestmentProperties lists active listings in growing areas. The
// catalog they were drawn from is returned alongside.
func (e *Engine) InvestmentProperties(ctx context.Context, region string, limit int) ([]models.InvestmentListing, []models.PropertyRecord, error) {
	history, err := e.source.FetchPriceHistory(ctx, region)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch price history: %w", err)
	}
	filter := models.ActiveListings()
	if region != "" {
		filter.Regions = []string{region}
	}
	catalog, err := e.source.FetchProperties(ctx, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch properties: %w", err)
	}
	return e.trends.Recommend(history, catalog, e.normalizeLimit(limit)), catalog, nil
}

// InvestmentMap renders InvestmentProperties as GeoJSON.
func (e *Engine) InvestmentMap(ctx context.Context, region string, limit int) (*geojson.FeatureCollection, error) {
	listings, catalog, err := e.InvestmentProperties(ctx, region, limit)
	if err != nil {
		return nil, err
	}
	return geometry.InvestmentCollection(listings, catalog), nil
}
