package interest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"propertypro/server/internal/features"
	"propertypro/server/internal/metrics"
	"propertypro/server/internal/models"
	"propertypro/server/internal/scoring"
)

type Config struct {
	MinSamples   int
	TestFraction float64
	Seed         int64
	FetchWorkers int
	Boosting     BoostingConfig
}

// Model owns the interest model lifecycle: training, persistence and
// serving. Serving reads an atomically swapped snapshot and never waits
// on training.
type Model struct {
	source  models.DataSource
	store   *Store
	scorer  *scoring.Scorer
	cfg     Config
	logger  *logrus.Logger
	current atomic.Pointer[TrainedModel]
	trainMu sync.Mutex
	now     func() time.Time
}

func NewModel(source models.DataSource, store *Store, scorer *scoring.Scorer, cfg Config, logger *logrus.Logger) *Model {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 10
	}
	if cfg.FetchWorkers <= 0 {
		cfg.FetchWorkers = 4
	}
	if cfg.Boosting.Trees <= 0 {
		cfg.Boosting = DefaultBoostingConfig()
	}
	return &Model{
		source: source,
		store:  store,
		scorer: scorer,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Load replaces the serving snapshot with the persisted artifact. On
// failure the current snapshot is kept.
func (m *Model) Load() error {
	loaded, err := m.store.Load()
	if err != nil {
		return err
	}
	m.current.Store(loaded)
	metrics.ModelSamples.Set(float64(loaded.Samples))
	metrics.ModelR2.Set(loaded.R2)
	m.logger.WithFields(logrus.Fields{
		"trained_at": loaded.TrainedAt,
		"features":   len(loaded.FeatureColumns),
		"samples":    loaded.Samples,
	}).Info("Loaded interest model")
	return nil
}

// Current returns the serving snapshot, or nil when untrained.
func (m *Model) Current() *TrainedModel {
	return m.current.Load()
}

func (m *Model) IsTrained() bool {
	return m.Current() != nil
}

// Train fits a new model when none is loaded or force is set. It reports
// whether a new model was installed. A concurrent call fails fast with
// ErrTrainingInProgress.
func (m *Model) Train(ctx context.Context, force bool) (bool, error) {
	if !m.trainMu.TryLock() {
		metrics.RecordTraining("busy", 0)
		return false, models.ErrTrainingInProgress
	}
	defer m.trainMu.Unlock()

	log := m.logger.WithFields(logrus.Fields{
		"run_id": uuid.NewString(),
		"force":  force,
	})
	if m.IsTrained() && !force {
		log.Info("Interest model already trained, skipping")
		metrics.RecordTraining("skipped", 0)
		return false, nil
	}

	start := time.Now()
	trained, err := m.fit(ctx, log)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInsufficientData):
			log.WithError(err).Warn("Not enough data to train interest model")
			metrics.RecordTraining("insufficient_data", 0)
		default:
			log.WithError(err).Error("Interest model training failed")
			metrics.RecordTraining("failed", 0)
		}
		return false, err
	}

	if err := m.store.Save(trained); err != nil {
		log.WithError(err).Error("Failed to persist interest model")
		metrics.RecordTraining("failed", 0)
		return false, err
	}
	m.current.Store(trained)

	metrics.RecordTraining("trained", time.Since(start))
	metrics.ModelSamples.Set(float64(trained.Samples))
	metrics.ModelR2.Set(trained.R2)
	log.WithFields(logrus.Fields{
		"samples":  trained.Samples,
		"features": len(trained.FeatureColumns),
		"r2":       trained.R2,
		"duration": time.Since(start).String(),
	}).Info("Interest model trained")
	return true, nil
}

// trainingData is everything one training run reads from the source.
type trainingData struct {
	interactions []models.InteractionRecord
	properties   []models.PropertyRecord
	prefs        map[int64]*models.PreferenceSet
}

func (m *Model) fetch(ctx context.Context) (*trainingData, error) {
	data := &trainingData{prefs: make(map[int64]*models.PreferenceSet)}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		records, err := m.source.FetchInteractions(gctx, 0)
		if err != nil {
			return fmt.Errorf("failed to fetch interactions: %w", err)
		}
		data.interactions = records
		return nil
	})
	g.Go(func() error {
		props, err := m.source.FetchProperties(gctx, nil)
		if err != nil {
			return fmt.Errorf("failed to fetch properties: %w", err)
		}
		data.properties = props
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var mu sync.Mutex
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.FetchWorkers)
	for _, userID := range distinctUsers(data.interactions) {
		g.Go(func() error {
			prefs, err := m.source.FetchPreferences(gctx, userID)
			if err != nil {
				return fmt.Errorf("failed to fetch preferences for user %d: %w", userID, err)
			}
			mu.Lock()
			data.prefs[userID] = prefs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func (m *Model) fit(ctx context.Context, log *logrus.Entry) (*TrainedModel, error) {
	data, err := m.fetch(ctx)
	if err != nil {
		return nil, err
	}

	examples := joinExamples(data.interactions, data.properties)
	if len(examples) < m.cfg.MinSamples {
		return nil, fmt.Errorf("%w: %d samples, need %d", models.ErrInsufficientData, len(examples), m.cfg.MinSamples)
	}

	train, test := splitExamples(examples, m.cfg.TestFraction, m.cfg.Seed)
	trainProps := make([]models.PropertyRecord, len(train))
	for i, ex := range train {
		trainProps[i] = *ex.property
	}
	codec := features.Fit(trainProps, features.Standard)
	fz := newFeaturizer(codec, m.scorer, referenceCatalog(data.properties), data.prefs)

	trainRows := make([]features.Record, len(train))
	for i, ex := range train {
		trainRows[i] = fz.record(ex.pair.UserID, ex.property)
	}
	schema := schemaFor(codec, trainRows)

	X := make([][]float64, len(train))
	y := make([]float64, len(train))
	for i, row := range trainRows {
		X[i], _ = schema.Vector(row)
		y[i] = train[i].target
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	trained := &TrainedModel{
		Regressor:      FitRegressor(X, y, m.cfg.Boosting),
		Codec:          codec,
		FeatureColumns: schema,
		TrainedAt:      m.now().UTC(),
		Samples:        len(examples),
	}
	trained.R2 = holdoutR2(trained, fz, test)

	log.WithFields(logrus.Fields{
		"train": len(train),
		"test":  len(test),
	}).Debug("Fitted interest model")
	return trained, nil
}

// holdoutR2 is the coefficient of determination on the held-out rows,
// or 0 when it is undefined.
func holdoutR2(m *TrainedModel, fz *featurizer, test []example) float64 {
	if len(test) < 2 {
		return 0
	}
	estimates := make([]float64, len(test))
	actual := make([]float64, len(test))
	for i, ex := range test {
		estimates[i], _ = m.Predict(fz.record(ex.pair.UserID, ex.property))
		actual[i] = ex.target
	}
	r2 := stat.RSquaredFrom(estimates, actual, nil)
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		return 0
	}
	return r2
}

// Predict scores catalog for userID, highest first. Ties keep catalog order.
func (m *Model) Predict(ctx context.Context, userID int64, catalog []models.PropertyRecord) ([]models.ScoredProperty, error) {
	return m.predict(ctx, userID, catalog, catalog)
}

// referenceCatalog is the catalog preference features are normalised
// against: the active listings, or everything when none is active.
func referenceCatalog(all []models.PropertyRecord) []models.PropertyRecord {
	if active := models.ActiveListings().Apply(all); len(active) > 0 {
		return active
	}
	return all
}

// predict scores targets, normalising preference features against reference.
func (m *Model) predict(ctx context.Context, userID int64, reference, targets []models.PropertyRecord) ([]models.ScoredProperty, error) {
	snapshot := m.Current()
	if snapshot == nil {
		return nil, models.ErrModelUnavailable
	}

	prefs, err := m.source.FetchPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch preferences: %w", err)
	}

	fz := newFeaturizer(snapshot.Codec, m.scorer, reference, map[int64]*models.PreferenceSet{userID: prefs})
	out := make([]models.ScoredProperty, len(targets))
	missingRows := 0
	var missingCols []string
	for i := range targets {
		score, missing := snapshot.Predict(fz.record(userID, &targets[i]))
		if len(missing) > 0 {
			missingRows++
			missingCols = missing
		}
		out[i] = models.ScoredProperty{PropertyID: targets[i].ID, Score: score}
	}

	if missingRows > 0 {
		metrics.SchemaMismatches.Add(float64(missingRows))
		m.logger.WithError(models.ErrSchemaMismatch).WithFields(logrus.Fields{
			"user_id":         userID,
			"rows":            missingRows,
			"missing_columns": missingCols,
		}).Debug("Zero-filled columns missing from prediction input")
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Recommend predicts interest in every active listing the user has not
// interacted with and returns the best limit of them.
func (m *Model) Recommend(ctx context.Context, userID int64, limit int) ([]models.ScoredProperty, error) {
	if !m.IsTrained() {
		return nil, models.ErrModelUnavailable
	}

	catalog, err := m.source.FetchProperties(ctx, models.ActiveListings())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch properties: %w", err)
	}
	history, err := m.source.FetchInteractions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch interactions: %w", err)
	}

	seen := models.InteractedProperties(history, userID)
	candidates := make([]models.PropertyRecord, 0, len(catalog))
	for _, p := range catalog {
		if !seen[p.ID] {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	scored, err := m.predict(ctx, userID, catalog, candidates)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// PredictInterest scores one property for one user.
func (m *Model) PredictInterest(ctx context.Context, userID, propertyID int64) (*models.InterestPrediction, error) {
	if !m.IsTrained() {
		return nil, models.ErrModelUnavailable
	}

	catalog, err := m.source.FetchProperties(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch properties: %w", err)
	}
	i, ok := models.PropertyIndex(catalog)[propertyID]
	if !ok {
		return nil, fmt.Errorf("%w: property %d", models.ErrUnknownEntity, propertyID)
	}

	// Same normalisation as Recommend, so both report the same score.
	scored, err := m.predict(ctx, userID, referenceCatalog(catalog), catalog[i:i+1])
	if err != nil {
		return nil, err
	}
	if len(scored) == 1 {
		return Explain(userID, propertyID, scored[0].Score), nil
	}
	return nil, fmt.Errorf("%w: property %d", models.ErrUnknownEntity, propertyID)
}

// Stats describes the active model and the interaction data behind it.
func (m *Model) Stats(ctx context.Context) (*models.ModelStats, error) {
	records, err := m.source.FetchInteractions(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch interactions: %w", err)
	}

	stats := &models.ModelStats{
		InteractionCount: len(records),
		UserCount:        len(distinctUsers(records)),
		PropertyCount:    distinctProperties(records),
	}
	if snapshot := m.Current(); snapshot != nil {
		stats.ModelInfo = &models.ModelInfo{
			TrainedAt:    snapshot.TrainedAt,
			FeatureCount: len(snapshot.FeatureColumns),
			Samples:      snapshot.Samples,
			R2:           snapshot.R2,
		}
	}
	return stats, nil
}
