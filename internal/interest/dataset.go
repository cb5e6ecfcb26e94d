package interest

import (
	"math"
	"math/rand"
	"sort"

	"propertypro/server/internal/features"
	"propertypro/server/internal/models"
	"propertypro/server/internal/scoring"
)

// example is one (user, property) row of the training table.
type example struct {
	pair     models.Pair
	property *models.PropertyRecord
	target   float64
}

// joinExamples pairs aggregated interaction strength with the property it
// refers to. Interactions on unknown properties are dropped.
func joinExamples(interactions []models.InteractionRecord, properties []models.PropertyRecord) []example {
	strengths := models.AggregateStrength(interactions)
	index := models.PropertyIndex(properties)

	examples := make([]example, 0, len(strengths))
	for _, pair := range models.SortedPairs(strengths) {
		i, ok := index[pair.PropertyID]
		if !ok {
			continue
		}
		examples = append(examples, example{pair: pair, property: &properties[i], target: strengths[pair]})
	}
	return examples
}

// splitExamples shuffles deterministically and holds out testFraction of
// the rows (rounded up) while keeping at least one training row.
func splitExamples(examples []example, testFraction float64, seed int64) (train, test []example) {
	shuffled := make([]example, len(examples))
	copy(shuffled, examples)
	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	nTest := int(math.Ceil(float64(len(shuffled)) * testFraction))
	if nTest >= len(shuffled) {
		nTest = len(shuffled) - 1
	}
	if nTest < 0 {
		nTest = 0
	}
	return shuffled[nTest:], shuffled[:nTest]
}

// featurizer builds named feature rows for users against a catalog.
type featurizer struct {
	codec   *features.Codec
	scorer  *scoring.Scorer
	catalog []models.PropertyRecord
	prefs   map[int64]*models.PreferenceSet
	batches map[int64]*scoring.Batch
}

func newFeaturizer(codec *features.Codec, scorer *scoring.Scorer, catalog []models.PropertyRecord, prefs map[int64]*models.PreferenceSet) *featurizer {
	return &featurizer{
		codec:   codec,
		scorer:  scorer,
		catalog: catalog,
		prefs:   prefs,
		batches: make(map[int64]*scoring.Batch),
	}
}

func (f *featurizer) record(userID int64, p *models.PropertyRecord) features.Record {
	rec := f.codec.Record(p)
	prefs := f.prefs[userID]
	if prefs.IsEmpty() {
		return rec
	}
	b, ok := f.batches[userID]
	if !ok {
		b = f.scorer.NewBatch(prefs, f.catalog)
		f.batches[userID] = b
	}
	return rec.Merge(f.scorer.MatchFeatures(b, prefs, p))
}

// schemaFor extends the codec schema with the preference columns seen in
// rows, in a fixed kind order.
func schemaFor(codec *features.Codec, rows []features.Record) features.Schema {
	schema := codec.Schema()
	seen := make(map[string]bool)
	for _, r := range rows {
		for name := range r {
			seen[name] = true
		}
	}
	for _, kind := range models.Kinds {
		for _, col := range []string{scoring.MatchColumn(string(kind)), scoring.WeightColumn(string(kind))} {
			if seen[col] {
				schema = append(schema, col)
			}
		}
	}
	return schema
}

// distinctUsers lists the users with at least one interaction, ascending.
func distinctUsers(interactions []models.InteractionRecord) []int64 {
	set := make(map[int64]bool)
	for _, r := range interactions {
		set[r.UserID] = true
	}
	users := make([]int64, 0, len(set))
	for u := range set {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

func distinctProperties(interactions []models.InteractionRecord) int {
	set := make(map[int64]bool)
	for _, r := range interactions {
		set[r.PropertyID] = true
	}
	return len(set)
}
