package interest

import (
	"context"
	"sync"
	"time"

	"propertypro/server/internal/models"
)

// fakeSource is an in-memory DataSource. When block is set,
// FetchInteractions signals entered and waits until block is closed.
type fakeSource struct {
	mu           sync.Mutex
	properties   []models.PropertyRecord
	interactions []models.InteractionRecord
	prefs        map[int64]*models.PreferenceSet
	block        chan struct{}
	entered      chan struct{}
	enteredOnce  sync.Once
}

func (f *fakeSource) FetchProperties(_ context.Context, filter *models.PropertyFilter) ([]models.PropertyRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return filter.Apply(f.properties), nil
}

func (f *fakeSource) FetchPreferences(_ context.Context, userID int64) (*models.PreferenceSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs[userID], nil
}

func (f *fakeSource) FetchInteractions(ctx context.Context, userID int64) ([]models.InteractionRecord, error) {
	f.mu.Lock()
	block, entered := f.block, f.entered
	f.mu.Unlock()

	if block != nil {
		f.enteredOnce.Do(func() { close(entered) })
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.InteractionRecord
	for _, r := range f.interactions {
		if userID == 0 || r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) FetchPriceHistory(_ context.Context, region string) ([]models.PropertyRecord, error) {
	return nil, nil
}

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func testProperties() []models.PropertyRecord {
	types := []string{"apartment", "house", "house", "villa", "apartment", "house"}
	regions := []string{"Kingston", "Kingston", "Portmore", "Negril", "Portmore", "Kingston"}
	var props []models.PropertyRecord
	for i := 0; i < 6; i++ {
		props = append(props, models.PropertyRecord{
			ID:           int64(i + 1),
			Price:        float64(100000 + 50000*i),
			Bedrooms:     intPtr(1 + i%4),
			Bathrooms:    floatPtr(float64(1 + i%2)),
			Area:         floatPtr(float64(60 + 20*i)),
			PropertyType: types[i],
			Region:       regions[i],
			Amenities:    []string{"parking"},
			Status:       models.StatusActive,
			ListedAt:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	return props
}

func testInteractions() []models.InteractionRecord {
	actions := []models.Action{models.ActionView, models.ActionLike, models.ActionSave, models.ActionContact}
	var out []models.InteractionRecord
	for u := int64(1); u <= 4; u++ {
		for p := int64(1); p <= 6; p++ {
			if (u*p)%3 == 0 {
				continue
			}
			out = append(out, models.InteractionRecord{
				UserID:     u,
				PropertyID: p,
				Action:     actions[(u+p)%4],
				Count:      1,
			})
		}
	}
	return out
}

func testPreferences() map[int64]*models.PreferenceSet {
	return map[int64]*models.PreferenceSet{
		1: models.NewPreferenceSet(1,
			models.WeightedDimension{Dimension: models.PriceRange{Min: 100000, Max: 200000}, Weight: 5},
			models.WeightedDimension{Dimension: models.PropertyTypePref{Name: "house"}, Weight: 3},
		),
		2: models.NewPreferenceSet(2,
			models.WeightedDimension{Dimension: models.PriceRange{Min: 200000, Max: 400000}, Weight: 4},
		),
	}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		properties:   testProperties(),
		interactions: testInteractions(),
		prefs:        testPreferences(),
	}
}
