package interest

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propertypro/server/internal/features"
	"propertypro/server/internal/models"
)

func sampleModel() *TrainedModel {
	props := testProperties()
	codec := features.Fit(props, features.Standard)
	X := codec.EncodeAll(props)
	y := []float64{1, 3, 5, 8, 1, 0}
	return &TrainedModel{
		Regressor:      FitRegressor(X, y, BoostingConfig{Trees: 10, LearningRate: 0.1, MaxDepth: 2}),
		Codec:          codec,
		FeatureColumns: codec.Schema(),
		TrainedAt:      time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC),
		Samples:        6,
		R2:             0.42,
	}
}

func TestStore_SaveLoad(t *testing.T) {
	store := NewStore(t.TempDir())
	m := sampleModel()
	require.NoError(t, store.Save(m))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, m.FeatureColumns, loaded.FeatureColumns)
	assert.True(t, m.TrainedAt.Equal(loaded.TrainedAt))
	assert.Equal(t, m.R2, loaded.R2)

	for _, p := range testProperties() {
		want, _ := m.Predict(m.Codec.Record(&p))
		got, _ := loaded.Predict(loaded.Codec.Record(&p))
		assert.InDelta(t, want, got, 1e-12)
	}
}

func TestStore_LoadMissing(t *testing.T) {
	_, err := NewStore(t.TempDir()).Load()
	assert.True(t, errors.Is(err, models.ErrModelUnavailable))
}

func TestStore_LoadCorrupt(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", "{"},
		{"bad checksum", `{"version":1,"checksum":"00","model":{}}`},
		{"wrong version", `{"version":9,"checksum":"","model":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewStore(t.TempDir())
			require.NoError(t, os.WriteFile(store.Path(), []byte(tt.payload), 0644))
			_, err := store.Load()
			assert.True(t, errors.Is(err, models.ErrPersistence))
		})
	}
}

func TestStore_SaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir)

	first := sampleModel()
	require.NoError(t, store.Save(first))
	second := sampleModel()
	second.Samples = 99
	require.NoError(t, store.Save(second))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 99, loaded.Samples)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExplain(t *testing.T) {
	tests := []struct {
		score       float64
		percentage  float64
		explanation string
	}{
		{5.5, 100, "This property is an exceptional match for your preferences."},
		{4.0, 80, "This property is a very good match for your preferences."},
		{2.5, 50, "This property matches several of your key preferences."},
		{1.5, 30, "This property matches some of your preferences."},
		{-1, 0, "This property may not be the best match for your preferences."},
	}

	for _, tt := range tests {
		p := Explain(1, 2, tt.score)
		assert.Equal(t, tt.percentage, p.MatchPercentage)
		assert.Equal(t, tt.explanation, p.Explanation)
	}
}
