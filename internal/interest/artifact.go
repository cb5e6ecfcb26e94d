package interest

import (
	"time"

	"propertypro/server/internal/features"
)

// TrainedModel is an immutable snapshot of a fitted pipeline: the codec
// that encodes property attributes, the regressor, and the column order
// the regressor expects.
type TrainedModel struct {
	Regressor      *Regressor      `json:"regressor"`
	Codec          *features.Codec `json:"codec"`
	FeatureColumns features.Schema `json:"feature_columns"`
	TrainedAt      time.Time       `json:"trained_at"`
	Samples        int             `json:"samples"`
	R2             float64         `json:"r2"`
}

// Predict scores a named feature row. Columns the model expects but the
// row lacks are zero-filled and returned.
func (m *TrainedModel) Predict(rec features.Record) (float64, []string) {
	vec, missing := m.FeatureColumns.Vector(rec)
	return m.Regressor.Predict(vec), missing
}
