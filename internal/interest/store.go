package interest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"propertypro/server/internal/models"
)

const (
	artifactName    = "interest_model.json"
	artifactVersion = 1
)

type envelope struct {
	Version  int             `json:"version"`
	Checksum string          `json:"checksum"`
	Model    json.RawMessage `json:"model"`
}

// Store persists a single model artifact on disk. Writes go to a temp
// file in the same directory which is then renamed over the artifact, so
// readers never observe a partial file.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path is the location of the active artifact.
func (s *Store) Path() string {
	return filepath.Join(s.dir, artifactName)
}

// Save writes m as the active artifact.
func (s *Store) Save(m *TrainedModel) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("%w: failed to encode model: %v", models.ErrPersistence, err)
	}
	sum := sha256.Sum256(data)
	payload, err := json.Marshal(envelope{
		Version:  artifactVersion,
		Checksum: hex.EncodeToString(sum[:]),
		Model:    data,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to encode envelope: %v", models.ErrPersistence, err)
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: failed to create model directory: %v", models.ErrPersistence, err)
	}

	tmp, err := os.CreateTemp(s.dir, ".interest_model-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: failed to create temp file: %v", models.ErrPersistence, err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(payload); err != nil {
		cleanup()
		return fmt.Errorf("%w: failed to write model: %v", models.ErrPersistence, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("%w: failed to sync model: %v", models.ErrPersistence, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to close model file: %v", models.ErrPersistence, err)
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("%w: failed to replace model: %v", models.ErrPersistence, err)
	}
	return nil
}

// Load reads the active artifact. It returns ErrModelUnavailable when no
// artifact exists and ErrPersistence when it cannot be trusted.
func (s *Store) Load() (*TrainedModel, error) {
	payload, err := os.ReadFile(s.Path())
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: no model at %s", models.ErrModelUnavailable, s.Path())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read model: %v", models.ErrPersistence, err)
	}

	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: failed to decode envelope: %v", models.ErrPersistence, err)
	}
	if env.Version != artifactVersion {
		return nil, fmt.Errorf("%w: unsupported model version %d", models.ErrPersistence, env.Version)
	}
	sum := sha256.Sum256(env.Model)
	if hex.EncodeToString(sum[:]) != env.Checksum {
		return nil, fmt.Errorf("%w: checksum mismatch", models.ErrPersistence)
	}

	var m TrainedModel
	if err := json.Unmarshal(env.Model, &m); err != nil {
		return nil, fmt.Errorf("%w: failed to decode model: %v", models.ErrPersistence, err)
	}
	if m.Regressor == nil || m.Codec == nil || len(m.FeatureColumns) == 0 {
		return nil, fmt.Errorf("%w: incomplete model artifact", models.ErrPersistence)
	}
	return &m, nil
}
