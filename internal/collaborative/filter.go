package collaborative

import (
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"propertypro/server/internal/models"
)

type Config struct {
	// Neighbors is the number of most similar users consulted
	Neighbors int
	// StrengthThreshold is the strength a neighbour must exceed for a
	// property to count; the target user must not exceed it.
	StrengthThreshold float64
}

// Filter recommends properties that similar users engaged with strongly.
type Filter struct {
	cfg    Config
	logger *logrus.Logger
}

type neighbor struct {
	userID     int64
	similarity float64
}

func NewFilter(cfg Config, logger *logrus.Logger) *Filter {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	if cfg.Neighbors <= 0 {
		cfg.Neighbors = 5
	}
	return &Filter{cfg: cfg, logger: logger}
}

// Recommend returns up to n property ids for userID. It returns an empty
// result, not an error, when there are fewer than two users or the user
// has no interactions.
func (f *Filter) Recommend(records []models.InteractionRecord, userID int64, n int) []int64 {
	if n <= 0 {
		return nil
	}

	strengths := models.AggregateStrength(records)
	matrix, users, properties := buildMatrix(strengths)

	log := f.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"users":      len(users),
		"properties": len(properties),
	})
	if len(users) < 2 {
		log.Debug("Not enough users for collaborative filtering")
		return nil
	}
	target, ok := matrix[userID]
	if !ok {
		log.Debug("User has no interactions")
		return nil
	}

	neighbors := f.nearest(matrix, users, userID)

	var out []int64
	seen := make(map[int64]bool)
	for _, nb := range neighbors {
		row := matrix[nb.userID]
		for _, j := range strongest(row, f.cfg.StrengthThreshold) {
			pid := properties[j]
			if seen[pid] || target[j] > f.cfg.StrengthThreshold {
				continue
			}
			seen[pid] = true
			out = append(out, pid)
			if len(out) >= n {
				return out
			}
		}
	}

	log.WithField("returned", len(out)).Debug("Collaborative recommendations computed")
	return out
}

// nearest ranks every other user by cosine similarity to userID and keeps
// the configured number; ties keep user-id order.
func (f *Filter) nearest(matrix map[int64][]float64, users []int64, userID int64) []neighbor {
	target := matrix[userID]
	targetNorm := floats.Norm(target, 2)

	neighbors := make([]neighbor, 0, len(users)-1)
	for _, u := range users {
		if u == userID {
			continue
		}
		row := matrix[u]
		sim := 0.0
		if norm := floats.Norm(row, 2); norm > 0 && targetNorm > 0 {
			sim = floats.Dot(target, row) / (norm * targetNorm)
		}
		neighbors = append(neighbors, neighbor{userID: u, similarity: sim})
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		return neighbors[i].similarity > neighbors[j].similarity
	})
	if len(neighbors) > f.cfg.Neighbors {
		neighbors = neighbors[:f.cfg.Neighbors]
	}
	return neighbors
}

// buildMatrix lays strengths out as one dense row per user with columns
// in ascending property-id order.
func buildMatrix(strengths map[models.Pair]float64) (map[int64][]float64, []int64, []int64) {
	userSet := make(map[int64]bool)
	propSet := make(map[int64]bool)
	for pair := range strengths {
		userSet[pair.UserID] = true
		propSet[pair.PropertyID] = true
	}

	users := sortedIDs(userSet)
	properties := sortedIDs(propSet)
	column := make(map[int64]int, len(properties))
	for j, pid := range properties {
		column[pid] = j
	}

	matrix := make(map[int64][]float64, len(users))
	for _, u := range users {
		matrix[u] = make([]float64, len(properties))
	}
	for pair, s := range strengths {
		matrix[pair.UserID][column[pair.PropertyID]] = s
	}
	return matrix, users, properties
}

// strongest returns the columns above threshold, strongest first.
func strongest(row []float64, threshold float64) []int {
	var cols []int
	for j, s := range row {
		if s > threshold {
			cols = append(cols, j)
		}
	}
	sort.SliceStable(cols, func(a, b int) bool {
		return row[cols[a]] > row[cols[b]]
	})
	return cols
}

func sortedIDs(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
