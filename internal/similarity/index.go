package similarity

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"propertypro/server/internal/features"
	"propertypro/server/internal/models"
)

// Index answers "more like this" queries over a fixed catalog using
// cosine similarity of min-max encoded feature vectors.
type Index struct {
	ids     []int64
	rows    [][]float64
	norms   []float64
	indexOf map[int64]int
}

// NewIndex encodes the catalog with a freshly fitted min-max codec.
func NewIndex(catalog []models.PropertyRecord) *Index {
	codec := features.Fit(catalog, features.MinMax)
	return NewIndexFromRows(idsOf(catalog), codec.EncodeAll(catalog))
}

// NewIndexFromRows builds an index over pre-encoded rows.
func NewIndexFromRows(ids []int64, rows [][]float64) *Index {
	idx := &Index{
		ids:     ids,
		rows:    rows,
		norms:   make([]float64, len(rows)),
		indexOf: make(map[int64]int, len(ids)),
	}
	for i, row := range rows {
		idx.norms[i] = floats.Norm(row, 2)
		idx.indexOf[ids[i]] = i
	}
	return idx
}

// Len is the number of indexed properties.
func (idx *Index) Len() int {
	return len(idx.ids)
}

// Similarity is the cosine similarity of two rows clamped to [0,1].
// A zero vector is similar to nothing.
func (idx *Index) similarity(i, j int) float64 {
	if idx.norms[i] == 0 || idx.norms[j] == 0 {
		return 0
	}
	cos := floats.Dot(idx.rows[i], idx.rows[j]) / (idx.norms[i] * idx.norms[j])
	return math.Max(0, math.Min(1, cos))
}

// Similar returns up to n properties most similar to propertyID, never
// including it. keep, when non-nil, restricts the candidates. Ties keep
// catalog order.
func (idx *Index) Similar(propertyID int64, n int, keep func(id int64) bool) ([]models.SimilarProperty, error) {
	target, ok := idx.indexOf[propertyID]
	if !ok {
		return nil, fmt.Errorf("%w: property %d", models.ErrUnknownEntity, propertyID)
	}
	if n <= 0 {
		return nil, nil
	}

	candidates := make([]models.SimilarProperty, 0, len(idx.ids))
	for i, id := range idx.ids {
		if i == target || id == propertyID {
			continue
		}
		if keep != nil && !keep(id) {
			continue
		}
		candidates = append(candidates, models.SimilarProperty{PropertyID: id, Similarity: idx.similarity(target, i)})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].Similarity > candidates[b].Similarity
	})
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates, nil
}

func idsOf(catalog []models.PropertyRecord) []int64 {
	ids := make([]int64, len(catalog))
	for i, p := range catalog {
		ids[i] = p.ID
	}
	return ids
}
