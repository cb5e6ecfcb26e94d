package interest

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// BoostingConfig holds the regressor hyper-parameters.
type BoostingConfig struct {
	Trees          int     `json:"trees"`
	LearningRate   float64 `json:"learning_rate"`
	MaxDepth       int     `json:"max_depth"`
	MinSamplesLeaf int     `json:"min_samples_leaf"`
}

// DefaultBoostingConfig mirrors the production hyper-parameters.
func DefaultBoostingConfig() BoostingConfig {
	return BoostingConfig{Trees: 100, LearningRate: 0.1, MaxDepth: 4, MinSamplesLeaf: 1}
}

// node is one split or leaf of a regression tree. Leaves have Feature -1.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

type tree struct {
	Nodes []node `json:"nodes"`
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Regressor is a least-squares gradient-boosted ensemble of regression
// trees. It is immutable after fitting.
type Regressor struct {
	Config   BoostingConfig `json:"config"`
	Features int            `json:"features"`
	Init     float64        `json:"init"`
	Trees    []tree         `json:"trees"`
}

// FitRegressor trains on rows X with targets y. X must be non-empty and
// rectangular.
func FitRegressor(X [][]float64, y []float64, cfg BoostingConfig) *Regressor {
	if cfg.MinSamplesLeaf < 1 {
		cfg.MinSamplesLeaf = 1
	}
	r := &Regressor{
		Config:   cfg,
		Features: len(X[0]),
		Init:     stat.Mean(y, nil),
	}

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = r.Init
	}
	residual := make([]float64, len(y))
	all := make([]int, len(y))
	for i := range all {
		all[i] = i
	}

	for m := 0; m < cfg.Trees; m++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}
		b := &builder{X: X, residual: residual, cfg: cfg}
		b.grow(append([]int(nil), all...), 0)
		t := tree{Nodes: b.nodes}
		for i := range X {
			pred[i] += cfg.LearningRate * t.predict(X[i])
		}
		r.Trees = append(r.Trees, t)
	}
	return r
}

// Predict scores a single row.
func (r *Regressor) Predict(x []float64) float64 {
	out := r.Init
	for i := range r.Trees {
		out += r.Config.LearningRate * r.Trees[i].predict(x)
	}
	return out
}

type builder struct {
	X        [][]float64
	residual []float64
	cfg      BoostingConfig
	nodes    []node
}

// grow appends the subtree for the samples in idx and returns its root.
func (b *builder) grow(idx []int, depth int) int {
	at := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: -1, Value: b.mean(idx)})

	if depth >= b.cfg.MaxDepth || len(idx) < 2*b.cfg.MinSamplesLeaf {
		return at
	}

	feature, threshold, ok := b.bestSplit(idx)
	if !ok {
		return at
	}

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[at] = node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return at
}

func (b *builder) mean(idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var sum float64
	for _, i := range idx {
		sum += b.residual[i]
	}
	return sum / float64(len(idx))
}

// bestSplit finds the split maximising the reduction in squared error.
func (b *builder) bestSplit(idx []int) (int, float64, bool) {
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += b.residual[i]
	}
	base := total * total / float64(n)

	bestGain := 1e-12
	bestFeature, bestThreshold, found := -1, 0.0, false

	sorted := make([]int, n)
	for f := 0; f < len(b.X[idx[0]]); f++ {
		copy(sorted, idx)
		sort.SliceStable(sorted, func(a, c int) bool {
			return b.X[sorted[a]][f] < b.X[sorted[c]][f]
		})

		var leftSum float64
		for k := 1; k < n; k++ {
			leftSum += b.residual[sorted[k-1]]
			lo, hi := b.X[sorted[k-1]][f], b.X[sorted[k]][f]
			if lo == hi || k < b.cfg.MinSamplesLeaf || n-k < b.cfg.MinSamplesLeaf {
				continue
			}
			rightSum := total - leftSum
			gain := leftSum*leftSum/float64(k) + rightSum*rightSum/float64(n-k) - base
			if gain > bestGain {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}
