package models

// Tag names the producer that nominated a recommendation.
type Tag string

const (
	TagMLPrediction  Tag = "ml_prediction"
	TagPreference    Tag = "preference"
	TagCollaborative Tag = "collaborative"
	TagInvestment    Tag = "investment"
)

// Recommendation is one merged entry returned to callers. Score is set
// by the first scoring producer; GrowthRate only by the investment one.
type Recommendation struct {
	PropertyID int64    `json:"property_id"`
	Score      *float64 `json:"score,omitempty"`
	Types      []Tag    `json:"recommendation_types"`
	GrowthRate *float64 `json:"growth_rate,omitempty"`
}

// HasTag reports whether the entry was nominated by the given producer.
func (r *Recommendation) HasTag(tag Tag) bool {
	for _, t := range r.Types {
		if t == tag {
			return true
		}
	}
	return false
}

// ScoredProperty is a producer-level nomination.
type ScoredProperty struct {
	PropertyID int64   `json:"property_id"`
	Score      float64 `json:"score"`
}

// SimilarProperty is a content-based neighbour of another property.
type SimilarProperty struct {
	PropertyID int64   `json:"property_id"`
	Similarity float64 `json:"similarity"`
}

// InvestmentListing is an active listing in a growing (region, type) area.
type InvestmentListing struct {
	PropertyID   int64   `json:"property_id"`
	Region       string  `json:"region"`
	PropertyType string  `json:"property_type"`
	Price        float64 `json:"price"`
	GrowthRate   float64 `json:"growth_rate"`
}

// InterestPrediction is the model's view of a single user/property pair.
type InterestPrediction struct {
	UserID          int64   `json:"user_id"`
	PropertyID      int64   `json:"property_id"`
	Score           float64 `json:"score"`
	MatchPercentage float64 `json:"match_percentage"`
	Explanation     string  `json:"explanation"`
}
