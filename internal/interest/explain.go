package interest

import (
	"math"

	"propertypro/server/internal/models"
)

// Explain converts a raw interest score into a percentage and a short
// human-readable verdict. Scores are on the interaction-strength scale,
// where 5 (a save) maps to 100%.
func Explain(userID, propertyID int64, score float64) *models.InterestPrediction {
	pct := math.Max(0, math.Min(100, score*20))
	return &models.InterestPrediction{
		UserID:          userID,
		PropertyID:      propertyID,
		Score:           score,
		MatchPercentage: math.Round(pct*10) / 10,
		Explanation:     explanation(score),
	}
}

func explanation(score float64) string {
	switch {
	case score >= 4.5:
		return "This property is an exceptional match for your preferences."
	case score >= 3.5:
		return "This property is a very good match for your preferences."
	case score >= 2.5:
		return "This property matches several of your key preferences."
	case score >= 1.5:
		return "This property matches some of your preferences."
	default:
		return "This property may not be the best match for your preferences."
	}
}
