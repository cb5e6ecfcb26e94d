package models

import (
	"sort"
	"time"
)

// Action is a kind of user engagement with a listing.
type Action string

const (
	ActionView    Action = "view"
	ActionLike    Action = "like"
	ActionSave    Action = "save"
	ActionContact Action = "contact"
)

// Weight is the contribution of one occurrence of the action to the
// interaction strength. Unknown actions contribute nothing.
func (a Action) Weight() float64 {
	switch a {
	case ActionView:
		return 1
	case ActionLike:
		return 3
	case ActionSave:
		return 5
	case ActionContact:
		return 8
	default:
		return 0
	}
}

// Valid reports whether the action is one of the known kinds.
func (a Action) Valid() bool {
	return a.Weight() > 0
}

// InteractionRecord counts how often a user performed an action on a
// property.
type InteractionRecord struct {
	UserID        int64     `json:"user_id"`
	PropertyID    int64     `json:"property_id"`
	Action        Action    `json:"action"`
	Count         int       `json:"count"`
	LastTimestamp time.Time `json:"last_timestamp"`
}

// Strength is this record's contribution to the (user, property) strength.
func (r InteractionRecord) Strength() float64 {
	if r.Count <= 0 {
		return 0
	}
	return float64(r.Count) * r.Action.Weight()
}

// Pair identifies a (user, property) combination.
type Pair struct {
	UserID     int64
	PropertyID int64
}

// AggregateStrength sums strengths per (user, property).
func AggregateStrength(records []InteractionRecord) map[Pair]float64 {
	out := make(map[Pair]float64)
	for _, r := range records {
		s := r.Strength()
		if s <= 0 {
			continue
		}
		out[Pair{UserID: r.UserID, PropertyID: r.PropertyID}] += s
	}
	return out
}

// SortedPairs returns the keys of a strength map ordered by user then property.
func SortedPairs(strengths map[Pair]float64) []Pair {
	pairs := make([]Pair, 0, len(strengths))
	for p := range strengths {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].UserID != pairs[j].UserID {
			return pairs[i].UserID < pairs[j].UserID
		}
		return pairs[i].PropertyID < pairs[j].PropertyID
	})
	return pairs
}

// InteractedProperties returns the set of properties the user touched at all.
func InteractedProperties(records []InteractionRecord, userID int64) map[int64]bool {
	seen := make(map[int64]bool)
	for _, r := range records {
		if r.UserID == userID {
			seen[r.PropertyID] = true
		}
	}
	return seen
}
