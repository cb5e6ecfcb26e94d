package models

import (
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// Listing statuses. Only active listings are ever recommended.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
	StatusSold     = "sold"
)

// PropertyRecord is a single listing as read from the data store.
// Optional numeric attributes are pointers; a nil value means the
// listing never reported it.
type PropertyRecord struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Price        float64   `json:"price"`
	Bedrooms     *int      `json:"bedrooms"`
	Bathrooms    *float64  `json:"bathrooms"`
	Area         *float64  `json:"area"`
	PropertyType string    `json:"property_type"`
	Region       string    `json:"region"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	Amenities    []string  `json:"amenities"`
	Status       string    `json:"status"`
	ListedAt     time.Time `json:"listed_at"`
}

// IsActive reports whether the listing may be recommended.
func (p *PropertyRecord) IsActive() bool {
	return strings.EqualFold(p.Status, StatusActive)
}

// HasCoordinates reports whether both latitude and longitude are known.
func (p *PropertyRecord) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}

// Point returns the listing location in lon/lat order. Only valid when
// HasCoordinates is true.
func (p *PropertyRecord) Point() orb.Point {
	return orb.Point{*p.Longitude, *p.Latitude}
}

// HasAmenity does a case-insensitive membership test.
func (p *PropertyRecord) HasAmenity(name string) bool {
	for _, a := range p.Amenities {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

// PropertyIndex maps property ids to their position in a catalog slice.
func PropertyIndex(catalog []PropertyRecord) map[int64]int {
	idx := make(map[int64]int, len(catalog))
	for i, p := range catalog {
		idx[p.ID] = i
	}
	return idx
}

// ModelStats summarises the interest model and the data it was built from.
type ModelStats struct {
	InteractionCount int        `json:"interaction_count"`
	UserCount        int        `json:"user_count"`
	PropertyCount    int        `json:"property_count"`
	ModelInfo        *ModelInfo `json:"model_info"`
}

type ModelInfo struct {
	TrainedAt    time.Time `json:"trained_at"`
	FeatureCount int       `json:"feature_count"`
	Samples      int       `json:"samples"`
	R2           float64   `json:"r2"`
}
