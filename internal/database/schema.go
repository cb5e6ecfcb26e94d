package database

import (
	"time"

	"gorm.io/datatypes"

	"propertypro/server/internal/models"
)

type propertyRow struct {
	ID           int64 `gorm:"primaryKey"`
	Title        string
	Price        float64 `gorm:"not null"`
	Bedrooms     *int
	Bathrooms    *float64
	Area         *float64
	PropertyType string `gorm:"index"`
	Region       string `gorm:"index"`
	Latitude     *float64
	Longitude    *float64
	Amenities    datatypes.JSONSlice[string]
	Status       string     `gorm:"index;not null;default:active"`
	ListedAt     *time.Time `gorm:"index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (propertyRow) TableName() string { return "properties" }

type preferenceRow struct {
	ID        uint           `gorm:"primaryKey"`
	UserID    int64          `gorm:"not null;uniqueIndex:idx_preferences_user_kind"`
	Kind      string         `gorm:"not null;uniqueIndex:idx_preferences_user_kind"`
	Value     datatypes.JSON `gorm:"not null"`
	Weight    int            `gorm:"not null;default:1"`
	UpdatedAt time.Time
}

func (preferenceRow) TableName() string { return "user_preferences" }

type interactionRow struct {
	ID            uint      `gorm:"primaryKey"`
	UserID        int64     `gorm:"not null;uniqueIndex:idx_interactions_key"`
	PropertyID    int64     `gorm:"not null;uniqueIndex:idx_interactions_key;index"`
	Action        string    `gorm:"not null;uniqueIndex:idx_interactions_key"`
	Occurrences   int       `gorm:"not null;default:1"`
	LastTimestamp time.Time `gorm:"not null"`
}

func (interactionRow) TableName() string { return "interactions" }

func toPropertyRow(p models.PropertyRecord) propertyRow {
	row := propertyRow{
		ID:           p.ID,
		Title:        p.Title,
		Price:        p.Price,
		Bedrooms:     p.Bedrooms,
		Bathrooms:    p.Bathrooms,
		Area:         p.Area,
		PropertyType: p.PropertyType,
		Region:       p.Region,
		Latitude:     p.Latitude,
		Longitude:    p.Longitude,
		Amenities:    datatypes.NewJSONSlice(p.Amenities),
		Status:       p.Status,
	}
	if row.Status == "" {
		row.Status = models.StatusActive
	}
	if !p.ListedAt.IsZero() {
		t := p.ListedAt.UTC()
		row.ListedAt = &t
	}
	return row
}

func (r propertyRow) toModel() models.PropertyRecord {
	p := models.PropertyRecord{
		ID:           r.ID,
		Title:        r.Title,
		Price:        r.Price,
		Bedrooms:     r.Bedrooms,
		Bathrooms:    r.Bathrooms,
		Area:         r.Area,
		PropertyType: r.PropertyType,
		Region:       r.Region,
		Latitude:     r.Latitude,
		Longitude:    r.Longitude,
		Amenities:    []string(r.Amenities),
		Status:       r.Status,
	}
	if r.ListedAt != nil {
		p.ListedAt = r.ListedAt.UTC()
	}
	return p
}

func (r interactionRow) toModel() models.InteractionRecord {
	return models.InteractionRecord{
		UserID:        r.UserID,
		PropertyID:    r.PropertyID,
		Action:        models.Action(r.Action),
		Count:         r.Occurrences,
		LastTimestamp: r.LastTimestamp.UTC(),
	}
}
