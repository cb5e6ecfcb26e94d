package database

import "fmt"

func (d *Database) RunMigrations() error {
	if err := d.db.AutoMigrate(&propertyRow{}, &preferenceRow{}, &interactionRow{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	// Composite index used by price history queries
	if err := d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_properties_region_type_listed
		ON properties(region, property_type, listed_at);
	`).Error; err != nil {
		return fmt.Errorf("failed to create price history index: %w", err)
	}

	// Spatial lookups for location scoring
	if err := d.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_properties_coordinates
		ON properties(latitude, longitude);
	`).Error; err != nil {
		return fmt.Errorf("failed to create coordinates index: %w", err)
	}

	return nil
}
