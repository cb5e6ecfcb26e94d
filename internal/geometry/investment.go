package geometry

import (
	"github.com/paulmach/orb/geojson"

	"propertypro/server/internal/models"
)

// InvestmentCollection renders investment listings as point features,
// followed by the hull of every region they fall in. Listings without
// coordinates are skipped.
func InvestmentCollection(listings []models.InvestmentListing, catalog []models.PropertyRecord) *geojson.FeatureCollection {
	index := models.PropertyIndex(catalog)
	regions := BuildRegions(catalog)

	fc := geojson.NewFeatureCollection()
	included := make(map[string]bool)
	var order []string

	for _, l := range listings {
		i, ok := index[l.PropertyID]
		if !ok || !catalog[i].HasCoordinates() {
			continue
		}
		feature := geojson.NewFeature(catalog[i].Point())
		feature.ID = l.PropertyID
		feature.Properties = geojson.Properties{
			"property_id":   l.PropertyID,
			"region":        l.Region,
			"property_type": l.PropertyType,
			"price":         l.Price,
			"growth_rate":   l.GrowthRate,
		}
		fc.Append(feature)

		key := RegionKey(l.Region)
		if !included[key] {
			included[key] = true
			order = append(order, key)
		}
	}

	for _, key := range order {
		if r, ok := regions[key]; ok {
			fc.Append(r.Feature())
		}
	}
	return fc
}
