package models

import "strings"

// PropertyFilter restricts which properties a data source returns.
// A nil filter means no restriction.
type PropertyFilter struct {
	ActiveOnly    bool     `json:"active_only"`
	MinPrice      *float64 `json:"min_price"`
	MaxPrice      *float64 `json:"max_price"`
	MinBedrooms   *int     `json:"min_bedrooms"`
	MaxBedrooms   *int     `json:"max_bedrooms"`
	Regions       []string `json:"regions"`
	PropertyTypes []string `json:"property_types"`
	IDs           []int64  `json:"ids"`
}

// ActiveListings is the filter used for every recommendation catalog.
func ActiveListings() *PropertyFilter {
	return &PropertyFilter{ActiveOnly: true}
}

// Allows checks if a property matches the filter criteria
func (f *PropertyFilter) Allows(property *PropertyRecord) bool {
	if f == nil {
		return true
	}

	if f.ActiveOnly && !property.IsActive() {
		return false
	}

	if f.MinPrice != nil && property.Price < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && property.Price > *f.MaxPrice {
		return false
	}

	if property.Bedrooms != nil {
		if f.MinBedrooms != nil && *property.Bedrooms < *f.MinBedrooms {
			return false
		}
		if f.MaxBedrooms != nil && *property.Bedrooms > *f.MaxBedrooms {
			return false
		}
	} else if f.MinBedrooms != nil || f.MaxBedrooms != nil {
		return false // Filter requires bedrooms but property has none
	}

	if len(f.Regions) > 0 && !containsFold(f.Regions, property.Region) {
		return false
	}
	if len(f.PropertyTypes) > 0 && !containsFold(f.PropertyTypes, property.PropertyType) {
		return false
	}

	if len(f.IDs) > 0 {
		allowed := false
		for _, id := range f.IDs {
			if id == property.ID {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}

	return true
}

// Apply returns the subset of properties allowed by the filter, preserving order.
func (f *PropertyFilter) Apply(properties []PropertyRecord) []PropertyRecord {
	out := make([]PropertyRecord, 0, len(properties))
	for i := range properties {
		if f.Allows(&properties[i]) {
			out = append(out, properties[i])
		}
	}
	return out
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}
