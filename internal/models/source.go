package models

import "context"

// DataSource is the read side every recommendation component depends on.
type DataSource interface {
	// FetchProperties returns properties allowed by filter; nil means all.
	FetchProperties(ctx context.Context, filter *PropertyFilter) ([]PropertyRecord, error)
	// FetchPreferences returns nil when the user has no stored preferences.
	FetchPreferences(ctx context.Context, userID int64) (*PreferenceSet, error)
	// FetchInteractions returns the user's records, or everyone's for userID 0.
	FetchInteractions(ctx context.Context, userID int64) ([]InteractionRecord, error)
	// FetchPriceHistory returns dated listings for region, or all regions for "".
	FetchPriceHistory(ctx context.Context, region string) ([]PropertyRecord, error)
}
