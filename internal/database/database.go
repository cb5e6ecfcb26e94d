package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"propertypro/server/internal/models"
)

// Database is the SQLite-backed implementation of models.DataSource.
type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := dbPath + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{db: db, logger: logger}, nil
}

// GetDB exposes the underlying handle for transactional writers.
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) FetchProperties(ctx context.Context, filter *models.PropertyFilter) ([]models.PropertyRecord, error) {
	q := d.db.WithContext(ctx).Model(&propertyRow{})
	if filter != nil {
		if filter.ActiveOnly {
			q = q.Where("LOWER(status) = ?", models.StatusActive)
		}
		if filter.MinPrice != nil {
			q = q.Where("price >= ?", *filter.MinPrice)
		}
		if filter.MaxPrice != nil {
			q = q.Where("price <= ?", *filter.MaxPrice)
		}
		if len(filter.Regions) > 0 {
			q = q.Where("LOWER(region) IN ?", lowerAll(filter.Regions))
		}
		if len(filter.PropertyTypes) > 0 {
			q = q.Where("LOWER(property_type) IN ?", lowerAll(filter.PropertyTypes))
		}
		if len(filter.IDs) > 0 {
			q = q.Where("id IN ?", filter.IDs)
		}
	}

	var rows []propertyRow
	if err := q.Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query properties: %w", err)
	}

	props := make([]models.PropertyRecord, len(rows))
	for i, r := range rows {
		props[i] = r.toModel()
	}
	// bedroom bounds and exact-case checks are applied in memory
	return filter.Apply(props), nil
}

func (d *Database) FetchPreferences(ctx context.Context, userID int64) (*models.PreferenceSet, error) {
	var rows []preferenceRow
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query preferences: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	set := models.NewPreferenceSet(userID)
	for _, r := range rows {
		dim, err := models.ParseDimension(r.Kind, r.Value)
		if err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"user_id": userID,
				"kind":    r.Kind,
			}).Warn("Skipping unreadable preference")
			continue
		}
		set.Set(dim, r.Weight)
	}
	return set, nil
}

func (d *Database) FetchInteractions(ctx context.Context, userID int64) ([]models.InteractionRecord, error) {
	q := d.db.WithContext(ctx).Model(&interactionRow{})
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}

	var rows []interactionRow
	if err := q.Order("user_id, property_id, action").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}

	records := make([]models.InteractionRecord, len(rows))
	for i, r := range rows {
		records[i] = r.toModel()
	}
	return records, nil
}

// FetchPriceHistory returns dated active and sold listings, oldest first.
func (d *Database) FetchPriceHistory(ctx context.Context, region string) ([]models.PropertyRecord, error) {
	q := d.db.WithContext(ctx).Model(&propertyRow{}).
		Where("listed_at IS NOT NULL").
		Where("LOWER(status) IN ?", []string{models.StatusActive, models.StatusSold})
	if region != "" {
		q = q.Where("LOWER(region) = ?", strings.ToLower(region))
	}

	var rows []propertyRow
	if err := q.Order("listed_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query price history: %w", err)
	}

	history := make([]models.PropertyRecord, len(rows))
	for i, r := range rows {
		history[i] = r.toModel()
	}
	return history, nil
}

// UpsertProperties inserts or fully replaces listings by id.
func (d *Database) UpsertProperties(ctx context.Context, props []models.PropertyRecord) error {
	if len(props) == 0 {
		return nil
	}
	rows := make([]propertyRow, len(props))
	for i, p := range props {
		rows[i] = toPropertyRow(p)
	}
	err := d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to upsert properties: %w", err)
	}
	return nil
}

// SavePreferences replaces every stored preference of the set's user.
func (d *Database) SavePreferences(ctx context.Context, set *models.PreferenceSet) error {
	rows := make([]preferenceRow, 0, len(set.Dimensions))
	for _, wd := range set.Dimensions {
		kind, raw, err := models.EncodeDimension(wd.Dimension)
		if err != nil {
			return err
		}
		rows = append(rows, preferenceRow{
			UserID: set.UserID,
			Kind:   kind,
			Value:  datatypes.JSON(raw),
			Weight: models.ClampWeight(wd.Weight),
		})
	}

	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", set.UserID).Delete(&preferenceRow{}).Error; err != nil {
			return fmt.Errorf("failed to clear preferences: %w", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("failed to save preferences: %w", err)
		}
		return nil
	})
}

// UpsertInteractions adds each record's count to the stored
// (user, property, action) counter and keeps the newest timestamp.
func UpsertInteractions(tx *gorm.DB, batch []models.InteractionRecord) error {
	if len(batch) == 0 {
		return nil
	}

	rows := make([]interactionRow, 0, len(batch))
	for _, r := range batch {
		count := r.Count
		if count <= 0 {
			count = 1
		}
		ts := r.LastTimestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		rows = append(rows, interactionRow{
			UserID:        r.UserID,
			PropertyID:    r.PropertyID,
			Action:        string(r.Action),
			Occurrences:   count,
			LastTimestamp: ts.UTC(),
		})
	}

	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "property_id"}, {Name: "action"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"occurrences":    gorm.Expr("interactions.occurrences + excluded.occurrences"),
			"last_timestamp": gorm.Expr("MAX(interactions.last_timestamp, excluded.last_timestamp)"),
		}),
	}).Create(&rows).Error
}

// SaveInteractions persists a batch in a single transaction.
func (d *Database) SaveInteractions(ctx context.Context, batch []models.InteractionRecord) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := UpsertInteractions(tx, batch); err != nil {
			return fmt.Errorf("failed to upsert interactions batch: %w", err)
		}
		return nil
	})
}

// IsRetryable reports whether err is a transient SQLite lock error.
func IsRetryable(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// IsConstraintViolation reports whether err is a SQLite constraint failure.
func IsConstraintViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
}

func lowerAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = strings.ToLower(v)
	}
	return out
}
