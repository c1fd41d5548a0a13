package repo

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-admin-console/internal/domain"
)

// LoadPreferences returns every persisted preference keyed by name.
func LoadPreferences(ctx context.Context, db *gorm.DB) (map[string]string, error) {
	var rows []domain.Preference
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[r.Key] = r.Value
	}
	return out, nil
}

// GetPreference returns the stored value of key or ErrNotFound.
func GetPreference(ctx context.Context, db *gorm.DB, key string) (string, error) {
	var p domain.Preference
	if err := db.WithContext(ctx).First(&p, "key = ?", key).Error; err != nil {
		return "", err
	}
	return p.Value, nil
}

// PutPreference upserts key; the last write wins.
func PutPreference(ctx context.Context, db *gorm.DB, key, value string) error {
	p := domain.Preference{Key: strings.TrimSpace(key), Value: value}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&p).Error
}

// DeletePreference removes key. Deleting a missing key is not an error.
func DeletePreference(ctx context.Context, db *gorm.DB, key string) error {
	return db.WithContext(ctx).Delete(&domain.Preference{}, "key = ?", key).Error
}
