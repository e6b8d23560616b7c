package schema

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Version is bumped whenever a migration changes stored data shape.
const Version = "1"

const versionKey = "schema_version"

type StoreMeta struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement"`
	Key       string    `gorm:"column:key;type:text;uniqueIndex;not null"`
	Value     string    `gorm:"column:value;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (StoreMeta) TableName() string {
	return "store_meta"
}

// StampVersion records Version, refusing stores written by a newer schema.
func StampVersion(ctx context.Context, db *gorm.DB) error {
	var current StoreMeta
	err := db.WithContext(ctx).Where("key = ?", versionKey).Take(&current).Error
	switch {
	case err == nil:
		if current.Value > Version {
			return fmt.Errorf("store schema version %s is newer than supported %s", current.Value, Version)
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return err
	}

	row := StoreMeta{Key: versionKey, Value: Version}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error
}

// ReadVersion returns the stamped version, or "" for an unstamped store.
func ReadVersion(ctx context.Context, db *gorm.DB) (string, error) {
	var current StoreMeta
	err := db.WithContext(ctx).Where("key = ?", versionKey).Take(&current).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return current.Value, nil
}
