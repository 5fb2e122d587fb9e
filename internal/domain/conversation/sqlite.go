package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Interaction is the persisted row model.
type Interaction struct {
	ID             uint      `gorm:"primaryKey;autoIncrement"`
	Timestamp      time.Time `gorm:"index"`
	UserInput      string
	SystemResponse string
	Metadata       []byte
}

// TableName pins the table name independent of gorm's pluralization.
func (Interaction) TableName() string { return "interactions" }

type sqliteStore struct {
	db  *gorm.DB
	max int
}

// NewSQLite builds a SQLite-backed history store.
func NewSQLite(db *gorm.DB, cfg Config) (Store, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite store requires database handle")
	}
	if err := db.AutoMigrate(&Interaction{}); err != nil {
		return nil, fmt.Errorf("migrate interactions table: %w", err)
	}
	return &sqliteStore{
		db:  db,
		max: cfg.MaxHistory,
	}, nil
}

func (s *sqliteStore) Append(ctx context.Context, record InteractionRecord) error {
	meta, _ := json.Marshal(record.Metadata)

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := &Interaction{
			Timestamp:      record.Timestamp,
			UserInput:      record.UserInput,
			SystemResponse: record.SystemResponse,
			Metadata:       meta,
		}
		if err := tx.Create(row).Error; err != nil {
			return err
		}

		// Trim the oldest rows beyond the configured maximum.
		var count int64
		if err := tx.Model(&Interaction{}).Count(&count).Error; err != nil {
			return err
		}
		if excess := count - int64(s.max); excess > 0 {
			var ids []uint
			if err := tx.Model(&Interaction{}).
				Order("id asc").
				Limit(int(excess)).
				Pluck("id", &ids).Error; err != nil {
				return err
			}
			return tx.Delete(&Interaction{}, ids).Error
		}
		return nil
	})
}

func (s *sqliteStore) List(ctx context.Context, limit int) ([]InteractionRecord, error) {
	if limit <= 0 || limit > s.max {
		limit = s.max
	}

	var rows []Interaction
	if err := s.db.WithContext(ctx).
		Order("id desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	// Reverse to oldest-first ordering.
	records := make([]InteractionRecord, len(rows))
	for i, row := range rows {
		var meta map[string]any
		if len(row.Metadata) > 0 {
			_ = json.Unmarshal(row.Metadata, &meta)
		}
		records[len(rows)-1-i] = InteractionRecord{
			Timestamp:      row.Timestamp,
			UserInput:      row.UserInput,
			SystemResponse: row.SystemResponse,
			Metadata:       meta,
		}
	}
	return records, nil
}

func (s *sqliteStore) Count(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Interaction{}).Count(&count).Error
	return int(count), err
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&Interaction{}).Error
}

func (s *sqliteStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
