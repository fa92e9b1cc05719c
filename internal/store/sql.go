package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/frjar/frjarai/pkg/models"
)

// SQLOptions configures the connection pool.
type SQLOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// OpenSQL connects to MySQL with dsn and migrates the schema.
func OpenSQL(dsn string, opts SQLOptions) (*gorm.DB, error) {
	return OpenDialector(mysql.Open(dsn), opts)
}

// OpenDialector opens any gorm dialector and migrates the schema.
func OpenDialector(d gorm.Dialector, opts SQLOptions) (*gorm.DB, error) {
	db, err := gorm.Open(d, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: underlying sql.DB: %w", err)
	}
	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	lifetime := opts.ConnMaxLifetime
	if lifetime <= 0 {
		lifetime = time.Hour
	}
	sqlDB.SetConnMaxLifetime(lifetime)

	if err := db.AutoMigrate(&historyRow{}, &trainingRow{}); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return db, nil
}

// historyRow is one (key, day) cell of the daily history.
type historyRow struct {
	ID        uint      `gorm:"primaryKey"`
	Key       string    `gorm:"column:cache_key;size:255;not null;uniqueIndex:idx_history_key_day"`
	Day       string    `gorm:"size:10;not null;uniqueIndex:idx_history_key_day"`
	Payload   string    `gorm:"type:json;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (historyRow) TableName() string { return "history_entries" }

// trainingRow mirrors models.TrainingExample.
type trainingRow struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"size:255;index"`
	City        string `gorm:"size:64"`
	MinPrice    float64
	MaxPrice    float64
	Average     float64
	Median      float64
	Unit        string `gorm:"size:64"`
	AIPrice     float64
	ModelSource string `gorm:"size:16"`
	RecordedAt  time.Time
}

func (trainingRow) TableName() string { return "training_examples" }

// SQLHistory stores History as one row per (key, day).
type SQLHistory struct {
	db *gorm.DB
}

// NewSQLHistory creates a history store over db.
func NewSQLHistory(db *gorm.DB) *SQLHistory {
	return &SQLHistory{db: db}
}

// Load reads every row. Rows whose payload cannot be decoded are skipped
// and reported with ErrCorrupt alongside the rows that did decode.
func (s *SQLHistory) Load(ctx context.Context) (History, error) {
	var rows []historyRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return make(History), fmt.Errorf("store: load history: %w", err)
	}

	h := make(History)
	var bad int
	for _, r := range rows {
		var est models.PriceEstimate
		if err := json.Unmarshal([]byte(r.Payload), &est); err != nil {
			bad++
			continue
		}
		h.Put(r.Key, r.Day, est)
	}
	if bad > 0 {
		return h, fmt.Errorf("%w: %d history rows", ErrCorrupt, bad)
	}
	return h, nil
}

// Save upserts every (key, day) cell of h in a single transaction.
func (s *SQLHistory) Save(ctx context.Context, h History) error {
	rows := make([]historyRow, 0, len(h))
	for key, days := range h {
		for day, est := range days {
			payload, err := json.Marshal(est)
			if err != nil {
				return fmt.Errorf("store: encode %s/%s: %w", key, day, err)
			}
			rows = append(rows, historyRow{Key: key, Day: day, Payload: string(payload)})
		}
	}
	if len(rows) == 0 {
		return nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}, {Name: "day"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return fmt.Errorf("store: save history: %w", err)
	}
	return nil
}

// SQLTraining stores the training set as an append-only table.
type SQLTraining struct {
	db *gorm.DB
}

// NewSQLTraining creates a training store over db.
func NewSQLTraining(db *gorm.DB) *SQLTraining {
	return &SQLTraining{db: db}
}

// Load reads every example in insertion order.
func (s *SQLTraining) Load(ctx context.Context) ([]models.TrainingExample, error) {
	var rows []trainingRow
	if err := s.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return []models.TrainingExample{}, fmt.Errorf("store: load training: %w", err)
	}
	out := make([]models.TrainingExample, len(rows))
	for i, r := range rows {
		out[i] = models.TrainingExample{
			Name:        r.Name,
			City:        r.City,
			MinPrice:    r.MinPrice,
			MaxPrice:    r.MaxPrice,
			Average:     r.Average,
			Median:      r.Median,
			Unit:        r.Unit,
			AIPrice:     r.AIPrice,
			ModelSource: models.ModelSource(r.ModelSource),
			RecordedAt:  r.RecordedAt,
		}
	}
	return out, nil
}

// Save persists the full set. The table is append-only, so only the
// examples beyond the stored row count are inserted.
func (s *SQLTraining) Save(ctx context.Context, examples []models.TrainingExample) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var stored int64
		if err := tx.Model(&trainingRow{}).Count(&stored).Error; err != nil {
			return err
		}
		if int(stored) >= len(examples) {
			return nil
		}
		fresh := examples[stored:]
		rows := make([]trainingRow, len(fresh))
		for i, e := range fresh {
			rows[i] = trainingRow{
				Name:        e.Name,
				City:        e.City,
				MinPrice:    e.MinPrice,
				MaxPrice:    e.MaxPrice,
				Average:     e.Average,
				Median:      e.Median,
				Unit:        e.Unit,
				AIPrice:     e.AIPrice,
				ModelSource: string(e.ModelSource),
				RecordedAt:  e.RecordedAt,
			}
		}
		return tx.CreateInBatches(rows, 200).Error
	})
	if err != nil {
		return fmt.Errorf("store: save training: %w", err)
	}
	return nil
}
