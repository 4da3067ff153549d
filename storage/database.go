package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/signalrouter/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATABASE - Execution-record persistence
// ═══════════════════════════════════════════════════════════════════════════════
//
// The router keeps its own bounded in-memory audit log; this store is the
// durable copy used for offline analysis. Optional collaborator.
//
// ═══════════════════════════════════════════════════════════════════════════════

type Database struct {
	db *gorm.DB
}

// Execution is the persisted form of a terminal execution record
type Execution struct {
	ID         string `gorm:"primaryKey"`
	SignalType string
	Platform   string `gorm:"index"`
	MarketID   string `gorm:"index"`
	OutcomeID  string
	Direction  string
	Strength   float64
	Status     string `gorm:"index"`
	Reason     string
	Size       decimal.Decimal `gorm:"type:decimal(20,6)"`
	Price      decimal.Decimal `gorm:"type:decimal(10,6)"`
	OrderID    string
	CreatedAt  time.Time
}

// New opens the store: a postgres:// URL connects to PostgreSQL,
// anything else is treated as a SQLite path
func New(dbPath string) (*Database, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dbPath, "postgres://") || strings.HasPrefix(dbPath, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Msg("Database connected (PostgreSQL)")
	} else {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
		db, err = gorm.Open(sqlite.Open(dbPath), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", dbPath).Msg("Database initialized (SQLite)")
	}

	if err := db.AutoMigrate(&Execution{}); err != nil {
		return nil, err
	}

	return &Database{db: db}, nil
}

// LogExecution persists one terminal execution record
func (d *Database) LogExecution(rec types.ExecutionRecord) error {
	row := Execution{
		ID:         rec.ID,
		SignalType: rec.Signal.Type,
		Platform:   rec.Signal.Platform,
		MarketID:   rec.Signal.MarketID,
		OutcomeID:  rec.Signal.OutcomeID,
		Direction:  string(rec.Signal.Direction),
		Strength:   rec.Signal.Strength,
		Status:     string(rec.Status),
		Reason:     rec.Reason,
		Size:       rec.Size,
		Price:      rec.Price,
		OrderID:    rec.OrderID,
		CreatedAt:  rec.Timestamp,
	}
	return d.db.Create(&row).Error
}

// RecentExecutions returns the latest persisted records, newest first
func (d *Database) RecentExecutions(limit int) ([]Execution, error) {
	var rows []Execution
	err := d.db.Order("created_at DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// DailySummary aggregates today's terminal statuses
func (d *Database) DailySummary() (map[string]int64, error) {
	type row struct {
		Status string
		Count  int64
	}

	var rows []row
	since := time.Now().Truncate(24 * time.Hour)
	err := d.db.Model(&Execution{}).
		Select("status, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.Status] = r.Count
	}
	return out, nil
}
