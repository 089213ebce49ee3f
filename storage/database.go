package storage

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/web3guy0/tradegate/ooda"
	"github.com/web3guy0/tradegate/portfolio"
)

// ═══════════════════════════════════════════════════════════════════════════════
// DATABASE - snapshot and audit persistence
// ═══════════════════════════════════════════════════════════════════════════════
//
// Persists the tracker's serializable snapshot and one audit record per
// finished cycle, so a restart recovers open positions, the loss streak and
// the breaker latch instead of trading blind. An empty path disables
// persistence; every write becomes a no-op.
//
// ═══════════════════════════════════════════════════════════════════════════════

// SnapshotRecord stores the latest tracker snapshot as canonical JSON.
// A single row (ID 1) is overwritten on every save.
type SnapshotRecord struct {
	ID        uint      `gorm:"primaryKey"`
	Payload   string    `gorm:"type:text"`
	TakenAt   time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// CycleRecord stores one finished OODA cycle: terminal state, status
// message and the full audit trail.
type CycleRecord struct {
	ID            uint   `gorm:"primaryKey"`
	Symbol        string `gorm:"index"`
	FinalState    string `gorm:"index"`
	StatusMessage string
	AuditJSON     string `gorm:"type:text"`
	CreatedAt     time.Time
}

// Database is the gorm-backed store.
type Database struct {
	db      *gorm.DB
	enabled bool
}

// NewDatabase opens (or creates) the sqlite file at path. An empty path
// returns a disabled store.
func NewDatabase(path string) (*Database, error) {
	if path == "" {
		log.Warn().Msg("No database path set, running without persistence")
		return &Database{enabled: false}, nil
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&SnapshotRecord{}, &CycleRecord{}); err != nil {
		return nil, err
	}

	log.Info().Str("path", path).Msg("💾 Database connected")
	return &Database{db: db, enabled: true}, nil
}

// IsEnabled reports whether persistence is active.
func (d *Database) IsEnabled() bool { return d.enabled }

// SaveSnapshot upserts the single snapshot row.
func (d *Database) SaveSnapshot(snap portfolio.Snapshot) error {
	if !d.enabled {
		return nil
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	rec := SnapshotRecord{ID: 1, Payload: string(payload), TakenAt: snap.TakenAt}
	return d.db.Save(&rec).Error
}

// LoadSnapshot fetches the persisted snapshot, reporting whether one exists.
func (d *Database) LoadSnapshot() (portfolio.Snapshot, bool, error) {
	if !d.enabled {
		return portfolio.Snapshot{}, false, nil
	}
	var rec SnapshotRecord
	err := d.db.First(&rec, 1).Error
	if err == gorm.ErrRecordNotFound {
		return portfolio.Snapshot{}, false, nil
	}
	if err != nil {
		return portfolio.Snapshot{}, false, err
	}
	var snap portfolio.Snapshot
	if err := json.Unmarshal([]byte(rec.Payload), &snap); err != nil {
		return portfolio.Snapshot{}, false, err
	}
	return snap, true, nil
}

// SaveCycle appends one finished cycle's audit record.
func (d *Database) SaveCycle(result *ooda.CycleResult) error {
	if !d.enabled {
		return nil
	}
	audit, err := json.Marshal(result.Audit)
	if err != nil {
		return err
	}
	rec := CycleRecord{
		Symbol:        result.Intent.Symbol,
		FinalState:    result.FinalState.String(),
		StatusMessage: result.StatusMessage,
		AuditJSON:     string(audit),
	}
	return d.db.Create(&rec).Error
}

// RecentCycles returns the latest cycle records, newest first.
func (d *Database) RecentCycles(limit int) ([]CycleRecord, error) {
	if !d.enabled {
		return nil, nil
	}
	var out []CycleRecord
	err := d.db.Order("id desc").Limit(limit).Find(&out).Error
	return out, err
}
