package store

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"search-term-analyzer/internal/analysis"
)

// SessionDSN is an in-memory database that lives as long as the process.
const SessionDSN = "file:analyses?mode=memory&cache=shared"

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("run not found")

// MemoryDSN returns the DSN of a named in-memory database.
func MemoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
}

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm *gorm.DB
	mu   sync.Mutex
}

// Open initializes the SQLite database described by dsn.
func Open(dsn string, silent bool) (*Database, error) {
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	// an in-memory database disappears with its last connection
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.AutoMigrate(&Run{}, &Record{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Database{gorm: db}, nil
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateRun inserts a new run row.
func (d *Database) CreateRun(run *Run) error {
	if run == nil {
		return errors.New("run is nil")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = RunRunning
	}
	if run.CompetitorsJSON == "" {
		run.CompetitorsJSON = "[]"
	}
	if run.ServicesJSON == "" {
		run.ServicesJSON = "[]"
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(run).Error
}

// UpdateRunContext stores the business context resolved for a run.
func (d *Database) UpdateRunContext(runID string, bc analysis.BusinessContext) error {
	var tmp Run
	tmp.SetContext(bc)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&Run{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"context_location": tmp.ContextLocation,
			"competitors_json": tmp.CompetitorsJSON,
			"services_json":    tmp.ServicesJSON,
		}).Error
}

// AppendRecord stores rec as the seq-th record of a run and bumps the run's record count.
func (d *Database) AppendRecord(runID string, seq int, rec analysis.AnalysisRecord) error {
	row := NewRecord(runID, seq, rec)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		return tx.Model(&Run{}).
			Where("id = ?", runID).
			UpdateColumn("record_count", gorm.Expr("record_count + ?", 1)).Error
	})
}

// FinishRun moves a run into a final state.
func (d *Database) FinishRun(runID, status, kind, message string) error {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Model(&Run{}).
		Where("id = ?", runID).
		Updates(map[string]any{
			"status":      status,
			"error_kind":  kind,
			"message":     message,
			"finished_at": &now,
		}).Error
}

// GetRun retrieves a run by ID.
func (d *Database) GetRun(runID string) (*Run, error) {
	var run Run
	if err := d.gorm.First(&run, "id = ?", runID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil, err
	}
	return &run, nil
}

// ListRuns returns runs newest first.
func (d *Database) ListRuns(offset, limit int) ([]Run, int64, error) {
	var total int64
	if err := d.gorm.Model(&Run{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := d.gorm.Model(&Run{}).Order("started_at DESC, created_at DESC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	var runs []Run
	if err := query.Find(&runs).Error; err != nil {
		return nil, 0, err
	}
	return runs, total, nil
}

// ListRecords returns the records of a run in arrival order.
func (d *Database) ListRecords(runID string, offset, limit int) ([]Record, int64, error) {
	var total int64
	base := d.gorm.Model(&Record{}).Where("run_id = ?", runID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query := d.gorm.Model(&Record{}).Where("run_id = ?", runID).Order("seq ASC")
	if limit > 0 {
		query = query.Offset(offset).Limit(limit)
	}
	var rows []Record
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountByCategory returns the number of records per category for a run.
func (d *Database) CountByCategory(runID string) (map[string]int, error) {
	var rows []struct {
		Category string
		Total    int
	}
	err := d.gorm.Model(&Record{}).
		Select("category, COUNT(*) AS total").
		Where("run_id = ?", runID).
		Group("category").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Category] = row.Total
	}
	return out, nil
}

// DeleteRun removes a run together with its records.
func (d *Database) DeleteRun(runID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", runID).Delete(&Record{}).Error; err != nil {
			return err
		}
		result := tx.Where("id = ?", runID).Delete(&Run{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		return nil
	})
}

// InterruptRunning marks runs left in the running state as failed.
func (d *Database) InterruptRunning(message string) (int64, error) {
	now := time.Now()
	d.mu.Lock()
	defer d.mu.Unlock()
	result := d.gorm.Model(&Run{}).
		Where("status = ?", RunRunning).
		Updates(map[string]any{
			"status":      RunFailed,
			"message":     message,
			"finished_at": &now,
		})
	return result.RowsAffected, result.Error
}
