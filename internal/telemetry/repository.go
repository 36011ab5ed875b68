package telemetry

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

type Repository interface {
	Store(ctx context.Context, snapshot *Snapshot) error
	Close() error
}

type sqliteRepository struct {
	db *sql.DB
	mu sync.Mutex
}

func NewRepository(cfg Config) (Repository, error) {
	errFactory := errors.New()

	if cfg.DBPath == "" {
		return nil, errFactory.New(ErrInvalidDBPath)
	}

	logger.Debug().Msgf("Initializing telemetry repository at: %s", cfg.DBPath)

	// Ensure the directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL")
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return &sqliteRepository{
		db: db,
	}, nil
}

func (r *sqliteRepository) Store(ctx context.Context, snapshot *Snapshot) error {
	errFactory := errors.New()

	r.mu.Lock()
	defer r.mu.Unlock()

	var temperature any
	if snapshot.TemperatureKnown {
		temperature = snapshot.Temperature
	}

	_, err := r.db.ExecContext(ctx, `
        INSERT INTO battery_telemetry (
            timestamp, percentage, status,
            voltage, current, temperature,
            power_watts, consumption_rate, overheating
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(timestamp) DO UPDATE SET
            percentage = excluded.percentage,
            status = excluded.status,
            voltage = excluded.voltage,
            current = excluded.current,
            temperature = excluded.temperature,
            power_watts = excluded.power_watts,
            consumption_rate = excluded.consumption_rate,
            overheating = excluded.overheating
    `,
		snapshot.Timestamp.Unix(),
		snapshot.Percentage,
		snapshot.Status,
		snapshot.Voltage,
		snapshot.Current,
		temperature,
		snapshot.PowerWatts,
		snapshot.ConsumptionRate,
		boolToInt(snapshot.Overheating),
	)
	if err != nil {
		return errFactory.Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (r *sqliteRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}
	return nil
}
