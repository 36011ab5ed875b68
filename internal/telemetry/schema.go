package telemetry

import (
	"database/sql"

	"codeberg.org/mutker/battmon/internal/errors"
)

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS battery_telemetry (
            timestamp INTEGER PRIMARY KEY,
            percentage REAL,
            status TEXT,
            voltage REAL,
            current REAL,
            temperature REAL,
            power_watts REAL,
            consumption_rate REAL,
            overheating INTEGER
        )
    `)
	if err != nil {
		return errors.New().Wrap(ErrSchemaInit, err)
	}

	return nil
}
