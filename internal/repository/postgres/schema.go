// FilePath: internal/repository/postgres/schema.go
package postgres

import (
	"github.com/aircast/hub/internal/database"
	"github.com/aircast/hub/internal/errors"
	nuts "github.com/vaudience/go-nuts"
)

// InitializeSchema creates the session/stream/measurement tables and their
// indexes. When the TimescaleDB extension is present the measurements
// table is converted into a hypertable; otherwise it stays a plain table.
func InitializeSchema(db database.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			uuid TEXT NOT NULL UNIQUE,
			url_token TEXT NOT NULL UNIQUE,
			title TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			tag_list TEXT NOT NULL DEFAULT '',
			contribute BOOLEAN NOT NULL DEFAULT FALSE,
			is_indoor BOOLEAN NOT NULL DEFAULT FALSE,
			data_type TEXT NOT NULL DEFAULT '',
			instrument TEXT NOT NULL DEFAULT '',
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			start_time_local TIMESTAMPTZ NOT NULL,
			end_time_local TIMESTAMPTZ NOT NULL,
			last_measurement_at TIMESTAMPTZ NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_uuid_user ON sessions(uuid, user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_contribute_start ON sessions(contribute, start_time DESC)`,
		`CREATE TABLE IF NOT EXISTS streams (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			sensor_name TEXT NOT NULL,
			sensor_package_name TEXT NOT NULL,
			measurement_type TEXT NOT NULL,
			measurement_short_type TEXT NOT NULL,
			unit_name TEXT NOT NULL,
			unit_symbol TEXT NOT NULL,
			threshold_very_low DOUBLE PRECISION NOT NULL,
			threshold_low DOUBLE PRECISION NOT NULL,
			threshold_medium DOUBLE PRECISION NOT NULL,
			threshold_high DOUBLE PRECISION NOT NULL,
			threshold_very_high DOUBLE PRECISION NOT NULL,
			start_latitude DOUBLE PRECISION NOT NULL,
			start_longitude DOUBLE PRECISION NOT NULL,
			min_latitude DOUBLE PRECISION NOT NULL,
			max_latitude DOUBLE PRECISION NOT NULL,
			min_longitude DOUBLE PRECISION NOT NULL,
			max_longitude DOUBLE PRECISION NOT NULL,
			average_value DOUBLE PRECISION NOT NULL DEFAULT 0,
			measurements_count BIGINT NOT NULL DEFAULT 0,
			device_index BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_session ON streams(session_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_streams_session_sensor_key
			ON streams(session_id, sensor_package_name, sensor_name, measurement_type)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_device_location
			ON streams(device_index, start_latitude, start_longitude, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS measurements (
			id TEXT NOT NULL,
			stream_id TEXT NOT NULL REFERENCES streams(id) ON DELETE CASCADE,
			value DOUBLE PRECISION NOT NULL,
			measured_value DOUBLE PRECISION NOT NULL,
			latitude DOUBLE PRECISION NOT NULL,
			longitude DOUBLE PRECISION NOT NULL,
			time TIMESTAMPTZ NOT NULL,
			milliseconds INT NOT NULL DEFAULT 0,
			timezone_offset INT,
			created_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (id, time)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_measurements_stream_time ON measurements(stream_id, time DESC)`,
	}

	for _, query := range queries {
		_, err := db.GetDB().Exec(query)
		if err != nil {
			return errors.NewDatabaseError("failed to initialize schema", err)
		}
	}

	setupHypertable(db)
	return nil
}

func setupHypertable(db database.DB) {
	pg, ok := db.(*database.PostgresDB)
	if !ok || !pg.HasTimescaleDB() {
		return
	}

	query := `SELECT create_hypertable('measurements', 'time',
		chunk_time_interval => INTERVAL '1 day',
		if_not_exists => TRUE,
		migrate_data => TRUE
	)`
	if _, err := db.GetDB().Exec(query); err != nil {
		nuts.L.Warnf("[Schema] Failed to create measurements hypertable: %v", err)
	}
}
