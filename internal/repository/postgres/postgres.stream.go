// FilePath: internal/repository/postgres/postgres.stream.go
package postgres

import (
	"context"
	"database/sql"

	"github.com/aircast/hub/internal/database"
	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/models"
	"github.com/lib/pq"
)

type StreamRepo struct {
	PostgresBaseRepo
}

func NewStreamRepository(db database.DB) *StreamRepo {
	repo := &PostgresBaseRepo{db: db}
	return &StreamRepo{PostgresBaseRepo: *repo}
}

const streamInsertQuery = `
	INSERT INTO streams (
		id, session_id, sensor_name, sensor_package_name,
		measurement_type, measurement_short_type, unit_name, unit_symbol,
		threshold_very_low, threshold_low, threshold_medium,
		threshold_high, threshold_very_high,
		start_latitude, start_longitude,
		min_latitude, max_latitude, min_longitude, max_longitude,
		average_value, measurements_count, device_index,
		created_at, updated_at
	) VALUES (
		:id, :session_id, :sensor_name, :sensor_package_name,
		:measurement_type, :measurement_short_type, :unit_name, :unit_symbol,
		:threshold_very_low, :threshold_low, :threshold_medium,
		:threshold_high, :threshold_very_high,
		:start_latitude, :start_longitude,
		:min_latitude, :max_latitude, :min_longitude, :max_longitude,
		:average_value, :measurements_count, :device_index,
		:created_at, :updated_at
	)`

// Create inserts a stream. A unique-violation on the session's sensor key
// means a concurrent writer created the same stream first; it is reported
// as a conflict so the caller re-resolves and appends instead.
func (r *StreamRepo) Create(ctx context.Context, stream *models.Stream, tx database.Transaction) error {
	var err error
	if tx != nil {
		_, err = tx.NamedExecContext(ctx, streamInsertQuery, stream)
	} else {
		_, err = r.db.GetDB().NamedExecContext(ctx, streamInsertQuery, stream)
	}
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errors.NewConflictError("stream already exists for sensor key", err)
		}
		return errors.NewDatabaseError("failed to create stream", err)
	}
	return nil
}

func (r *StreamRepo) Get(ctx context.Context, id string) (*models.Stream, error) {
	stream := &models.Stream{}
	query := `SELECT * FROM streams WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, stream, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("stream not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get stream", err)
	}
	return stream, nil
}

// FindBySensorKey looks up the stream within a session whose declared
// sensor metadata exactly matches the reading's sensor package, sensor
// name and measurement type.
func (r *StreamRepo) FindBySensorKey(ctx context.Context, sessionID string, key models.SensorKey) (*models.Stream, error) {
	stream := &models.Stream{}
	query := `
		SELECT * FROM streams
		WHERE session_id = $1
		  AND sensor_package_name = $2
		  AND sensor_name = $3
		  AND measurement_type = $4`

	err := r.db.GetDB().GetContext(ctx, stream, query, sessionID, key.SensorPackageName, key.SensorName, key.MeasurementType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("stream not found", err)
		}
		return nil, errors.NewDatabaseError("failed to find stream by sensor key", err)
	}
	return stream, nil
}

// FindLatestByDeviceLocation returns the most recently created stream for
// a device whose starting location exactly equals the given coordinates.
// A device's coordinates change only when it is physically relocated, so
// exact equality is the grouping key for bulk ingestion.
func (r *StreamRepo) FindLatestByDeviceLocation(ctx context.Context, deviceIndex int64, latitude, longitude float64) (*models.Stream, error) {
	stream := &models.Stream{}
	query := `
		SELECT * FROM streams
		WHERE device_index = $1
		  AND start_latitude = $2
		  AND start_longitude = $3
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.GetDB().GetContext(ctx, stream, query, deviceIndex, latitude, longitude)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("stream not found", err)
		}
		return nil, errors.NewDatabaseError("failed to find stream by device location", err)
	}
	return stream, nil
}

// UpdateAggregates writes the stream's bounding box, running average and
// count, guarded by the count observed when the aggregates were read. Zero
// rows affected means a concurrent writer appended in between; the caller
// retries with fresh aggregates.
func (r *StreamRepo) UpdateAggregates(ctx context.Context, stream *models.Stream, previousCount int64, tx database.Transaction) error {
	query := `
		UPDATE streams SET
			min_latitude = :min_latitude,
			max_latitude = :max_latitude,
			min_longitude = :min_longitude,
			max_longitude = :max_longitude,
			average_value = :average_value,
			measurements_count = :measurements_count,
			updated_at = :updated_at
		WHERE id = :id AND measurements_count = :previous_count`

	arg := struct {
		*models.Stream
		PreviousCount int64 `db:"previous_count"`
	}{Stream: stream, PreviousCount: previousCount}

	result, err := tx.NamedExecContext(ctx, query, arg)
	if err != nil {
		return errors.NewDatabaseError("failed to update stream aggregates", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewConflictError("stream aggregates changed concurrently", nil)
	}

	return nil
}

func (r *StreamRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.Stream, error) {
	streams := []*models.Stream{}
	query := `SELECT * FROM streams WHERE session_id = $1 ORDER BY created_at ASC`

	err := r.db.GetDB().SelectContext(ctx, &streams, query, sessionID)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list streams", err)
	}
	return streams, nil
}

func (r *StreamRepo) DeleteBySession(ctx context.Context, sessionID string, tx database.Transaction) error {
	query := `DELETE FROM streams WHERE session_id = $1`

	_, err := tx.ExecContext(ctx, query, sessionID)
	if err != nil {
		return errors.NewDatabaseError("failed to delete streams", err)
	}
	return nil
}
