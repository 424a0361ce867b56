// FilePath: internal/repository/postgres/postgres.measurement.go
package postgres

import (
	"context"
	"time"

	"github.com/aircast/hub/internal/database"
	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/models"
	"github.com/lib/pq"
	nuts "github.com/vaudience/go-nuts"
)

type MeasurementRepo struct {
	PostgresBaseRepo
}

func NewMeasurementRepository(db database.DB) *MeasurementRepo {
	repo := &PostgresBaseRepo{db: db}
	return &MeasurementRepo{PostgresBaseRepo: *repo}
}

const measurementInsertQuery = `
	INSERT INTO measurements (
		id, stream_id, value, measured_value, latitude, longitude,
		time, milliseconds, timezone_offset, created_at
	) VALUES (
		:id, :stream_id, :value, :measured_value, :latitude, :longitude,
		:time, :milliseconds, :timezone_offset, :created_at
	)`

func (r *MeasurementRepo) Insert(ctx context.Context, measurement *models.Measurement, tx database.Transaction) error {
	if measurement.ID == "" {
		measurement.ID = nuts.NID("m", 12)
	}

	var err error
	if tx != nil {
		_, err = tx.NamedExecContext(ctx, measurementInsertQuery, measurement)
	} else {
		_, err = r.db.GetDB().NamedExecContext(ctx, measurementInsertQuery, measurement)
	}
	if err != nil {
		return errors.NewDatabaseError("failed to insert measurement", err)
	}
	return nil
}

func (r *MeasurementRepo) ListByStream(ctx context.Context, streamID string, start, end time.Time) ([]models.Measurement, error) {
	measurements := []models.Measurement{}
	query := `
		SELECT * FROM measurements
		WHERE stream_id = $1 AND time BETWEEN $2 AND $3
		ORDER BY time DESC`

	err := r.db.GetDB().SelectContext(ctx, &measurements, query, streamID, start, end)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list measurements", err)
	}
	return measurements, nil
}

func (r *MeasurementRepo) DeleteByStreams(ctx context.Context, streamIDs []string, tx database.Transaction) error {
	if len(streamIDs) == 0 {
		return nil
	}
	query := `DELETE FROM measurements WHERE stream_id = ANY($1)`

	result, err := tx.ExecContext(ctx, query, pq.Array(streamIDs))
	if err != nil {
		return errors.NewDatabaseError("failed to delete measurements", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	nuts.L.Infof("[MeasurementRepo] Deleted %d measurements across %d streams", rows, len(streamIDs))
	return nil
}
