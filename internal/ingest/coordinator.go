// FilePath: internal/ingest/coordinator.go
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/models"
	"github.com/aircast/hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// maxConflictRetries bounds the re-read/re-apply loop when a concurrent
// writer touched the same stream's aggregates.
const maxConflictRetries = 3

// LocalTimeFunc converts a UTC observation time to device-local time for a
// location. When nil, local-time fields fall back to UTC.
type LocalTimeFunc func(t time.Time, latitude, longitude float64) time.Time

// sampleLocalTime derives device-local time from the measurement's
// timezone offset (minutes east of UTC). Samples without an offset fall
// back to UTC.
func sampleLocalTime(m *models.Measurement) time.Time {
	if m.TimezoneOffset == nil {
		return m.Time
	}
	return m.Time.Add(time.Duration(*m.TimezoneOffset) * time.Minute)
}

// ReadingFailure identifies one failed reading within a bulk batch.
type ReadingFailure struct {
	DeviceIndex int64     `json:"device_index"`
	Time        time.Time `json:"time"`
	Reason      string    `json:"reason"`
}

// BatchResult reports the outcome of one bulk batch. Successful readings
// are committed independently of the failed ones.
type BatchResult struct {
	Processed       int              `json:"processed"`
	SessionsCreated int              `json:"sessions_created"`
	Appended        int              `json:"appended"`
	Failures        []ReadingFailure `json:"failures,omitempty"`
}

// Err returns nil when every reading in the batch succeeded, otherwise an
// error carrying the individual failures.
func (b *BatchResult) Err() error {
	if len(b.Failures) == 0 {
		return nil
	}
	msg := fmt.Sprintf("%d of %d readings failed", len(b.Failures), b.Processed)
	return errors.NewInternalError("partial batch failure: "+msg, nil).WithDetails(b.Failures)
}

// Coordinator drives the matcher and aggregator across readings, owning
// the transaction boundary: one transaction per realtime reading, one per
// bulk reading within a batch.
type Coordinator struct {
	sessions     repository.SessionRepository
	streams      repository.StreamRepository
	measurements repository.MeasurementRepository
	matcher      Matcher
	preset       SensorPreset
	importUserID string
}

// NewCoordinator creates an ingestion coordinator. importUserID is the
// account that owns sessions created by the bulk path.
func NewCoordinator(
	sessions repository.SessionRepository,
	streams repository.StreamRepository,
	measurements repository.MeasurementRepository,
	importUserID string,
) *Coordinator {
	return &Coordinator{
		sessions:     sessions,
		streams:      streams,
		measurements: measurements,
		matcher:      NewMatcher(sessions, streams),
		preset:       PurpleAirPM25,
		importUserID: importUserID,
	}
}

// IngestRealtime processes one authenticated realtime reading inside a
// single transaction. The session must already exist and belong to the
// caller; the stream is created on first contact with a new sensor
// package. Any failure aborts the whole reading with no partial state.
func (c *Coordinator) IngestRealtime(ctx context.Context, userID string, reading *models.RealtimeReading) error {
	if err := validateRealtime(reading); err != nil {
		return err
	}

	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = c.ingestRealtimeOnce(ctx, userID, reading)
		if !errors.IsConflict(err) {
			return err
		}
		nuts.L.Warnf("[Coordinator] Aggregate conflict on session %s, retrying (%d/%d)",
			reading.SessionUUID, attempt+1, maxConflictRetries)
	}
	return err
}

func (c *Coordinator) ingestRealtimeOnce(ctx context.Context, userID string, reading *models.RealtimeReading) error {
	res, err := c.matcher.Resolve(ctx, Reading{Mode: ModeRealtime, UserID: userID, Realtime: reading})
	if err != nil {
		return err
	}

	tx, err := c.sessions.BeginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	session := res.Session
	stream := res.Stream
	previousCount := int64(0)

	if res.NewStream {
		stream = newRealtimeStream(session, reading)
	} else {
		previousCount = stream.MeasurementsCount
	}

	measurements := make([]*models.Measurement, 0, len(reading.Measurements))
	for _, sample := range reading.Measurements {
		m := newRealtimeMeasurement(stream, sample)
		ApplyMeasurement(stream, m)
		AdvanceSession(session, "", m.Time, sampleLocalTime(m))
		measurements = append(measurements, m)
	}

	if res.NewStream {
		// the stream row is written with its final aggregates
		if err := c.streams.Create(ctx, stream, tx); err != nil {
			return err
		}
	}
	for _, m := range measurements {
		if err := c.measurements.Insert(ctx, m, tx); err != nil {
			return err
		}
	}
	if !res.NewStream {
		stream.UpdatedAt = time.Now().UTC()
		if err := c.streams.UpdateAggregates(ctx, stream, previousCount, tx); err != nil {
			return err
		}
	}

	session.UpdatedAt = time.Now().UTC()
	if err := c.sessions.UpdateOnAppend(ctx, session, tx); err != nil {
		return err
	}

	return tx.Commit()
}

// IngestBatch processes one poll cycle's readings. Each reading is
// isolated in its own transaction; a failure is recorded and reported, and
// the rest of the batch keeps going.
func (c *Coordinator) IngestBatch(ctx context.Context, readings []models.BulkReading, utcToLocal LocalTimeFunc) *BatchResult {
	result := &BatchResult{}

	for i := range readings {
		r := &readings[i]
		result.Processed++

		created, err := c.ingestBulk(ctx, r, utcToLocal)
		if err != nil {
			nuts.L.Warnf("[Coordinator] Failed to ingest reading (device %d @ %v): %v",
				r.DeviceIndex, r.Time(), err)
			result.Failures = append(result.Failures, ReadingFailure{
				DeviceIndex: r.DeviceIndex,
				Time:        r.Time(),
				Reason:      err.Error(),
			})
			continue
		}
		if created {
			result.SessionsCreated++
		} else {
			result.Appended++
		}
	}

	nuts.L.Infof("[Coordinator] Batch done: %d readings, %d new sessions, %d appended, %d failed",
		result.Processed, result.SessionsCreated, result.Appended, len(result.Failures))
	return result
}

func (c *Coordinator) ingestBulk(ctx context.Context, r *models.BulkReading, utcToLocal LocalTimeFunc) (created bool, err error) {
	if err := validateBulk(r); err != nil {
		return false, err
	}

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		created, err = c.ingestBulkOnce(ctx, r, utcToLocal)
		if !errors.IsConflict(err) {
			return created, err
		}
		nuts.L.Warnf("[Coordinator] Aggregate conflict on device %d, retrying (%d/%d)",
			r.DeviceIndex, attempt+1, maxConflictRetries)
	}
	return created, err
}

func (c *Coordinator) ingestBulkOnce(ctx context.Context, r *models.BulkReading, utcToLocal LocalTimeFunc) (bool, error) {
	res, err := c.matcher.Resolve(ctx, Reading{Mode: ModeBulk, Bulk: r})
	if err != nil {
		return false, err
	}

	t := r.Time()
	local := t
	if utcToLocal != nil {
		local = utcToLocal(t, r.Latitude, r.Longitude)
	}

	tx, err := c.sessions.BeginTx(ctx)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if res.NewSession {
		session := newBulkSession(c.importUserID, r, local)
		stream := newBulkStream(session, r, c.preset)
		m := newBulkMeasurement(stream, r)
		ApplyMeasurement(stream, m)

		if err := c.sessions.Create(ctx, session, tx); err != nil {
			return false, err
		}
		if err := c.streams.Create(ctx, stream, tx); err != nil {
			return false, err
		}
		if err := c.measurements.Insert(ctx, m, tx); err != nil {
			return false, err
		}
		return true, tx.Commit()
	}

	session, stream := res.Session, res.Stream
	previousCount := stream.MeasurementsCount

	m := newBulkMeasurement(stream, r)
	if err := c.measurements.Insert(ctx, m, tx); err != nil {
		return false, err
	}

	ApplyMeasurement(stream, m)
	stream.UpdatedAt = time.Now().UTC()
	if err := c.streams.UpdateAggregates(ctx, stream, previousCount, tx); err != nil {
		return false, err
	}

	AdvanceSession(session, bulkSessionTitle(r), t, local)
	session.UpdatedAt = time.Now().UTC()
	if err := c.sessions.UpdateOnAppend(ctx, session, tx); err != nil {
		return false, err
	}

	return false, tx.Commit()
}
