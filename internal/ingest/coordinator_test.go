// FilePath: internal/ingest/coordinator_test.go
package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/aircast/hub/internal/database"
	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/ingest/ingesttest"
	"github.com/aircast/hub/internal/models"
	"github.com/aircast/hub/internal/repository"
	"github.com/stretchr/testify/require"
)

const importUser = "usr_import"

func bulkReading(index int64, name string, value, lat, lng float64, lastSeen int64) models.BulkReading {
	return models.BulkReading{
		DeviceIndex: index,
		DeviceName:  name,
		Value:       value,
		Latitude:    lat,
		Longitude:   lng,
		LastSeen:    lastSeen,
	}
}

func TestIngestBatchCreatesSessionOnFirstContact(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	result := c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(129737, "HOPE-Jane", 10.7, 40.68, -73.97, 1717243200),
	}, nil)

	require.NoError(t, result.Err())
	require.Equal(t, 1, result.Processed)
	require.Equal(t, 1, result.SessionsCreated)
	require.Equal(t, 0, result.Appended)

	require.Equal(t, 1, store.SessionCount())
	require.Len(t, store.Streams, 1)
	require.Len(t, store.Measurements, 1)

	var session *models.Session
	for _, s := range store.Sessions {
		session = s
	}
	require.Equal(t, "HOPE-Jane (129737)", session.Title)
	require.Equal(t, importUser, session.UserID)
	require.True(t, session.Contribute)
	require.NotEmpty(t, session.UUID)
	require.NotEmpty(t, session.URLToken)
	require.Equal(t, time.Unix(1717243200, 0).UTC(), session.StartTime)
	require.Equal(t, session.StartTime, session.EndTime)

	stream := store.Streams[0]
	require.Equal(t, session.ID, stream.SessionID)
	require.Equal(t, "PurpleAir-PM2.5", stream.SensorName)
	require.Equal(t, "Particulate Matter", stream.MeasurementType)
	require.Equal(t, "µg/m³", stream.UnitSymbol)
	require.Equal(t, 35.0, stream.ThresholdMedium)
	require.Equal(t, int64(1), stream.MeasurementsCount)
	require.InDelta(t, 10.7, stream.AverageValue, 1e-9)
	require.Equal(t, 40.68, stream.MinLatitude)
	require.Equal(t, 40.68, stream.MaxLatitude)
}

func TestIngestBatchGroupsByDeviceAndLocation(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	base := int64(1717243200)
	for i, v := range []float64{5, 7, 9} {
		result := c.IngestBatch(ctx, []models.BulkReading{
			bulkReading(129737, "HOPE-Jane", v, 40.68, -73.97, base+int64(i)*600),
		}, nil)
		require.NoError(t, result.Err())
	}

	require.Equal(t, 1, store.SessionCount())
	require.Len(t, store.Streams, 1)
	require.Len(t, store.Measurements, 3)

	stream := store.Streams[0]
	require.Equal(t, int64(3), stream.MeasurementsCount)
	require.InDelta(t, 7.0, stream.AverageValue, 1e-9)

	var session *models.Session
	for _, s := range store.Sessions {
		session = s
	}
	require.Equal(t, time.Unix(base, 0).UTC(), session.StartTime)
	require.Equal(t, time.Unix(base+1200, 0).UTC(), session.EndTime)
}

func TestIngestBatchRelocationSplitsSessions(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	result := c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(129737, "HOPE-Jane", 10, 40.68, -73.97, 1717243200),
		bulkReading(129737, "HOPE-Jane", 12, 40.69, -73.97, 1717243800),
	}, nil)

	require.NoError(t, result.Err())
	require.Equal(t, 2, result.SessionsCreated)
	require.Equal(t, 2, store.SessionCount())
	require.Len(t, store.Streams, 2)
}

func TestIngestBatchOutOfOrderKeepsRangeAndTitle(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	t2 := int64(1717243800)
	t1 := t2 - 600

	result := c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(129737, "HOPE-Jane", 10, 40.68, -73.97, t2),
	}, nil)
	require.NoError(t, result.Err())

	// A late-arriving older reading with a renamed device.
	result = c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(129737, "HOPE-Renamed", 20, 40.68, -73.97, t1),
	}, nil)
	require.NoError(t, result.Err())
	require.Equal(t, 1, result.Appended)

	var session *models.Session
	for _, s := range store.Sessions {
		session = s
	}
	require.Equal(t, time.Unix(t2, 0).UTC(), session.EndTime)
	require.Equal(t, "HOPE-Jane (129737)", session.Title)

	// The measurement still counts toward the aggregates.
	stream := store.Streams[0]
	require.Equal(t, int64(2), stream.MeasurementsCount)
	require.InDelta(t, 15.0, stream.AverageValue, 1e-9)
}

func TestIngestBatchTitleFollowsLatestDeviceName(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	result := c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(129737, "HOPE-Jane", 10, 40.68, -73.97, 1717243200),
	}, nil)
	require.NoError(t, result.Err())

	result = c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(129737, "HOPE-Renamed", 12, 40.68, -73.97, 1717243800),
	}, nil)
	require.NoError(t, result.Err())

	var session *models.Session
	for _, s := range store.Sessions {
		session = s
	}
	require.Equal(t, "HOPE-Renamed (129737)", session.Title)

	// The stream's starting location still reflects the first reading.
	stream := store.Streams[0]
	require.Equal(t, 40.68, stream.StartLatitude)
	require.Equal(t, -73.97, stream.StartLongitude)
}

func TestIngestBatchPartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	result := c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(1, "", 10, 40.68, -73.97, 1717243200), // missing device name
		bulkReading(2, "HOPE-Jane", 12, 40.68, -73.97, 1717243200),
	}, nil)

	require.Equal(t, 2, result.Processed)
	require.Equal(t, 1, result.SessionsCreated)
	require.Len(t, result.Failures, 1)
	require.Equal(t, int64(1), result.Failures[0].DeviceIndex)
	require.Error(t, result.Err())

	// The valid reading committed despite its neighbor failing.
	require.Equal(t, 1, store.SessionCount())
	require.Len(t, store.Measurements, 1)
}

func TestIngestBatchRedeliveryIsNotDeduplicated(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	r := bulkReading(129737, "HOPE-Jane", 10, 40.68, -73.97, 1717243200)
	result := c.IngestBatch(ctx, []models.BulkReading{r, r}, nil)

	require.NoError(t, result.Err())
	require.Equal(t, 1, result.SessionsCreated)
	require.Equal(t, 1, result.Appended)
	require.Len(t, store.Measurements, 2)
	require.Equal(t, int64(2), store.Streams[0].MeasurementsCount)
}

func TestIngestBulkRetriesOnAggregateConflict(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	seed := c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(129737, "HOPE-Jane", 10, 40.68, -73.97, 1717243200),
	}, nil)
	require.NoError(t, seed.Err())

	store.ConflictsRemaining = 2
	result := c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(129737, "HOPE-Jane", 20, 40.68, -73.97, 1717243800),
	}, nil)

	require.NoError(t, result.Err())
	require.Equal(t, 1, result.Appended)
	require.Len(t, store.Measurements, 2)
	require.Equal(t, int64(2), store.Streams[0].MeasurementsCount)
}

func TestIngestBulkGivesUpAfterBoundedRetries(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	seed := c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(129737, "HOPE-Jane", 10, 40.68, -73.97, 1717243200),
	}, nil)
	require.NoError(t, seed.Err())

	store.ConflictsRemaining = maxConflictRetries
	result := c.IngestBatch(ctx, []models.BulkReading{
		bulkReading(129737, "HOPE-Jane", 20, 40.68, -73.97, 1717243800),
	}, nil)

	require.Len(t, result.Failures, 1)
	require.Error(t, result.Err())

	// Nothing from the failed reading reached the store.
	require.Len(t, store.Measurements, 1)
	require.Equal(t, int64(1), store.Streams[0].MeasurementsCount)
}

func TestIngestRealtimeRejectsForeignSessionWithoutWrites(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	// Another user's session must not be touched either.
	require.NoError(t, sessions.Create(ctx, &models.Session{
		ID: "ses_other", UserID: "usr_other", UUID: "uuid-other",
	}, nil))

	err := c.IngestRealtime(ctx, "usr_1", &models.RealtimeReading{
		SessionUUID:       "uuid-other",
		SensorPackageName: "AirBeam3:00",
		SensorName:        "AirBeam3-PM2.5",
		MeasurementType:   "Particulate Matter",
		Measurements: []models.RealtimeSample{
			{Latitude: 40.68, Longitude: -73.97, Time: models.ApiTime{Time: time.Now().UTC()}, Value: 3},
		},
	})

	require.True(t, errors.IsNotFound(err))
	require.Equal(t, 1, store.SessionCount())
	require.Empty(t, store.Streams)
	require.Empty(t, store.Measurements)
	require.Equal(t, 0, store.Committed)
}

func TestIngestRealtimeCreatesStreamAndAdvancesSession(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sessions.Create(ctx, &models.Session{
		ID:        "ses_1",
		UserID:    "usr_1",
		UUID:      "uuid-1",
		Title:     "Morning walk",
		StartTime: t0,
		EndTime:   t0,
	}, nil))

	err := c.IngestRealtime(ctx, "usr_1", &models.RealtimeReading{
		SessionUUID:       "uuid-1",
		SensorPackageName: "AirBeam3:00",
		SensorName:        "AirBeam3-PM2.5",
		MeasurementType:   "Particulate Matter",
		UnitSymbol:        "µg/m³",
		ThresholdLow:      12,
		ThresholdMedium:   35,
		ThresholdHigh:     55,
		ThresholdVeryHigh: 150,
		Measurements: []models.RealtimeSample{
			{Latitude: 40.68, Longitude: -73.97, Time: models.ApiTime{Time: t0.Add(time.Minute)}, Value: 10.7, MeasuredValue: 10.7},
			{Latitude: 40.69, Longitude: -73.98, Time: models.ApiTime{Time: t0.Add(2 * time.Minute)}, Value: 27.9, MeasuredValue: 27.9},
		},
	})
	require.NoError(t, err)

	require.Len(t, store.Streams, 1)
	stream := store.Streams[0]
	require.Equal(t, "ses_1", stream.SessionID)
	require.Equal(t, int64(2), stream.MeasurementsCount)
	require.InDelta(t, 19.3, stream.AverageValue, 1e-9)
	require.Equal(t, 40.68, stream.MinLatitude)
	require.Equal(t, 40.69, stream.MaxLatitude)
	require.Equal(t, -73.98, stream.MinLongitude)
	require.Equal(t, -73.97, stream.MaxLongitude)

	session := store.Sessions["ses_1"]
	require.Equal(t, t0.Add(2*time.Minute), session.EndTime)
	require.Equal(t, "Morning walk", session.Title)

	require.Len(t, store.MeasurementsForStream(stream.ID), 2)
}

func TestIngestRealtimeAppendsToExistingStream(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sessions.Create(ctx, &models.Session{
		ID: "ses_1", UserID: "usr_1", UUID: "uuid-1", StartTime: t0, EndTime: t0,
	}, nil))

	reading := func(ts time.Time, v float64) *models.RealtimeReading {
		return &models.RealtimeReading{
			SessionUUID:       "uuid-1",
			SensorPackageName: "AirBeam3:00",
			SensorName:        "AirBeam3-PM2.5",
			MeasurementType:   "Particulate Matter",
			Measurements: []models.RealtimeSample{
				{Latitude: 40.68, Longitude: -73.97, Time: models.ApiTime{Time: ts}, Value: v},
			},
		}
	}

	require.NoError(t, c.IngestRealtime(ctx, "usr_1", reading(t0.Add(time.Minute), 10)))
	require.NoError(t, c.IngestRealtime(ctx, "usr_1", reading(t0.Add(2*time.Minute), 20)))

	require.Len(t, store.Streams, 1)
	require.Equal(t, int64(2), store.Streams[0].MeasurementsCount)
	require.InDelta(t, 15.0, store.Streams[0].AverageValue, 1e-9)
}

// racingStreamRepo slips a competing stream into the store right before
// the first Create, reproducing two devices hitting a fresh sensor key at
// the same time.
type racingStreamRepo struct {
	repository.StreamRepository
	raced bool
}

func (r *racingStreamRepo) Create(ctx context.Context, stream *models.Stream, tx database.Transaction) error {
	if !r.raced {
		r.raced = true
		competitor := *stream
		competitor.ID = "str_winner"
		competitor.MeasurementsCount = 0
		competitor.AverageValue = 0
		if err := r.StreamRepository.Create(ctx, &competitor, nil); err != nil {
			return err
		}
	}
	return r.StreamRepository.Create(ctx, stream, tx)
}

func TestIngestRealtimeStreamCreationRaceAppendsToWinner(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	racing := &racingStreamRepo{StreamRepository: streams}
	c := NewCoordinator(sessions, racing, measurements, importUser)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sessions.Create(ctx, &models.Session{
		ID: "ses_1", UserID: "usr_1", UUID: "uuid-1", StartTime: t0, EndTime: t0,
	}, nil))

	err := c.IngestRealtime(ctx, "usr_1", &models.RealtimeReading{
		SessionUUID:       "uuid-1",
		SensorPackageName: "AirBeam3:00",
		SensorName:        "AirBeam3-PM2.5",
		MeasurementType:   "Particulate Matter",
		Measurements: []models.RealtimeSample{
			{Latitude: 40.68, Longitude: -73.97, Time: models.ApiTime{Time: t0.Add(time.Minute)}, Value: 10},
		},
	})
	require.NoError(t, err)

	// Losing the creation race falls back to appending on the stream the
	// winner created; no duplicate stream remains.
	require.Len(t, store.Streams, 1)
	require.Equal(t, "str_winner", store.Streams[0].ID)
	require.Equal(t, int64(1), store.Streams[0].MeasurementsCount)
	require.Len(t, store.MeasurementsForStream("str_winner"), 1)
}

func TestSessionRangeNeverMovesBackwardOnAppend(t *testing.T) {
	ctx := context.Background()
	store, sessions, _, _ := ingesttest.NewRepos()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	t2 := t0.Add(20 * time.Minute)
	require.NoError(t, sessions.Create(ctx, &models.Session{
		ID: "ses_1", UUID: "uuid-1", StartTime: t0,
		EndTime: t2, EndTimeLocal: t2, LastMeasurementAt: t2,
	}, nil))

	// A writer holding a snapshot from before t2 finishes last; the range
	// must keep the later end.
	stale := &models.Session{
		ID: "ses_1", UUID: "uuid-1", StartTime: t0,
		EndTime: t0.Add(10 * time.Minute), EndTimeLocal: t0.Add(10 * time.Minute),
		LastMeasurementAt: t0.Add(10 * time.Minute),
	}
	require.NoError(t, sessions.UpdateOnAppend(ctx, stale, nil))

	session := store.Sessions["ses_1"]
	require.Equal(t, t2, session.EndTime)
	require.Equal(t, t2, session.EndTimeLocal)
	require.Equal(t, t2, session.LastMeasurementAt)
}

func TestIngestRealtimeDerivesLocalTimeFromOffset(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, sessions.Create(ctx, &models.Session{
		ID: "ses_1", UserID: "usr_1", UUID: "uuid-1", StartTime: t0, EndTime: t0,
	}, nil))

	offset := -300 // minutes, UTC-5
	err := c.IngestRealtime(ctx, "usr_1", &models.RealtimeReading{
		SessionUUID:       "uuid-1",
		SensorPackageName: "AirBeam3:00",
		SensorName:        "AirBeam3-PM2.5",
		MeasurementType:   "Particulate Matter",
		Measurements: []models.RealtimeSample{
			{
				Latitude: 40.68, Longitude: -73.97,
				Time:           models.ApiTime{Time: t0.Add(time.Minute)},
				Value:          10,
				TimezoneOffset: &offset,
			},
		},
	})
	require.NoError(t, err)

	session := store.Sessions["ses_1"]
	require.Equal(t, t0.Add(time.Minute), session.EndTime)
	require.Equal(t, t0.Add(time.Minute).Add(-5*time.Hour), session.EndTimeLocal)
}

func TestIngestRealtimeValidation(t *testing.T) {
	ctx := context.Background()
	_, sessions, streams, measurements := ingesttest.NewRepos()
	c := NewCoordinator(sessions, streams, measurements, importUser)

	sample := models.RealtimeSample{
		Latitude: 40.68, Longitude: -73.97,
		Time: models.ApiTime{Time: time.Now().UTC()}, Value: 3,
	}

	cases := []struct {
		name    string
		reading *models.RealtimeReading
	}{
		{"nil reading", nil},
		{"missing uuid", &models.RealtimeReading{
			SensorPackageName: "p", SensorName: "s", MeasurementType: "t",
			Measurements: []models.RealtimeSample{sample},
		}},
		{"missing sensor metadata", &models.RealtimeReading{
			SessionUUID:  "uuid-1",
			Measurements: []models.RealtimeSample{sample},
		}},
		{"no samples", &models.RealtimeReading{
			SessionUUID: "uuid-1", SensorPackageName: "p", SensorName: "s", MeasurementType: "t",
		}},
		{"descending thresholds", &models.RealtimeReading{
			SessionUUID: "uuid-1", SensorPackageName: "p", SensorName: "s", MeasurementType: "t",
			ThresholdLow: 50, ThresholdMedium: 10, ThresholdHigh: 60, ThresholdVeryHigh: 70,
			Measurements: []models.RealtimeSample{sample},
		}},
		{"latitude out of range", &models.RealtimeReading{
			SessionUUID: "uuid-1", SensorPackageName: "p", SensorName: "s", MeasurementType: "t",
			Measurements: []models.RealtimeSample{{
				Latitude: 91, Longitude: 0,
				Time: models.ApiTime{Time: time.Now().UTC()},
			}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.IngestRealtime(ctx, "usr_1", tc.reading)
			require.Error(t, err)
			require.True(t, errors.IsValidation(err))
		})
	}
}
