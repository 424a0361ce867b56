// FilePath: internal/ingest/matcher_test.go
package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/ingest/ingesttest"
	"github.com/aircast/hub/internal/models"
	"github.com/stretchr/testify/require"
)

func TestMatcherRealtimeUnknownSession(t *testing.T) {
	_, sessions, streams, _ := ingesttest.NewRepos()
	m := NewMatcher(sessions, streams)

	_, err := m.Resolve(context.Background(), Reading{
		Mode:   ModeRealtime,
		UserID: "usr_1",
		Realtime: &models.RealtimeReading{
			SessionUUID:       "missing-uuid",
			SensorPackageName: "AirBeam3:00",
			SensorName:        "AirBeam3-PM2.5",
			MeasurementType:   "Particulate Matter",
		},
	})
	require.Error(t, err)
	require.True(t, errors.IsNotFound(err))
}

func TestMatcherRealtimeWrongOwner(t *testing.T) {
	_, sessions, streams, _ := ingesttest.NewRepos()
	err := sessions.Create(context.Background(), &models.Session{
		ID:     "ses_1",
		UserID: "usr_owner",
		UUID:   "uuid-1",
	}, nil)
	require.NoError(t, err)

	m := NewMatcher(sessions, streams)
	_, err = m.Resolve(context.Background(), Reading{
		Mode:   ModeRealtime,
		UserID: "usr_other",
		Realtime: &models.RealtimeReading{
			SessionUUID:       "uuid-1",
			SensorPackageName: "AirBeam3:00",
			SensorName:        "AirBeam3-PM2.5",
			MeasurementType:   "Particulate Matter",
		},
	})
	require.True(t, errors.IsNotFound(err))
}

func TestMatcherRealtimeNewAndExistingStream(t *testing.T) {
	ctx := context.Background()
	_, sessions, streams, _ := ingesttest.NewRepos()
	require.NoError(t, sessions.Create(ctx, &models.Session{
		ID:     "ses_1",
		UserID: "usr_1",
		UUID:   "uuid-1",
	}, nil))

	m := NewMatcher(sessions, streams)
	reading := Reading{
		Mode:   ModeRealtime,
		UserID: "usr_1",
		Realtime: &models.RealtimeReading{
			SessionUUID:       "uuid-1",
			SensorPackageName: "AirBeam3:00",
			SensorName:        "AirBeam3-PM2.5",
			MeasurementType:   "Particulate Matter",
		},
	}

	// First contact with the sensor package: stream must be created.
	res, err := m.Resolve(ctx, reading)
	require.NoError(t, err)
	require.True(t, res.NewStream)
	require.Nil(t, res.Stream)
	require.Equal(t, "ses_1", res.Session.ID)

	require.NoError(t, streams.Create(ctx, &models.Stream{
		ID:                "str_1",
		SessionID:         "ses_1",
		SensorPackageName: "AirBeam3:00",
		SensorName:        "AirBeam3-PM2.5",
		MeasurementType:   "Particulate Matter",
	}, nil))

	// Same key now resolves to the existing stream.
	res, err = m.Resolve(ctx, reading)
	require.NoError(t, err)
	require.False(t, res.NewStream)
	require.Equal(t, "str_1", res.Stream.ID)
}

func TestMatcherBulkCreatesOnFirstContact(t *testing.T) {
	_, sessions, streams, _ := ingesttest.NewRepos()
	m := NewMatcher(sessions, streams)

	res, err := m.Resolve(context.Background(), Reading{
		Mode: ModeBulk,
		Bulk: &models.BulkReading{
			DeviceIndex: 129737,
			DeviceName:  "HOPE-Jane",
			Latitude:    40.68,
			Longitude:   -73.97,
			LastSeen:    time.Now().Unix(),
		},
	})
	require.NoError(t, err)
	require.True(t, res.NewSession)
	require.True(t, res.NewStream)
}

func TestMatcherBulkMatchesExactLocationOnly(t *testing.T) {
	ctx := context.Background()
	_, sessions, streams, _ := ingesttest.NewRepos()
	require.NoError(t, sessions.Create(ctx, &models.Session{ID: "ses_1", UUID: "uuid-1"}, nil))
	require.NoError(t, streams.Create(ctx, &models.Stream{
		ID:             "str_1",
		SessionID:      "ses_1",
		DeviceIndex:    129737,
		StartLatitude:  40.68,
		StartLongitude: -73.97,
	}, nil))

	m := NewMatcher(sessions, streams)

	// Exact coordinates resolve to the existing pair.
	res, err := m.Resolve(ctx, Reading{
		Mode: ModeBulk,
		Bulk: &models.BulkReading{DeviceIndex: 129737, DeviceName: "HOPE-Jane", Latitude: 40.68, Longitude: -73.97, LastSeen: 1},
	})
	require.NoError(t, err)
	require.False(t, res.NewSession)
	require.Equal(t, "str_1", res.Stream.ID)
	require.Equal(t, "ses_1", res.Session.ID)

	// The relocated device gets a fresh session instead of merging.
	res, err = m.Resolve(ctx, Reading{
		Mode: ModeBulk,
		Bulk: &models.BulkReading{DeviceIndex: 129737, DeviceName: "HOPE-Jane", Latitude: 40.69, Longitude: -73.97, LastSeen: 1},
	})
	require.NoError(t, err)
	require.True(t, res.NewSession)
	require.True(t, res.NewStream)
}

func TestMatcherUnknownMode(t *testing.T) {
	_, sessions, streams, _ := ingesttest.NewRepos()
	m := NewMatcher(sessions, streams)

	_, err := m.Resolve(context.Background(), Reading{Mode: "push"})
	require.Error(t, err)
	require.True(t, errors.IsValidation(err))
}
