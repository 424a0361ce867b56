// FilePath: internal/cleanup/cleanup_test.go
package cleanup

import (
	"context"
	"testing"

	"github.com/aircast/hub/internal/ingest/ingesttest"
	"github.com/aircast/hub/internal/models"
	"github.com/stretchr/testify/require"
)

func TestDeleteSessionCascades(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()

	require.NoError(t, sessions.Create(ctx, &models.Session{ID: "ses_1", UUID: "uuid-1"}, nil))
	require.NoError(t, sessions.Create(ctx, &models.Session{ID: "ses_2", UUID: "uuid-2"}, nil))
	require.NoError(t, streams.Create(ctx, &models.Stream{ID: "str_1", SessionID: "ses_1"}, nil))
	require.NoError(t, streams.Create(ctx, &models.Stream{ID: "str_2", SessionID: "ses_2"}, nil))
	require.NoError(t, measurements.Insert(ctx, &models.Measurement{ID: "m_1", StreamID: "str_1"}, nil))
	require.NoError(t, measurements.Insert(ctx, &models.Measurement{ID: "m_2", StreamID: "str_2"}, nil))

	svc := New(sessions, streams, measurements)
	require.NoError(t, svc.DeleteSession(ctx, "ses_1"))

	// Everything under ses_1 is gone; ses_2 is untouched.
	require.Equal(t, 1, store.SessionCount())
	require.Len(t, store.Streams, 1)
	require.Equal(t, "str_2", store.Streams[0].ID)
	require.Len(t, store.Measurements, 1)
	require.Equal(t, "m_2", store.Measurements[0].ID)
}

func TestDeleteSessionWithoutStreams(t *testing.T) {
	ctx := context.Background()
	store, sessions, streams, measurements := ingesttest.NewRepos()
	require.NoError(t, sessions.Create(ctx, &models.Session{ID: "ses_1", UUID: "uuid-1"}, nil))

	svc := New(sessions, streams, measurements)
	require.NoError(t, svc.DeleteSession(ctx, "ses_1"))
	require.Equal(t, 0, store.SessionCount())
}
