// FilePath: internal/models/models.time_test.go
package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestApiTimeUnmarshal(t *testing.T) {
	var ts ApiTime

	// RFC3339 with offset is converted to UTC.
	require.NoError(t, json.Unmarshal([]byte(`"2025-06-01T14:30:00+02:00"`), &ts))
	require.Equal(t, time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC), ts.Time)

	// Zone-less timestamps from mobile clients are taken as UTC.
	require.NoError(t, json.Unmarshal([]byte(`"2025-06-01T12:30:00"`), &ts))
	require.Equal(t, time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC), ts.Time)

	require.Error(t, json.Unmarshal([]byte(`"not-a-time"`), &ts))
}

func TestApiTimeMarshal(t *testing.T) {
	ts := ApiTime{Time: time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)}
	out, err := json.Marshal(ts)
	require.NoError(t, err)
	require.Equal(t, `"2025-06-01T12:30:00Z"`, string(out))
}

func TestBulkReadingTime(t *testing.T) {
	r := BulkReading{LastSeen: 1717243200}
	require.Equal(t, time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC), r.Time())
}
