// FilePath: internal/ingest/aggregator.go
package ingest

import (
	"time"

	"github.com/aircast/hub/internal/models"
)

// The aggregator applies one accepted measurement to a stream's running
// aggregates in O(1), independent of how many measurements the stream
// already holds. Bounding box and average are never recomputed from
// history.

// SeedStreamLocation initializes a freshly created stream's starting
// location and bounding box as a degenerate point at the first
// measurement's coordinates. The starting location never changes
// afterwards.
func SeedStreamLocation(stream *models.Stream, latitude, longitude float64) {
	stream.StartLatitude = latitude
	stream.StartLongitude = longitude
	stream.MinLatitude = latitude
	stream.MaxLatitude = latitude
	stream.MinLongitude = longitude
	stream.MaxLongitude = longitude
}

// ApplyMeasurement folds one measurement into the stream's bounding box,
// running average and count.
func ApplyMeasurement(stream *models.Stream, m *models.Measurement) {
	if m.Latitude < stream.MinLatitude {
		stream.MinLatitude = m.Latitude
	}
	if m.Latitude > stream.MaxLatitude {
		stream.MaxLatitude = m.Latitude
	}
	if m.Longitude < stream.MinLongitude {
		stream.MinLongitude = m.Longitude
	}
	if m.Longitude > stream.MaxLongitude {
		stream.MaxLongitude = m.Longitude
	}

	// Incremental mean, numerically stable for long streams.
	stream.MeasurementsCount++
	stream.AverageValue += (m.Value - stream.AverageValue) / float64(stream.MeasurementsCount)
}

// AdvanceSession moves the session's end-of-range fields forward when a
// later-timestamped measurement arrives. The title is refreshed together
// with the range so the session label always reflects the most recent
// known device name. start_time is never revisited, and an out-of-order
// measurement never moves the range backward.
func AdvanceSession(session *models.Session, title string, t, local time.Time) {
	if !t.After(session.EndTime) {
		return
	}
	session.EndTime = t
	session.EndTimeLocal = local
	session.LastMeasurementAt = t
	if title != "" {
		session.Title = title
	}
}
