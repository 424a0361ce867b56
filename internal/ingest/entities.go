// FilePath: internal/ingest/entities.go
package ingest

import (
	"fmt"
	"time"

	"github.com/aircast/hub/internal/models"
	"github.com/google/uuid"
	nuts "github.com/vaudience/go-nuts"
)

// SensorPreset carries the sensor channel metadata used to seed streams
// created by the bulk path, where the feed reports values only.
type SensorPreset struct {
	SensorName           string
	SensorPackageName    string
	MeasurementType      string
	MeasurementShortType string
	UnitName             string
	UnitSymbol           string
	ThresholdVeryLow     float64
	ThresholdLow         float64
	ThresholdMedium      float64
	ThresholdHigh        float64
	ThresholdVeryHigh    float64
}

// PurpleAirPM25 is the channel reported by the PurpleAir network feed.
var PurpleAirPM25 = SensorPreset{
	SensorName:           "PurpleAir-PM2.5",
	SensorPackageName:    "PurpleAir-PM2.5",
	MeasurementType:      "Particulate Matter",
	MeasurementShortType: "PM",
	UnitName:             "microgram per cubic meter",
	UnitSymbol:           "µg/m³",
	ThresholdVeryLow:     0,
	ThresholdLow:         12,
	ThresholdMedium:      35,
	ThresholdHigh:        55,
	ThresholdVeryHigh:    150,
}

// bulkSessionTitle labels a session after the device's reported name and
// index, e.g. "HOPE-Jane (129737)".
func bulkSessionTitle(r *models.BulkReading) string {
	return fmt.Sprintf("%s (%d)", r.DeviceName, r.DeviceIndex)
}

func newBulkSession(userID string, r *models.BulkReading, local time.Time) *models.Session {
	now := time.Now().UTC()
	t := r.Time()
	return &models.Session{
		ID:                nuts.NID("ses", 12),
		UserID:            userID,
		UUID:              uuid.New().String(),
		URLToken:          nuts.NID("tok", 5),
		Title:             bulkSessionTitle(r),
		Contribute:        true,
		IsIndoor:          false,
		StartTime:         t,
		EndTime:           t,
		StartTimeLocal:    local,
		EndTimeLocal:      local,
		LastMeasurementAt: t,
		Latitude:          r.Latitude,
		Longitude:         r.Longitude,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func newBulkStream(session *models.Session, r *models.BulkReading, preset SensorPreset) *models.Stream {
	now := time.Now().UTC()
	stream := &models.Stream{
		ID:                   nuts.NID("str", 12),
		SessionID:            session.ID,
		SensorName:           preset.SensorName,
		SensorPackageName:    preset.SensorPackageName,
		MeasurementType:      preset.MeasurementType,
		MeasurementShortType: preset.MeasurementShortType,
		UnitName:             preset.UnitName,
		UnitSymbol:           preset.UnitSymbol,
		ThresholdVeryLow:     preset.ThresholdVeryLow,
		ThresholdLow:         preset.ThresholdLow,
		ThresholdMedium:      preset.ThresholdMedium,
		ThresholdHigh:        preset.ThresholdHigh,
		ThresholdVeryHigh:    preset.ThresholdVeryHigh,
		DeviceIndex:          r.DeviceIndex,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	SeedStreamLocation(stream, r.Latitude, r.Longitude)
	return stream
}

func newRealtimeStream(session *models.Session, r *models.RealtimeReading) *models.Stream {
	now := time.Now().UTC()
	stream := &models.Stream{
		ID:                   nuts.NID("str", 12),
		SessionID:            session.ID,
		SensorName:           r.SensorName,
		SensorPackageName:    r.SensorPackageName,
		MeasurementType:      r.MeasurementType,
		MeasurementShortType: r.MeasurementShortType,
		UnitName:             r.UnitName,
		UnitSymbol:           r.UnitSymbol,
		ThresholdVeryLow:     r.ThresholdVeryLow,
		ThresholdLow:         r.ThresholdLow,
		ThresholdMedium:      r.ThresholdMedium,
		ThresholdHigh:        r.ThresholdHigh,
		ThresholdVeryHigh:    r.ThresholdVeryHigh,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	first := r.Measurements[0]
	SeedStreamLocation(stream, first.Latitude, first.Longitude)
	return stream
}

func newBulkMeasurement(stream *models.Stream, r *models.BulkReading) *models.Measurement {
	return &models.Measurement{
		ID:            nuts.NID("m", 12),
		StreamID:      stream.ID,
		Value:         r.Value,
		MeasuredValue: r.Value,
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		Time:          r.Time(),
		Milliseconds:  0,
		CreatedAt:     time.Now().UTC(),
	}
}

func newRealtimeMeasurement(stream *models.Stream, s models.RealtimeSample) *models.Measurement {
	return &models.Measurement{
		ID:             nuts.NID("m", 12),
		StreamID:       stream.ID,
		Value:          s.Value,
		MeasuredValue:  s.MeasuredValue,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		Time:           s.Time.UTC(),
		Milliseconds:   s.Milliseconds,
		TimezoneOffset: s.TimezoneOffset,
		CreatedAt:      time.Now().UTC(),
	}
}
