// FilePath: internal/models/models.stream.go
package models

import "time"

// Stream is one sensor channel within a session, e.g. one pollutant from
// one physical sensor. The starting location is set from the first
// measurement and never changes; the bounding box, running average and
// count are maintained incrementally on every append.
type Stream struct {
	ID                   string    `json:"id" db:"id"`
	SessionID            string    `json:"session_id" db:"session_id"`
	SensorName           string    `json:"sensor_name" db:"sensor_name"`
	SensorPackageName    string    `json:"sensor_package_name" db:"sensor_package_name"`
	MeasurementType      string    `json:"measurement_type" db:"measurement_type"`
	MeasurementShortType string    `json:"measurement_short_type" db:"measurement_short_type"`
	UnitName             string    `json:"unit_name" db:"unit_name"`
	UnitSymbol           string    `json:"unit_symbol" db:"unit_symbol"`
	ThresholdVeryLow     float64   `json:"threshold_very_low" db:"threshold_very_low"`
	ThresholdLow         float64   `json:"threshold_low" db:"threshold_low"`
	ThresholdMedium      float64   `json:"threshold_medium" db:"threshold_medium"`
	ThresholdHigh        float64   `json:"threshold_high" db:"threshold_high"`
	ThresholdVeryHigh    float64   `json:"threshold_very_high" db:"threshold_very_high"`
	StartLatitude        float64   `json:"start_latitude" db:"start_latitude"`
	StartLongitude       float64   `json:"start_longitude" db:"start_longitude"`
	MinLatitude          float64   `json:"min_latitude" db:"min_latitude"`
	MaxLatitude          float64   `json:"max_latitude" db:"max_latitude"`
	MinLongitude         float64   `json:"min_longitude" db:"min_longitude"`
	MaxLongitude         float64   `json:"max_longitude" db:"max_longitude"`
	AverageValue         float64   `json:"average_value" db:"average_value"`
	MeasurementsCount    int64     `json:"measurements_count" db:"measurements_count"`
	DeviceIndex          int64     `json:"device_index" db:"device_index"`
	CreatedAt            time.Time `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// SensorKey identifies a stream within a session by its declared sensor
// metadata. Realtime readings are matched on this key.
type SensorKey struct {
	SensorPackageName string
	SensorName        string
	MeasurementType   string
}

// SensorKey returns the stream's matching key for realtime resolution.
func (s *Stream) SensorKey() SensorKey {
	return SensorKey{
		SensorPackageName: s.SensorPackageName,
		SensorName:        s.SensorName,
		MeasurementType:   s.MeasurementType,
	}
}
