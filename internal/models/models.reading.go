// FilePath: internal/models/models.reading.go
package models

import "time"

// RealtimeReading is a raw reading submitted by an authenticated device
// against an already-created session. It carries the full sensor package
// metadata plus one or more samples.
type RealtimeReading struct {
	SessionUUID          string           `json:"session_uuid"`
	SensorPackageName    string           `json:"sensor_package_name"`
	SensorName           string           `json:"sensor_name"`
	MeasurementType      string           `json:"measurement_type"`
	MeasurementShortType string           `json:"measurement_short_type"`
	UnitName             string           `json:"unit_name"`
	UnitSymbol           string           `json:"unit_symbol"`
	ThresholdVeryLow     float64          `json:"threshold_very_low"`
	ThresholdLow         float64          `json:"threshold_low"`
	ThresholdMedium      float64          `json:"threshold_medium"`
	ThresholdHigh        float64          `json:"threshold_high"`
	ThresholdVeryHigh    float64          `json:"threshold_very_high"`
	Measurements         []RealtimeSample `json:"measurements"`
}

// RealtimeSample is one sample within a realtime reading.
type RealtimeSample struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Time           ApiTime `json:"time"`
	Milliseconds   int     `json:"milliseconds"`
	Value          float64 `json:"value"`
	MeasuredValue  float64 `json:"measured_value"`
	TimezoneOffset *int    `json:"timezone_offset,omitempty"`
}

// BulkReading is one row from a third-party sensor-network feed:
// (device index, device name, value, latitude, longitude, last seen).
type BulkReading struct {
	DeviceIndex int64   `json:"device_index"`
	DeviceName  string  `json:"device_name"`
	Value       float64 `json:"value"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	LastSeen    int64   `json:"last_seen"`
}

// Time returns the reading's observation time in UTC.
func (r BulkReading) Time() time.Time {
	return time.Unix(r.LastSeen, 0).UTC()
}
