// FilePath: internal/models/models.measurement.go
package models

import "time"

// Measurement is a single timestamped sample on a stream. Measurements are
// immutable once persisted and belong to exactly one stream.
type Measurement struct {
	ID             string    `json:"id" db:"id"`
	StreamID       string    `json:"stream_id" db:"stream_id"`
	Value          float64   `json:"value" db:"value"`
	MeasuredValue  float64   `json:"measured_value" db:"measured_value"`
	Latitude       float64   `json:"latitude" db:"latitude"`
	Longitude      float64   `json:"longitude" db:"longitude"`
	Time           time.Time `json:"time" db:"time"`
	Milliseconds   int       `json:"milliseconds" db:"milliseconds"`
	TimezoneOffset *int      `json:"timezone_offset,omitempty" db:"timezone_offset"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
