// FilePath: internal/models/models.session.go
package models

import (
	"regexp"
	"strings"
	"time"
)

// Session is one deployment episode of a monitoring device (or one
// externally reported device visit). It owns streams, which own
// measurements.
type Session struct {
	ID                string    `json:"id" db:"id"`
	UserID            string    `json:"user_id" db:"user_id"`
	UUID              string    `json:"uuid" db:"uuid"`
	URLToken          string    `json:"url_token" db:"url_token"`
	Title             string    `json:"title" db:"title" writexs:"owner,system,superadmin"`
	Description       string    `json:"description" db:"description" writexs:"owner,system,superadmin"`
	TagList           string    `json:"tag_list" db:"tag_list" writexs:"owner,system,superadmin"`
	Contribute        bool      `json:"contribute" db:"contribute"`
	IsIndoor          bool      `json:"is_indoor" db:"is_indoor"`
	DataType          string    `json:"data_type,omitempty" db:"data_type"`
	Instrument        string    `json:"instrument,omitempty" db:"instrument"`
	StartTime         time.Time `json:"start_time" db:"start_time"`
	EndTime           time.Time `json:"end_time" db:"end_time"`
	StartTimeLocal    time.Time `json:"start_time_local" db:"start_time_local"`
	EndTimeLocal      time.Time `json:"end_time_local" db:"end_time_local"`
	LastMeasurementAt time.Time `json:"last_measurement_at" db:"last_measurement_at"`
	Latitude          float64   `json:"latitude" db:"latitude"`
	Longitude         float64   `json:"longitude" db:"longitude"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

var tagSeparator = regexp.MustCompile(`[\s,]+`)

// NormalizeTags splits a free-text tag string on whitespace and commas,
// drops blanks and joins the result with commas.
func NormalizeTags(tags string) string {
	parts := tagSeparator.Split(tags, -1)
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ",")
}

// Tags returns the normalized tag list as a slice.
func (s *Session) Tags() []string {
	if s.TagList == "" {
		return nil
	}
	return strings.Split(s.TagList, ",")
}
