// FilePath: internal/models/api.models.filters.go
package models

import "time"

// SessionFilters defines the available filter options for browsing
// sessions. Decoded from query parameters by gorilla/schema.
type SessionFilters struct {
	Tags      string     `json:"tags" schema:"tags"`
	Usernames string     `json:"usernames" schema:"usernames"`
	TimeFrom  *time.Time `json:"time_from" schema:"time_from"`
	TimeTo    *time.Time `json:"time_to" schema:"time_to"`
	West      *float64   `json:"west" schema:"west"`
	East      *float64   `json:"east" schema:"east"`
	South     *float64   `json:"south" schema:"south"`
	North     *float64   `json:"north" schema:"north"`
}

// HasBoundingBox reports whether all four bounding box edges are set.
func (f SessionFilters) HasBoundingBox() bool {
	return f.West != nil && f.East != nil && f.South != nil && f.North != nil
}
