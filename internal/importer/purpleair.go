// FilePath: internal/importer/purpleair.go
package importer

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aircast/hub/internal/config"
	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/models"
	"github.com/go-resty/resty/v2"
)

// FeedClient fetches one poll cycle's readings from the external sensor
// network. The sequence is finite; an empty slice means nothing new.
type FeedClient interface {
	FetchMeasurements(ctx context.Context) ([]models.BulkReading, error)
}

// purpleAirClient talks to a PurpleAir-style fields API. Each data row is
// positional: [sensor_index, name, value, latitude, longitude, last_seen].
type purpleAirClient struct {
	http *resty.Client
	url  string
}

// NewFeedClient creates a FeedClient for the configured feed endpoint.
func NewFeedClient(cfg config.ImporterConfig) FeedClient {
	client := resty.New().
		SetTimeout(cfg.FetchTimeout).
		SetHeader("X-API-Key", cfg.APIKey)
	return &purpleAirClient{http: client, url: cfg.FeedURL}
}

func (c *purpleAirClient) FetchMeasurements(ctx context.Context) ([]models.BulkReading, error) {
	resp, err := c.http.R().SetContext(ctx).Get(c.url)
	if err != nil {
		return nil, errors.NewInternalError("failed to fetch sensor feed", err)
	}
	if resp.IsError() {
		return nil, errors.NewInternalError(
			fmt.Sprintf("sensor feed returned status %d", resp.StatusCode()), nil)
	}

	var payload struct {
		Data [][]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &payload); err != nil {
		return nil, errors.NewValidationError("malformed sensor feed response", err)
	}

	readings := make([]models.BulkReading, 0, len(payload.Data))
	for i, row := range payload.Data {
		reading, err := parseFeedRow(row)
		if err != nil {
			return nil, errors.NewValidationError(fmt.Sprintf("malformed feed row %d", i), err)
		}
		readings = append(readings, reading)
	}
	return readings, nil
}

func parseFeedRow(row []json.RawMessage) (models.BulkReading, error) {
	var r models.BulkReading
	if len(row) != 6 {
		return r, fmt.Errorf("expected 6 fields, got %d", len(row))
	}

	fields := []interface{}{
		&r.DeviceIndex, &r.DeviceName, &r.Value, &r.Latitude, &r.Longitude, &r.LastSeen,
	}
	for i, dest := range fields {
		if err := json.Unmarshal(row[i], dest); err != nil {
			return r, fmt.Errorf("field %d: %w", i, err)
		}
	}
	return r, nil
}
