// FilePath: internal/ingest/validate.go
package ingest

import (
	"fmt"

	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/models"
)

func validateRealtime(r *models.RealtimeReading) error {
	if r == nil {
		return errors.NewValidationError("reading is required", nil)
	}
	if r.SessionUUID == "" {
		return errors.NewValidationError("session_uuid is required", nil)
	}
	if r.SensorPackageName == "" || r.SensorName == "" || r.MeasurementType == "" {
		return errors.NewValidationError("sensor package, sensor name and measurement type are required", nil)
	}
	if len(r.Measurements) == 0 {
		return errors.NewValidationError("at least one measurement is required", nil)
	}
	if !thresholdsOrdered(r) {
		return errors.NewValidationError("thresholds must be in ascending order", nil)
	}
	for i, s := range r.Measurements {
		if s.Time.IsZero() {
			return errors.NewValidationError(fmt.Sprintf("measurement %d: time is required", i), nil)
		}
		if err := validateCoordinates(s.Latitude, s.Longitude); err != nil {
			return errors.NewValidationError(fmt.Sprintf("measurement %d: %v", i, err), nil)
		}
	}
	return nil
}

func validateBulk(r *models.BulkReading) error {
	if r.DeviceName == "" {
		return errors.NewValidationError("device name is required", nil)
	}
	if r.LastSeen <= 0 {
		return errors.NewValidationError("last seen timestamp is required", nil)
	}
	if err := validateCoordinates(r.Latitude, r.Longitude); err != nil {
		return errors.NewValidationError(err.Error(), nil)
	}
	return nil
}

func thresholdsOrdered(r *models.RealtimeReading) bool {
	return r.ThresholdVeryLow <= r.ThresholdLow &&
		r.ThresholdLow <= r.ThresholdMedium &&
		r.ThresholdMedium <= r.ThresholdHigh &&
		r.ThresholdHigh <= r.ThresholdVeryHigh
}

func validateCoordinates(latitude, longitude float64) error {
	if latitude < -90 || latitude > 90 {
		return fmt.Errorf("latitude %f out of range", latitude)
	}
	if longitude < -180 || longitude > 180 {
		return fmt.Errorf("longitude %f out of range", longitude)
	}
	return nil
}
