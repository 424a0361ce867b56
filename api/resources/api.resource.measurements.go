// FilePath: api/resources/api.resource.measurements.go
package resources

import (
	"encoding/json"
	"net/http"

	"github.com/aircast/hub/api/middleware"
	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/hubservice"
	"github.com/aircast/hub/internal/models"
	nuts "github.com/vaudience/go-nuts"
)

// MeasurementHandlers encapsulates the measurement ingestion handlers
type MeasurementHandlers struct {
	hubservice *hubservice.HubService
}

// @Summary Submit realtime measurements
// @Description Ingest one realtime reading into an existing session owned by the caller
// @Tags measurements
// @Accept json
// @Produce json
// @Param reading body models.RealtimeReading true "Realtime reading"
// @Success 200 {object} map[string]string
// @Failure 400 {object} errors.APIError
// @Failure 401 {object} errors.APIError
// @Router /realtime/measurements [post]
// @Security BearerAuth
func (h *MeasurementHandlers) CreateRealtime(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	user := middleware.UserFromContext(r.Context())
	if user == nil {
		respondWithError(w, errors.NewAuthError("authentication required", nil).WithRequestID(requestID))
		return
	}

	var reading models.RealtimeReading
	if err := json.NewDecoder(r.Body).Decode(&reading); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	err := h.hubservice.CreateRealtimeMeasurements(r.Context(), user.ID, &reading)
	if err != nil {
		// an unknown session uuid is the client's mistake, not a missing
		// resource on a known route
		if errors.IsNotFound(err) {
			respondWithError(w, errors.NewValidationError("unknown session uuid", err).WithRequestID(requestID))
			return
		}
		if apiErr, ok := err.(*errors.APIError); ok {
			respondWithError(w, apiErr.WithRequestID(requestID))
			return
		}
		respondWithError(w, errors.NewInternalError("failed to ingest reading", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
