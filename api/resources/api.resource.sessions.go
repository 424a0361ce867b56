// FilePath: api/resources/api.resource.sessions.go
package resources

import (
	"encoding/json"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/hubservice"
	"github.com/aircast/hub/internal/models"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
	nuts "github.com/vaudience/go-nuts"
)

// SessionHandlers encapsulates the session-related HTTP handlers
type SessionHandlers struct {
	hubservice *hubservice.HubService
}

var queryDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	d.RegisterConverter(time.Time{}, func(value string) reflect.Value {
		t, err := time.Parse(time.RFC3339, value)
		if err != nil {
			return reflect.Value{}
		}
		return reflect.ValueOf(t)
	})
	return d
}()

// @Summary List sessions
// @Description List publicly contributed sessions, newest first, filtered by tags, usernames, time range and bounding box
// @Tags sessions
// @Produce json
// @Param tags query string false "Space or comma separated tags"
// @Param usernames query string false "Space or comma separated usernames"
// @Param time_from query string false "Earliest start time (RFC3339)"
// @Param time_to query string false "Latest start time (RFC3339)"
// @Param west query number false "Bounding box west edge"
// @Param east query number false "Bounding box east edge"
// @Param south query number false "Bounding box south edge"
// @Param north query number false "Bounding box north edge"
// @Success 200 {array} models.Session
// @Failure 400 {object} errors.APIError
// @Router /sessions [get]
func (h *SessionHandlers) ListSessions(w http.ResponseWriter, r *http.Request) {
	requestID := nuts.NID("req", 12)

	var filters models.SessionFilters
	if err := queryDecoder.Decode(&filters, r.URL.Query()); err != nil {
		respondWithError(w, errors.NewValidationError("invalid filter parameters", err).WithRequestID(requestID))
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	sessions, err := h.hubservice.ListSessions(r.Context(), filters, offset, limit)
	if err != nil {
		respondWithError(w, errors.NewInternalError("failed to list sessions", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, sessions)
}

// @Summary Get session
// @Description Get a session together with its streams
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} hubservice.SessionDetails
// @Failure 404 {object} errors.APIError
// @Router /sessions/{id} [get]
func (h *SessionHandlers) GetSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	details, err := h.hubservice.GetSession(r.Context(), id)
	if err != nil {
		if apiErr, ok := err.(*errors.APIError); ok {
			respondWithError(w, apiErr.WithRequestID(requestID))
			return
		}
		respondWithError(w, errors.NewInternalError("failed to get session", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, details)
}

// @Summary Update session metadata
// @Description Update a session's title, description and tags
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param session body models.Session true "Session metadata"
// @Success 200 {object} models.Session
// @Failure 400 {object} errors.APIError
// @Router /sessions/{id} [put]
// @Security BearerAuth
func (h *SessionHandlers) UpdateSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	requestID := nuts.NID("req", 12)

	var session models.Session
	if err := json.NewDecoder(r.Body).Decode(&session); err != nil {
		respondWithError(w, errors.NewValidationError("invalid request body", err).WithRequestID(requestID))
		return
	}

	session.ID = vars["id"]
	if err := h.hubservice.UpdateSession(r.Context(), &session); err != nil {
		if apiErr, ok := err.(*errors.APIError); ok {
			respondWithError(w, apiErr.WithRequestID(requestID))
			return
		}
		respondWithError(w, errors.NewInternalError("failed to update session", err).WithRequestID(requestID))
		return
	}

	respondWithJSON(w, http.StatusOK, session)
}

// @Summary Delete session
// @Description Delete a session and all its streams and measurements
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} errors.APIError
// @Router /sessions/{id} [delete]
// @Security BearerAuth
func (h *SessionHandlers) DeleteSession(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	requestID := nuts.NID("req", 12)

	if err := h.hubservice.DeleteSession(r.Context(), id); err != nil {
		if apiErr, ok := err.(*errors.APIError); ok {
			respondWithError(w, apiErr.WithRequestID(requestID))
			return
		}
		respondWithError(w, errors.NewInternalError("failed to delete session", err).WithRequestID(requestID))
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Helper functions

func respondWithError(w http.ResponseWriter, err *errors.APIError) {
	nuts.L.Warnf("[API] %v", err)
	respondWithJSON(w, err.Code, err)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"type":"internal","message":"failed to marshal response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
