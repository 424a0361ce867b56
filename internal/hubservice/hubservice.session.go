package hubservice

import (
	"context"
	"time"

	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/models"
	"github.com/itsatony/struccy"
	nuts "github.com/vaudience/go-nuts"
)

// SessionService handles session-related business logic
type SessionService interface {
	CreateRealtimeMeasurements(ctx context.Context, userID string, reading *models.RealtimeReading) error
	GetSession(ctx context.Context, id string) (*SessionDetails, error)
	ListSessions(ctx context.Context, filters models.SessionFilters, offset, limit int) ([]*models.Session, error)
	UpdateSession(ctx context.Context, session *models.Session) error
	DeleteSession(ctx context.Context, id string) error
}

// SessionDetails bundles a session with its streams for display
type SessionDetails struct {
	Session *models.Session  `json:"session"`
	Streams []*models.Stream `json:"streams"`
}

// CreateRealtimeMeasurements ingests one realtime reading for the calling
// user. The session referenced by the reading must exist and belong to the
// caller; otherwise nothing is written.
func (s *HubService) CreateRealtimeMeasurements(ctx context.Context, userID string, reading *models.RealtimeReading) error {
	if userID == "" {
		return errors.NewAuthError("missing caller identity", nil)
	}
	return s.Ingest.IngestRealtime(ctx, userID, reading)
}

// GetSession retrieves a session together with its streams
func (s *HubService) GetSession(ctx context.Context, id string) (*SessionDetails, error) {
	session, err := s.Sessions.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	streams, err := s.Streams.ListBySession(ctx, id)
	if err != nil {
		nuts.L.Warnf("[SessionService] Failed to list streams for session %s: %v", id, err)
		streams = []*models.Stream{}
	}

	return &SessionDetails{Session: session, Streams: streams}, nil
}

// ListSessions retrieves a paginated list of publicly contributed sessions
func (s *HubService) ListSessions(ctx context.Context, filters models.SessionFilters, offset, limit int) ([]*models.Session, error) {
	if limit <= 0 || limit > 100 {
		limit = 50 // Default limit
	}
	if offset < 0 {
		offset = 0
	}

	return s.Sessions.List(ctx, filters, offset, limit)
}

// UpdateSession updates the user-editable session metadata with role-based
// field access. Tags are normalized before they are stored.
func (s *HubService) UpdateSession(ctx context.Context, session *models.Session) error {
	existing, err := s.Sessions.Get(ctx, session.ID)
	if err != nil {
		return err
	}

	session.TagList = models.NormalizeTags(session.TagList)

	roles := GetUserRoles(ctx)
	updatedFields, _, err := struccy.UpdateStructFields(existing, session, roles, true, true)
	if err != nil {
		return errors.NewAuthorizationError("unauthorized field update", err)
	}

	existing.UpdatedAt = time.Now().UTC()

	nuts.L.Infof("[SessionService] Updating session %s, fields changed: %v", session.ID, updatedFields)
	return s.Sessions.UpdateMetadata(ctx, existing)
}

// DeleteSession removes a session with cascading cleanup. Deletion is an
// administrative action; the ingestion core itself never deletes.
func (s *HubService) DeleteSession(ctx context.Context, id string) error {
	if _, err := s.Sessions.Get(ctx, id); err != nil {
		return err
	}

	nuts.L.Infof("[SessionService] Deleting session: %s", id)
	return s.Cleanup.DeleteSession(ctx, id)
}

// GetUserRoles retrieves user roles from context
func GetUserRoles(ctx context.Context) []string {
	if roles := ctx.Value("user_roles"); roles != nil {
		if r, ok := roles.([]string); ok {
			return r
		}
	}
	return []string{"guest"}
}
