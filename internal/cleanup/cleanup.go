package cleanup

import (
	"context"
	"fmt"

	"github.com/aircast/hub/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// CleanupService coordinates deletion of hierarchical data. The ingestion
// core never deletes anything; removing a session is an administrative
// action that cascades through streams and measurements here.
type CleanupService struct {
	sessions     repository.SessionRepository
	streams      repository.StreamRepository
	measurements repository.MeasurementRepository
	events       *nuts.EventEmitter
}

// New creates a new CleanupService
func New(
	sessions repository.SessionRepository,
	streams repository.StreamRepository,
	measurements repository.MeasurementRepository,
) *CleanupService {
	return &CleanupService{
		sessions:     sessions,
		streams:      streams,
		measurements: measurements,
		events:       nuts.NewEventEmitter(),
	}
}

// DeleteSession deletes a session and all its streams and measurements
func (s *CleanupService) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.sessions.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Will be ignored if transaction is committed

	streams, err := s.streams.ListBySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to list streams: %w", err)
	}

	streamIDs := make([]string, 0, len(streams))
	for _, stream := range streams {
		streamIDs = append(streamIDs, stream.ID)
	}

	if err := s.measurements.DeleteByStreams(ctx, streamIDs, tx); err != nil {
		return fmt.Errorf("failed to delete measurements: %w", err)
	}

	if err := s.streams.DeleteBySession(ctx, sessionID, tx); err != nil {
		return fmt.Errorf("failed to delete streams: %w", err)
	}
	for _, id := range streamIDs {
		s.events.Emit("stream.deleted", id)
	}

	if err := s.sessions.DeleteWithChildren(ctx, sessionID, tx); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.events.Emit("session.deleted", sessionID)
	nuts.L.Infof("[Cleanup] Deleted session %s with %d streams", sessionID, len(streamIDs))
	return nil
}

// OnCleanup registers a callback for cleanup events
func (s *CleanupService) OnCleanup(event string, handler func(id string)) {
	s.events.On(event, "cleanup_handler", func(args ...interface{}) {
		if len(args) > 0 {
			if id, ok := args[0].(string); ok {
				handler(id)
			}
		}
	})
}
