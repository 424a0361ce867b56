package hubservice

import (
	"github.com/aircast/hub/internal/cleanup"
	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/ingest"
	"github.com/aircast/hub/internal/repository"
)

// HubService contains all repositories and service-wide dependencies
type HubService struct {
	Sessions     repository.SessionRepository
	Streams      repository.StreamRepository
	Measurements repository.MeasurementRepository
	Ingest       *ingest.Coordinator
	Cleanup      *cleanup.CleanupService
}

// New creates a new HubService instance
func New(
	sessions repository.SessionRepository,
	streams repository.StreamRepository,
	measurements repository.MeasurementRepository,
	importUser string,
) *HubService {
	svc := &HubService{
		Sessions:     sessions,
		Streams:      streams,
		Measurements: measurements,
	}
	svc.Ingest = ingest.NewCoordinator(sessions, streams, measurements, importUser)
	svc.Cleanup = cleanup.New(sessions, streams, measurements)
	return svc
}

// Validate checks if all required repositories are initialized
func (s *HubService) Validate() error {
	if s.Sessions == nil {
		return ErrMissingRepository("sessions")
	}
	if s.Streams == nil {
		return ErrMissingRepository("streams")
	}
	if s.Measurements == nil {
		return ErrMissingRepository("measurements")
	}
	return nil
}

func ErrMissingRepository(name string) error {
	return errors.NewInternalError("missing repository: "+name, nil)
}
