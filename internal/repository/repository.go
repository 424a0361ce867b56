// FilePath: internal/repository/repository.go
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/aircast/hub/internal/database"
	"github.com/aircast/hub/internal/models"
)

var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("resource not found")
	// ErrDuplicate indicates that a resource already exists
	ErrDuplicate = errors.New("resource already exists")
	// ErrInvalidInput indicates that the input data is invalid
	ErrInvalidInput = errors.New("invalid input")
)

// SessionRepository defines the interface for session data operations
type SessionRepository interface {
	database.Repository
	Create(ctx context.Context, session *models.Session, tx database.Transaction) error
	Get(ctx context.Context, id string) (*models.Session, error)
	GetByUUIDAndUser(ctx context.Context, uuid, userID string) (*models.Session, error)
	UpdateOnAppend(ctx context.Context, session *models.Session, tx database.Transaction) error
	UpdateMetadata(ctx context.Context, session *models.Session) error
	List(ctx context.Context, filters models.SessionFilters, offset, limit int) ([]*models.Session, error)
	DeleteWithChildren(ctx context.Context, id string, tx database.Transaction) error
}

// StreamRepository defines the interface for stream data operations
type StreamRepository interface {
	database.Repository
	Create(ctx context.Context, stream *models.Stream, tx database.Transaction) error
	Get(ctx context.Context, id string) (*models.Stream, error)
	FindBySensorKey(ctx context.Context, sessionID string, key models.SensorKey) (*models.Stream, error)
	FindLatestByDeviceLocation(ctx context.Context, deviceIndex int64, latitude, longitude float64) (*models.Stream, error)
	UpdateAggregates(ctx context.Context, stream *models.Stream, previousCount int64, tx database.Transaction) error
	ListBySession(ctx context.Context, sessionID string) ([]*models.Stream, error)
	DeleteBySession(ctx context.Context, sessionID string, tx database.Transaction) error
}

// MeasurementRepository defines the interface for measurement operations
type MeasurementRepository interface {
	database.Repository
	Insert(ctx context.Context, measurement *models.Measurement, tx database.Transaction) error
	ListByStream(ctx context.Context, streamID string, start, end time.Time) ([]models.Measurement, error)
	DeleteByStreams(ctx context.Context, streamIDs []string, tx database.Transaction) error
}
