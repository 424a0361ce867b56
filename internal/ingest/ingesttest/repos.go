// FilePath: internal/ingest/ingesttest/repos.go
// Package ingesttest provides in-memory repository implementations for
// exercising the ingestion pipeline without a database. Writes made
// through a transaction are staged and only become visible on Commit, so
// rollback semantics match the real store closely enough for tests.
package ingesttest

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/aircast/hub/internal/database"
	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/models"
	"github.com/aircast/hub/internal/repository"
)

// Store is the shared backing state of the fake repositories.
type Store struct {
	mu           sync.Mutex
	Sessions     map[string]*models.Session
	Streams      []*models.Stream
	Measurements []*models.Measurement

	Committed  int
	RolledBack int

	// ConflictsRemaining makes the next N UpdateAggregates calls fail
	// with a conflict, simulating a concurrent writer.
	ConflictsRemaining int
}

// NewRepos creates a fresh store and the three repositories bound to it.
func NewRepos() (*Store, repository.SessionRepository, repository.StreamRepository, repository.MeasurementRepository) {
	store := &Store{Sessions: make(map[string]*models.Session)}
	return store, &SessionRepo{store}, &StreamRepo{store}, &MeasurementRepo{store}
}

// Tx stages writes until Commit. Rollback discards them.
type Tx struct {
	store   *Store
	pending []func()
	done    bool
}

func (t *Tx) Commit() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, f := range t.pending {
		f()
	}
	t.store.Committed++
	return nil
}

func (t *Tx) Rollback() error {
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	t.pending = nil
	t.store.RolledBack++
	return nil
}

func (t *Tx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (t *Tx) NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error) {
	return nil, nil
}

func (t *Tx) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return nil
}

func (s *Store) beginTx(ctx context.Context) (database.Transaction, error) {
	return &Tx{store: s}, nil
}

// apply stages f on the transaction, or applies it immediately when no
// transaction is in play.
func (s *Store) apply(tx database.Transaction, f func()) error {
	if t, ok := tx.(*Tx); ok && t != nil {
		if t.done {
			return sql.ErrTxDone
		}
		t.pending = append(t.pending, f)
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f()
	return nil
}

// SessionCount returns the number of stored sessions.
func (s *Store) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Sessions)
}

// MeasurementsForStream returns the stored measurements of one stream in
// insertion order.
func (s *Store) MeasurementsForStream(streamID string) []*models.Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Measurement
	for _, m := range s.Measurements {
		if m.StreamID == streamID {
			out = append(out, cloneMeasurement(m))
		}
	}
	return out
}

func cloneSession(s *models.Session) *models.Session {
	c := *s
	return &c
}

func cloneStream(s *models.Stream) *models.Stream {
	c := *s
	return &c
}

func cloneMeasurement(m *models.Measurement) *models.Measurement {
	c := *m
	return &c
}

// SessionRepo is an in-memory repository.SessionRepository.
type SessionRepo struct {
	store *Store
}

func (r *SessionRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return r.store.beginTx(ctx)
}

func (r *SessionRepo) Create(ctx context.Context, session *models.Session, tx database.Transaction) error {
	c := cloneSession(session)
	return r.store.apply(tx, func() {
		r.store.Sessions[c.ID] = c
	})
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*models.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if s, ok := r.store.Sessions[id]; ok {
		return cloneSession(s), nil
	}
	return nil, errors.NewNotFoundError("session not found", nil)
}

func (r *SessionRepo) GetByUUIDAndUser(ctx context.Context, uuid, userID string) (*models.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.Sessions {
		if s.UUID == uuid && s.UserID == userID {
			return cloneSession(s), nil
		}
	}
	return nil, errors.NewNotFoundError("session not found", nil)
}

// UpdateOnAppend folds the end-of-range fields monotonically, mirroring
// the GREATEST-based update of the real store: a stale writer never moves
// the range backward.
func (r *SessionRepo) UpdateOnAppend(ctx context.Context, session *models.Session, tx database.Transaction) error {
	r.store.mu.Lock()
	_, ok := r.store.Sessions[session.ID]
	r.store.mu.Unlock()
	if !ok {
		return errors.NewNotFoundError("session not found", nil)
	}
	c := cloneSession(session)
	return r.store.apply(tx, func() {
		stored, ok := r.store.Sessions[c.ID]
		if !ok {
			r.store.Sessions[c.ID] = c
			return
		}
		if c.EndTime.Before(stored.EndTime) {
			c.EndTime = stored.EndTime
		}
		if c.EndTimeLocal.Before(stored.EndTimeLocal) {
			c.EndTimeLocal = stored.EndTimeLocal
		}
		if c.LastMeasurementAt.Before(stored.LastMeasurementAt) {
			c.LastMeasurementAt = stored.LastMeasurementAt
		}
		r.store.Sessions[c.ID] = c
	})
}

func (r *SessionRepo) UpdateMetadata(ctx context.Context, session *models.Session) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.Sessions[session.ID]
	if !ok {
		return errors.NewNotFoundError("session not found", nil)
	}
	stored.Title = session.Title
	stored.Description = session.Description
	stored.TagList = session.TagList
	stored.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *SessionRepo) List(ctx context.Context, filters models.SessionFilters, offset, limit int) ([]*models.Session, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	out := make([]*models.Session, 0, len(r.store.Sessions))
	for _, s := range r.store.Sessions {
		out = append(out, cloneSession(s))
	}
	return out, nil
}

func (r *SessionRepo) DeleteWithChildren(ctx context.Context, id string, tx database.Transaction) error {
	return r.store.apply(tx, func() {
		delete(r.store.Sessions, id)
	})
}

// StreamRepo is an in-memory repository.StreamRepository.
type StreamRepo struct {
	store *Store
}

func (r *StreamRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return r.store.beginTx(ctx)
}

// Create inserts a stream, enforcing the unique sensor key per session the
// way the real store's unique index does: a duplicate is a conflict.
func (r *StreamRepo) Create(ctx context.Context, stream *models.Stream, tx database.Transaction) error {
	r.store.mu.Lock()
	for _, s := range r.store.Streams {
		if s.SessionID == stream.SessionID && s.SensorKey() == stream.SensorKey() {
			r.store.mu.Unlock()
			return errors.NewConflictError("stream already exists for sensor key", nil)
		}
	}
	r.store.mu.Unlock()

	c := cloneStream(stream)
	return r.store.apply(tx, func() {
		r.store.Streams = append(r.store.Streams, c)
	})
}

func (r *StreamRepo) Get(ctx context.Context, id string) (*models.Stream, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.Streams {
		if s.ID == id {
			return cloneStream(s), nil
		}
	}
	return nil, errors.NewNotFoundError("stream not found", nil)
}

func (r *StreamRepo) FindBySensorKey(ctx context.Context, sessionID string, key models.SensorKey) (*models.Stream, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.Streams {
		if s.SessionID == sessionID && s.SensorKey() == key {
			return cloneStream(s), nil
		}
	}
	return nil, errors.NewNotFoundError("stream not found", nil)
}

func (r *StreamRepo) FindLatestByDeviceLocation(ctx context.Context, deviceIndex int64, latitude, longitude float64) (*models.Stream, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	// Insertion order is creation order, so scan from the back.
	for i := len(r.store.Streams) - 1; i >= 0; i-- {
		s := r.store.Streams[i]
		if s.DeviceIndex == deviceIndex && s.StartLatitude == latitude && s.StartLongitude == longitude {
			return cloneStream(s), nil
		}
	}
	return nil, errors.NewNotFoundError("stream not found", nil)
}

func (r *StreamRepo) UpdateAggregates(ctx context.Context, stream *models.Stream, previousCount int64, tx database.Transaction) error {
	r.store.mu.Lock()
	if r.store.ConflictsRemaining > 0 {
		r.store.ConflictsRemaining--
		r.store.mu.Unlock()
		return errors.NewConflictError("stream aggregates changed concurrently", nil)
	}
	var stored *models.Stream
	for _, s := range r.store.Streams {
		if s.ID == stream.ID {
			stored = s
			break
		}
	}
	if stored == nil {
		r.store.mu.Unlock()
		return errors.NewNotFoundError("stream not found", nil)
	}
	if stored.MeasurementsCount != previousCount {
		r.store.mu.Unlock()
		return errors.NewConflictError("stream aggregates changed concurrently", nil)
	}
	r.store.mu.Unlock()

	c := cloneStream(stream)
	return r.store.apply(tx, func() {
		for i, s := range r.store.Streams {
			if s.ID == c.ID {
				r.store.Streams[i] = c
				return
			}
		}
	})
}

func (r *StreamRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.Stream, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.Stream
	for _, s := range r.store.Streams {
		if s.SessionID == sessionID {
			out = append(out, cloneStream(s))
		}
	}
	return out, nil
}

func (r *StreamRepo) DeleteBySession(ctx context.Context, sessionID string, tx database.Transaction) error {
	return r.store.apply(tx, func() {
		kept := r.store.Streams[:0]
		for _, s := range r.store.Streams {
			if s.SessionID != sessionID {
				kept = append(kept, s)
			}
		}
		r.store.Streams = kept
	})
}

// MeasurementRepo is an in-memory repository.MeasurementRepository.
type MeasurementRepo struct {
	store *Store
}

func (r *MeasurementRepo) BeginTx(ctx context.Context) (database.Transaction, error) {
	return r.store.beginTx(ctx)
}

func (r *MeasurementRepo) Insert(ctx context.Context, measurement *models.Measurement, tx database.Transaction) error {
	c := cloneMeasurement(measurement)
	return r.store.apply(tx, func() {
		r.store.Measurements = append(r.store.Measurements, c)
	})
}

func (r *MeasurementRepo) ListByStream(ctx context.Context, streamID string, start, end time.Time) ([]models.Measurement, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []models.Measurement
	for _, m := range r.store.Measurements {
		if m.StreamID != streamID {
			continue
		}
		if !start.IsZero() && m.Time.Before(start) {
			continue
		}
		if !end.IsZero() && m.Time.After(end) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (r *MeasurementRepo) DeleteByStreams(ctx context.Context, streamIDs []string, tx database.Transaction) error {
	drop := make(map[string]bool, len(streamIDs))
	for _, id := range streamIDs {
		drop[id] = true
	}
	return r.store.apply(tx, func() {
		kept := r.store.Measurements[:0]
		for _, m := range r.store.Measurements {
			if !drop[m.StreamID] {
				kept = append(kept, m)
			}
		}
		r.store.Measurements = kept
	})
}
