// FilePath: internal/ingest/matcher.go
package ingest

import (
	"context"

	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/models"
	"github.com/aircast/hub/internal/repository"
)

// Mode selects the matching policy for a reading. The two ingestion modes
// use different matching keys, so the mode is an explicit tag rather than
// something inferred from the reading's shape.
type Mode string

const (
	// ModeRealtime readings carry an explicit session UUID and an
	// authenticated owner; the session must already exist.
	ModeRealtime Mode = "realtime"
	// ModeBulk readings carry a device identity and location only; both
	// session and stream are created on demand.
	ModeBulk Mode = "bulk"
)

// Reading is the mode-tagged input handed to the matcher. Exactly one of
// Realtime/Bulk is set, matching the Mode.
type Reading struct {
	Mode     Mode
	UserID   string
	Realtime *models.RealtimeReading
	Bulk     *models.BulkReading
}

// Resolution is the matcher's answer: the entities a reading attaches to,
// plus flags for what must be created. A nil Session/Stream together with
// the corresponding flag means the coordinator creates it.
type Resolution struct {
	Session    *models.Session
	Stream     *models.Stream
	NewSession bool
	NewStream  bool
}

// Matcher resolves a raw reading to an existing (session, stream) pair or
// signals what must be created.
type Matcher interface {
	Resolve(ctx context.Context, reading Reading) (*Resolution, error)
}

type storeMatcher struct {
	sessions repository.SessionRepository
	streams  repository.StreamRepository
}

// NewMatcher returns a Matcher backed by the session/stream store.
func NewMatcher(sessions repository.SessionRepository, streams repository.StreamRepository) Matcher {
	return &storeMatcher{sessions: sessions, streams: streams}
}

func (m *storeMatcher) Resolve(ctx context.Context, reading Reading) (*Resolution, error) {
	switch reading.Mode {
	case ModeRealtime:
		return m.resolveRealtime(ctx, reading)
	case ModeBulk:
		return m.resolveBulk(ctx, reading)
	default:
		return nil, errors.NewValidationError("unknown ingestion mode: "+string(reading.Mode), nil)
	}
}

// resolveRealtime looks the session up by (uuid, owner) and never creates
// one implicitly. Within the session, the stream is matched on the exact
// sensor metadata declared by the reading.
func (m *storeMatcher) resolveRealtime(ctx context.Context, reading Reading) (*Resolution, error) {
	r := reading.Realtime

	session, err := m.sessions.GetByUUIDAndUser(ctx, r.SessionUUID, reading.UserID)
	if err != nil {
		return nil, err
	}

	key := models.SensorKey{
		SensorPackageName: r.SensorPackageName,
		SensorName:        r.SensorName,
		MeasurementType:   r.MeasurementType,
	}
	stream, err := m.streams.FindBySensorKey(ctx, session.ID, key)
	if err != nil {
		if errors.IsNotFound(err) {
			return &Resolution{Session: session, NewStream: true}, nil
		}
		return nil, err
	}

	return &Resolution{Session: session, Stream: stream}, nil
}

// resolveBulk matches on the most recently created stream for the device
// whose starting location exactly equals the reading's coordinates. Each
// distinct location starts its own session, so a relocated device splits
// its history instead of merging across moves.
func (m *storeMatcher) resolveBulk(ctx context.Context, reading Reading) (*Resolution, error) {
	r := reading.Bulk

	stream, err := m.streams.FindLatestByDeviceLocation(ctx, r.DeviceIndex, r.Latitude, r.Longitude)
	if err != nil {
		if errors.IsNotFound(err) {
			return &Resolution{NewSession: true, NewStream: true}, nil
		}
		return nil, err
	}

	session, err := m.sessions.Get(ctx, stream.SessionID)
	if err != nil {
		return nil, err
	}

	return &Resolution{Session: session, Stream: stream}, nil
}
