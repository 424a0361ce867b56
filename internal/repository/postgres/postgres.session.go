// FilePath: internal/repository/postgres/postgres.session.go
package postgres

import (
	"context"
	"database/sql"
	"strings"

	"github.com/aircast/hub/internal/database"
	"github.com/aircast/hub/internal/errors"
	"github.com/aircast/hub/internal/models"
	"github.com/lib/pq"
)

type SessionRepo struct {
	PostgresBaseRepo
}

func NewSessionRepository(db database.DB) *SessionRepo {
	repo := &PostgresBaseRepo{db: db}
	return &SessionRepo{PostgresBaseRepo: *repo}
}

const sessionInsertQuery = `
	INSERT INTO sessions (
		id, user_id, uuid, url_token, title, description, tag_list,
		contribute, is_indoor, data_type, instrument,
		start_time, end_time, start_time_local, end_time_local,
		last_measurement_at, latitude, longitude, created_at, updated_at
	) VALUES (
		:id, :user_id, :uuid, :url_token, :title, :description, :tag_list,
		:contribute, :is_indoor, :data_type, :instrument,
		:start_time, :end_time, :start_time_local, :end_time_local,
		:last_measurement_at, :latitude, :longitude, :created_at, :updated_at
	)`

func (r *SessionRepo) Create(ctx context.Context, session *models.Session, tx database.Transaction) error {
	var err error
	if tx != nil {
		_, err = tx.NamedExecContext(ctx, sessionInsertQuery, session)
	} else {
		_, err = r.db.GetDB().NamedExecContext(ctx, sessionInsertQuery, session)
	}
	if err != nil {
		return errors.NewDatabaseError("failed to create session", err)
	}
	return nil
}

func (r *SessionRepo) Get(ctx context.Context, id string) (*models.Session, error) {
	session := &models.Session{}
	query := `SELECT * FROM sessions WHERE id = $1`

	err := r.db.GetDB().GetContext(ctx, session, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("session not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get session", err)
	}
	return session, nil
}

// GetByUUIDAndUser looks a session up by its client-supplied UUID scoped to
// the owning user. The realtime ingestion path never creates a session
// implicitly, so absence is a not-found error for the caller.
func (r *SessionRepo) GetByUUIDAndUser(ctx context.Context, uuid, userID string) (*models.Session, error) {
	session := &models.Session{}
	query := `SELECT * FROM sessions WHERE uuid = $1 AND user_id = $2`

	err := r.db.GetDB().GetContext(ctx, session, query, uuid, userID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFoundError("session not found", err)
		}
		return nil, errors.NewDatabaseError("failed to get session by uuid", err)
	}
	return session, nil
}

// UpdateOnAppend refreshes the fields that move forward when a later
// measurement is attached: title, end times and last_measurement_at.
// start_time is never touched after creation.
// UpdateOnAppend moves the session's end-of-range fields forward after a
// reading was appended. GREATEST keeps the write monotonic when two
// requests race on different streams of the same session; the losing
// writer must never move the range backward.
func (r *SessionRepo) UpdateOnAppend(ctx context.Context, session *models.Session, tx database.Transaction) error {
	query := `
		UPDATE sessions SET
			title = :title,
			end_time = GREATEST(end_time, :end_time),
			end_time_local = GREATEST(end_time_local, :end_time_local),
			last_measurement_at = GREATEST(last_measurement_at, :last_measurement_at),
			updated_at = :updated_at
		WHERE id = :id`

	result, err := tx.NamedExecContext(ctx, query, session)
	if err != nil {
		return errors.NewDatabaseError("failed to update session", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("session not found", nil)
	}

	return nil
}

// UpdateMetadata writes the user-editable session fields: title,
// description and tags.
func (r *SessionRepo) UpdateMetadata(ctx context.Context, session *models.Session) error {
	query := `
		UPDATE sessions SET
			title = :title,
			description = :description,
			tag_list = :tag_list,
			updated_at = :updated_at
		WHERE id = :id`

	result, err := r.db.GetDB().NamedExecContext(ctx, query, session)
	if err != nil {
		return errors.NewDatabaseError("failed to update session metadata", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("session not found", nil)
	}

	return nil
}

func (r *SessionRepo) List(ctx context.Context, filters models.SessionFilters, offset, limit int) ([]*models.Session, error) {
	query := `SELECT * FROM sessions WHERE contribute = TRUE`
	args := []interface{}{}

	addArg := func(clause string, value interface{}) {
		args = append(args, value)
		query += strings.Replace(clause, "?", placeholder(len(args)), 1)
	}

	if filters.TimeFrom != nil {
		addArg(` AND start_time >= ?`, *filters.TimeFrom)
	}
	if filters.TimeTo != nil {
		addArg(` AND start_time <= ?`, *filters.TimeTo)
	}
	if tags := models.NormalizeTags(filters.Tags); tags != "" {
		for _, tag := range strings.Split(tags, ",") {
			addArg(` AND tag_list ~ ('(^|,)' || ? || '(,|$)')`, tag)
		}
	}
	if usernames := strings.FieldsFunc(filters.Usernames, isTagSeparator); len(usernames) > 0 {
		args = append(args, pq.Array(usernames))
		query += ` AND user_id = ANY(` + placeholder(len(args)) + `)`
	}
	if filters.HasBoundingBox() {
		// Sessions whose streams overlap the requested box.
		base := len(args)
		args = append(args, *filters.South, *filters.North, *filters.West, *filters.East)
		query += ` AND id IN (
			SELECT session_id FROM streams
			WHERE max_latitude >= ` + placeholder(base+1) + ` AND min_latitude <= ` + placeholder(base+2) + `
			  AND max_longitude >= ` + placeholder(base+3) + ` AND min_longitude <= ` + placeholder(base+4) + `
		)`
	}

	args = append(args, limit, offset)
	query += ` ORDER BY start_time DESC LIMIT ` + placeholder(len(args)-1) + ` OFFSET ` + placeholder(len(args))

	sessions := []*models.Session{}
	err := r.db.GetDB().SelectContext(ctx, &sessions, query, args...)
	if err != nil {
		return nil, errors.NewDatabaseError("failed to list sessions", err)
	}
	return sessions, nil
}

func (r *SessionRepo) DeleteWithChildren(ctx context.Context, id string, tx database.Transaction) error {
	// streams and measurements cascade through foreign keys
	query := `DELETE FROM sessions WHERE id = $1`

	result, err := tx.ExecContext(ctx, query, id)
	if err != nil {
		return errors.NewDatabaseError("failed to delete session", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return errors.NewDatabaseError("failed to get rows affected", err)
	}

	if rows == 0 {
		return errors.NewNotFoundError("session not found", nil)
	}

	return nil
}
