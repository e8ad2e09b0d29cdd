package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"recording-uploader/constant"
	"recording-uploader/entities"
	"recording-uploader/pkg/retry"
)

// SessionStore is the record store for the shared session document. The
// external platform owns the row; everything written through here is vetted
// against the agreed mutation allowlist, and status changes are only possible
// through Transact so they cannot skip the lifecycle table.
type SessionStore interface {
	Read(ctx context.Context, sessionID string) (*entities.RecordingSession, error)
	Update(ctx context.Context, sessionID string, fields map[string]any) error
	Transact(ctx context.Context, sessionID string, fn func(*entities.RecordingSession) (map[string]any, error)) error
}

// allowedFields is the full mutation set this service may touch. version is
// managed by the store itself and never accepted from callers.
var allowedFields = map[string]struct{}{
	"status":                  {},
	"duration_seconds":        {},
	"file_size_bytes":         {},
	"mime_type":               {},
	"upload_progress_percent": {},
	"final_artifact_path":     {},
	"chunks_folder_path":      {},
	"recording_started_at":    {},
	"recording_completed_at":  {},
	"error_message":           {},
	"error_at":                {},
}

type StoreConfig struct {
	ConflictAttempts uint
	ConflictStep     time.Duration
	ConflictCap      time.Duration
	Timeout          time.Duration
}

type store struct {
	db  *gorm.DB
	cfg StoreConfig
}

func NewStore(db *sql.DB, cfg StoreConfig) (SessionStore, error) {
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}),
		&gorm.Config{
			SkipDefaultTransaction: true,
			Logger:                 logger.Default.LogMode(logger.Warn),
		},
	)
	if err != nil {
		return nil, err
	}
	if cfg.ConflictAttempts == 0 {
		cfg.ConflictAttempts = 5
	}
	if cfg.ConflictStep <= 0 {
		cfg.ConflictStep = 100 * time.Millisecond
	}
	if cfg.ConflictCap <= 0 {
		cfg.ConflictCap = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &store{db: gormDB, cfg: cfg}, nil
}

func (r *store) Read(ctx context.Context, sessionID string) (*entities.RecordingSession, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	sess := &entities.RecordingSession{}
	err := r.db.WithContext(ctx).First(sess, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &Error{Kind: KindNotFound, SessionID: sessionID, Err: err}
		}
		return nil, &Error{Kind: KindUnavailable, SessionID: sessionID, Err: err}
	}
	return sess, nil
}

// Update writes last-writer-wins fields (progress heartbeats and the like).
// Status is rejected here outright: once a recording exists, status moves
// only through the transactional path.
func (r *store) Update(ctx context.Context, sessionID string, fields map[string]any) error {
	if err := vetFields(sessionID, fields, false); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	res := r.db.WithContext(ctx).Model(&entities.RecordingSession{}).
		Where("id = ?", sessionID).
		Updates(fields)
	if res.Error != nil {
		return &Error{Kind: KindUnavailable, SessionID: sessionID, Err: res.Error}
	}
	if res.RowsAffected == 0 {
		return &Error{Kind: KindNotFound, SessionID: sessionID}
	}
	return nil
}

// Transact runs fn against a fresh read of the document and applies the
// staged fields with a version-guarded update. A concurrent conflicting write
// shows up as zero rows affected and is retried with the fixed-growth policy
// before a Conflict error surfaces. fn returning an error aborts the whole
// operation without writing.
func (r *store) Transact(ctx context.Context, sessionID string, fn func(*entities.RecordingSession) (map[string]any, error)) error {
	op := func() (struct{}, error) {
		var zero struct{}

		opCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()

		sess := &entities.RecordingSession{}
		if err := r.db.WithContext(opCtx).First(sess, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return zero, backoff.Permanent(&Error{Kind: KindNotFound, SessionID: sessionID, Err: err})
			}
			return zero, backoff.Permanent(&Error{Kind: KindUnavailable, SessionID: sessionID, Err: err})
		}

		fields, err := fn(sess)
		if err != nil {
			return zero, backoff.Permanent(err)
		}
		if err := vetFields(sessionID, fields, true); err != nil {
			return zero, backoff.Permanent(err)
		}
		if raw, ok := fields["status"]; ok {
			next, ok := toStatus(raw)
			if !ok {
				return zero, backoff.Permanent(&Error{Kind: KindForbiddenField, SessionID: sessionID, Field: "status"})
			}
			if err := constant.ValidateTransition(sess.Status, next); err != nil {
				return zero, backoff.Permanent(err)
			}
		}

		staged := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			staged[k] = v
		}
		staged["version"] = sess.Version + 1

		res := r.db.WithContext(opCtx).Model(&entities.RecordingSession{}).
			Where("id = ? AND version = ?", sessionID, sess.Version).
			Updates(staged)
		if res.Error != nil {
			return zero, backoff.Permanent(&Error{Kind: KindUnavailable, SessionID: sessionID, Err: res.Error})
		}
		if res.RowsAffected == 0 {
			return zero, &Error{Kind: KindConflict, SessionID: sessionID}
		}
		return zero, nil
	}

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(retry.Linear(r.cfg.ConflictStep, r.cfg.ConflictCap)),
		backoff.WithMaxTries(r.cfg.ConflictAttempts),
	)
	return err
}

func vetFields(sessionID string, fields map[string]any, allowStatus bool) error {
	if len(fields) == 0 {
		return &Error{Kind: KindForbiddenField, SessionID: sessionID, Field: "(empty update)"}
	}
	for k := range fields {
		if _, ok := allowedFields[k]; !ok {
			return &Error{Kind: KindForbiddenField, SessionID: sessionID, Field: k}
		}
		if k == "status" && !allowStatus {
			return &Error{Kind: KindForbiddenField, SessionID: sessionID, Field: k}
		}
	}
	return nil
}

func toStatus(v any) (constant.SessionStatus, bool) {
	switch s := v.(type) {
	case constant.SessionStatus:
		return s, true
	case string:
		return constant.SessionStatus(s), true
	default:
		return "", false
	}
}
