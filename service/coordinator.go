package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"recording-uploader/constant"
	"recording-uploader/dto"
	"recording-uploader/entities"
	"recording-uploader/pkg/blobstore"
	"recording-uploader/pkg/retry"
	"recording-uploader/repository"
)

// EventPublisher is the optional completion nudge for the transcription
// platform. Publishing is best-effort; the atomic session write is the
// signal of record.
type EventPublisher interface {
	PublishRecordingReady(ctx context.Context, evt dto.RecordingReadyEvent) error
}

// Metadata describes the finished recording handed to Complete.
type Metadata struct {
	DurationSeconds int
	MimeType        string
}

type CoordinatorConfig struct {
	RetryPolicy       retry.Policy
	LinkSessionRecord bool
}

// Coordinator turns a local media recording into a durably stored,
// consistently tracked artifact: it owns the per-session UploadJob registry,
// drives chunk uploads through the retry executor, and makes completion an
// all-or-nothing event with a compensating delete on rollback.
type Coordinator struct {
	blobs     blobstore.Store
	sessions  repository.SessionStore
	validator SessionValidator
	events    EventPublisher
	cfg       CoordinatorConfig

	mu      sync.Mutex
	jobs    map[string]*UploadJob
	pending map[string]bool
}

func NewCoordinator(blobs blobstore.Store, sessions repository.SessionStore, validator SessionValidator, events EventPublisher, cfg CoordinatorConfig) *Coordinator {
	if cfg.RetryPolicy.MaxAttempts == 0 {
		cfg.RetryPolicy = retry.DefaultPolicy
	}
	return &Coordinator{
		blobs:     blobs,
		sessions:  sessions,
		validator: validator,
		events:    events,
		cfg:       cfg,
		jobs:      make(map[string]*UploadJob),
		pending:   make(map[string]bool),
	}
}

// StartRecording validates the session with the external platform, moves it
// to RECORDING and creates the upload job. At most one job exists per
// session; a second start is rejected while the first is alive.
func (c *Coordinator) StartRecording(ctx context.Context, sessionID, mimeType string) (*UploadJob, error) {
	if mimeType == "" {
		mimeType = "video/webm"
	}

	c.mu.Lock()
	if _, ok := c.jobs[sessionID]; ok || c.pending[sessionID] {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRecordingInProgress, sessionID)
	}
	c.pending[sessionID] = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, sessionID)
		c.mu.Unlock()
	}()

	if c.validator != nil {
		result, err := c.validator.Validate(ctx, sessionID)
		if err != nil {
			return nil, fmt.Errorf("validating session %s: %w", sessionID, err)
		}
		if result.Status != ValidationValid {
			return nil, &ValidationError{SessionID: sessionID, Status: result.Status}
		}
	}

	var folder string
	err := c.sessions.Transact(ctx, sessionID, func(sess *entities.RecordingSession) (map[string]any, error) {
		if err := constant.ValidateTransition(sess.Status, constant.SessionRecording); err != nil {
			return nil, err
		}
		folder = chunksFolder(sess.OwnerUserID, sessionID)
		now := time.Now().UTC()
		return map[string]any{
			"status":               constant.SessionRecording,
			"chunks_folder_path":   folder,
			"mime_type":            mimeType,
			"recording_started_at": now,
			"error_message":        nil,
			"error_at":             nil,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	job := newUploadJob(sessionID, folder, mimeType, c.blobs, c.sessions, c.cfg.RetryPolicy, c.cfg.LinkSessionRecord)

	c.mu.Lock()
	c.jobs[sessionID] = job
	c.mu.Unlock()

	zerolog.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Str("job_id", job.ID.String()).
		Str("chunks_folder", folder).
		Msg("recording started")

	return job, nil
}

// StopRecording marks the session UPLOADING: capture has ended and chunk
// uploads are draining ahead of completion.
func (c *Coordinator) StopRecording(ctx context.Context, sessionID string) error {
	return c.sessions.Transact(ctx, sessionID, func(sess *entities.RecordingSession) (map[string]any, error) {
		if err := constant.ValidateTransition(sess.Status, constant.SessionUploading); err != nil {
			return nil, err
		}
		return map[string]any{"status": constant.SessionUploading}, nil
	})
}

// SubmitChunk routes a captured chunk to the session's active job.
func (c *Coordinator) SubmitChunk(ctx context.Context, sessionID string, blob []byte) (ChunkResult, error) {
	job, ok := c.Job(sessionID)
	if !ok {
		return ChunkResult{}, fmt.Errorf("%w: %s", ErrNoActiveJob, sessionID)
	}
	return job.SubmitChunk(ctx, blob)
}

func (c *Coordinator) Job(sessionID string) (*UploadJob, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[sessionID]
	return job, ok
}

// Complete makes "recording finished and durably stored" all-or-nothing:
// upload the final artifact first, then commit the session update in one
// transaction, and delete the artifact again if that commit fails. Only a
// failure of both the transaction and the compensating delete can leave an
// orphan, which is logged for eventual garbage collection.
func (c *Coordinator) Complete(ctx context.Context, sessionID string, finalBytes []byte, meta Metadata) (string, error) {
	job, ok := c.Job(sessionID)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoActiveJob, sessionID)
	}
	if err := job.beginFinalize(); err != nil {
		return "", err
	}
	if len(finalBytes) == 0 {
		c.settle(sessionID, job, constant.JobFailed)
		return "", fmt.Errorf("%w: final recording", ErrEmptyChunk)
	}

	mimeType := meta.MimeType
	if mimeType == "" {
		mimeType = job.mimeType
	}

	// cheap pre-flight read so a long-dead session fails before any blob
	// traffic; the transaction below re-validates atomically
	sess, err := c.sessions.Read(ctx, sessionID)
	if err != nil {
		c.settle(sessionID, job, constant.JobFailed)
		return "", err
	}
	if err := constant.ValidateTransition(sess.Status, constant.SessionReadyForTranscription); err != nil {
		c.settle(sessionID, job, constant.JobFailed)
		return "", err
	}

	key := finalKey(sess.OwnerUserID, sessionID, extFromMime(mimeType))
	locator, err := retry.Do(ctx, c.cfg.RetryPolicy, func() (string, error) {
		return c.blobs.Put(ctx, key, finalBytes, mimeType)
	})
	if err != nil {
		// upload never happened, no state to roll back
		c.settle(sessionID, job, constant.JobFailed)
		return "", err
	}

	completedAt := time.Now().UTC()
	txErr := c.sessions.Transact(ctx, sessionID, func(sess *entities.RecordingSession) (map[string]any, error) {
		if err := constant.ValidateTransition(sess.Status, constant.SessionReadyForTranscription); err != nil {
			return nil, err
		}
		return map[string]any{
			"status":                  constant.SessionReadyForTranscription,
			"final_artifact_path":     locator,
			"file_size_bytes":         int64(len(finalBytes)),
			"mime_type":               mimeType,
			"upload_progress_percent": 100,
			"duration_seconds":        meta.DurationSeconds,
			"recording_completed_at":  completedAt,
			"error_message":           nil,
			"error_at":                nil,
		}, nil
	})
	if txErr != nil {
		c.compensate(ctx, sessionID, key)
		c.settle(sessionID, job, constant.JobFailed)
		return "", txErr
	}

	c.settle(sessionID, job, constant.JobCompleted)

	if c.events != nil {
		evt := dto.RecordingReadyEvent{
			SessionId:         sessionID,
			OwnerUserId:       sess.OwnerUserID,
			FinalArtifactPath: locator,
			FileSizeBytes:     int64(len(finalBytes)),
			CompletedAt:       completedAt,
		}
		if err := c.events.PublishRecordingReady(ctx, evt); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("session_id", sessionID).
				Msg("recording ready event publish failed")
		}
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", sessionID).
		Str("final_artifact", locator).
		Int("size_bytes", len(finalBytes)).
		Msg("recording completed")

	return locator, nil
}

// compensate deletes the just-uploaded final artifact after a failed
// completion transaction. Its own failure never masks the original error.
func (c *Coordinator) compensate(ctx context.Context, sessionID, key string) {
	_, err := retry.Do(ctx, c.cfg.RetryPolicy, func() (struct{}, error) {
		return struct{}{}, c.blobs.Delete(ctx, key)
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).
			Str("marker", "cleanup_failed").
			Str("session_id", sessionID).
			Str("artifact", key).
			Msg("compensating delete failed, artifact may be orphaned")
	}
}

// Cancel abandons the recording: the job is destroyed, uploaded chunks are
// deleted best-effort and the session is marked failed so the platform can
// offer a manual retry.
func (c *Coordinator) Cancel(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	job, ok := c.jobs[sessionID]
	delete(c.jobs, sessionID)
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoActiveJob, sessionID)
	}

	job.finish(constant.JobCancelled)
	job.Cleanup(ctx)

	now := time.Now().UTC()
	err := c.sessions.Transact(ctx, sessionID, func(sess *entities.RecordingSession) (map[string]any, error) {
		if err := constant.ValidateTransition(sess.Status, constant.SessionFailed); err != nil {
			return nil, err
		}
		return map[string]any{
			"status":        constant.SessionFailed,
			"error_message": "recording cancelled before completion",
			"error_at":      now,
		}, nil
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("session_id", sessionID).
			Msg("could not mark cancelled session failed")
	}

	zerolog.Ctx(ctx).Info().Str("session_id", sessionID).Msg("recording cancelled")
	return nil
}

func (c *Coordinator) settle(sessionID string, job *UploadJob, status constant.JobStatus) {
	job.finish(status)
	c.mu.Lock()
	delete(c.jobs, sessionID)
	c.mu.Unlock()
}
