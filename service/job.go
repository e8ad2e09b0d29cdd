package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"recording-uploader/constant"
	"recording-uploader/pkg/blobstore"
	"recording-uploader/pkg/retry"
	"recording-uploader/repository"
)

// ChunkUpload records one submitted chunk. A chunk that exhausted its upload
// retries keeps its slot (the index stays monotonic) with Err set.
type ChunkUpload struct {
	Index     int
	SizeBytes int64
	Locator   string
	Err       error
}

type ChunkResult struct {
	ChunkIndex int
	SizeBytes  int64
	Locator    string
}

type Progress struct {
	ChunksUploaded int
	ChunksFailed   int
	TotalBytes     int64
}

// UploadJob owns the in-flight recording for one session. It is created by
// the coordinator when recording starts and destroyed when finalize settles
// or the caller cancels; the coordinator guarantees at most one job per
// session. The job mutex is held across each chunk upload attempt, so chunks
// for one session are strictly ordered and progress stays monotonic.
type UploadJob struct {
	ID        uuid.UUID
	SessionID string

	mu           sync.Mutex
	status       constant.JobStatus
	chunksFolder string
	mimeType     string
	ext          string
	chunks       []ChunkUpload
	uploaded     int
	failed       int
	totalBytes   int64

	blobs      blobstore.Store
	sessions   repository.SessionStore
	policy     retry.Policy
	linkRecord bool
}

func newUploadJob(sessionID, chunksFolder, mimeType string, blobs blobstore.Store, sessions repository.SessionStore, policy retry.Policy, linkRecord bool) *UploadJob {
	return &UploadJob{
		ID:           uuid.New(),
		SessionID:    sessionID,
		status:       constant.JobActive,
		chunksFolder: chunksFolder,
		mimeType:     mimeType,
		ext:          extFromMime(mimeType),
		blobs:        blobs,
		sessions:     sessions,
		policy:       policy,
		linkRecord:   linkRecord,
	}
}

// SubmitChunk uploads the next chunk in sequence. A zero-byte blob is
// rejected before any network call. An upload failure after retries is
// recorded and returned, but the job stays active: losing one chunk must not
// lose the session, the caller decides whether to keep recording.
func (j *UploadJob) SubmitChunk(ctx context.Context, blob []byte) (ChunkResult, error) {
	if len(blob) == 0 {
		return ChunkResult{}, ErrEmptyChunk
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.status != constant.JobActive {
		return ChunkResult{}, fmt.Errorf("%w: job is %s", ErrJobNotActive, j.status)
	}

	index := len(j.chunks)
	key := chunkKey(j.chunksFolder, index, j.ext)

	// retries target the same key; overwrite semantics make that idempotent
	locator, err := retry.Do(ctx, j.policy, func() (string, error) {
		return j.blobs.Put(ctx, key, blob, j.mimeType)
	})

	rec := ChunkUpload{Index: index, SizeBytes: int64(len(blob))}
	if err != nil {
		rec.Err = err
		j.chunks = append(j.chunks, rec)
		j.failed++
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("session_id", j.SessionID).
			Int("chunk_index", index).
			Msg("chunk upload failed, recording continues")
		return ChunkResult{ChunkIndex: index}, err
	}

	rec.Locator = locator
	j.chunks = append(j.chunks, rec)
	j.uploaded++
	j.totalBytes += rec.SizeBytes

	if j.linkRecord && j.sessions != nil {
		j.heartbeat(ctx)
	}

	return ChunkResult{ChunkIndex: index, SizeBytes: rec.SizeBytes, Locator: locator}, nil
}

// heartbeat writes running totals into the session record. Last-writer-wins
// fields only; failures are logged and swallowed. No percentage is written
/// here: capture is open-ended, so the total is unknown until Complete sets
// upload_progress_percent to 100.
func (j *UploadJob) heartbeat(ctx context.Context) {
	err := j.sessions.Update(ctx, j.SessionID, map[string]any{
		"file_size_bytes": j.totalBytes,
	})
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("session_id", j.SessionID).
			Msg("progress heartbeat failed")
	}
}

func (j *UploadJob) Progress() Progress {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Progress{ChunksUploaded: j.uploaded, ChunksFailed: j.failed, TotalBytes: j.totalBytes}
}

func (j *UploadJob) ChunksFolder() string {
	return j.chunksFolder
}

func (j *UploadJob) Status() constant.JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Cleanup deletes every chunk uploaded so far, tolerating individual
// failures. Used when a recording is abandoned; any chunk still uploading
// finishes first because the mutex serializes it.
func (j *UploadJob) Cleanup(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, c := range j.chunks {
		if c.Locator == "" {
			continue
		}
		if err := j.blobs.Delete(ctx, c.Locator); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).
				Str("session_id", j.SessionID).
				Int("chunk_index", c.Index).
				Msg("chunk cleanup failed, continuing")
		}
	}
}

// beginFinalize is the mutual-exclusion boundary for Complete: the first
// caller flips the job to finalizing, every concurrent one is rejected.
func (j *UploadJob) beginFinalize() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch j.status {
	case constant.JobActive:
		j.status = constant.JobFinalizing
		return nil
	case constant.JobFinalizing:
		return ErrAlreadyFinalizing
	default:
		return fmt.Errorf("%w: job is %s", ErrJobNotActive, j.status)
	}
}

func (j *UploadJob) finish(status constant.JobStatus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = status
}
