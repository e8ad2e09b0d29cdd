package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"recording-uploader/constant"
	"recording-uploader/dto"
	"recording-uploader/entities"
	"recording-uploader/pkg/blobstore"
	"recording-uploader/repository"
)

type fakeBlob struct {
	mu       sync.Mutex
	objects  map[string][]byte
	putErrs  map[string][]error
	delErrs  map[string][]error
	putCalls int
	delCalls int
}

func newFakeBlob() *fakeBlob {
	return &fakeBlob{
		objects: make(map[string][]byte),
		putErrs: make(map[string][]error),
		delErrs: make(map[string][]error),
	}
}

func (f *fakeBlob) scriptPutErr(path string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putErrs[path] = append(f.putErrs[path], errs...)
}

func (f *fakeBlob) scriptDelErr(path string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delErrs[path] = append(f.delErrs[path], errs...)
}

func (f *fakeBlob) Put(_ context.Context, path string, data []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls++
	if errs := f.putErrs[path]; len(errs) > 0 {
		err := errs[0]
		f.putErrs[path] = errs[1:]
		return "", err
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.objects[path] = cp
	return path, nil
}

func (f *fakeBlob) Get(_ context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[path]
	if !ok {
		return nil, &blobstore.Error{Kind: blobstore.KindNotFound, Op: "get", Path: path, Err: errors.New("missing")}
	}
	return data, nil
}

func (f *fakeBlob) Delete(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delCalls++
	if errs := f.delErrs[path]; len(errs) > 0 {
		err := errs[0]
		f.delErrs[path] = errs[1:]
		return err
	}
	delete(f.objects, path)
	return nil
}

func (f *fakeBlob) Exists(_ context.Context, path string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[path]
	return ok, nil
}

func (f *fakeBlob) object(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[path]
	return data, ok
}

func (f *fakeBlob) puts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.putCalls
}

func netErr(path string) error {
	return &blobstore.Error{Kind: blobstore.KindNetwork, Op: "put", Path: path, Err: errors.New("connection reset")}
}

func authErr(path string) error {
	return &blobstore.Error{Kind: blobstore.KindUnauthorized, Op: "put", Path: path, Err: errors.New("access denied")}
}

// fakeSessions mimics the record store: fresh reads, transition checks and a
// version bump per transactional write.
type fakeSessions struct {
	mu          sync.Mutex
	sessions    map[string]*entities.RecordingSession
	updates     []map[string]any
	transactErr error
	updateErr   error
}

func newFakeSessions(sess ...*entities.RecordingSession) *fakeSessions {
	f := &fakeSessions{sessions: make(map[string]*entities.RecordingSession)}
	for _, s := range sess {
		f.sessions[s.ID] = s
	}
	return f
}

func (f *fakeSessions) Read(_ context.Context, sessionID string) (*entities.RecordingSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess, ok := f.sessions[sessionID]
	if !ok {
		return nil, &repository.Error{Kind: repository.KindNotFound, SessionID: sessionID}
	}
	cp := *sess
	return &cp, nil
}

func (f *fakeSessions) Update(_ context.Context, sessionID string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	sess, ok := f.sessions[sessionID]
	if !ok {
		return &repository.Error{Kind: repository.KindNotFound, SessionID: sessionID}
	}
	f.updates = append(f.updates, fields)
	applyFields(sess, fields)
	return nil
}

func (f *fakeSessions) Transact(_ context.Context, sessionID string, fn func(*entities.RecordingSession) (map[string]any, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transactErr != nil {
		return f.transactErr
	}
	sess, ok := f.sessions[sessionID]
	if !ok {
		return &repository.Error{Kind: repository.KindNotFound, SessionID: sessionID}
	}
	cp := *sess
	fields, err := fn(&cp)
	if err != nil {
		return err
	}
	if raw, ok := fields["status"]; ok {
		next, _ := raw.(constant.SessionStatus)
		if err := constant.ValidateTransition(sess.Status, next); err != nil {
			return err
		}
	}
	applyFields(sess, fields)
	sess.Version++
	return nil
}

func (f *fakeSessions) get(sessionID string) *entities.RecordingSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := f.sessions[sessionID]
	cp := *sess
	return &cp
}

func (f *fakeSessions) setStatus(sessionID string, status constant.SessionStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[sessionID].Status = status
}

func (f *fakeSessions) remove(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
}

func applyFields(sess *entities.RecordingSession, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "status":
			if s, ok := v.(constant.SessionStatus); ok {
				sess.Status = s
			}
		case "duration_seconds":
			if n, ok := v.(int); ok {
				sess.DurationSeconds = &n
			}
		case "file_size_bytes":
			if n, ok := v.(int64); ok {
				sess.FileSizeBytes = &n
			}
		case "mime_type":
			if s, ok := v.(string); ok {
				sess.MimeType = &s
			}
		case "upload_progress_percent":
			if n, ok := v.(int); ok {
				sess.UploadProgressPercent = n
			}
		case "final_artifact_path":
			if s, ok := v.(string); ok {
				sess.FinalArtifactPath = &s
			}
		case "chunks_folder_path":
			if s, ok := v.(string); ok {
				sess.ChunksFolderPath = &s
			}
		case "recording_started_at":
			if ts, ok := v.(time.Time); ok {
				sess.RecordingStartedAt = &ts
			}
		case "recording_completed_at":
			if ts, ok := v.(time.Time); ok {
				sess.RecordingCompletedAt = &ts
			}
		case "error_message":
			if v == nil {
				sess.ErrorMessage = nil
			} else if s, ok := v.(string); ok {
				sess.ErrorMessage = &s
			}
		case "error_at":
			if v == nil {
				sess.ErrorAt = nil
			} else if ts, ok := v.(time.Time); ok {
				sess.ErrorAt = &ts
			}
		}
	}
}

type fakeValidator struct {
	status ValidationStatus
	err    error
}

func (f *fakeValidator) Validate(context.Context, string) (ValidationResult, error) {
	if f.err != nil {
		return ValidationResult{}, f.err
	}
	return ValidationResult{Status: f.status}, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []dto.RecordingReadyEvent
}

func (f *fakePublisher) PublishRecordingReady(_ context.Context, evt dto.RecordingReadyEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return nil
}
