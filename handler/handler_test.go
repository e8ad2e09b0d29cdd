package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recording-uploader/constant"
	"recording-uploader/dto"
	"recording-uploader/entities"
	"recording-uploader/pkg/retry"
	"recording-uploader/repository"
	"recording-uploader/service"
)

type memBlob struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memBlob) Put(_ context.Context, path string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return path, nil
}

func (m *memBlob) Get(_ context.Context, path string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.objects[path], nil
}

func (m *memBlob) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memBlob) Exists(_ context.Context, path string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok, nil
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*entities.RecordingSession
}

func (m *memSessions) Read(_ context.Context, id string) (*entities.RecordingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, &repository.Error{Kind: repository.KindNotFound, SessionID: id}
	}
	cp := *sess
	return &cp, nil
}

func (m *memSessions) Update(context.Context, string, map[string]any) error {
	return nil
}

func (m *memSessions) Transact(_ context.Context, id string, fn func(*entities.RecordingSession) (map[string]any, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return &repository.Error{Kind: repository.KindNotFound, SessionID: id}
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
		sess.Status = next
	}
	if v, ok := fields["final_artifact_path"].(string); ok {
		sess.FinalArtifactPath = &v
	}
	if v, ok := fields["chunks_folder_path"].(string); ok {
		sess.ChunksFolderPath = &v
	}
	sess.Version++
	return nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memSessions) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	sessions := &memSessions{sessions: map[string]*entities.RecordingSession{
		"sess-1": {ID: "sess-1", OwnerUserID: "user-1", Status: constant.SessionReadyForRecording},
	}}
	coordinator := service.NewCoordinator(
		&memBlob{objects: make(map[string][]byte)},
		sessions,
		nil, // no external validator in tests
		nil,
		service.CoordinatorConfig{RetryPolicy: retry.Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}},
	)

	r := gin.New()
	New(coordinator).Register(r)
	return r, sessions
}

func do(r *gin.Engine, method, path string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRecordingLifecycleOverHTTP(t *testing.T) {
	r, sessions := newTestRouter(t)

	w := do(r, http.MethodPost, "/sessions/sess-1/recording/start", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var started dto.StartRecordingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &started))
	assert.Equal(t, "users/user-1/recordings/sess-1/chunks", started.ChunksFolderPath)

	w = do(r, http.MethodPost, "/sessions/sess-1/recording/chunks", []byte("some media bytes"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var chunk dto.ChunkResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &chunk))
	assert.Equal(t, 0, chunk.ChunkIndex)
	assert.EqualValues(t, 16, chunk.SizeBytes)

	w = do(r, http.MethodGet, "/sessions/sess-1/recording/progress", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var progress dto.ProgressResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &progress))
	assert.Equal(t, 1, progress.ChunksUploaded)

	w = do(r, http.MethodPost, "/sessions/sess-1/recording/complete", []byte("final recording bytes"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var completed dto.CompleteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &completed))
	assert.Equal(t, "users/user-1/recordings/sess-1/final/recording.webm", completed.FinalArtifactPath)

	sessions.mu.Lock()
	assert.Equal(t, constant.SessionReadyForTranscription, sessions.sessions["sess-1"].Status)
	sessions.mu.Unlock()
}

func TestSubmitChunk_EmptyBodyRejected(t *testing.T) {
	r, _ := newTestRouter(t)
	do(r, http.MethodPost, "/sessions/sess-1/recording/start", nil)

	w := do(r, http.MethodPost, "/sessions/sess-1/recording/chunks", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitChunk_NoActiveJob(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodPost, "/sessions/sess-1/recording/chunks", []byte("bytes"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStart_UnknownSession(t *testing.T) {
	r, _ := newTestRouter(t)
	w := do(r, http.MethodPost, "/sessions/nope/recording/start", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStart_Twice(t *testing.T) {
	r, _ := newTestRouter(t)
	do(r, http.MethodPost, "/sessions/sess-1/recording/start", nil)
	w := do(r, http.MethodPost, "/sessions/sess-1/recording/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancel(t *testing.T) {
	r, sessions := newTestRouter(t)
	do(r, http.MethodPost, "/sessions/sess-1/recording/start", nil)

	w := do(r, http.MethodDelete, "/sessions/sess-1/recording", nil)
	require.Equal(t, http.StatusOK, w.Code)

	sessions.mu.Lock()
	assert.Equal(t, constant.SessionFailed, sessions.sessions["sess-1"].Status)
	sessions.mu.Unlock()

	w = do(r, http.MethodDelete, "/sessions/sess-1/recording", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
