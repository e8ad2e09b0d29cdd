package dto

import (
	"time"

	"github.com/google/uuid"
)

type StartRecordingRequest struct {
	MimeType string `json:"mimeType"`
}

type StartRecordingResponse struct {
	JobId            uuid.UUID `json:"jobId"`
	SessionId        string    `json:"sessionId"`
	Status           string    `json:"status"`
	ChunksFolderPath string    `json:"chunksFolderPath"`
}

type ChunkResponse struct {
	ChunkIndex int    `json:"chunkIndex"`
	SizeBytes  int64  `json:"sizeBytes"`
	Locator    string `json:"locator"`
}

type ProgressResponse struct {
	SessionId      string `json:"sessionId"`
	Status         string `json:"status"`
	ChunksUploaded int    `json:"chunksUploaded"`
	ChunksFailed   int    `json:"chunksFailed"`
	TotalBytes     int64  `json:"totalBytes"`
}

type CompleteResponse struct {
	SessionId         string `json:"sessionId"`
	Status            string `json:"status"`
	FinalArtifactPath string `json:"finalArtifactPath"`
}

// RecordingReadyEvent is the best-effort completion nudge published after the
// atomic session write commits. The write itself stays the signal of record.
type RecordingReadyEvent struct {
	SessionId         string    `json:"sessionId"`
	OwnerUserId       string    `json:"ownerUserId"`
	FinalArtifactPath string    `json:"finalArtifactPath"`
	FileSizeBytes     int64     `json:"fileSizeBytes"`
	CompletedAt       time.Time `json:"completedAt"`
}
