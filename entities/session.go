package entities

import (
	"time"

	"recording-uploader/constant"
)

// RecordingSession is the shared session record. The external platform owns
// the row and the identity/prompt fields; this service only ever writes the
// recording subset (status, recording data, storage paths, error) and bumps
// Version on every transactional write.
//
// The session id embeds prompt/owner/storyteller parts for routing and
// debugging. It is treated as opaque here and never parsed for authorization;
// the owner used for storage paths comes from OwnerUserID on the row.
type RecordingSession struct {
	ID              string                 `json:"id" gorm:"type:varchar(255);primary_key"`
	OwnerUserID     string                 `json:"owner_user_id" gorm:"type:varchar(255);not null;index:idx_recording_sessions_owner"`
	PromptText      string                 `json:"prompt_text" gorm:"type:text"`
	StorytellerName string                 `json:"storyteller_name" gorm:"type:varchar(255)"`
	Status          constant.SessionStatus `json:"status" gorm:"type:varchar(32);not null;default:'READY_FOR_RECORDING';index:idx_recording_sessions_status"`

	DurationSeconds       *int    `json:"duration_seconds" gorm:"type:integer"`
	FileSizeBytes         *int64  `json:"file_size_bytes" gorm:"type:bigint"`
	MimeType              *string `json:"mime_type" gorm:"type:varchar(100)"`
	UploadProgressPercent int     `json:"upload_progress_percent" gorm:"type:integer;not null;default:0"`

	FinalArtifactPath *string `json:"final_artifact_path" gorm:"type:varchar(500)"`
	ChunksFolderPath  *string `json:"chunks_folder_path" gorm:"type:varchar(500)"`

	ErrorMessage *string    `json:"error_message" gorm:"type:text"`
	ErrorAt      *time.Time `json:"error_at" gorm:"type:timestamptz"`

	RecordingStartedAt   *time.Time `json:"recording_started_at" gorm:"type:timestamptz"`
	RecordingCompletedAt *time.Time `json:"recording_completed_at" gorm:"type:timestamptz"`

	Version   int64      `json:"version" gorm:"type:bigint;not null;default:0"`
	CreatedAt time.Time  `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	ExpiresAt *time.Time `json:"expires_at" gorm:"type:timestamptz"`
	UpdatedAt time.Time  `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (RecordingSession) TableName() string {
	return "recording_sessions"
}
