package service

import (
	"fmt"
	"strings"
)

// Storage layout agreed with the external platform. The paths are a wire
// contract: the transcription side resolves recordings by these exact shapes.
//
//	users/{ownerUserId}/recordings/{sessionId}/final/recording.<ext>
//	users/{ownerUserId}/recordings/{sessionId}/chunks/chunk_{index}.<ext>

func sessionFolder(ownerUserID, sessionID string) string {
	return fmt.Sprintf("users/%s/recordings/%s", ownerUserID, sessionID)
}

func chunksFolder(ownerUserID, sessionID string) string {
	return sessionFolder(ownerUserID, sessionID) + "/chunks"
}

func chunkKey(folder string, index int, ext string) string {
	return fmt.Sprintf("%s/chunk_%d.%s", folder, index, ext)
}

func finalKey(ownerUserID, sessionID, ext string) string {
	return fmt.Sprintf("%s/final/recording.%s", sessionFolder(ownerUserID, sessionID), ext)
}

// extFromMime maps a capture mime type to the storage extension. Browser
// recorders report parameters like ";codecs=opus" which are irrelevant here.
func extFromMime(mimeType string) string {
	base := mimeType
	if i := strings.IndexByte(base, ';'); i >= 0 {
		base = base[:i]
	}
	base = strings.TrimSpace(strings.ToLower(base))

	switch base {
	case "video/mp4":
		return "mp4"
	case "audio/mp4", "audio/m4a":
		return "m4a"
	case "audio/mpeg", "audio/mp3":
		return "mp3"
	case "audio/ogg", "video/ogg":
		return "ogg"
	case "audio/wav", "audio/x-wav":
		return "wav"
	default:
		// browser MediaRecorder default
		return "webm"
	}
}
