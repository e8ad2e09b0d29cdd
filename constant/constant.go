package constant

import "fmt"

type SessionStatus string

const (
	SessionReadyForRecording     SessionStatus = "READY_FOR_RECORDING"
	SessionRecording             SessionStatus = "RECORDING"
	SessionUploading             SessionStatus = "UPLOADING"
	SessionReadyForTranscription SessionStatus = "READY_FOR_TRANSCRIPTION"
	SessionTranscribed           SessionStatus = "TRANSCRIBED"
	SessionFailed                SessionStatus = "FAILED"
)

func (s SessionStatus) String() string {
	return string(s)
}

// transitions is the single source of truth for the recording session
// lifecycle. Both the completion transaction and direct status updates
// consult it; a requested status not listed under the current one fails
// with a TransitionError.
var transitions = map[SessionStatus][]SessionStatus{
	SessionReadyForRecording:     {SessionRecording},
	SessionRecording:             {SessionUploading, SessionReadyForTranscription, SessionFailed},
	SessionUploading:             {SessionReadyForTranscription, SessionFailed},
	SessionReadyForTranscription: {SessionTranscribed, SessionFailed},
	SessionTranscribed:           nil,
	SessionFailed:                {SessionReadyForRecording},
}

func AllowedTransitions(from SessionStatus) []SessionStatus {
	allowed := transitions[from]
	out := make([]SessionStatus, len(allowed))
	copy(out, allowed)
	return out
}

func CanTransition(from, to SessionStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionError reports a status change the lifecycle table does not allow.
type TransitionError struct {
	Current   SessionStatus
	Requested SessionStatus
	Allowed   []SessionStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s (allowed: %v)", e.Current, e.Requested, e.Allowed)
}

func ValidateTransition(from, to SessionStatus) error {
	if !CanTransition(from, to) {
		return &TransitionError{Current: from, Requested: to, Allowed: AllowedTransitions(from)}
	}
	return nil
}

type JobStatus string

const (
	JobActive     JobStatus = "ACTIVE"
	JobFinalizing JobStatus = "FINALIZING"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
	JobCancelled  JobStatus = "CANCELLED"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
