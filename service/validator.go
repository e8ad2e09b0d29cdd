package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type ValidationStatus string

const (
	ValidationValid     ValidationStatus = "valid"
	ValidationExpired   ValidationStatus = "expired"
	ValidationRemoved   ValidationStatus = "removed"
	ValidationCompleted ValidationStatus = "completed"
	ValidationInvalid   ValidationStatus = "invalid"
)

type ValidationResult struct {
	Status ValidationStatus `json:"status"`
}

// SessionValidator is the external session-validation lookup. Recording only
// starts on ValidationValid.
type SessionValidator interface {
	Validate(ctx context.Context, sessionID string) (ValidationResult, error)
}

// HTTPValidator is thin glue around the platform's validation endpoint.
type HTTPValidator struct {
	baseURL string
	client  *http.Client
}

func NewHTTPValidator(baseURL string, timeout time.Duration) *HTTPValidator {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &HTTPValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (v *HTTPValidator) Validate(ctx context.Context, sessionID string) (ValidationResult, error) {
	url := fmt.Sprintf("%s/sessions/%s/validate", v.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ValidationResult{}, err
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return ValidationResult{}, fmt.Errorf("session validation request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ValidationResult{}, fmt.Errorf("session validation returned %d", resp.StatusCode)
	}

	var result ValidationResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return ValidationResult{}, fmt.Errorf("decoding validation response: %w", err)
	}
	return result, nil
}
