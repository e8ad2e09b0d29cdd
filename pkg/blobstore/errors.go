package blobstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/minio/minio-go/v7"
)

type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindQuotaExceeded
	KindUnauthorized
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindUnauthorized:
		return "unauthorized"
	case KindNetwork:
		return "network"
	default:
		return "unknown"
	}
}

// Error is the closed failure variant produced at the blob store boundary.
// Downstream code branches on Kind, never on provider error strings.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("blobstore: %s %s: %s: %v", e.Op, e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindUnknown
}

func wrap(op, path string, err error) error {
	return &Error{Kind: classify(err), Op: op, Path: path, Err: err}
}

func classify(err error) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	switch resp := minio.ToErrorResponse(err); resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		return KindNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return KindUnauthorized
	case "QuotaExceeded", "EntityTooLarge":
		return KindQuotaExceeded
	case "SlowDown", "RequestTimeout":
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return KindNetwork
	}

	return KindUnknown
}

// IsNotFound reports whether err is a blob store miss.
func IsNotFound(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindNotFound
}
