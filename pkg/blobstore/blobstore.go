package blobstore

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
)

// Store puts, gets and deletes opaque byte objects at hierarchical paths.
// Put returns the locator callers record in the session document; for the
// MinIO-backed client that is the object key itself.
type Store interface {
	Put(ctx context.Context, path string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

type Client struct {
	mc      *minio.Client
	bucket  string
	timeout time.Duration
}

func NewClient(mc *minio.Client, bucket string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{mc: mc, bucket: bucket, timeout: timeout}
}

func (c *Client) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// Put overwrites any existing object at path; there is no implicit
// versioning, which is what makes chunk retries to the same path safe.
func (c *Client) Put(ctx context.Context, path string, data []byte, contentType string) (string, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	_, err := c.mc.PutObject(ctx, c.bucket, path, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", wrap("put", path, err)
	}
	return path, nil
}

func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	obj, err := c.mc.GetObject(ctx, c.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, wrap("get", path, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, wrap("get", path, err)
	}
	return data, nil
}

// Delete treats a missing object as already clean.
func (c *Client) Delete(ctx context.Context, path string) error {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	err := c.mc.RemoveObject(ctx, c.bucket, path, minio.RemoveObjectOptions{})
	if err != nil {
		if classify(err) == KindNotFound {
			return nil
		}
		return wrap("delete", path, err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()

	_, err := c.mc.StatObject(ctx, c.bucket, path, minio.StatObjectOptions{})
	if err != nil {
		if classify(err) == KindNotFound {
			return false, nil
		}
		return false, wrap("stat", path, err)
	}
	return true, nil
}
