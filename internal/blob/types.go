// Package blob abstracts the object store holding uploaded attachments.
package blob

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// Driver identifies a backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// ErrNotFound is returned by Get and Head for a missing key.
var ErrNotFound = errors.New("blob: not found")

// PutOptions are optional parameters of Put.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored object.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"sizeBytes"`
	ContentType  string            `json:"contentType"`
	ETag         string            `json:"etag"`
	Metadata     map[string]string `json:"metadata"`
	LastModified time.Time         `json:"lastModified"`
}

// Store is a flat key/value object store. Put overwrites an existing key.
// URL returns the public locator for key; it needs no round trip.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	Delete(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	URL(key string) string
	Driver() Driver
}

// KeyFromURL reverses s.URL. ok is false when locator does not belong to s.
func KeyFromURL(s Store, locator string) (key string, ok bool) {
	base := s.URL("")
	if !strings.HasPrefix(locator, base) {
		return "", false
	}
	key = strings.TrimPrefix(locator, base)
	return key, key != ""
}

func joinURL(base, key string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(key, "/")
}

func cloneMetadata(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
