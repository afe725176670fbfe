// Package localstore persists the last good hospital tree and cached
// attachment bytes on the local machine.
package localstore

import (
	"context"
	"encoding/base64"
	"errors"

	"github.com/Hossein925/f-maharat/internal/domain"
)

// ErrMiss is returned when a file is not cached.
var ErrMiss = errors.New("localstore: miss")

// File is a cached attachment keyed by its public locator.
type File struct {
	Locator     string `json:"locator"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"data"`
}

// DataURL renders the file as a data: URL.
func (f File) DataURL() string {
	ct := f.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(f.Data)
}

// HospitalStore holds the hospital snapshot.
// ReplaceHospitals replaces the whole collection atomically.
type HospitalStore interface {
	ReplaceHospitals(ctx context.Context, hospitals []domain.Hospital) error
	LoadHospitals(ctx context.Context) ([]domain.Hospital, error)
}

// FileStore holds cached attachments.
//
// A tombstone marks a locator whose remote object could not be deleted. It
// is independent of the cached file and survives ClearFiles.
type FileStore interface {
	GetFile(ctx context.Context, locator string) (File, error)
	PutFile(ctx context.Context, file File) error
	DeleteFile(ctx context.Context, locator string) error
	ListFiles(ctx context.Context) ([]File, error)
	ClearFiles(ctx context.Context) error

	PutTombstone(ctx context.Context, locator string) error
	DeleteTombstone(ctx context.Context, locator string) error
	HasTombstone(ctx context.Context, locator string) (bool, error)
}

// Store is the full local persistent store.
type Store interface {
	HospitalStore
	FileStore
	Close() error
}
