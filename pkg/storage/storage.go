// Package storage archives uploaded source files so a preview can be
// committed later from the exact bytes that were previewed.
package storage

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// FileInfo contains metadata about an archived file
type FileInfo struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Format    string    `json:"format"`
	Config    []byte    `json:"config,omitempty"` // free-form layout, JSON
	Size      int64     `json:"size"`
	Path      string    `json:"path"` // Internal storage path
	CreatedAt time.Time `json:"created_at"`
}

// Upload describes a file to archive.
type Upload struct {
	Name   string
	Format string
	Config []byte
}

// Storage defines the interface for file archive operations
type Storage interface {
	// Put stores a file and returns its metadata
	Put(ctx context.Context, userIdentity string, up Upload, r io.Reader) (*FileInfo, error)

	// Open returns a reader for a file and its metadata
	Open(ctx context.Context, userIdentity string, fileID uuid.UUID) (io.ReadCloser, *FileInfo, error)

	// List returns all files for a user, oldest first
	List(ctx context.Context, userIdentity string) ([]*FileInfo, error)

	// Delete removes a file by its ID
	Delete(ctx context.Context, userIdentity string, fileID uuid.UUID) error
}

// OwnerID derives a stable directory id from a user identity, which may be
// an e-mail address or any other free text.
func OwnerID(userIdentity string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("movement-ingest:"+userIdentity))
}
