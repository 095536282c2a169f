// Package docstore holds uploaded documentation files. Applications keep
// only the file IDs; the bytes live here.
package docstore

import (
	"context"
	"time"

	"certflow/pkg/domain"
)

// File is one uploaded document.
type File struct {
	ID          domain.FileID
	Name        string
	ContentType string
	Size        int64
	UploadedBy  domain.UserID
	UploadedAt  time.Time
	Data        []byte
}

// Clone returns a deep copy of the file.
func (f *File) Clone() *File {
	if f == nil {
		return nil
	}
	cp := *f
	cp.Data = append([]byte(nil), f.Data...)
	return &cp
}

// Store persists uploaded files.
type Store interface {
	Save(ctx context.Context, file *File) error
	Get(ctx context.Context, id domain.FileID) (*File, error)
	ListByIDs(ctx context.Context, ids []domain.FileID) ([]*File, error)
	Delete(ctx context.Context, id domain.FileID) error
}
