// Package objectstore defines the media store the naming engine writes to, with a
// local filesystem backend and an in-memory backend.
//
// Objects live in flat folders and are addressed by an opaque Handle. A (folder, name)
// pair is unique: Insert fails with ErrExists when the name is taken, which is the
// only collision signal the allocator relies on.
package objectstore

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	domainerrors "github.com/scanshelf/scanshelf/internal/errors"
)

// Sentinel errors. They are domain errors, so errors.Is also matches any error
// carrying the same code.
var (
	ErrExists      = domainerrors.AlreadyExists("object already exists")
	ErrNotFound    = domainerrors.NotFound("object not found")
	ErrUnavailable = domainerrors.Unavailable("object store unavailable")
	ErrInvalidName = domainerrors.Validation("invalid object name")
)

// Handle identifies a stored object.
type Handle string

// Object describes a stored media asset.
type Object struct {
	Handle   Handle    `json:"handle"`
	Name     string    `json:"name"`
	Folder   string    `json:"folder"`
	MimeType string    `json:"mime_type,omitempty"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

// Writer receives object content. Close commits it; Abort discards it.
type Writer interface {
	io.WriteCloser
	Abort() error
}

// Store is the narrow interface the naming engine needs.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Insert reserves an empty object; ErrExists if (folder, name) is taken.
	Insert(ctx context.Context, name, mimeType, folder string) (Object, error)
	// Query lists objects in folder whose name matches a path.Match pattern.
	// An empty pattern matches everything. Results are sorted by name.
	Query(ctx context.Context, folder, pattern string) ([]Object, error)
	Stat(ctx context.Context, h Handle) (Object, error)
	OpenRead(ctx context.Context, h Handle) (io.ReadCloser, error)
	OpenWrite(ctx context.Context, h Handle) (Writer, error)
	Delete(ctx context.Context, h Handle) error
}

// EscapeGlob quotes the path.Match metacharacters in s.
func EscapeGlob(s string) string {
	if !strings.ContainsAny(s, `*?[]\`) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Copy streams the content of src into dst and commits it.
func Copy(ctx context.Context, s Store, src, dst Handle) (int64, error) {
	r, err := s.OpenRead(ctx, src)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	w, err := s.OpenWrite(ctx, dst)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Abort()
		return n, ErrUnavailable.WithCause(fmt.Errorf("copy %s: %w", src, err))
	}
	if err := w.Close(); err != nil {
		return n, err
	}
	return n, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.HasPrefix(name, ".") ||
		strings.ContainsAny(name, `/\`) {
		return ErrInvalidName.WithDetails(map[string]string{"name": name})
	}
	return nil
}

func checkFolder(folder string) error {
	if folder == "" || path.IsAbs(folder) || strings.Contains(folder, `\`) {
		return ErrInvalidName.WithDetails(map[string]string{"folder": folder})
	}
	clean := path.Clean(folder)
	if clean != folder || clean == ".." || strings.HasPrefix(clean, "../") {
		return ErrInvalidName.WithDetails(map[string]string{"folder": folder})
	}
	return nil
}

func matchName(pattern, name string) (bool, error) {
	if pattern == "" {
		return true, nil
	}
	ok, err := path.Match(pattern, name)
	if err != nil {
		return false, domainerrors.Validationf("bad query pattern %q", pattern).WithCause(err)
	}
	return ok, nil
}
