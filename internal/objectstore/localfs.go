package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"syscall"

	"github.com/scanshelf/scanshelf/internal/id"
	"github.com/scanshelf/scanshelf/internal/logger"
)

// LocalFS stores objects as files under <root>/<folder>/<name>.
// The handle of an object is its slash-separated path relative to the root.
type LocalFS struct {
	root   string
	logger *slog.Logger
}

// NewLocalFS creates a LocalFS rooted at root, creating the directory if needed.
func NewLocalFS(root string, log *slog.Logger) (*LocalFS, error) {
	if root == "" {
		return nil, fmt.Errorf("media root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve media root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create media root: %w", err)
	}
	return &LocalFS{root: abs, logger: logger.OrDiscard(log)}, nil
}

// Root returns the absolute root directory.
func (l *LocalFS) Root() string {
	return l.root
}

// Insert creates an empty file with O_EXCL, so a name taken by anyone else
// fails with ErrExists.
func (l *LocalFS) Insert(ctx context.Context, name, mimeType, folder string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if err := checkName(name); err != nil {
		return Object{}, err
	}
	if err := checkFolder(folder); err != nil {
		return Object{}, err
	}

	dir := filepath.Join(l.root, filepath.FromSlash(folder))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Object{}, ErrUnavailable.WithCause(err)
	}

	p := filepath.Join(dir, name)
	f, err := os.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //#nosec G304 -- name is validated
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Object{}, ErrExists.WithDetails(map[string]string{"folder": folder, "name": name})
		}
		return Object{}, ErrUnavailable.WithCause(err)
	}
	if err := f.Close(); err != nil {
		return Object{}, ErrUnavailable.WithCause(err)
	}

	obj, err := l.stat(Handle(path.Join(folder, name)))
	if err != nil {
		return Object{}, err
	}
	if mimeType != "" {
		obj.MimeType = mimeType
	}
	return obj, nil
}

// Query lists regular, non-hidden files in folder. A missing folder is empty.
func (l *LocalFS) Query(ctx context.Context, folder, pattern string) ([]Object, error) {
	if err := checkFolder(folder); err != nil {
		return nil, err
	}

	dir := filepath.Join(l.root, filepath.FromSlash(folder))
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, ErrUnavailable.WithCause(err)
	}

	var objects []Object
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.HasPrefix(e.Name(), ".") || !e.Type().IsRegular() {
			continue
		}
		ok, err := matchName(pattern, e.Name())
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		objects = append(objects, Object{
			Handle:   Handle(path.Join(folder, e.Name())),
			Name:     e.Name(),
			Folder:   folder,
			MimeType: mime.TypeByExtension(path.Ext(e.Name())),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// Stat returns the object for h.
func (l *LocalFS) Stat(ctx context.Context, h Handle) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	return l.stat(h)
}

// OpenRead opens the object content.
func (l *LocalFS) OpenRead(ctx context.Context, h Handle) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, _, _, err := l.resolve(h)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p) //#nosec G304 -- path is resolved under root
	if err != nil {
		return nil, mapFSError(h, err)
	}
	return f, nil
}

// OpenWrite returns a writer that stages content in a hidden temp file next to
// the object and renames it into place on Close.
func (l *LocalFS) OpenWrite(ctx context.Context, h Handle) (Writer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, _, _, err := l.resolve(h)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(p); err != nil {
		return nil, mapFSError(h, err)
	}

	tmpName, err := id.TempName()
	if err != nil {
		return nil, ErrUnavailable.WithCause(err)
	}
	tmpPath := filepath.Join(filepath.Dir(p), tmpName)
	f, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644) //#nosec G304 -- generated name
	if err != nil {
		return nil, ErrUnavailable.WithCause(err)
	}
	return &fileWriter{f: f, tmpPath: tmpPath, target: p, handle: h, logger: l.logger}, nil
}

// Delete removes the object.
func (l *LocalFS) Delete(ctx context.Context, h Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, _, _, err := l.resolve(h)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		return mapFSError(h, err)
	}
	return nil
}

func (l *LocalFS) stat(h Handle) (Object, error) {
	p, folder, name, err := l.resolve(h)
	if err != nil {
		return Object{}, err
	}
	info, err := os.Stat(p)
	if err != nil {
		return Object{}, mapFSError(h, err)
	}
	if !info.Mode().IsRegular() {
		return Object{}, ErrNotFound.WithDetails(map[string]string{"handle": string(h)})
	}
	return Object{
		Handle:   h,
		Name:     name,
		Folder:   folder,
		MimeType: mime.TypeByExtension(path.Ext(name)),
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}, nil
}

// resolve maps a handle to its absolute path, rejecting anything outside the root.
func (l *LocalFS) resolve(h Handle) (abs, folder, name string, err error) {
	s := string(h)
	i := strings.LastIndexByte(s, '/')
	if i <= 0 {
		return "", "", "", ErrNotFound.WithDetails(map[string]string{"handle": s})
	}
	folder, name = s[:i], s[i+1:]
	if checkFolder(folder) != nil || checkName(name) != nil {
		return "", "", "", ErrNotFound.WithDetails(map[string]string{"handle": s})
	}
	return filepath.Join(l.root, filepath.FromSlash(folder), name), folder, name, nil
}

func mapFSError(h Handle, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound.WithDetails(map[string]string{"handle": string(h)})
	}
	return ErrUnavailable.WithCause(err)
}

type fileWriter struct {
	f       *os.File
	tmpPath string
	target  string
	handle  Handle
	logger  *slog.Logger
	done    bool
}

func (w *fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, ErrUnavailable.WithCause(err)
	}
	return n, nil
}

func (w *fileWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	if err := w.f.Sync(); err != nil {
		w.discard()
		return ErrUnavailable.WithCause(err)
	}
	if err := w.f.Close(); err != nil {
		w.discard()
		return ErrUnavailable.WithCause(err)
	}
	// The object may have been deleted while we were writing.
	if _, err := os.Stat(w.target); err != nil {
		w.discard()
		return mapFSError(w.handle, err)
	}
	if err := os.Rename(w.tmpPath, w.target); err != nil {
		w.discard()
		return ErrUnavailable.WithCause(err)
	}
	if err := syncDir(filepath.Dir(w.target)); err != nil {
		w.logger.Warn("directory sync failed", "dir", filepath.Dir(w.target), "error", err)
	}
	return nil
}

func (w *fileWriter) Abort() error {
	if w.done {
		return nil
	}
	w.done = true
	_ = w.f.Close()
	return w.discard()
}

func (w *fileWriter) discard() error {
	if err := os.Remove(w.tmpPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn("failed to remove temp file", "path", w.tmpPath, "error", err)
		return err
	}
	return nil
}

// syncDir fsyncs a directory so a rename becomes durable. Filesystems that do
// not support directory sync are ignored.
func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	df, err := os.Open(dir) //#nosec G304 -- directory under root
	if err != nil {
		return err
	}
	defer df.Close()
	if err := df.Sync(); err != nil {
		if errors.Is(err, syscall.EINVAL) {
			return nil
		}
		return err
	}
	return nil
}
