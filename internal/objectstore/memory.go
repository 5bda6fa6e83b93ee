package objectstore

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memObject struct {
	obj  Object
	data []byte
}

// Memory is an in-process Store. Handles are random UUIDs and (folder, name)
// pairs are unique.
type Memory struct {
	mu      sync.RWMutex
	objects map[Handle]*memObject
	names   map[string]Handle // folder + "/" + name
	now     func() time.Time
}

// MemoryOption configures a Memory store.
type MemoryOption func(*Memory)

// WithClock sets the time source used for modification times.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory creates an empty in-memory store.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		objects: make(map[Handle]*memObject),
		names:   make(map[string]Handle),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func nameKey(folder, name string) string {
	return folder + "/" + name
}

// Insert reserves an empty object.
func (m *Memory) Insert(ctx context.Context, name, mimeType, folder string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if err := checkName(name); err != nil {
		return Object{}, err
	}
	if err := checkFolder(folder); err != nil {
		return Object{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := nameKey(folder, name)
	if _, taken := m.names[key]; taken {
		return Object{}, ErrExists.WithDetails(map[string]string{"folder": folder, "name": name})
	}

	obj := Object{
		Handle:   Handle(uuid.NewString()),
		Name:     name,
		Folder:   folder,
		MimeType: mimeType,
		ModTime:  m.now(),
	}
	m.objects[obj.Handle] = &memObject{obj: obj}
	m.names[key] = obj.Handle
	return obj, nil
}

// Query lists objects in folder matching pattern, sorted by name.
func (m *Memory) Query(ctx context.Context, folder, pattern string) ([]Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkFolder(folder); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var objects []Object
	for _, mo := range m.objects {
		if mo.obj.Folder != folder {
			continue
		}
		ok, err := matchName(pattern, mo.obj.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			objects = append(objects, mo.obj)
		}
	}
	sort.Slice(objects, func(i, j int) bool { return objects[i].Name < objects[j].Name })
	return objects, nil
}

// Stat returns the object for h.
func (m *Memory) Stat(ctx context.Context, h Handle) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	mo, ok := m.objects[h]
	if !ok {
		return Object{}, ErrNotFound.WithDetails(map[string]string{"handle": string(h)})
	}
	return mo.obj, nil
}

// OpenRead returns a reader over a snapshot of the content.
func (m *Memory) OpenRead(ctx context.Context, h Handle) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	mo, ok := m.objects[h]
	if !ok {
		return nil, ErrNotFound.WithDetails(map[string]string{"handle": string(h)})
	}
	return io.NopCloser(bytes.NewReader(mo.data)), nil
}

// OpenWrite buffers content and replaces the object data on Close.
func (m *Memory) OpenWrite(ctx context.Context, h Handle) (Writer, error) {
	if _, err := m.Stat(ctx, h); err != nil {
		return nil, err
	}
	return &memWriter{store: m, handle: h}, nil
}

// Delete removes the object.
func (m *Memory) Delete(ctx context.Context, h Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	mo, ok := m.objects[h]
	if !ok {
		return ErrNotFound.WithDetails(map[string]string{"handle": string(h)})
	}
	delete(m.objects, h)
	delete(m.names, nameKey(mo.obj.Folder, mo.obj.Name))
	return nil
}

// Len returns the number of stored objects.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

type memWriter struct {
	store  *Memory
	handle Handle
	buf    bytes.Buffer
	done   bool
}

func (w *memWriter) Write(p []byte) (int, error) {
	return w.buf.Write(p)
}

func (w *memWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true

	w.store.mu.Lock()
	defer w.store.mu.Unlock()

	mo, ok := w.store.objects[w.handle]
	if !ok {
		return ErrNotFound.WithDetails(map[string]string{"handle": string(w.handle)})
	}
	mo.data = bytes.Clone(w.buf.Bytes())
	mo.obj.Size = int64(len(mo.data))
	mo.obj.ModTime = w.store.now()
	return nil
}

func (w *memWriter) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}
