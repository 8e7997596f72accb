package blob

import (
	"context"
	"sync"
)

// Memory is an in-memory Storage for hosts and tests.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]File

	// FailWrites makes every Write return an error, used to exercise
	// compensating rollback paths in tests.
	FailWrites error
}

// NewMemory creates an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{blobs: map[string]File{}}
}

// Read implements Storage.
func (m *Memory) Read(ctx context.Context, uuid string) (File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.blobs[uuid]
	if !ok {
		return File{}, errBlobNotFound(uuid)
	}
	return File{Name: f.Name, Mimetype: f.Mimetype, Content: append([]byte(nil), f.Content...)}, nil
}

// Write implements Storage.
func (m *Memory) Write(ctx context.Context, uuid string, f File, opts WriteOpts) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites != nil {
		return m.FailWrites
	}
	if f.Mimetype == "" {
		f.Mimetype = opts.Mimetype
	}
	if f.Name == "" {
		f.Name = opts.Title
	}
	m.blobs[uuid] = File{Name: f.Name, Mimetype: f.Mimetype, Content: append([]byte(nil), f.Content...)}
	return nil
}

// Delete implements Storage.
func (m *Memory) Delete(ctx context.Context, uuid string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[uuid]; !ok {
		return errBlobNotFound(uuid)
	}
	delete(m.blobs, uuid)
	return nil
}

// Len reports the number of stored blobs.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}
