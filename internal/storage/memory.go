package storage

import (
	"context"
	"slices"
	"sync"

	"github.com/dmitrijs2005/bloodlink/internal/cryptox"
)

// MemoryBackend keeps objects in a map. It backs tests and offline runs.
type MemoryBackend struct {
	mu      sync.Mutex
	prefix  string
	objects map[string][]byte
	types   map[string]string
	digests map[string]string
}

func NewMemoryBackend(prefix string) *MemoryBackend {
	return &MemoryBackend{
		prefix:  prefix,
		objects: map[string][]byte{},
		types:   map[string]string{},
		digests: map[string]string{},
	}
}

func (m *MemoryBackend) Put(ctx context.Context, path string, blob []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = slices.Clone(blob)
	m.types[path] = contentType
	m.digests[path] = cryptox.ContentDigest(blob)
	return nil
}

func (m *MemoryBackend) Locator(path string) string {
	return m.prefix + path
}

func (m *MemoryBackend) Delete(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range paths {
		delete(m.objects, p)
		delete(m.types, p)
		delete(m.digests, p)
	}
	return nil
}

// Has reports whether path is stored.
func (m *MemoryBackend) Has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

// Paths returns the stored paths, sorted.
func (m *MemoryBackend) Paths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.objects))
	for p := range m.objects {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// ContentType returns the stored content type of path.
func (m *MemoryBackend) ContentType(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.types[path]
}

// Intact reports whether the bytes stored at path still match the digest
// recorded when they were written.
func (m *MemoryBackend) Intact(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.objects[path]
	if !ok {
		return false
	}
	return cryptox.VerifyDigest(blob, m.digests[path])
}
