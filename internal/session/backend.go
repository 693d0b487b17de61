package session

import "sync"

// Backend is the persistence layer below the credential store. The dashboard
// frontend kept these values in per-tab session storage; a CLI or a native
// client supplies a file (or in-memory) implementation instead, without the
// session logic knowing the difference.
type Backend interface {
	Get(key string) (string, bool)
	Set(key, value string) error
	Delete(key string) error
}

// MemoryBackend keeps values in a plain map. It is the fallback used when no
// durable storage is available, and the default for tests.
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values: make(map[string]string),
	}
}

func (b *MemoryBackend) Get(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	val, ok := b.values[key]
	return val, ok
}

func (b *MemoryBackend) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}

func (b *MemoryBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
	return nil
}
