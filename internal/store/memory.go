package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps values in process. Used by tests and ephemeral sessions.
type MemoryBackend struct {
	mu       sync.Mutex
	values   map[string][]byte
	watchers map[string][]chan []byte
	fail     error
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		values:   make(map[string][]byte),
		watchers: make(map[string][]chan []byte),
	}
}

// FailWith makes every Load and Save return err until called with nil.
func (m *MemoryBackend) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = err
}

func (m *MemoryBackend) Load(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return nil, false, m.fail
	}
	v, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryBackend) Save(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.values[key] = append([]byte(nil), value...)

	// watchers are closed under mu, so sends must hold it too
	for _, ch := range m.watchers[key] {
		select {
		case ch <- append([]byte(nil), value...):
		default:
		}
	}
	return nil
}

func (m *MemoryBackend) Watch(ctx context.Context, key string) (<-chan []byte, error) {
	ch := make(chan []byte, 8)

	m.mu.Lock()
	m.watchers[key] = append(m.watchers[key], ch)
	m.mu.Unlock()

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		list := m.watchers[key]
		for i, c := range list {
			if c == ch {
				m.watchers[key] = append(list[:i], list[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Close() error { return nil }
