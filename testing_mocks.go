package opqueue

import (
	"context"
	"sync"
)

// Mock types for testing

// mockStore is an in-memory OperationStore with scriptable failures.
type mockStore struct {
	mu        sync.Mutex
	pending   []Operation
	failed    []Operation
	saveErr   error
	loadErr   error
	saveCalls int
}

func (m *mockStore) Save(ctx context.Context, pending, failed []Operation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.pending = append([]Operation(nil), pending...)
	m.failed = append([]Operation(nil), failed...)
	return nil
}

func (m *mockStore) Load(ctx context.Context) ([]Operation, []Operation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loadErr != nil {
		return nil, nil, m.loadErr
	}
	return append([]Operation(nil), m.pending...), append([]Operation(nil), m.failed...), nil
}

func (m *mockStore) Close() error { return nil }

// mockMonitor is a hand-driven connectivity signal.
type mockMonitor struct {
	mu       sync.Mutex
	online   bool
	handlers []func(bool)
}

func newMockMonitor(online bool) *mockMonitor {
	return &mockMonitor{online: online}
}

func (m *mockMonitor) IsReachable() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *mockMonitor) Subscribe(handler func(reachable bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, handler)
}

func (m *mockMonitor) set(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	handlers := make([]func(bool), len(m.handlers))
	copy(handlers, m.handlers)
	m.mu.Unlock()

	for _, h := range handlers {
		h(online)
	}
}
