// Package testutil provides shared test doubles for cirunner.
package testutil

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/swap357/cirunner/internal/provider"
	"github.com/swap357/cirunner/pkg/types"
)

// Compile-time interface satisfaction check.
var _ provider.Provider = (*MockProvider)(nil)

// MockProvider is an in-memory Provider implementation for testing.
type MockProvider struct {
	mu  sync.Mutex
	doc types.StateDocument

	// LoadErr and SaveErr, when set, are returned by Load and Save.
	LoadErr error
	SaveErr error

	saves atomic.Int64
}

// NewMockProvider creates a mock provider holding a copy of initial.
func NewMockProvider(initial types.StateDocument) *MockProvider {
	doc := initial.Clone()
	if doc == nil {
		doc = types.StateDocument{}
	}
	return &MockProvider{doc: doc}
}

func (m *MockProvider) Load(_ context.Context) (types.StateDocument, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.doc.Clone(), nil
}

func (m *MockProvider) Save(_ context.Context, doc types.StateDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.doc = doc.Clone()
	m.saves.Add(1)
	return nil
}

func (m *MockProvider) Start(_ context.Context) error { return nil }
func (m *MockProvider) Stop(_ context.Context) error  { return nil }

// Record returns the stored record for key.
func (m *MockProvider) Record(key string) (types.StageRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.doc[key]
	return rec, ok
}

// Set stores a record directly, bypassing the save counter.
func (m *MockProvider) Set(key string, rec types.StageRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc[key] = rec
}

// Document returns a copy of the stored document.
func (m *MockProvider) Document() types.StateDocument {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}

// Saves returns how many times Save succeeded.
func (m *MockProvider) Saves() int64 {
	return m.saves.Load()
}
