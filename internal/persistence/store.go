package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Keys of the documents the engines persist
const (
	KeyPageContext         = "ai-page-context"
	KeySuggestionHistory   = "ai-suggestions-history"
	KeySuggestionCooldowns = "ai-suggestions-cooldowns"
	KeyAutomationRules     = "ai-automation-rules"
)

// ErrNotFound is returned by Load when nothing is stored under the key
var ErrNotFound = errors.New("document not found")

// Store is the save/load capability the engines persist through.
// Implementations must be safe for concurrent use.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// LoadJSON reads a document and decodes it into v
func LoadJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return nil
}

// SaveJSON encodes v and writes it under key
func SaveJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Save(ctx, key, data)
}

// MemoryStore keeps documents in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string][]byte)}
}

func (m *MemoryStore) Load(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.docs[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *MemoryStore) Save(ctx context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := make([]byte, len(data))
	copy(buf, data)
	m.docs[key] = buf
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.docs, key)
	return nil
}
