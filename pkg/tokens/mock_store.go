package tokens

import "sync"

// MockStore implements TokenStore in memory for tests
type MockStore struct {
	entries map[string]*Entry
	mu      sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates an empty mock store
func NewMockStore() *MockStore {
	return &MockStore{entries: make(map[string]*Entry)}
}

func (m *MockStore) Store(entry *Entry) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if entry == nil || entry.Alias == "" {
		return ErrInvalidEntry
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *entry
	m.entries[entry.Alias] = &cp
	return nil
}

func (m *MockStore) Retrieve(alias string) (*Entry, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[alias]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *entry
	return &cp, nil
}

func (m *MockStore) List() ([]*Entry, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]*Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		cp := *entry
		entries = append(entries, &cp)
	}
	return entries, nil
}

func (m *MockStore) Delete(alias string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[alias]; !ok {
		return ErrTokenNotFound
	}
	delete(m.entries, alias)
	return nil
}

func (m *MockStore) Exists(alias string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[alias]
	return ok
}

// Count returns the number of stored entries
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
