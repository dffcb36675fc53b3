package memory

import (
	"fmt"
	"sync"

	"github.com/Layr-Labs/tezos-client-go/pkg/persistence"
)

// MemoryPersistence is an in-memory implementation of IClientPersistence.
// Data is lost when the process exits. Values are deep copied on the way in
// and out.
type MemoryPersistence struct {
	mu sync.RWMutex

	// address -> entry
	keys map[string]*persistence.KeyEntry

	// id -> record
	submissions map[string]*persistence.SubmissionRecord

	closed bool
}

var _ persistence.IClientPersistence = (*MemoryPersistence)(nil)

func NewMemoryPersistence() *MemoryPersistence {
	return &MemoryPersistence{
		keys:        make(map[string]*persistence.KeyEntry),
		submissions: make(map[string]*persistence.SubmissionRecord),
	}
}

func (m *MemoryPersistence) SaveKeyEntry(entry *persistence.KeyEntry) error {
	if entry == nil {
		return fmt.Errorf("cannot save nil KeyEntry")
	}
	if entry.Address == "" {
		return fmt.Errorf("cannot save KeyEntry without address")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	m.keys[entry.Address] = persistence.CopyKeyEntry(entry)
	return nil
}

func (m *MemoryPersistence) LoadKeyEntry(address string) (*persistence.KeyEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}
	entry, ok := m.keys[address]
	if !ok {
		return nil, nil
	}
	return persistence.CopyKeyEntry(entry), nil
}

func (m *MemoryPersistence) ListKeyEntries() ([]*persistence.KeyEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}
	result := make([]*persistence.KeyEntry, 0, len(m.keys))
	for _, entry := range m.keys {
		result = append(result, persistence.CopyKeyEntry(entry))
	}
	persistence.SortKeyEntries(result)
	return result, nil
}

func (m *MemoryPersistence) DeleteKeyEntry(address string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	delete(m.keys, address)
	return nil
}

func (m *MemoryPersistence) SaveSubmission(record *persistence.SubmissionRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil SubmissionRecord")
	}
	if record.ID == "" {
		return fmt.Errorf("cannot save SubmissionRecord without id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	m.submissions[record.ID] = persistence.CopySubmissionRecord(record)
	return nil
}

func (m *MemoryPersistence) LoadSubmission(id string) (*persistence.SubmissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}
	record, ok := m.submissions[id]
	if !ok {
		return nil, nil
	}
	return persistence.CopySubmissionRecord(record), nil
}

func (m *MemoryPersistence) ListSubmissions() ([]*persistence.SubmissionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}
	result := make([]*persistence.SubmissionRecord, 0, len(m.submissions))
	for _, record := range m.submissions {
		result = append(result, persistence.CopySubmissionRecord(record))
	}
	persistence.SortSubmissions(result)
	return result, nil
}

func (m *MemoryPersistence) DeleteSubmission(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	delete(m.submissions, id)
	return nil
}

func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
