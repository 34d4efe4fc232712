package storage

import (
	"sync"

	"github.com/google/uuid"
	"github.com/prasenjit/firescope/internal/models"
)

// MemoryStorage keeps the most recent records in memory
type MemoryStorage struct {
	mu         sync.RWMutex
	records    []*models.Record
	maxRecords int
}

// NewMemoryStorage creates an in-memory store holding at most maxRecords
func NewMemoryStorage(maxRecords int) *MemoryStorage {
	if maxRecords <= 0 {
		maxRecords = DefaultMaxRecords
	}
	return &MemoryStorage{
		records:    make([]*models.Record, 0),
		maxRecords: maxRecords,
	}
}

// Save appends a record, dropping the oldest once the store is full
func (m *MemoryStorage) Save(rec *models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}

	m.records = append(m.records, rec)
	if len(m.records) > m.maxRecords {
		m.records = m.records[len(m.records)-m.maxRecords:]
	}
	return nil
}

// Publish stores rec as a correlator sink
func (m *MemoryStorage) Publish(rec *models.Record) {
	save(m, rec)
}

// Get returns a record by ID
func (m *MemoryStorage) Get(id string) (*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].ID == id {
			return m.records[i], nil
		}
	}
	return nil, ErrNotFound
}

// List returns records matching the filter, newest first
func (m *MemoryStorage) List(filter *models.RecordFilter) ([]*models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*models.Record, 0)
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if !filter.Matches(rec) {
			continue
		}
		result = append(result, rec)

		if filter != nil && filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// Clear removes all records
func (m *MemoryStorage) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = make([]*models.Record, 0)
	return nil
}

// Count returns the number of stored records
func (m *MemoryStorage) Count() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}

// Close is a no-op for memory storage
func (m *MemoryStorage) Close() error {
	return nil
}
