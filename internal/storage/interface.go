// Package storage keeps the history of enriched records.
package storage

import (
	"errors"
	"log/slog"

	"github.com/prasenjit/firescope/internal/models"
)

// DefaultMaxRecords bounds the history when no limit is configured
const DefaultMaxRecords = 1000

// ErrNotFound is returned when a record id is not in the store
var ErrNotFound = errors.New("record not found")

// Storage defines the interface for record persistence
type Storage interface {
	Save(rec *models.Record) error
	Get(id string) (*models.Record, error)
	// List returns matching records, most recently saved first
	List(filter *models.RecordFilter) ([]*models.Record, error)
	Clear() error
	Count() (int, error)

	// Publish saves rec as a correlator sink, logging failures
	Publish(rec *models.Record)

	// Utility
	Close() error
}

// save is the shared body of the stores' Publish methods. A sink cannot
// return errors, so failures are logged.
func save(s Storage, rec *models.Record) {
	if err := s.Save(rec); err != nil {
		slog.Warn("storage: save record failed", "id", rec.ID, "error", err)
	}
}
