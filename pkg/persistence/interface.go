package persistence

import "errors"

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("persistence layer is closed")

// IClientPersistence stores encrypted key entries and submission records.
// All implementations must be thread-safe; the CLI and library callers may
// run several submissions at once.
type IClientPersistence interface {
	// Key entries

	// SaveKeyEntry stores an entry under its address, overwriting any
	// existing entry for that address.
	SaveKeyEntry(entry *KeyEntry) error

	// LoadKeyEntry returns nil if no entry exists for address, error only
	// on storage failure.
	LoadKeyEntry(address string) (*KeyEntry, error)

	// ListKeyEntries returns all entries sorted by address.
	ListKeyEntries() ([]*KeyEntry, error)

	// DeleteKeyEntry is idempotent.
	DeleteKeyEntry(address string) error

	// Submission records

	// SaveSubmission stores a record under its ID, overwriting any previous
	// state of the same submission.
	SaveSubmission(record *SubmissionRecord) error

	// LoadSubmission returns nil if no record exists for id.
	LoadSubmission(id string) (*SubmissionRecord, error)

	// ListSubmissions returns all records ordered by creation time.
	ListSubmissions() ([]*SubmissionRecord, error)

	// DeleteSubmission is idempotent.
	DeleteSubmission(id string) error

	// Lifecycle

	// Close is idempotent. After Close every other call returns ErrClosed.
	Close() error

	// HealthCheck returns nil when the store is usable.
	HealthCheck() error
}
