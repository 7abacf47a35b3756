package docgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/docgo/document"
	"github.com/hupe1980/docgo/index"
	"github.com/hupe1980/docgo/storage"
)

var (
	// ErrInvalidArgument is returned for empty collection names, nil
	// queries and empty identifiers. Raised before any lock acquisition or
	// IO; no side effects occur.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned by terminal operations when no document
	// matches. Note that an absent collection is not an error for streams:
	// it produces an empty sequence.
	ErrNotFound = errors.New("not found")

	// ErrCorruptData is returned when a storage fetch or decode fails
	// mid-scan. It terminates the stream; documents already yielded remain
	// valid.
	ErrCorruptData = errors.New("corrupt data")

	// ErrDuplicateID is returned when inserting an identifier that already
	// exists.
	ErrDuplicateID = errors.New("duplicate document id")

	// ErrDatabaseLocked is returned when another process owns the data file.
	ErrDatabaseLocked = errors.New("database file locked by another process")

	// ErrClosed is returned when the database has been closed.
	ErrClosed = errors.New("database closed")
)

// translateError unifies collaborator errors into the public taxonomy.
// The original underlying error remains accessible via errors.Unwrap.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, storage.ErrCorruptData) || errors.Is(err, document.ErrCorruptRecord) {
		return fmt.Errorf("%w: %w", ErrCorruptData, err)
	}
	if errors.Is(err, storage.ErrDatabaseLocked) {
		return fmt.Errorf("%w: %w", ErrDatabaseLocked, err)
	}
	if errors.Is(err, storage.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	if errors.Is(err, index.ErrIDNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	if errors.Is(err, index.ErrDuplicateID) {
		return fmt.Errorf("%w: %w", ErrDuplicateID, err)
	}

	return err
}
