// Package txn implements a transactional file installer: every file
// created, patched, or removed through this package is recorded in an
// append-only journal, and a named "module" of changes can be rolled
// back by replaying the recorded inverse operations.
package txn

import "errors"

// Sentinel errors returned by journal and recorder operations.
var (
	// ErrLocked is returned when the journal or a sidecar is already
	// held by another process.
	ErrLocked = errors.New("database index is locked by another process")

	// ErrMissing is returned when the journal file does not exist and
	// the caller required it to.
	ErrMissing = errors.New("database index does not exist")

	// ErrAlreadyExists is returned by db-init when the journal already
	// exists. An existing database directory without a journal is not
	// an error.
	ErrAlreadyExists = errors.New("database index already exists")

	// ErrCorrupt is returned when the journal violates the wire
	// grammar: a bad serial, a malformed sentinel, or an unknown
	// action name.
	ErrCorrupt = errors.New("corrupt database index")

	// ErrClosed names the closed-Journal condition. Journal methods do
	// not check for it: an operation on a closed Journal fails with the
	// underlying file error instead.
	ErrClosed = errors.New("journal is closed")

	// ErrNotRegular is returned when a source or victim path is not a
	// regular file.
	ErrNotRegular = errors.New("not a regular file")

	// ErrShortPath is returned when a destination or victim path is
	// shorter than the minimum two characters this package requires.
	ErrShortPath = errors.New("path too short")

	// ErrChildFailed is returned when an external utility (cmp, file,
	// diff, patch, install) exits with an unexpected status.
	ErrChildFailed = errors.New("external command failed")

	// ErrSidecarMissing is the internal signal used during rollback
	// when a recorded sidecar file is gone; it is always converted to
	// a logged warning, never propagated to the caller.
	ErrSidecarMissing = errors.New("recorded sidecar file is gone")

	// ErrRecreated is the internal signal used during rollback of a
	// remove when the victim file already exists again.
	ErrRecreated = errors.New("file was recreated since removal")
)
