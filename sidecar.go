// Sidecar Store: per-record auxiliary files under the database
// directory, named txn.NNNNNN after the serial of the record they
// support.
//
// A patch sidecar is raw unified-diff bytes. A remove sidecar is a
// single JSON header line (owner, group, mode — the only attributes a
// restore needs) followed byte-for-byte by the victim file's original
// content. The header is JSON rather than a raw struct dump (what
// original_source/txn-install.c wrote) because a raw C struct is not a
// stable, portable format: see SPEC_FULL.md §6.
package txn

import (
	"bufio"
	"io"
	"os"

	json "github.com/goccy/go-json"
)

// createSidecar creates and exclusively locks a new sidecar file for
// serial. The caller owns the returned handle and fileLock until it
// closes and unlocks them.
func createSidecar(dir string, serial uint64) (*os.File, *fileLock, error) {
	path := SidecarPath(dir, serial)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0o600)
	if err != nil {
		return nil, nil, err
	}
	lock := &fileLock{f: f}
	if err := lock.Lock(LockExclusive); err != nil {
		f.Close()
		os.Remove(path)
		return nil, nil, err
	}
	return f, lock, nil
}

// openSidecar opens an existing sidecar for reading during rollback.
// ENOENT is reported as ErrSidecarMissing so callers can downgrade it to
// a warning per spec.md §4.5's recoverable rollback conditions.
func openSidecar(dir string, serial uint64) (*os.File, error) {
	path := SidecarPath(dir, serial)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSidecarMissing
		}
		return nil, err
	}
	return f, nil
}

// deleteSidecar removes the sidecar for serial. A missing file is not
// an error: rollback may be re-run after a prior partial attempt already
// consumed it.
func deleteSidecar(dir string, serial uint64) error {
	err := os.Remove(SidecarPath(dir, serial))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// removeHeader is the self-describing header written at the start of a
// remove sidecar: the victim's owner, group, and permission bits, the
// only attributes a restore consumes.
type removeHeader struct {
	UID  int    `json:"uid"`
	GID  int    `json:"gid"`
	Mode uint32 `json:"mode"`
}

// writeRemoveSidecar writes hdr as a JSON header line, then copies all
// of content into f.
func writeRemoveSidecar(f *os.File, hdr removeHeader, content io.Reader) error {
	line, err := json.Marshal(hdr)
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return err
	}
	if _, err := io.Copy(f, content); err != nil {
		return err
	}
	return nil
}

// readRemoveSidecar parses the header line from f and returns it along
// with a reader positioned at the start of the backed-up content.
func readRemoveSidecar(f *os.File) (removeHeader, io.Reader, error) {
	br := bufio.NewReader(f)
	line, err := br.ReadBytes('\n')
	if err != nil && err != io.EOF {
		return removeHeader{}, nil, err
	}
	var hdr removeHeader
	if err := json.Unmarshal(line, &hdr); err != nil {
		return removeHeader{}, nil, ErrCorrupt
	}
	return hdr, br, nil
}
