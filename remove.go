// Remove Recorder: backs up a victim file into a sidecar before
// unlinking it, so a later rollback can restore its exact bytes and
// metadata.
package txn

import (
	"fmt"
	"os"
)

// Remove deletes path, first backing up its owner, group, mode, and
// full contents into a new sidecar, then appending a remove record under
// module. The sidecar is removed again if anything fails before the
// record is durably appended.
func Remove(j *Journal, path string, module string) error {
	if len(path) < 2 {
		return ErrShortPath
	}

	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegular, path)
	}

	uid, gid, mode, err := statOwnership(info)
	if err != nil {
		return err
	}

	serial := j.NextSerial()
	sf, lock, err := createSidecar(j.Dir(), serial)
	if err != nil {
		return err
	}

	victim, err := os.Open(path)
	if err != nil {
		lock.Unlock()
		sf.Close()
		deleteSidecar(j.Dir(), serial)
		return err
	}

	hdr := removeHeader{UID: uid, GID: gid, Mode: mode}
	writeErr := writeRemoveSidecar(sf, hdr, victim)
	victim.Close()
	lock.Unlock()
	sf.Close()
	if writeErr != nil {
		deleteSidecar(j.Dir(), serial)
		return writeErr
	}

	if err := os.Remove(path); err != nil {
		deleteSidecar(j.Dir(), serial)
		return err
	}

	if _, err := j.Append(module, ActionRemove, path); err != nil {
		deleteSidecar(j.Dir(), serial)
		return err
	}
	return nil
}
