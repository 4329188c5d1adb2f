// Rollback Engine: replays a module's recorded changes in reverse,
// undoing each one and marking it with its "un*" action so a repeated
// rollback of the same module is a no-op.
package txn

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// Rollback undoes every active (non-"un*") record belonging to module, in
// reverse order. Recoverable conditions — a sidecar that is already gone,
// a file already recreated since its removal — are logged as warnings
// through log rather than aborting the rest of the batch, matching
// rollback's idempotent-retry contract.
func Rollback(j *Journal, module string, log Logger) error {
	log = logger(log)

	entries, err := activeEntries(j, module)
	if err != nil {
		return err
	}

	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if err := rollbackOne(j, e, log); err != nil {
			return fmt.Errorf("rolling back %s %s: %w", e.Action, e.Filename, err)
		}
	}
	return nil
}

// activeEntries collects, in on-disk order, every entry for module whose
// action has not already been undone.
func activeEntries(j *Journal, module string) ([]Entry, error) {
	var out []Entry
	s := j.Scan()
	for {
		e, ok, err := s.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if e.Module != module {
			continue
		}
		if e.Action.Undone() {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func rollbackOne(j *Journal, e Entry, log Logger) error {
	switch e.Action {
	case ActionCreate:
		return rollbackCreate(j, e, log)
	case ActionPatch:
		return rollbackPatch(j, e, log)
	case ActionRemove:
		return rollbackRemove(j, e, log)
	default:
		return fmt.Errorf("%w: action %s cannot be rolled back", ErrCorrupt, e.Action)
	}
}

// rollbackCreate deletes a file this module created. A file already gone
// is logged and treated as done, so re-running rollback is safe.
func rollbackCreate(j *Journal, e Entry, log Logger) error {
	if err := os.Remove(e.Filename); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
		log.Warnf("rollback: %s already gone, leaving uncreate recorded", e.Filename)
	}
	return markUndone(j, e)
}

// rollbackPatch reapplies the captured diff in reverse, writing the
// reversed content to a sibling temp file, chowning/chmoding it to match
// the live file's current owner, group, and mode, then renaming it over
// the live file — mirroring original_source/txn-install.c's
// rollback_patch, which takes this same detour specifically so the
// live file's ownership survives the reversal. A destination that no
// longer exists is a recoverable condition: the module's own cleanup may
// already have removed it.
func rollbackPatch(j *Journal, e Entry, log Logger) error {
	info, err := os.Stat(e.Filename)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("rollback: %s missing, skipping patch reversal", e.Filename)
			return markUndone(j, e)
		}
		return err
	}
	uid, gid, mode, err := statOwnership(info)
	if err != nil {
		return err
	}

	sidecar, err := openSidecar(j.Dir(), e.Serial)
	if err != nil {
		if err == ErrSidecarMissing {
			log.Warnf("rollback: sidecar for %s is gone, skipping patch reversal", e.Filename)
			return markUndone(j, e)
		}
		return err
	}
	defer sidecar.Close()

	tmp, err := os.CreateTemp(filepath.Dir(e.Filename), filepath.Base(e.Filename)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	cmd := exec.Command("patch", "-R", "-o", tmpPath, "--", e.Filename)
	cmd.Stdin = sidecar
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: patch -R %s: %s", ErrChildFailed, e.Filename, stderr.String())
	}

	if err := os.Chown(tmpPath, uid, gid); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, os.FileMode(mode)); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, e.Filename); err != nil {
		return err
	}

	sidecar.Close()
	if err := deleteSidecar(j.Dir(), e.Serial); err != nil {
		return err
	}
	return markUndone(j, e)
}

// rollbackRemove restores a file this module deleted, from its sidecar's
// header and backed-up content. A file that already exists again is a
// recoverable condition — something recreated it since the removal — and
// is logged rather than clobbered.
func rollbackRemove(j *Journal, e Entry, log Logger) error {
	if _, err := os.Stat(e.Filename); err == nil {
		log.Warnf("rollback: %s: %v, leaving it in place", e.Filename, ErrRecreated)
		return markUndone(j, e)
	} else if !os.IsNotExist(err) {
		return err
	}

	sidecar, err := openSidecar(j.Dir(), e.Serial)
	if err != nil {
		if err == ErrSidecarMissing {
			log.Warnf("rollback: sidecar for %s is gone, cannot restore", e.Filename)
			return markUndone(j, e)
		}
		return err
	}
	defer sidecar.Close()

	hdr, content, err := readRemoveSidecar(sidecar)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(j.Dir(), "txn.restore-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_, copyErr := io.Copy(tmp, content)
	tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return copyErr
	}
	defer os.Remove(tmpPath)

	args := []string{
		"-c",
		"-o", strconv.Itoa(hdr.UID),
		"-g", strconv.Itoa(hdr.GID),
		"-m", fmt.Sprintf("%o", hdr.Mode),
		"--", tmpPath, e.Filename,
	}
	cmd := exec.Command("install", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: install %s: %s", ErrChildFailed, e.Filename, stderr.String())
	}

	sidecar.Close()
	if err := deleteSidecar(j.Dir(), e.Serial); err != nil {
		return err
	}
	return markUndone(j, e)
}

// markUndone rewrites e's action field in place to its "un*" form.
func markUndone(j *Journal, e Entry) error {
	inv, ok := e.Action.Inverse()
	if !ok {
		return fmt.Errorf("%w: action %s has no inverse", ErrCorrupt, e.Action)
	}
	return j.RewriteAction(e.Offset, e.Module, inv)
}
