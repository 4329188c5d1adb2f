// Install Recorder: classifies a source/destination pair, captures the
// sidecar a patch needs, appends the journal record, and delegates the
// actual file placement to the external install(1) utility.
package txn

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// Logger is the minimal logging surface the library layer needs to
// report Recoverable conditions (spec.md §7) without depending on a
// concrete logging package. *logrus.Logger satisfies this directly.
type Logger interface {
	Warnf(format string, args ...interface{})
}

// nopLogger discards everything; used when callers pass a nil Logger.
type nopLogger struct{}

func (nopLogger) Warnf(string, ...interface{}) {}

func logger(l Logger) Logger {
	if l == nil {
		return nopLogger{}
	}
	return l
}

// InstallOptions carries the install(1) flags the CLI layer parsed from
// "-c", "-g group", "-m mode", "-o owner", forwarded verbatim to each
// per-source install(1) invocation.
type InstallOptions struct {
	Flags []string
	Exact bool
}

// Install records and installs each of sources into dest under module,
// invoking install(1) once per source file (spec.md §9's resolution of
// the original's batched-argv bug). On any failure the journal is
// truncated back to its state before the failing source, so a partial
// batch never leaves a half-recorded entry.
func Install(j *Journal, sources []string, dest string, module string, opts InstallOptions, log Logger) error {
	log = logger(log)

	for _, src := range sources {
		rollbackOffset := j.Tail()
		rollbackSerial := j.NextSerial()

		changed, err := recordInstall(j, src, dest, module)
		if err != nil {
			j.TruncateTo(rollbackOffset, rollbackSerial)
			return err
		}
		if !changed {
			// src and dest already have identical content: no record,
			// and no install(1) invocation either.
			continue
		}

		effectiveDest, _ := destinationPath(src, dest)
		if err := runInstallOne(src, effectiveDest, opts); err != nil {
			j.TruncateTo(rollbackOffset, rollbackSerial)
			return err
		}
	}
	return nil
}

// destinationPath resolves the effective destination path: if dst names
// an existing directory, src's basename is appended. The result must be
// at least two characters long.
func destinationPath(src, dst string) (string, error) {
	info, err := os.Stat(dst)
	if err == nil && info.IsDir() {
		full := filepath.Join(dst, filepath.Base(src))
		if len(full) < 2 {
			return "", ErrShortPath
		}
		return full, nil
	}
	if len(dst) < 2 {
		return "", ErrShortPath
	}
	return dst, nil
}

// recordInstall classifies the (src, dst) pair and appends the
// corresponding journal record, creating a patch sidecar when needed. It
// reports changed=false when src and dst are already byte-identical, in
// which case the caller must skip install(1) entirely — nothing changes.
// It does not touch the filesystem beyond stat/compare/classify — the
// actual copy is install(1)'s job, run by the caller afterwards.
func recordInstall(j *Journal, src, dst string, module string) (changed bool, err error) {
	dest, err := destinationPath(src, dst)
	if err != nil {
		return false, err
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	if !srcInfo.Mode().IsRegular() {
		return false, fmt.Errorf("%w: %s", ErrNotRegular, src)
	}

	_, err = os.Stat(dest)
	if os.IsNotExist(err) {
		_, err := j.Append(module, ActionCreate, dest)
		return true, err
	}
	if err != nil {
		return false, err
	}

	identical, err := compareFiles(src, dest)
	if err != nil {
		return false, err
	}
	if identical {
		return false, nil
	}

	// Classification runs on src, matching original_source/txn-install.c
	// (and spec.md §4.3's literal "<src>: " output prefix): src and dst
	// are two revisions of the same logical file and are assumed to
	// share the same texture.
	isText, err := isTextFile(src)
	if err != nil {
		return false, err
	}
	if !isText {
		_, err := j.Append(module, ActionCreate, dest)
		return true, err
	}

	if err := capturePatch(j, dest, src, module); err != nil {
		return false, err
	}
	return true, nil
}

// compareFiles reports whether src and dst have identical contents,
// delegated to cmp(1)'s -s (silent) mode: exit 0 means identical, exit 1
// means they differ, any other status is a ChildFailed condition.
func compareFiles(src, dst string) (bool, error) {
	cmd := exec.Command("cmp", "-s", "--", src, dst)
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
		return false, nil
	}
	return false, fmt.Errorf("%w: cmp %s %s: %v", ErrChildFailed, src, dst, err)
}

// isTextFile runs file(1) on path and reports whether its description
// contains the whitespace-bordered token "text".
func isTextFile(path string) (bool, error) {
	cmd := exec.Command("file", "--", path)
	out, err := cmd.Output()
	if err != nil {
		return false, fmt.Errorf("%w: file %s: %v", ErrChildFailed, path, err)
	}

	line := string(out)
	prefix := path + ": "
	if !strings.HasPrefix(line, prefix) {
		return false, fmt.Errorf("%w: could not parse file(1) output for %s: %s", ErrChildFailed, path, line)
	}
	desc := line[len(prefix):]

	fields := strings.FieldsFunc(desc, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n'
	})
	for _, f := range fields {
		if f == "text" {
			return true, nil
		}
	}
	return false, nil
}

// capturePatch produces a unified diff from dst to src into a new
// sidecar and appends the resulting patch record.
func capturePatch(j *Journal, dst, src string, module string) error {
	serial := j.NextSerial()
	f, lock, err := createSidecar(j.Dir(), serial)
	if err != nil {
		return err
	}
	defer lock.Unlock()
	defer f.Close()

	cmd := exec.Command("diff", "-u", "--", dst, src)
	cmd.Stdout = f
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err = cmd.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		if exitErr.ExitCode() != 0 && exitErr.ExitCode() != 1 {
			deleteSidecar(j.Dir(), serial)
			return fmt.Errorf("%w: diff %s %s: %s", ErrChildFailed, dst, src, stderr.String())
		}
	} else if err != nil {
		deleteSidecar(j.Dir(), serial)
		return fmt.Errorf("%w: diff %s %s: %v", ErrChildFailed, dst, src, err)
	}

	_, err = j.Append(module, ActionPatch, dst)
	return err
}

// runInstallOne invokes install(1) to place src at dest, appending
// opts.Flags (or, for the install-exact variant, explicit -o/-g/-m
// flags read from src's owner/group/mode) ahead of the source and
// destination arguments.
func runInstallOne(src, dest string, opts InstallOptions) error {
	args := make([]string, 0, len(opts.Flags)+4)

	if opts.Exact {
		info, err := os.Stat(src)
		if err != nil {
			return fmt.Errorf("could not examine %s: %w", src, err)
		}
		uid, gid, mode, err := statOwnership(info)
		if err != nil {
			return err
		}
		args = append(args, "-c",
			"-o", strconv.Itoa(uid),
			"-g", strconv.Itoa(gid),
			"-m", fmt.Sprintf("%o", mode))
	} else {
		args = append(args, opts.Flags...)
	}

	args = append(args, "--", src, dest)
	cmd := exec.Command("install", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: install %s: %s", ErrChildFailed, src, stderr.String())
	}
	return nil
}
