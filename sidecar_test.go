package txn

import (
	"bytes"
	"os"
	"testing"
)

func TestCreateSidecarExclusiveLock(t *testing.T) {
	dir := t.TempDir()

	f1, lock1, err := createSidecar(dir, 5)
	if err != nil {
		t.Fatalf("createSidecar: %v", err)
	}
	defer f1.Close()
	defer lock1.Unlock()

	if _, err := os.Stat(SidecarPath(dir, 5)); err != nil {
		t.Fatalf("sidecar file not created: %v", err)
	}

	f2, err := os.OpenFile(SidecarPath(dir, 5), os.O_RDWR, 0)
	if err != nil {
		t.Fatalf("reopen sidecar: %v", err)
	}
	defer f2.Close()
	if err := (&fileLock{f: f2}).Lock(LockExclusive); err != ErrLocked {
		t.Errorf("second lock on sidecar = %v, want ErrLocked", err)
	}
}

func TestCreateSidecarRefusesExisting(t *testing.T) {
	dir := t.TempDir()

	f1, lock1, err := createSidecar(dir, 5)
	if err != nil {
		t.Fatalf("createSidecar: %v", err)
	}
	defer f1.Close()
	defer lock1.Unlock()

	_, _, err = createSidecar(dir, 5)
	if err == nil {
		t.Error("second createSidecar for the same serial should fail")
	}
}

func TestOpenSidecarMissingReturnsErrSidecarMissing(t *testing.T) {
	dir := t.TempDir()

	_, err := openSidecar(dir, 99)
	if err != ErrSidecarMissing {
		t.Errorf("err = %v, want ErrSidecarMissing", err)
	}
}

func TestDeleteSidecarTolerance(t *testing.T) {
	dir := t.TempDir()

	if err := deleteSidecar(dir, 1); err != nil {
		t.Errorf("deleteSidecar on missing file: %v", err)
	}
}

func TestRemoveSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()

	f, lock, err := createSidecar(dir, 3)
	if err != nil {
		t.Fatalf("createSidecar: %v", err)
	}

	hdr := removeHeader{UID: 1000, GID: 1000, Mode: 0o644}
	content := bytes.NewBufferString("original file contents\n")
	if err := writeRemoveSidecar(f, hdr, content); err != nil {
		t.Fatalf("writeRemoveSidecar: %v", err)
	}
	lock.Unlock()
	f.Close()

	rf, err := openSidecar(dir, 3)
	if err != nil {
		t.Fatalf("openSidecar: %v", err)
	}
	defer rf.Close()

	gotHdr, reader, err := readRemoveSidecar(rf)
	if err != nil {
		t.Fatalf("readRemoveSidecar: %v", err)
	}
	if gotHdr != hdr {
		t.Errorf("header = %+v, want %+v", gotHdr, hdr)
	}

	var buf bytes.Buffer
	buf.ReadFrom(reader)
	if buf.String() != "original file contents\n" {
		t.Errorf("content = %q, want %q", buf.String(), "original file contents\n")
	}
}
