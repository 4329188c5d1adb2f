package txn

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenOrCreateMakesSevenByteJournal(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")

	j, err := OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	defer j.Close()

	info, err := os.Stat(IndexPath(dir))
	if err != nil {
		t.Fatalf("stat journal: %v", err)
	}
	if info.Size() != 7 {
		t.Errorf("fresh journal size = %d, want 7", info.Size())
	}
}

func TestOpenOrCreateRejectsExistingWhenNotAllowed(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("first OpenOrCreate: %v", err)
	}
	j.Close()

	_, err = OpenOrCreate(dir, false)
	if err != ErrAlreadyExists {
		t.Errorf("second OpenOrCreate = %v, want ErrAlreadyExists", err)
	}
}

func TestOpenMissingFails(t *testing.T) {
	dir := t.TempDir()
	if _, err := Open(dir); err != ErrMissing {
		t.Errorf("Open(empty dir) = %v, want ErrMissing", err)
	}
}

func TestOpenSecondHolderIsLocked(t *testing.T) {
	dir := t.TempDir()

	j1, err := OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	defer j1.Close()

	_, err = OpenOrCreate(dir, true)
	if err != ErrLocked {
		t.Errorf("second open = %v, want ErrLocked", err)
	}
}

func TestAppendAdvancesSerialAndTail(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	defer j.Close()

	rec, err := j.Append("webapp", ActionCreate, "/srv/webapp/config.yaml")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if rec.Serial != 0 {
		t.Errorf("first record serial = %d, want 0", rec.Serial)
	}
	if j.NextSerial() != 1 {
		t.Errorf("NextSerial() = %d, want 1", j.NextSerial())
	}

	rec2, err := j.Append("webapp", ActionPatch, "/srv/webapp/index.html")
	if err != nil {
		t.Fatalf("second Append: %v", err)
	}
	if rec2.Serial != 1 {
		t.Errorf("second record serial = %d, want 1", rec2.Serial)
	}
}

func TestAppendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	if _, err := j.Append("webapp", ActionCreate, "/srv/webapp/config.yaml"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	j2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer j2.Close()

	if j2.NextSerial() != 1 {
		t.Errorf("NextSerial() after reopen = %d, want 1", j2.NextSerial())
	}

	s := j2.Scan()
	entry, ok, err := s.Next()
	if err != nil || !ok {
		t.Fatalf("Scan().Next() = (%v, %v, %v)", entry, ok, err)
	}
	if entry.Filename != "/srv/webapp/config.yaml" {
		t.Errorf("Filename = %q, want %q", entry.Filename, "/srv/webapp/config.yaml")
	}
}

func TestScanEnforcesMonotonicSerial(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	defer j.Close()

	if _, err := j.Append("webapp", ActionCreate, "/srv/a"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := j.Append("webapp", ActionCreate, "/srv/b"); err != nil {
		t.Fatalf("Append: %v", err)
	}

	s := j.Scan()
	if _, _, err := s.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}
	second, _, err := s.Next()
	if err != nil {
		t.Fatalf("second Next: %v", err)
	}
	_, ok, err := s.Next()
	if err != nil || ok {
		t.Fatalf("final Next = (ok=%v, err=%v), want (false, nil)", ok, err)
	}

	// Make the second record's serial skip ahead; a fresh scan must
	// reject the gap.
	if _, err := j.file.WriteAt([]byte("000005"), second.Offset); err != nil {
		t.Fatalf("corrupt serial: %v", err)
	}
	s = j.Scan()
	if _, _, err := s.Next(); err != nil {
		t.Fatalf("first Next after corruption: %v", err)
	}
	if _, _, err := s.Next(); err != ErrCorrupt {
		t.Errorf("Next over serial gap = %v, want ErrCorrupt", err)
	}
}

func TestTruncateToRevertsPartialBatch(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	defer j.Close()

	offset := j.Tail()
	serial := j.NextSerial()

	if _, err := j.Append("webapp", ActionCreate, "/srv/a"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := j.TruncateTo(offset, serial); err != nil {
		t.Fatalf("TruncateTo: %v", err)
	}

	if j.NextSerial() != serial {
		t.Errorf("NextSerial() after truncate = %d, want %d", j.NextSerial(), serial)
	}

	s := j.Scan()
	_, ok, err := s.Next()
	if err != nil || ok {
		t.Fatalf("Scan after truncate = (ok=%v, err=%v), want (false, nil)", ok, err)
	}
}

func TestRewriteActionMarksUndone(t *testing.T) {
	dir := t.TempDir()
	j, err := OpenOrCreate(dir, false)
	if err != nil {
		t.Fatalf("OpenOrCreate: %v", err)
	}
	defer j.Close()

	rec, err := j.Append("webapp", ActionCreate, "/srv/webapp/config.yaml")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := j.RewriteAction(0, rec.Module, ActionUncreate); err != nil {
		t.Fatalf("RewriteAction: %v", err)
	}

	s := j.Scan()
	entry, ok, err := s.Next()
	if err != nil || !ok {
		t.Fatalf("Scan().Next() = (%v, %v, %v)", entry, ok, err)
	}
	if entry.Action != ActionUncreate {
		t.Errorf("Action after rewrite = %s, want %s", entry.Action, ActionUncreate)
	}
	if entry.Filename != "/srv/webapp/config.yaml" {
		t.Errorf("Filename shifted after rewrite: %q", entry.Filename)
	}
}
