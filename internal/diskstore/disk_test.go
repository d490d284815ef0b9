package diskstore

import (
	"path/filepath"
	"testing"
)

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, _, err := Open(dir, 0)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	payload := []byte{0x50, 0x4B, 0x03, 0x04, 0x01}
	if err := s.Write(42, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, present, err := s.Read(42)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !present {
		t.Fatalf("expected file present after write")
	}
	if string(got) != string(payload) {
		t.Fatalf("round trip mismatch: got %v want %v", got, payload)
	}
}

func TestRead_AbsentReturnsFalse(t *testing.T) {
	dir := t.TempDir()
	s, _, _ := Open(dir, 0)

	_, present, err := s.Read(999)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if present {
		t.Fatalf("expected absent file to report not present")
	}
}

func TestWrite_EmptyBytesCreatesZeroByteTombstone(t *testing.T) {
	dir := t.TempDir()
	s, _, _ := Open(dir, 0)

	if err := s.Write(7, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, present, err := s.Read(7)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !present {
		t.Fatalf("expected tombstone file to exist")
	}
	if len(got) != 0 {
		t.Fatalf("expected zero-byte tombstone, got %d bytes", len(got))
	}
}

func TestWrite_NoLeftoverTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, _, _ := Open(dir, 0)

	if err := s.Write(1, []byte("data")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	matches, err := filepath.Glob(filepath.Join(dir, ".tmp-*"))
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("expected no leftover temp files, found %v", matches)
	}
}

func TestCanWrite_DegradesGracefullyWhenStatfsUnsupported(t *testing.T) {
	s := &Store{statfsUnsupported: true}
	if !s.CanWrite() {
		t.Fatalf("expected always-writable when statfs is unsupported")
	}
}

func TestCanWrite_FalseWhenFreeSpaceExhausted(t *testing.T) {
	s := &Store{}
	s.remainingFree.Store(0)
	if s.CanWrite() {
		t.Fatalf("expected CanWrite false at zero remaining free space")
	}
	s.remainingFree.Store(1)
	if !s.CanWrite() {
		t.Fatalf("expected CanWrite true with positive remaining free space")
	}
}

func TestWrite_DecrementsFreeSpaceCounter(t *testing.T) {
	dir := t.TempDir()
	s, _, _ := Open(dir, 0)
	s.statfsUnsupported = false
	s.remainingFree.Store(10)

	if err := s.Write(1, []byte("12345")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := s.remainingFree.Load(); got != 5 {
		t.Fatalf("expected remaining free space 5 after writing 5 bytes, got %d", got)
	}
}
