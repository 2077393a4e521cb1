package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "kestrel-test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	s, err := Open(filepath.Join(tmpDir, "kestrel.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, tmpDir
}

func TestNickValues(t *testing.T) {
	s, _ := tempStore(t)

	if err := s.SetNickValue("Alice", "tz", "UTC"); err != nil {
		t.Fatalf("SetNickValue failed: %v", err)
	}

	// Nicks are case-folded.
	got, ok, err := s.NickValue("alice", "tz")
	if err != nil {
		t.Fatalf("NickValue failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected a stored value")
	}
	if got != "UTC" {
		t.Errorf("Expected UTC, got %q", got)
	}

	// Overwrite replaces.
	if err := s.SetNickValue("alice", "tz", "CET"); err != nil {
		t.Fatalf("SetNickValue failed: %v", err)
	}
	got, _, _ = s.NickValue("ALICE", "tz")
	if got != "CET" {
		t.Errorf("Expected CET, got %q", got)
	}

	// Missing key reports absent, not error.
	_, ok, err = s.NickValue("alice", "color")
	if err != nil {
		t.Fatalf("NickValue failed: %v", err)
	}
	if ok {
		t.Error("Expected no value for unset key")
	}

	if err := s.DeleteNickValue("alice", "tz"); err != nil {
		t.Fatalf("DeleteNickValue failed: %v", err)
	}
	if _, ok, _ := s.NickValue("alice", "tz"); ok {
		t.Error("Expected value gone after delete")
	}
}

func TestChannelValues(t *testing.T) {
	s, _ := tempStore(t)

	if err := s.SetChannelValue("#Lab", "topic-lock", "on"); err != nil {
		t.Fatalf("SetChannelValue failed: %v", err)
	}
	got, ok, err := s.ChannelValue("#lab", "topic-lock")
	if err != nil {
		t.Fatalf("ChannelValue failed: %v", err)
	}
	if !ok || got != "on" {
		t.Errorf("Expected on, got %q (ok=%v)", got, ok)
	}

	if err := s.DeleteChannelValue("#lab", "topic-lock"); err != nil {
		t.Fatalf("DeleteChannelValue failed: %v", err)
	}
	if _, ok, _ := s.ChannelValue("#lab", "topic-lock"); ok {
		t.Error("Expected value gone after delete")
	}
}

func TestScopesAreSeparate(t *testing.T) {
	s, _ := tempStore(t)

	if err := s.SetNickValue("lab", "key", "nick-side"); err != nil {
		t.Fatalf("SetNickValue failed: %v", err)
	}
	if _, ok, _ := s.ChannelValue("lab", "key"); ok {
		t.Error("Nick value leaked into channel scope")
	}
}

func TestValuesPersistAcrossOpen(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "kestrel-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)
	path := filepath.Join(tmpDir, "kestrel.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := s.SetNickValue("alice", "tz", "UTC"); err != nil {
		t.Fatalf("SetNickValue failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer s.Close()

	got, ok, err := s.NickValue("alice", "tz")
	if err != nil {
		t.Fatalf("NickValue failed: %v", err)
	}
	if !ok || got != "UTC" {
		t.Errorf("Expected UTC after reopen, got %q (ok=%v)", got, ok)
	}
}
