package session

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.toml")
	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	return s
}

func TestStoreStartsDisconnected(t *testing.T) {
	s := tempStore(t)
	if s.Connected() {
		t.Errorf("fresh store reports connected")
	}
	if got := s.Get(); got != (Session{}) {
		t.Errorf("fresh store session = %+v", got)
	}
}

func TestSetAndGet(t *testing.T) {
	s := tempStore(t)

	if err := s.Set("user-1", "user@example.com"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got := s.Get()
	if !got.Connected || got.UserID != "user-1" || got.Email != "user@example.com" {
		t.Errorf("Get() = %+v", got)
	}
}

func TestSetRejectsEmptyIdentity(t *testing.T) {
	s := tempStore(t)

	if err := s.Set("", "user@example.com"); err == nil {
		t.Errorf("Set with empty user id succeeded")
	}
	if err := s.Set("user-1", ""); err == nil {
		t.Errorf("Set with empty email succeeded")
	}
	if s.Connected() {
		t.Errorf("store connected after rejected Set")
	}
}

func TestClear(t *testing.T) {
	s := tempStore(t)
	if err := s.Set("user-1", "user@example.com"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s.Connected() {
		t.Errorf("store connected after Clear")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if err := s.Set("user-2", "other@example.com"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	reloaded, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() reload error = %v", err)
	}
	got := reloaded.Get()
	if !got.Connected || got.UserID != "user-2" || got.Email != "other@example.com" {
		t.Errorf("reloaded session = %+v", got)
	}
}

func TestCorruptFileStartsDisconnected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	if err := os.WriteFile(path, []byte("not toml {{{"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if s.Connected() {
		t.Errorf("corrupt session file reported connected")
	}
}

func TestInvalidConnectedStateDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.toml")
	if err := os.WriteFile(path, []byte("connected = true\nuser_id = \"\"\nemail = \"\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	if s.Connected() {
		t.Errorf("connected=true with empty identity was accepted")
	}
}

func TestConcurrentReaders(t *testing.T) {
	s := tempStore(t)
	if err := s.Set("user-1", "user@example.com"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				sess := s.Get()
				if sess.Connected && (sess.UserID == "" || sess.Email == "") {
					t.Errorf("read torn session: %+v", sess)
					return
				}
			}
		}()
	}
	wg.Wait()
}
