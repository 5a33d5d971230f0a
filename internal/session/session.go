package session

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// Session is the desktop client's connected-user identity, written once by
// the deep-link handler and read on every recording attempt.
type Session struct {
	Connected bool   `toml:"connected"`
	UserID    string `toml:"user_id"`
	Email     string `toml:"email"`
}

// Store persists the local session and serves concurrent reads. Single
// writer (the deep-link handler on the daemon goroutine), many readers.
type Store struct {
	mu      sync.RWMutex
	path    string
	current Session
}

// DefaultPath returns ~/.config/whisperme/session.toml.
func DefaultPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user config directory: %w", err)
	}
	dir := filepath.Join(configDir, "whisperme")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return filepath.Join(dir, "session.toml"), nil
}

// NewStore loads the session from path if one exists. A missing or corrupt
// file yields a disconnected session rather than an error.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat session file %s: %w", path, err)
	}

	var sess Session
	if _, err := toml.DecodeFile(path, &sess); err != nil {
		log.Printf("Session: failed to parse %s, starting disconnected: %v", path, err)
		return s, nil
	}
	if sess.Connected && (sess.UserID == "" || sess.Email == "") {
		log.Printf("Session: %s claims connected without identity, starting disconnected", path)
		return s, nil
	}
	s.current = sess
	return s, nil
}

// Get returns a copy of the current session.
func (s *Store) Get() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Connected reports whether recording is permitted.
func (s *Store) Connected() bool {
	return s.Get().Connected
}

// Set records a verified connection. UserID and email must be non-empty
// while connected.
func (s *Store) Set(userID, email string) error {
	if userID == "" || email == "" {
		return fmt.Errorf("session: user id and email are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Session{Connected: true, UserID: userID, Email: email}
	return s.persist()
}

// Clear signs the user out.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Session{}
	return s.persist()
}

// persist writes the current session; caller holds the write lock.
func (s *Store) persist() error {
	if s.path == "" {
		return nil
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(s.current); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}
