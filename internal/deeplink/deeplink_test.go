package deeplink

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/mmkontis/whisperme/internal/notify"
	"github.com/mmkontis/whisperme/internal/session"
	"github.com/mmkontis/whisperme/internal/testutil"
	"github.com/mmkontis/whisperme/internal/token"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    Link
		wantErr bool
	}{
		{
			name: "token and email",
			url:  "whisperme://connect?token=abc123&email=user%40example.com",
			want: Link{Token: "abc123", Email: "user@example.com"},
		},
		{
			name: "token only",
			url:  "whisperme://connect?token=abc123",
			want: Link{Token: "abc123"},
		},
		{name: "missing token", url: "whisperme://connect?email=a%40b.c", wantErr: true},
		{name: "wrong scheme", url: "https://connect?token=abc123", wantErr: true},
		{name: "wrong host", url: "whisperme://settings?token=abc123", wantErr: true},
		{name: "garbage", url: "::::not a url", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("Parse(%q) = %+v, want %+v", tt.url, got, tt.want)
			}
		})
	}
}

func TestParseMissingTokenIsErrNoToken(t *testing.T) {
	_, err := Parse("whisperme://connect")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Parse() error = %v, want ErrNoToken", err)
	}
}

func newSessionStore(t *testing.T) *session.Store {
	t.Helper()
	s, err := session.NewStore(filepath.Join(t.TempDir(), "session.toml"))
	if err != nil {
		t.Fatalf("session.NewStore() error = %v", err)
	}
	return s
}

func TestHandleSuccess(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "abc123" {
			t.Errorf("backend saw token %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"id":"user-1","email":"user@example.com","created_at":"2024-01-01T00:00:00Z"},"message":"Connection successful. User authenticated.","access_token":"use_external_session"}`))
	}))
	defer backend.Close()

	sessions := newSessionStore(t)
	h := NewHandler(backend.URL, sessions, notify.Nop{})

	err := h.Handle(context.Background(), "whisperme://connect?token=abc123&email=user%40example.com")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := sessions.Get()
	if !got.Connected || got.UserID != "user-1" || got.Email != "user@example.com" {
		t.Errorf("session after Handle = %+v", got)
	}
}

func TestHandleRejectedToken(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Connection token has already been used"}`))
	}))
	defer backend.Close()

	sessions := newSessionStore(t)
	h := NewHandler(backend.URL, sessions, notify.Nop{})

	err := h.Handle(context.Background(), "whisperme://connect?token=abc123")
	if err == nil {
		t.Fatal("Handle() succeeded with rejected token")
	}
	if sessions.Connected() {
		t.Errorf("session connected after rejected token")
	}
}

func TestHandleMissingTokenSkipsNetwork(t *testing.T) {
	var calls atomic.Int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer backend.Close()

	h := NewHandler(backend.URL, newSessionStore(t), notify.Nop{})

	err := h.Handle(context.Background(), "whisperme://connect")
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("Handle() error = %v, want ErrNoToken", err)
	}
	if calls.Load() != 0 {
		t.Errorf("backend called %d times for tokenless URL", calls.Load())
	}
}

func TestHandleMalformedResponse(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>this is not json</html>"))
	}))
	defer backend.Close()

	sessions := newSessionStore(t)
	h := NewHandler(backend.URL, sessions, notify.Nop{})

	if err := h.Handle(context.Background(), "whisperme://connect?token=abc123"); err == nil {
		t.Fatal("Handle() succeeded on malformed response")
	}
	if sessions.Connected() {
		t.Errorf("session connected after malformed response")
	}
}

func TestHandleBackendDown(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	backend.Close() // connection refused

	sessions := newSessionStore(t)
	h := NewHandler(backend.URL, sessions, notify.Nop{})

	if err := h.Handle(context.Background(), "whisperme://connect?token=abc123"); err == nil {
		t.Fatal("Handle() succeeded with unreachable backend")
	}
	if sessions.Connected() {
		t.Errorf("session connected with unreachable backend")
	}
}

func TestHandleDegradedIdentityUsesLinkEmail(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"id":"user-1","email":"` + token.PlaceholderEmail + `","created_at":"2024-01-01T00:00:00Z"},"message":"Connection successful. User authenticated.","access_token":"use_external_session"}`))
	}))
	defer backend.Close()

	sessions := newSessionStore(t)
	notifier := testutil.NewMockNotifier()
	h := NewHandler(backend.URL, sessions, notifier)

	err := h.Handle(context.Background(), "whisperme://connect?token=abc123&email=user%40example.com")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := sessions.Get()
	if got.Email != "user@example.com" {
		t.Errorf("session email = %q, want the link email over the placeholder", got.Email)
	}
	c := notifier.Counts()
	if len(c.Connections) != 1 || c.Connections[0] != "user@example.com" {
		t.Errorf("connected notifications = %v", c.Connections)
	}
}

func TestHandleServerEmailWinsOverLinkEmail(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"id":"user-1","email":"verified@example.com","created_at":"2024-01-01T00:00:00Z"},"message":"Connection successful. User authenticated.","access_token":"use_external_session"}`))
	}))
	defer backend.Close()

	sessions := newSessionStore(t)
	h := NewHandler(backend.URL, sessions, notify.Nop{})

	err := h.Handle(context.Background(), "whisperme://connect?token=abc123&email=stale%40example.com")
	if err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if got := sessions.Get(); got.Email != "verified@example.com" {
		t.Errorf("session email = %q, want the verified identity", got.Email)
	}
}
