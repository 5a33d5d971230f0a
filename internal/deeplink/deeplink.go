package deeplink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/mmkontis/whisperme/internal/notify"
	"github.com/mmkontis/whisperme/internal/session"
	"github.com/mmkontis/whisperme/internal/token"
)

const (
	Scheme = "whisperme"
	Host   = "connect"
)

// ErrNoToken means the URL parsed but carried no token. It is a local input
// error: no network call is made.
var ErrNoToken = errors.New("no connection token in URL")

// Link is a parsed whisperme://connect?token=...&email=... URL. Email is
// advisory only; the verified identity comes from the backend.
type Link struct {
	Token string
	Email string
}

// Parse validates and extracts a connect deep link.
func Parse(raw string) (Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("invalid deep link URL: %w", err)
	}
	if u.Scheme != Scheme || u.Host != Host {
		return Link{}, fmt.Errorf("not a %s://%s URL: %q", Scheme, Host, raw)
	}

	q := u.Query()
	l := Link{Token: q.Get("token"), Email: q.Get("email")}
	if l.Token == "" {
		return Link{}, ErrNoToken
	}
	return l, nil
}

// Handler drives token verification for an incoming deep link and records
// the connected identity in the local session store.
type Handler struct {
	webAppURL string
	client    *http.Client
	sessions  *session.Store
	notifier  notify.Notifier
}

func NewHandler(webAppURL string, sessions *session.Store, notifier notify.Notifier) *Handler {
	return &Handler{
		webAppURL: webAppURL,
		client:    &http.Client{Timeout: 15 * time.Second},
		sessions:  sessions,
		notifier:  notifier,
	}
}

type verifyResponse struct {
	User struct {
		ID        string `json:"id"`
		Email     string `json:"email"`
		CreatedAt string `json:"created_at"`
	} `json:"user"`
	Message     string `json:"message"`
	AccessToken string `json:"access_token"`
	Error       string `json:"error"`
}

// Handle parses the URL, verifies the token against the web app and, on
// success, overwrites the local session. Failures are surfaced to the user
// and returned; nothing is retried.
func (h *Handler) Handle(ctx context.Context, rawURL string) error {
	link, err := Parse(rawURL)
	if err != nil {
		log.Printf("Deep link: rejected URL: %v", err)
		h.notifier.Error("Invalid connection link")
		return err
	}

	log.Printf("Deep link: verifying connection token")
	user, err := h.verify(ctx, link.Token)
	if err != nil {
		log.Printf("Deep link: verification failed: %v", err)
		h.notifier.Error(fmt.Sprintf("Connection failed: %v", err))
		return err
	}

	// The link email is advisory, but it beats the placeholder the
	// server substitutes when the identity lookup degraded.
	email := user.Email
	if link.Email != "" && (email == "" || email == token.PlaceholderEmail) {
		email = link.Email
	}

	if err := h.sessions.Set(user.UserID, email); err != nil {
		log.Printf("Deep link: failed to store session: %v", err)
		h.notifier.Error("Connection verified but session could not be saved")
		return err
	}

	log.Printf("Deep link: connected as %s", email)
	h.notifier.Connected(email)
	return nil
}

func (h *Handler) verify(ctx context.Context, rawToken string) (session.Session, error) {
	endpoint := fmt.Sprintf("%s/api/connect-token?token=%s", h.webAppURL, url.QueryEscape(rawToken))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return session.Session{}, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return session.Session{}, fmt.Errorf("verification request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return session.Session{}, fmt.Errorf("read verification response: %w", err)
	}

	var vr verifyResponse
	if err := json.Unmarshal(body, &vr); err != nil {
		log.Printf("Deep link: unexpected verification response body: %s", body)
		return session.Session{}, fmt.Errorf("unexpected response from server")
	}

	if resp.StatusCode != http.StatusOK {
		if vr.Error != "" {
			return session.Session{}, errors.New(vr.Error)
		}
		return session.Session{}, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	if vr.User.ID == "" {
		log.Printf("Deep link: verification response missing user: %s", body)
		return session.Session{}, fmt.Errorf("unexpected response from server")
	}

	return session.Session{UserID: vr.User.ID, Email: vr.User.Email}, nil
}
