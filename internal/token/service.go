package token

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// DefaultScheme is the custom URL scheme the desktop client registers.
const DefaultScheme = "whisperme"

// Service issues and verifies single-use connection tokens linking a
// desktop installation to an authenticated web account.
type Service struct {
	store    Store
	identity IdentityProvider
	scheme   string
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithScheme overrides the deep-link URL scheme.
func WithScheme(scheme string) Option {
	return func(s *Service) { s.scheme = scheme }
}

// WithClock injects a time source, used by expiry tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, identity IdentityProvider, opts ...Option) *Service {
	s := &Service{
		store:    store,
		identity: identity,
		scheme:   DefaultScheme,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueResult carries the raw secret back to the caller; this is the only
// time it leaves the service.
type IssueResult struct {
	RawToken    string
	DeepLinkURL string
	ExpiresAt   time.Time
}

// Issue mints a token for an already-authenticated user. The caller's
// credential check happens upstream (HTTP layer / IdentityProvider); this
// just needs the verified identity.
func (s *Service) Issue(ctx context.Context, user Identity) (IssueResult, error) {
	if user.ID == "" {
		return IssueResult{}, ErrUnauthorized
	}

	raw, err := NewSecret()
	if err != nil {
		return IssueResult{}, err
	}

	now := s.now()
	t := Token{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: Hash(raw),
		CreatedAt: now,
		ExpiresAt: now.Add(TTL),
	}
	if err := s.store.Insert(ctx, t); err != nil {
		return IssueResult{}, fmt.Errorf("persist connection token: %w", err)
	}

	link := fmt.Sprintf("%s://connect?token=%s&email=%s",
		s.scheme, raw, url.QueryEscape(user.Email))

	log.Printf("Token service: issued connection token for user %s, expires %s",
		user.ID, t.ExpiresAt.UTC().Format(time.RFC3339))

	return IssueResult{RawToken: raw, DeepLinkURL: link, ExpiresAt: t.ExpiresAt}, nil
}

// VerifyResult is a successful verification. Degraded means the identity
// lookup failed and the email is a placeholder.
type VerifyResult struct {
	User     Identity
	Degraded bool
}

// Verify redeems a raw token at most once. The checks and the used-flag
// flip are serialized per token through Store.MarkUsed, so concurrent
// calls with the same token yield exactly one success.
func (s *Service) Verify(ctx context.Context, raw string) (VerifyResult, error) {
	hash := Hash(raw)

	t, err := s.store.GetByHash(ctx, hash)
	if errors.Is(err, ErrNotFound) {
		log.Printf("Token service: verify rejected, no matching token")
		return VerifyResult{}, ErrInvalidToken
	}
	if err != nil {
		return VerifyResult{}, fmt.Errorf("lookup connection token: %w", err)
	}

	now := s.now()
	if t.Expired(now) {
		log.Printf("Token service: verify rejected, token for user %s expired at %s",
			t.UserID, t.ExpiresAt.UTC().Format(time.RFC3339))
		return VerifyResult{}, ErrTokenExpired
	}
	if t.Used {
		log.Printf("Token service: verify rejected, token for user %s already used", t.UserID)
		return VerifyResult{}, ErrTokenAlreadyUsed
	}

	ok, err := s.store.MarkUsed(ctx, hash, now)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("mark connection token used: %w", err)
	}
	if !ok {
		// Lost the race against a concurrent verify.
		log.Printf("Token service: verify rejected, token for user %s used concurrently", t.UserID)
		return VerifyResult{}, ErrTokenAlreadyUsed
	}

	user, err := s.identity.Lookup(ctx, t.UserID)
	if err != nil {
		// Degraded success: the binding is proven by the token itself.
		log.Printf("Token service: identity lookup failed for user %s, using placeholder: %v", t.UserID, err)
		return VerifyResult{
			User:     Identity{ID: t.UserID, Email: PlaceholderEmail},
			Degraded: true,
		}, nil
	}

	log.Printf("Token service: verified connection token for user %s", t.UserID)
	return VerifyResult{User: user}, nil
}
