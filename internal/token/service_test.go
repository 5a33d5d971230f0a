package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeIdentity struct {
	users map[string]Identity
	err   error
}

func (f *fakeIdentity) Authenticate(ctx context.Context, bearer string) (Identity, error) {
	if f.err != nil {
		return Identity{}, f.err
	}
	if id, ok := f.users[bearer]; ok {
		return id, nil
	}
	return Identity{}, ErrUnauthorized
}

func (f *fakeIdentity) Lookup(ctx context.Context, userID string) (Identity, error) {
	if f.err != nil {
		return Identity{}, f.err
	}
	for _, id := range f.users {
		if id.ID == userID {
			return id, nil
		}
	}
	return Identity{}, fmt.Errorf("user %s not found", userID)
}

func testIdentity() *fakeIdentity {
	return &fakeIdentity{users: map[string]Identity{
		"good-bearer": {ID: "user-1", Email: "user@example.com", CreatedAt: "2024-01-01T00:00:00Z"},
	}}
}

func TestIssueAndVerifyRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, testIdentity())
	ctx := context.Background()

	res, err := svc.Issue(ctx, Identity{ID: "user-1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if res.RawToken == "" {
		t.Fatal("Issue() returned empty raw token")
	}
	if !strings.HasPrefix(res.DeepLinkURL, "whisperme://connect?token="+res.RawToken) {
		t.Errorf("deep link = %q", res.DeepLinkURL)
	}
	if !strings.Contains(res.DeepLinkURL, "email=user%40example.com") {
		t.Errorf("deep link missing url-encoded email: %q", res.DeepLinkURL)
	}

	got, err := svc.Verify(ctx, res.RawToken)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if got.User.ID != "user-1" || got.User.Email != "user@example.com" {
		t.Errorf("Verify() user = %+v", got.User)
	}
	if got.Degraded {
		t.Errorf("Verify() reported degraded identity")
	}
}

func TestRawTokenNeverPersisted(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, testIdentity())

	res, err := svc.Issue(context.Background(), Identity{ID: "user-1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	stored, err := store.GetByHash(context.Background(), Hash(res.RawToken))
	if err != nil {
		t.Fatalf("GetByHash() error = %v", err)
	}
	if stored.TokenHash != Hash(res.RawToken) {
		t.Errorf("stored hash does not match hash of issued token")
	}
	if stored.TokenHash == res.RawToken {
		t.Errorf("raw token stored verbatim")
	}
	for _, row := range store.byHash {
		if row.TokenHash == res.RawToken || row.ID == res.RawToken || row.UserID == res.RawToken {
			t.Errorf("raw token leaked into persisted row: %+v", row)
		}
	}
}

func TestVerifySecondUseRejected(t *testing.T) {
	svc := NewService(NewMemoryStore(), testIdentity())
	ctx := context.Background()

	res, err := svc.Issue(ctx, Identity{ID: "user-1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := svc.Verify(ctx, res.RawToken); err != nil {
		t.Fatalf("first Verify() error = %v", err)
	}
	_, err = svc.Verify(ctx, res.RawToken)
	if !errors.Is(err, ErrTokenAlreadyUsed) {
		t.Errorf("second Verify() error = %v, want ErrTokenAlreadyUsed", err)
	}
}

func TestVerifyUnknownToken(t *testing.T) {
	svc := NewService(NewMemoryStore(), testIdentity())
	_, err := svc.Verify(context.Background(), "deadbeef")
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Verify(unknown) error = %v, want ErrInvalidToken", err)
	}
}

func TestVerifyExpiryBoundary(t *testing.T) {
	issuedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		offset  time.Duration
		wantErr error
	}{
		{"just inside window", 299 * time.Second, nil},
		{"just outside window", 301 * time.Second, ErrTokenExpired},
		{"exactly at expiry", 300 * time.Second, ErrTokenExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := issuedAt
			svc := NewService(NewMemoryStore(), testIdentity(), WithClock(func() time.Time { return now }))

			res, err := svc.Issue(context.Background(), Identity{ID: "user-1", Email: "user@example.com"})
			if err != nil {
				t.Fatalf("Issue() error = %v", err)
			}

			now = issuedAt.Add(tt.offset)
			_, err = svc.Verify(context.Background(), res.RawToken)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() at +%v error = %v, want %v", tt.offset, err, tt.wantErr)
			}
		})
	}
}

func TestVerifyAtMostOnceUnderConcurrency(t *testing.T) {
	svc := NewService(NewMemoryStore(), testIdentity())
	ctx := context.Background()

	res, err := svc.Issue(ctx, Identity{ID: "user-1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Verify(ctx, res.RawToken)
		}(i)
	}
	wg.Wait()

	successes, alreadyUsed := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrTokenAlreadyUsed):
			alreadyUsed++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("successes = %d, want exactly 1", successes)
	}
	if alreadyUsed != n-1 {
		t.Errorf("already-used rejections = %d, want %d", alreadyUsed, n-1)
	}
}

func TestVerifyDegradedIdentity(t *testing.T) {
	ident := testIdentity()
	svc := NewService(NewMemoryStore(), ident)
	ctx := context.Background()

	res, err := svc.Issue(ctx, Identity{ID: "user-1", Email: "user@example.com"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	ident.err = errors.New("identity service down")
	got, err := svc.Verify(ctx, res.RawToken)
	if err != nil {
		t.Fatalf("Verify() with broken identity provider error = %v, want degraded success", err)
	}
	if !got.Degraded {
		t.Errorf("Verify() Degraded = false")
	}
	if got.User.ID != "user-1" || got.User.Email != PlaceholderEmail {
		t.Errorf("degraded identity = %+v", got.User)
	}

	// Degraded verification still consumes the token.
	_, err = svc.Verify(ctx, res.RawToken)
	if !errors.Is(err, ErrTokenAlreadyUsed) {
		t.Errorf("re-verify after degraded success error = %v, want ErrTokenAlreadyUsed", err)
	}
}

func TestIssueRequiresUser(t *testing.T) {
	svc := NewService(NewMemoryStore(), testIdentity())
	_, err := svc.Issue(context.Background(), Identity{})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Issue(empty identity) error = %v, want ErrUnauthorized", err)
	}
}

func TestHashIsStable(t *testing.T) {
	if Hash("abc123") != Hash("abc123") {
		t.Errorf("Hash not deterministic")
	}
	if Hash("abc123") == Hash("abc124") {
		t.Errorf("Hash collision on adjacent inputs")
	}
	if len(Hash("abc123")) != 64 {
		t.Errorf("Hash length = %d, want 64 hex chars", len(Hash("abc123")))
	}
}

func TestNewSecretEntropy(t *testing.T) {
	a, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret() error = %v", err)
	}
	b, err := NewSecret()
	if err != nil {
		t.Fatalf("NewSecret() error = %v", err)
	}
	if len(a) != 64 {
		t.Errorf("secret length = %d, want 64 hex chars (256 bits)", len(a))
	}
	if a == b {
		t.Errorf("two secrets identical")
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	store.Insert(context.Background(), Token{TokenHash: "old", ExpiresAt: now.Add(-time.Minute)})
	store.Insert(context.Background(), Token{TokenHash: "live", ExpiresAt: now.Add(time.Minute)})

	if removed := store.Sweep(now); removed != 1 {
		t.Errorf("Sweep() removed = %d, want 1", removed)
	}
	if _, err := store.GetByHash(context.Background(), "live"); err != nil {
		t.Errorf("live token swept: %v", err)
	}
	if _, err := store.GetByHash(context.Background(), "old"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expired token survived sweep")
	}
}
