package token

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PlaceholderEmail is returned when a token verifies but the identity
// provider cannot be reached. Verification still succeeds; only the
// identity enrichment degrades.
const PlaceholderEmail = "connected_user@whisperme.app"

// Identity is a user's public projection from the external auth provider.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at,omitempty"`
}

// IdentityProvider delegates authentication and user lookup to the external
// identity service. Account and session storage live there, not here.
type IdentityProvider interface {
	// Authenticate resolves a bearer credential to the calling user.
	Authenticate(ctx context.Context, bearer string) (Identity, error)
	// Lookup resolves a user id to its public identity.
	Lookup(ctx context.Context, userID string) (Identity, error)
}

// HTTPIdentityProvider talks to an identity service over REST:
// GET /user with a bearer header, GET /users/{id} for admin lookup.
type HTTPIdentityProvider struct {
	BaseURL  string
	AdminKey string
	Client   *http.Client
}

func NewHTTPIdentityProvider(baseURL, adminKey string) *HTTPIdentityProvider {
	return &HTTPIdentityProvider{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *HTTPIdentityProvider) Authenticate(ctx context.Context, bearer string) (Identity, error) {
	if bearer == "" {
		return Identity{}, ErrUnauthorized
	}
	return p.fetch(ctx, p.BaseURL+"/user", "Bearer "+bearer)
}

func (p *HTTPIdentityProvider) Lookup(ctx context.Context, userID string) (Identity, error) {
	return p.fetch(ctx, p.BaseURL+"/users/"+userID, "Bearer "+p.AdminKey)
}

func (p *HTTPIdentityProvider) fetch(ctx context.Context, url, auth string) (Identity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("identity request: %w", err)
	}
	req.Header.Set("Authorization", auth)

	resp, err := p.Client.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return Identity{}, ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("identity provider returned %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return Identity{}, fmt.Errorf("decode identity response: %w", err)
	}
	if id.ID == "" {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}
