package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/mmkontis/whisperme/internal/token"
)

// AccessTokenSentinel tells the desktop client to establish its own session
// with the identity provider instead of reusing a literal credential.
const AccessTokenSentinel = "use_external_session"

// Server exposes the connection-token HTTP API consumed by the web
// dashboard (issue) and the desktop client (verify).
type Server struct {
	svc      *token.Service
	identity token.IdentityProvider
}

func New(svc *token.Service, identity token.IdentityProvider) *Server {
	return &Server{svc: svc, identity: identity}
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(logMiddleware)
	r.HandleFunc("/api/connect-token", s.handleIssue).Methods(http.MethodPost)
	r.HandleFunc("/api/connect-token", s.handleVerify).Methods(http.MethodGet)
	return r
}

type issueResponse struct {
	ConnectionToken  string `json:"connection_token"`
	DeepLinkURL      string `json:"deep_link_url"`
	ExpiresAt        string `json:"expires_at"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

type verifyResponse struct {
	User        token.Identity `json:"user"`
	Message     string         `json:"message"`
	AccessToken string         `json:"access_token"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleIssue(w http.ResponseWriter, r *http.Request) {
	user, err := s.identity.Authenticate(r.Context(), bearerToken(r))
	if err != nil {
		log.Printf("Server: issue rejected, caller not authenticated: %v", err)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
		return
	}

	res, err := s.svc.Issue(r.Context(), user)
	if err != nil {
		log.Printf("Server: failed to issue connection token: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Failed to generate connection token",
			Details: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, issueResponse{
		ConnectionToken:  res.RawToken,
		DeepLinkURL:      res.DeepLinkURL,
		ExpiresAt:        res.ExpiresAt.UTC().Format(time.RFC3339),
		ExpiresInSeconds: int(token.TTL / time.Second),
	})
}

// handleVerify is deliberately reachable without a bearer credential: the
// single-use, time-boxed, high-entropy token is the credential, because the
// desktop app has no prior session to present.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Connection token is required"})
		return
	}

	res, err := s.svc.Verify(r.Context(), raw)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, verifyResponse{
			User:        res.User,
			Message:     "Connection successful. User authenticated.",
			AccessToken: AccessTokenSentinel,
		})
	case errors.Is(err, token.ErrInvalidToken):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Invalid connection token"})
	case errors.Is(err, token.ErrTokenExpired):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Connection token has expired"})
	case errors.Is(err, token.ErrTokenAlreadyUsed):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Connection token has already been used"})
	default:
		log.Printf("Server: verify failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:   "Internal server error",
			Details: err.Error(),
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return ""
	}
	return strings.TrimPrefix(h, "Bearer ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Server: failed to encode response: %v", err)
	}
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("Server: %s %s (%v)", r.Method, r.URL.Path, time.Since(start))
	})
}
