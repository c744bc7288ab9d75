package admin

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid bearer token")
)

// Authorizer decides whether a request may use the admin endpoints.
type Authorizer interface {
	Authorize(r *http.Request) error
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(r *http.Request) error

func (f AuthorizerFunc) Authorize(r *http.Request) error { return f(r) }

// AllowAll authorizes every request.
var AllowAll = AuthorizerFunc(func(*http.Request) error { return nil })

// TokenAuthorizer accepts requests carrying "Authorization: Bearer <token>".
type TokenAuthorizer struct {
	token []byte
}

func NewTokenAuthorizer(token string) *TokenAuthorizer {
	return &TokenAuthorizer{token: []byte(token)}
}

func (a *TokenAuthorizer) Authorize(r *http.Request) error {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return ErrMissingToken
	}
	if subtle.ConstantTimeCompare([]byte(token), a.token) != 1 {
		return ErrInvalidToken
	}
	return nil
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.auth.Authorize(r); err != nil {
			s.logger.Warn("unauthorized %s %s from %s: %s", r.Method, r.URL.Path, r.RemoteAddr, err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="cachekit"`)
			s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}
