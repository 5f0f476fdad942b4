// ABOUTME: HTTP middleware authenticating requests by bearer token
// ABOUTME: Verified subjects are resolved to an Identity and stored in the request context

package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

// Bearer header errors
var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrMalformedHeader   = errors.New("invalid authorization header format")
)

// TokenVerifier validates an access token and returns its subject. *Issuer implements it.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

var _ TokenVerifier = (*Issuer)(nil)

// ResolveFunc maps a verified subject to an identity. It returns false when the
// subject is no longer known, for example a deleted account.
type ResolveFunc func(ctx context.Context, subject string) (*Identity, bool)

// RejectFunc writes the response for an unauthenticated request.
type RejectFunc func(w http.ResponseWriter, r *http.Request)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, error) {
	if header == "" {
		return "", ErrMissingAuthHeader
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", ErrMalformedHeader
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMalformedHeader
	}
	return token, nil
}

// HTTPAuthMiddleware rejects requests that lack a valid bearer token for a
// known subject. Authenticated requests carry the Identity in their context.
func HTTPAuthMiddleware(verifier TokenVerifier, resolve ResolveFunc, reject RejectFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r.Header.Get("Authorization"))
			if err != nil {
				logger.Debug("rejecting request", "path", r.URL.Path, "error", err)
				reject(w, r)
				return
			}

			subject, err := verifier.Verify(token)
			if err != nil {
				logger.Debug("rejecting token", "path", r.URL.Path, "error", err)
				reject(w, r)
				return
			}

			id, ok := resolve(r.Context(), subject)
			if !ok {
				logger.Debug("rejecting unknown subject", "subject", subject)
				reject(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
