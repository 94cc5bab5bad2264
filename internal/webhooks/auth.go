package webhooks

import (
	"context"
	"net/http"
	"strings"

	"hookd/pkg/errors"
)

// TokenResolver turns an access token into a user identifier. It is
// the seam towards whatever identity system fronts the service.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (userID string, err error)
}

// StaticTokenResolver resolves tokens from a fixed token-to-user map.
// Suitable for tests and single-tenant deployments.
type StaticTokenResolver map[string]string

func (r StaticTokenResolver) Resolve(ctx context.Context, token string) (string, error) {
	userID, ok := r[token]
	if !ok {
		return "", errors.ErrUnauthorized.WithDetail("reason", "unknown access token")
	}
	return userID, nil
}

// RequestToken extracts the access token from the Authorization bearer
// header or, failing that, the access_token query parameter.
func RequestToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("access_token")
}
