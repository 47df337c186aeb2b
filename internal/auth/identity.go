// Package auth carries the caller identity established upstream and guards
// routes by role. Credentials are verified before requests reach this service.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/storefront/internal/domain"
	"github.com/joao-fontenele/storefront/internal/respond"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

type Identity struct {
	UserID string
	Role   domain.Role
}

func (i Identity) IsAdmin() bool {
	return i.Role == domain.RoleAdmin
}

// CanActFor reports whether the caller may read or act on userID's data.
func (i Identity) CanActFor(userID string) bool {
	return i.IsAdmin() || i.UserID == userID
}

type contextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// FromRequest reads the identity headers. A missing user id or an unknown
// role yields no identity.
func FromRequest(r *http.Request) (Identity, bool) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return Identity{}, false
	}
	role, err := domain.ParseRole(r.Header.Get(HeaderUserRole))
	if err != nil {
		return Identity{}, false
	}
	return Identity{UserID: userID, Role: role}, true
}

type Guard struct {
	out    *respond.Writer
	logger *slog.Logger
}

func NewGuard(logger *slog.Logger) *Guard {
	return &Guard{out: respond.New(logger), logger: logger}
}

// Identify stores the caller identity, when present, in the request context.
func (g *Guard) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := FromRequest(r); ok {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

func (g *Guard) RequireIdentity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := g.identity(r)
		if !ok {
			g.out.Error(w, r, domain.ErrUnauthenticated)
			return
		}
		next(w, r.WithContext(WithIdentity(r.Context(), id)))
	}
}

func (g *Guard) RequireRole(role domain.Role, next http.HandlerFunc) http.HandlerFunc {
	return g.RequireIdentity(func(w http.ResponseWriter, r *http.Request) {
		id, _ := FromContext(r.Context())
		if id.Role != role {
			g.logger.Warn("role check failed", "user_id", id.UserID, "role", id.Role, "required", role, "path", r.URL.Path)
			g.out.Error(w, r, fmt.Errorf("%s role required: %w", role, domain.ErrForbidden))
			return
		}
		next(w, r)
	})
}

func (g *Guard) identity(r *http.Request) (Identity, bool) {
	if id, ok := FromContext(r.Context()); ok {
		return id, true
	}
	return FromRequest(r)
}
