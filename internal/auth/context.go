package auth

import (
	"context"

	"github.com/hbkim/iljeong/internal/model"
)

type contextKey struct{}

// AuthContext carries the authenticated profile through a request.
type AuthContext struct {
	ProfileID     int64
	PositionTitle string
	Role          string
	SessionID     int64
}

func WithAuth(ctx context.Context, ac AuthContext) context.Context {
	return context.WithValue(ctx, contextKey{}, ac)
}

func FromContext(ctx context.Context) (AuthContext, bool) {
	ac, ok := ctx.Value(contextKey{}).(AuthContext)
	return ac, ok
}

func ProfileID(ctx context.Context) int64 {
	ac, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return ac.ProfileID
}

func IsAdmin(ctx context.Context) bool {
	ac, ok := FromContext(ctx)
	if !ok {
		return false
	}
	return ac.Role == model.RoleAdmin
}
