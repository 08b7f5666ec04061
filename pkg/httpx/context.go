package httpx

import "context"

type ctxKey string

const (
	ctxKeyUser   ctxKey = "user"
	ctxKeyUserID ctxKey = "user_id"
)

// Principal is anything an authenticated request can carry as its user.
type Principal interface {
	PrincipalID() string
}

// WithUser stores the resolved user (and its id) in ctx.
func WithUser[U Principal](ctx context.Context, u U) context.Context {
	ctx = context.WithValue(ctx, ctxKeyUser, u)
	return context.WithValue(ctx, ctxKeyUserID, u.PrincipalID())
}

// UserFromContext returns the user attached by AuthnMiddleware.
func UserFromContext[U Principal](ctx context.Context) (U, bool) {
	u, ok := ctx.Value(ctxKeyUser).(U)
	return u, ok
}

// UserIDFromContext returns the authenticated user's id, or "".
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyUserID).(string)
	return id
}
