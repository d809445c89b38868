package common

import "context"

type ctxKey string

const (
	subjectKey ctxKey = "auth/subject"
	rolesKey   ctxKey = "auth/roles"
)

// WithSubject stores the authenticated principal and its roles on the context.
func WithSubject(ctx context.Context, subject string, roles []string) context.Context {
	ctx = context.WithValue(ctx, subjectKey, subject)
	return context.WithValue(ctx, rolesKey, roles)
}

// Subject extracts the authenticated principal from the context if present.
func Subject(ctx context.Context) (string, bool) {
	v := ctx.Value(subjectKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// Roles returns the roles attached by the auth middleware.
func Roles(ctx context.Context) []string {
	roles, _ := ctx.Value(rolesKey).([]string)
	return roles
}
