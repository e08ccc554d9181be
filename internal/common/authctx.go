package common

import "context"

type ctxKey string

const userIDKey ctxKey = "auth/user-id"
const userRolesKey ctxKey = "auth/user-roles"

// WithUserID stores the authenticated admin identifier on the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserID extracts the authenticated admin identifier from the context.
func UserID(ctx context.Context) (string, bool) {
	v := ctx.Value(userIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// WithUserRoles stores the authenticated admin's roles on the context.
func WithUserRoles(ctx context.Context, roles []string) context.Context {
	return context.WithValue(ctx, userRolesKey, roles)
}

// UserRoles extracts the authenticated admin's roles from the context.
func UserRoles(ctx context.Context) []string {
	if v, ok := ctx.Value(userRolesKey).([]string); ok {
		return v
	}
	return nil
}
