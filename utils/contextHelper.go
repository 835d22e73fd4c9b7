package utils

import (
	"context"

	"bitbucket.org/mmdatafocus/bookkeeping_backend/appctx"
)

const (
	RoleAdmin      = "Admin"
	RoleBookkeeper = "Bookkeeper"
	RoleManager    = "Manager"
)

var (
	ContextKeySessionId     = appctx.ContextKeySessionId
	ContextKeyUserId        = appctx.ContextKeyUserId
	ContextKeyUserEmail     = appctx.ContextKeyUserEmail
	ContextKeyUserRole      = appctx.ContextKeyUserRole
	ContextKeyCorrelationId = appctx.ContextKeyCorrelationId
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserId    int
	Email     string
	Role      string
	SessionId string
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// SetIdentityInContext stores every identity field on ctx.
func SetIdentityInContext(ctx context.Context, identity Identity) context.Context {
	ctx = SetUserIdInContext(ctx, identity.UserId)
	ctx = SetUserEmailInContext(ctx, identity.Email)
	ctx = SetUserRoleInContext(ctx, identity.Role)
	if identity.SessionId != "" {
		ctx = SetSessionIdInContext(ctx, identity.SessionId)
	}
	return ctx
}

// GetIdentityFromContext returns false when the request is not authenticated.
func GetIdentityFromContext(ctx context.Context) (Identity, bool) {
	userId, ok := GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return Identity{}, false
	}
	email, _ := GetUserEmailFromContext(ctx)
	role, _ := GetUserRoleFromContext(ctx)
	sessionId, _ := GetSessionIdFromContext(ctx)
	return Identity{UserId: userId, Email: email, Role: role, SessionId: sessionId}, true
}

func GetSessionIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeySessionId)
}

func GetUserIdFromContext(ctx context.Context) (int, bool) {
	return appctx.GetInt(ctx, ContextKeyUserId)
}

func GetUserEmailFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserEmail)
}

func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyUserRole)
}

func GetCorrelationIdFromContext(ctx context.Context) (string, bool) {
	return appctx.GetString(ctx, ContextKeyCorrelationId)
}

func SetSessionIdInContext(ctx context.Context, sessionId string) context.Context {
	return appctx.Set(ctx, ContextKeySessionId, sessionId)
}

func SetUserIdInContext(ctx context.Context, userId int) context.Context {
	return appctx.Set(ctx, ContextKeyUserId, userId)
}

func SetUserEmailInContext(ctx context.Context, email string) context.Context {
	return appctx.Set(ctx, ContextKeyUserEmail, email)
}

func SetUserRoleInContext(ctx context.Context, role string) context.Context {
	return appctx.Set(ctx, ContextKeyUserRole, role)
}

func SetCorrelationIdInContext(ctx context.Context, correlationId string) context.Context {
	return appctx.Set(ctx, ContextKeyCorrelationId, correlationId)
}
