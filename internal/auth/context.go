package auth

import (
	"context"

	"baklava-be/internal/apperror"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type ApprovalStatus string

const (
	ApprovalPending     ApprovalStatus = "pending"
	ApprovalApproved    ApprovalStatus = "approved"
	ApprovalRejected    ApprovalStatus = "rejected"
	ApprovalRequestDocs ApprovalStatus = "request_docs"
)

func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalPending, ApprovalApproved, ApprovalRejected, ApprovalRequestDocs:
		return true
	}
	return false
}

// Context identifies the caller of a core operation. It is built once per
// request by the auth middleware and passed down explicitly.
type Context struct {
	UserID   uint
	Email    string
	Role     Role
	Approval ApprovalStatus
}

// Anonymous is the zero Context.
var Anonymous = Context{}

func (c Context) Authenticated() bool { return c.UserID != 0 }
func (c Context) IsAdmin() bool       { return c.Authenticated() && c.Role == RoleAdmin }

// IsApproved reports whether the caller may see prices and place orders.
// Admins always can.
func (c Context) IsApproved() bool {
	return c.IsAdmin() || (c.Authenticated() && c.Approval == ApprovalApproved)
}

var (
	ErrLoginRequired   = apperror.Unauthenticated("login required")
	ErrAdminOnly       = apperror.Forbidden("admin access required")
	ErrAccountNotReady = apperror.Forbidden("account is not approved for ordering")
)

func RequireUser(c Context) error {
	if !c.Authenticated() {
		return ErrLoginRequired
	}
	return nil
}

func RequireAdmin(c Context) error {
	if !c.Authenticated() {
		return ErrLoginRequired
	}
	if !c.IsAdmin() {
		return ErrAdminOnly
	}
	return nil
}

func RequireApproved(c Context) error {
	if !c.Authenticated() {
		return ErrLoginRequired
	}
	if !c.IsApproved() {
		return ErrAccountNotReady
	}
	return nil
}

type ctxKey string

const authContextKey ctxKey = "auth_context"

func WithContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, authContextKey, c)
}

// FromContext returns the caller stored by the middleware, or Anonymous.
func FromContext(ctx context.Context) Context {
	c, _ := ctx.Value(authContextKey).(Context)
	return c
}
