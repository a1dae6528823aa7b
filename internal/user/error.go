package user

import "baklava-be/internal/apperror"

var (
	ErrEmailExists           = apperror.Conflict("email already registered")
	ErrInvalidCredentials    = apperror.Unauthenticated("invalid email or password")
	ErrUserNotFound          = apperror.NotFound("user not found")
	ErrInvalidApprovalStatus = apperror.Validation("status", "status must be one of: pending, approved, rejected, request_docs")
	ErrApprovalTransition    = apperror.Conflict("approval status transition not allowed")
	ErrUseRequestDocuments   = apperror.Validation("status", "use the request-docs action to ask for documents")
	ErrApprovalChanged       = apperror.Conflict("account was updated by someone else, reload and try again")
	ErrDocsEmailFailed       = apperror.New(apperror.KindExternal, "documents request saved but the email could not be sent")
)
