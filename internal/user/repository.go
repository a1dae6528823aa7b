package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"baklava-be/internal/apperror"
	"baklava-be/internal/auth"
	"baklava-be/internal/db"
	"baklava-be/internal/logger"

	"go.uber.org/zap"
)

type Repository interface {
	Create(ctx context.Context, u *User) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id uint) (*User, error)
	List(ctx context.Context, filter ListFilter) ([]*User, error)

	// UpdateApproval moves the account from `from` to `to`. It fails with
	// ErrApprovalChanged if the stored status is no longer `from`.
	UpdateApproval(ctx context.Context, id uint, from, to auth.ApprovalStatus, rejectionNote *string) error
	MarkDocsRequested(ctx context.Context, id uint, from auth.ApprovalStatus, note string) error
	SetDocsNotified(ctx context.Context, id uint) error
	ListUnsentDocRequests(ctx context.Context) ([]*User, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

const userColumns = `
	id, email, password_hash, business_name, tax_id, contact_name, phone,
	street, city, postal_code, country, role, approval_status,
	rejection_note, docs_request_note, docs_notified, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*User, error) {
	var u User
	err := s.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.BusinessName, &u.TaxID, &u.ContactName, &u.Phone,
		&u.Street, &u.City, &u.PostalCode, &u.Country, &u.Role, &u.Approval,
		&u.RejectionNote, &u.DocsRequestNote, &u.DocsNotified, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *repository) Create(ctx context.Context, u *User) (*User, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "User"),
		zap.String("method", "Create"),
		zap.String("email", u.Email),
	)

	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (
			email, password_hash, business_name, tax_id, contact_name, phone,
			street, city, postal_code, country, role, approval_status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+userColumns,
		u.Email, u.PasswordHash, u.BusinessName, u.TaxID, u.ContactName, u.Phone,
		u.Street, u.City, u.PostalCode, u.Country, u.Role, u.Approval,
	)

	created, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err, "users_email_key") {
			log.Warn("email already registered")
			return nil, ErrEmailExists
		}
		log.Error("db: failed to insert user", zap.Error(err))
		return nil, apperror.Storage("failed to create user", err)
	}

	log.Info("user created", zap.Uint("user_id", created.ID))
	return created, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`,
		email,
	)
	return r.scanOne(ctx, row, "FindByEmail")
}

func (r *repository) FindByID(ctx context.Context, id uint) (*User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`,
		id,
	)
	return r.scanOne(ctx, row, "FindByID")
}

func (r *repository) scanOne(ctx context.Context, row *sql.Row, method string) (*User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to load user",
			zap.String("repo", "User"),
			zap.String("method", method),
			zap.Error(err),
		)
		return nil, apperror.Storage("failed to load user", err)
	}
	return u, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]*User, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "User"),
		zap.String("method", "List"),
	)

	filter.normalize()

	var (
		where []string
		args  []any
	)
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("approval_status = $%d", len(args)))
	}

	query := `SELECT ` + userColumns + ` FROM users`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("db: failed to list users", zap.Error(err))
		return nil, apperror.Storage("failed to list users", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			log.Error("db: failed to scan user", zap.Error(err))
			return nil, apperror.Storage("failed to list users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		log.Error("db: rows error", zap.Error(err))
		return nil, apperror.Storage("failed to list users", err)
	}

	return users, nil
}

func (r *repository) UpdateApproval(
	ctx context.Context,
	id uint,
	from, to auth.ApprovalStatus,
	rejectionNote *string,
) error {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "User"),
		zap.String("method", "UpdateApproval"),
		zap.Uint("target_user_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET approval_status = $1,
		    rejection_note = $2,
		    updated_at = NOW()
		WHERE id = $3 AND approval_status = $4
	`, to, rejectionNote, id, from)
	if err != nil {
		log.Error("db: failed to update approval", zap.Error(err))
		return apperror.Storage("failed to update approval status", err)
	}

	return expectOneRow(res, log)
}

func (r *repository) MarkDocsRequested(ctx context.Context, id uint, from auth.ApprovalStatus, note string) error {
	log := logger.FromCtx(ctx).With(
		zap.String("repo", "User"),
		zap.String("method", "MarkDocsRequested"),
		zap.Uint("target_user_id", id),
	)

	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET approval_status = $1,
		    docs_request_note = $2,
		    docs_notified = FALSE,
		    rejection_note = NULL,
		    updated_at = NOW()
		WHERE id = $3 AND approval_status = $4
	`, auth.ApprovalRequestDocs, note, id, from)
	if err != nil {
		log.Error("db: failed to record documents request", zap.Error(err))
		return apperror.Storage("failed to record documents request", err)
	}

	return expectOneRow(res, log)
}

func (r *repository) SetDocsNotified(ctx context.Context, id uint) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users SET docs_notified = TRUE, updated_at = NOW() WHERE id = $1
	`, id)
	if err != nil {
		logger.FromCtx(ctx).Error("db: failed to mark documents request notified",
			zap.String("repo", "User"),
			zap.Uint("target_user_id", id),
			zap.Error(err),
		)
		return apperror.Storage("failed to update documents request", err)
	}
	return nil
}

func (r *repository) ListUnsentDocRequests(ctx context.Context) ([]*User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE approval_status = $1 AND docs_notified = FALSE
		ORDER BY updated_at ASC
	`, auth.ApprovalRequestDocs)
	if err != nil {
		return nil, apperror.Storage("failed to list documents requests", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperror.Storage("failed to list documents requests", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Storage("failed to list documents requests", err)
	}
	return users, nil
}

func expectOneRow(res sql.Result, log *zap.Logger) error {
	n, err := res.RowsAffected()
	if err != nil {
		log.Error("db: rows affected unavailable", zap.Error(err))
		return apperror.Storage("failed to update user", err)
	}
	if n == 0 {
		log.Warn("approval status changed concurrently")
		return ErrApprovalChanged
	}
	return nil
}
