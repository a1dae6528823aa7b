package user

import (
	"context"
	"errors"
	"strings"

	"baklava-be/internal/apperror"
	"baklava-be/internal/auth"
	"baklava-be/internal/email"
	"baklava-be/internal/logger"
	"baklava-be/internal/metrics"
	"baklava-be/internal/validation"

	"go.uber.org/zap"
)

type Service interface {
	Register(ctx context.Context, in RegisterInput) (*User, error)
	Login(ctx context.Context, email, password string) (string, *User, error)
	Me(ctx context.Context, ac auth.Context) (PublicProfile, error)

	List(ctx context.Context, ac auth.Context, filter ListFilter) ([]AdminView, error)
	Get(ctx context.Context, ac auth.Context, id uint) (AdminView, error)
	SetApproval(ctx context.Context, ac auth.Context, id uint, in ApprovalInput) (AdminView, error)
	RequestDocuments(ctx context.Context, ac auth.Context, id uint, message string) (AdminView, error)
	ResendPendingDocumentRequests(ctx context.Context, ac auth.Context) (ResendResult, error)

	// LoadAuthContext rebuilds the caller identity from the stored row so
	// role and approval changes apply on the next request.
	LoadAuthContext(ctx context.Context, userID uint) (auth.Context, error)
}

type service struct {
	repo       Repository
	mailer     email.Sender
	adminEmail string
	counters   *metrics.Registry
}

func NewService(repo Repository, mailer email.Sender, adminEmail string, counters *metrics.Registry) Service {
	if counters == nil {
		counters = metrics.NewRegistry()
	}
	return &service{
		repo:       repo,
		mailer:     mailer,
		adminEmail: adminEmail,
		counters:   counters,
	}
}

func (s *service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.normalize()
	log := logger.FromCtx(ctx).With(
		zap.String("service", "User"),
		zap.String("method", "Register"),
		zap.String("email", in.Email),
	)

	if err := validation.Struct(in); err != nil {
		log.Warn("invalid registration input", zap.Error(err))
		return nil, err
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		log.Error("failed to hash password", zap.Error(err))
		return nil, apperror.Wrap(apperror.KindInternal, "failed to hash password", err)
	}

	u, err := s.repo.Create(ctx, &User{
		Email:        in.Email,
		PasswordHash: hashed,
		BusinessName: in.BusinessName,
		TaxID:        in.TaxID,
		ContactName:  in.ContactName,
		Phone:        in.Phone,
		Street:       in.Street,
		City:         in.City,
		PostalCode:   in.PostalCode,
		Country:      in.Country,
		Role:         auth.RoleUser,
		Approval:     auth.ApprovalPending,
	})
	if err != nil {
		return nil, err
	}

	if s.adminEmail != "" {
		s.sendBestEffort(ctx, email.RegistrationReceived(s.adminEmail, u.BusinessName, u.Email))
	}

	log.Info("register service completed", zap.Uint("new_user_id", u.ID))
	return u, nil
}

func (s *service) Login(ctx context.Context, emailAddr, password string) (string, *User, error) {
	emailAddr = strings.ToLower(strings.TrimSpace(emailAddr))
	log := logger.FromCtx(ctx).With(
		zap.String("service", "User"),
		zap.String("method", "Login"),
		zap.String("email", emailAddr),
	)

	u, err := s.repo.FindByEmail(ctx, emailAddr)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			log.Info("email not found")
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}

	if !CheckPasswordHash(password, u.PasswordHash) {
		log.Info("password not match")
		return "", nil, ErrInvalidCredentials
	}

	token, err := GenerateJWT(u.ID, string(u.Role), u.Email)
	if err != nil {
		log.Error("failed to generate jwt", zap.Error(err))
		return "", nil, apperror.Wrap(apperror.KindInternal, "failed to issue session", err)
	}

	log.Info("login succeeded", zap.Uint("login_user_id", u.ID))
	return token, u, nil
}

func (s *service) Me(ctx context.Context, ac auth.Context) (PublicProfile, error) {
	if err := auth.RequireUser(ac); err != nil {
		return PublicProfile{}, err
	}
	u, err := s.repo.FindByID(ctx, ac.UserID)
	if err != nil {
		return PublicProfile{}, err
	}
	return u.Public(), nil
}

func (s *service) LoadAuthContext(ctx context.Context, userID uint) (auth.Context, error) {
	u, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return auth.Anonymous, err
	}
	return u.AuthContext(), nil
}

func (s *service) List(ctx context.Context, ac auth.Context, filter ListFilter) ([]AdminView, error) {
	if err := auth.RequireAdmin(ac); err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, ErrInvalidApprovalStatus
	}

	users, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	views := make([]AdminView, 0, len(users))
	for _, u := range users {
		views = append(views, u.Admin())
	}
	return views, nil
}

func (s *service) Get(ctx context.Context, ac auth.Context, id uint) (AdminView, error) {
	if err := auth.RequireAdmin(ac); err != nil {
		return AdminView{}, err
	}
	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return AdminView{}, err
	}
	return u.Admin(), nil
}

func (s *service) SetApproval(ctx context.Context, ac auth.Context, id uint, in ApprovalInput) (AdminView, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "User"),
		zap.String("method", "SetApproval"),
		zap.Uint("target_user_id", id),
		zap.String("to", string(in.Status)),
	)

	if err := auth.RequireAdmin(ac); err != nil {
		return AdminView{}, err
	}
	if !in.Status.Valid() {
		return AdminView{}, ErrInvalidApprovalStatus
	}
	if in.Status == auth.ApprovalRequestDocs {
		return AdminView{}, ErrUseRequestDocuments
	}

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return AdminView{}, err
	}

	from := u.Approval
	if from == in.Status {
		log.Info("approval unchanged")
		return u.Admin(), nil
	}
	if !CanTransitionApproval(from, in.Status) {
		log.Warn("approval transition rejected", zap.String("from", string(from)))
		return AdminView{}, ErrApprovalTransition
	}

	var note *string
	if in.Status == auth.ApprovalRejected {
		if trimmed := strings.TrimSpace(in.Note); trimmed != "" {
			note = &trimmed
		}
	}

	if err := s.repo.UpdateApproval(ctx, id, from, in.Status, note); err != nil {
		return AdminView{}, err
	}

	log.Info("approval status changed",
		zap.String("from", string(from)),
		zap.Uint("admin_id", ac.UserID),
	)

	if in.Status == auth.ApprovalApproved {
		s.sendBestEffort(ctx, email.AccountApproved(u.Email, u.ContactName))
	}

	return s.Get(ctx, ac, id)
}

// RequestDocuments records the request before emailing so a failed send
// leaves docs_notified=false for ResendPendingDocumentRequests to pick up.
func (s *service) RequestDocuments(ctx context.Context, ac auth.Context, id uint, message string) (AdminView, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "User"),
		zap.String("method", "RequestDocuments"),
		zap.Uint("target_user_id", id),
	)

	if err := auth.RequireAdmin(ac); err != nil {
		return AdminView{}, err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return AdminView{}, apperror.Validation("message", "message is required")
	}

	u, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return AdminView{}, err
	}
	if !CanTransitionApproval(u.Approval, auth.ApprovalRequestDocs) {
		log.Warn("documents request not allowed", zap.String("from", string(u.Approval)))
		return AdminView{}, ErrApprovalTransition
	}

	if err := s.repo.MarkDocsRequested(ctx, id, u.Approval, message); err != nil {
		return AdminView{}, err
	}

	err = s.mailer.Send(ctx, email.DocumentsRequested(u.Email, u.ContactName, message))
	if errors.Is(err, email.ErrNotConfigured) {
		s.counters.Inc(metrics.DocsRequestPending)
		log.Warn("documents request saved, no email provider configured")
		return s.Get(ctx, ac, id)
	}
	if err != nil {
		s.counters.Inc(metrics.EmailsFailed)
		s.counters.Inc(metrics.DocsRequestPending)
		log.Error("documents request saved but email failed", zap.Error(err))
		return AdminView{}, ErrDocsEmailFailed
	}

	if err := s.repo.SetDocsNotified(ctx, id); err != nil {
		// The email went out; a resend would duplicate it but nothing is lost.
		log.Error("email sent but notified flag not saved", zap.Error(err))
		return AdminView{}, err
	}

	log.Info("documents requested", zap.Uint("admin_id", ac.UserID))
	return s.Get(ctx, ac, id)
}

func (s *service) ResendPendingDocumentRequests(ctx context.Context, ac auth.Context) (ResendResult, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("service", "User"),
		zap.String("method", "ResendPendingDocumentRequests"),
	)

	if err := auth.RequireAdmin(ac); err != nil {
		return ResendResult{}, err
	}

	users, err := s.repo.ListUnsentDocRequests(ctx)
	if err != nil {
		return ResendResult{}, err
	}

	var res ResendResult
	for _, u := range users {
		note := ""
		if u.DocsRequestNote != nil {
			note = *u.DocsRequestNote
		}
		if err := s.mailer.Send(ctx, email.DocumentsRequested(u.Email, u.ContactName, note)); err != nil {
			if !errors.Is(err, email.ErrNotConfigured) {
				s.counters.Inc(metrics.EmailsFailed)
			}
			log.Warn("resend failed", zap.Uint("target_user_id", u.ID), zap.Error(err))
			res.Failed++
			continue
		}
		if err := s.repo.SetDocsNotified(ctx, u.ID); err != nil {
			res.Failed++
			continue
		}
		res.Sent++
	}

	log.Info("documents requests resent", zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
	return res, nil
}

func (s *service) sendBestEffort(ctx context.Context, msg email.Message) {
	if err := s.mailer.Send(ctx, msg); err != nil && !errors.Is(err, email.ErrNotConfigured) {
		s.counters.Inc(metrics.EmailsFailed)
		logger.FromCtx(ctx).Warn("notification email failed",
			zap.String("subject", msg.Subject),
			zap.Error(err),
		)
	}
}
