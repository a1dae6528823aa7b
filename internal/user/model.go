package user

import (
	"strings"
	"time"

	"baklava-be/internal/auth"
)

type User struct {
	ID           uint
	Email        string
	PasswordHash string

	BusinessName string
	TaxID        string
	ContactName  string
	Phone        string
	Street       string
	City         string
	PostalCode   string
	Country      string

	Role            auth.Role
	Approval        auth.ApprovalStatus
	RejectionNote   *string
	DocsRequestNote *string
	DocsNotified    bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AuthContext is the per-request identity derived from the stored row.
func (u *User) AuthContext() auth.Context {
	return auth.Context{
		UserID:   u.ID,
		Email:    u.Email,
		Role:     u.Role,
		Approval: u.Approval,
	}
}

// PublicProfile is what an account holder sees about themselves. Review
// notes are admin-only and deliberately absent.
type PublicProfile struct {
	ID             uint                `json:"id"`
	Email          string              `json:"email"`
	BusinessName   string              `json:"business_name"`
	TaxID          string              `json:"tax_id"`
	ContactName    string              `json:"contact_name"`
	Phone          string              `json:"phone"`
	Street         string              `json:"street"`
	City           string              `json:"city"`
	PostalCode     string              `json:"postal_code"`
	Country        string              `json:"country"`
	Role           auth.Role           `json:"role"`
	ApprovalStatus auth.ApprovalStatus `json:"approval_status"`
	CreatedAt      time.Time           `json:"created_at"`
}

type AdminView struct {
	PublicProfile
	RejectionNote   *string   `json:"rejection_note"`
	DocsRequestNote *string   `json:"docs_request_note"`
	DocsNotified    bool      `json:"docs_notified"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (u *User) Public() PublicProfile {
	return PublicProfile{
		ID:             u.ID,
		Email:          u.Email,
		BusinessName:   u.BusinessName,
		TaxID:          u.TaxID,
		ContactName:    u.ContactName,
		Phone:          u.Phone,
		Street:         u.Street,
		City:           u.City,
		PostalCode:     u.PostalCode,
		Country:        u.Country,
		Role:           u.Role,
		ApprovalStatus: u.Approval,
		CreatedAt:      u.CreatedAt,
	}
}

func (u *User) Admin() AdminView {
	return AdminView{
		PublicProfile:   u.Public(),
		RejectionNote:   u.RejectionNote,
		DocsRequestNote: u.DocsRequestNote,
		DocsNotified:    u.DocsNotified,
		UpdatedAt:       u.UpdatedAt,
	}
}

type RegisterInput struct {
	Email        string `json:"email" validate:"required,email,max=254"`
	Password     string `json:"password" validate:"required,min=8,max=72"`
	BusinessName string `json:"business_name" validate:"required,max=200"`
	TaxID        string `json:"tax_id" validate:"required,max=32"`
	ContactName  string `json:"contact_name" validate:"required,max=200"`
	Phone        string `json:"phone" validate:"required,max=50"`
	Street       string `json:"street" validate:"required,max=300"`
	City         string `json:"city" validate:"required,max=120"`
	PostalCode   string `json:"postal_code" validate:"required,max=20"`
	Country      string `json:"country" validate:"required,max=80"`
}

func (in *RegisterInput) normalize() {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.BusinessName = strings.TrimSpace(in.BusinessName)
	in.TaxID = strings.ToUpper(strings.TrimSpace(in.TaxID))
	in.ContactName = strings.TrimSpace(in.ContactName)
	in.Phone = strings.TrimSpace(in.Phone)
	in.Street = strings.TrimSpace(in.Street)
	in.City = strings.TrimSpace(in.City)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Country = strings.TrimSpace(in.Country)
}

type ListFilter struct {
	Status *auth.ApprovalStatus
	Limit  int
	Page   int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

func (f *ListFilter) normalize() {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Page <= 0 {
		f.Page = 1
	}
}

type ApprovalInput struct {
	Status auth.ApprovalStatus `json:"status"`
	Note   string              `json:"note"`
}

type ResendResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
