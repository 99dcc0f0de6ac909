// Package service manages second-factor enrollment: TOTP authenticator apps and SMS phones.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	accountrepo "memodams/backend/internal/account/repository"
	"memodams/backend/internal/audit"
	auditdomain "memodams/backend/internal/audit/domain"
	"memodams/backend/internal/mfa"
	"memodams/backend/internal/mfa/domain"
	"memodams/backend/internal/mfa/repository"
	"memodams/backend/internal/mfa/sms"
)

var (
	ErrEmailNotVerified      = errors.New("verify your email before enrolling a second factor")
	ErrFactorAlreadyEnrolled = errors.New("a second factor is already enrolled")
	ErrFactorNotFound        = errors.New("factor not found")
	ErrInvalidCode           = errors.New("invalid verification code")
	ErrInvalidPhone          = errors.New("phone must be 8 to 15 digits")
	ErrAccountNotFound       = errors.New("account not found")
)

// TOTPEnrollment is what the client needs to add the secret to an authenticator app.
type TOTPEnrollment struct {
	FactorID string
	Secret   string
	URL      string
}

type FactorService struct {
	accounts accountrepo.Repository
	factors  repository.Repository
	codes    *mfa.CodeSender
	audit    audit.AuditLogger
	issuer   string
	now      func() time.Time
}

// NewFactorService returns a FactorService. issuer labels TOTP entries in authenticator apps.
func NewFactorService(accounts accountrepo.Repository, factors repository.Repository, codes *mfa.CodeSender, auditLogger audit.AuditLogger, issuer string) *FactorService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &FactorService{accounts: accounts, factors: factors, codes: codes, audit: auditLogger, issuer: issuer, now: time.Now}
}

// List returns every factor of the account, pending ones included.
func (s *FactorService) List(ctx context.Context, accountID string) ([]*domain.Factor, error) {
	return s.factors.ListByAccount(ctx, accountID)
}

// Enrolled returns the account's confirmed factor, or nil.
func (s *FactorService) Enrolled(ctx context.Context, accountID string) (*domain.Factor, error) {
	list, err := s.factors.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, f := range list {
		if f.Confirmed() {
			return f, nil
		}
	}
	return nil, nil
}

// beginEnrollment checks the account may enroll and drops abandoned enrollments.
func (s *FactorService) beginEnrollment(ctx context.Context, accountID string) (string, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrAccountNotFound
	}
	if !acct.EmailVerified {
		return "", ErrEmailNotVerified
	}
	enrolled, err := s.Enrolled(ctx, accountID)
	if err != nil {
		return "", err
	}
	if enrolled != nil {
		return "", ErrFactorAlreadyEnrolled
	}
	if err := s.factors.DeletePendingByAccount(ctx, accountID); err != nil {
		return "", err
	}
	return acct.Email, nil
}

// EnrollTOTP creates a pending TOTP factor and returns its secret and otpauth URL.
func (s *FactorService) EnrollTOTP(ctx context.Context, accountID string) (*TOTPEnrollment, error) {
	email, err := s.beginEnrollment(ctx, accountID)
	if err != nil {
		return nil, err
	}
	key, err := mfa.NewTOTPKey(s.issuer, email)
	if err != nil {
		return nil, err
	}
	f := &domain.Factor{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        domain.KindTOTP,
		DisplayName: "Authenticator app",
		Secret:      key.Secret(),
		CreatedAt:   s.now().UTC(),
	}
	if err := s.factors.Create(ctx, f); err != nil {
		return nil, err
	}
	return &TOTPEnrollment{FactorID: f.ID, Secret: key.Secret(), URL: key.URL()}, nil
}

// ConfirmTOTP completes the pending TOTP enrollment once the app produces a valid code.
func (s *FactorService) ConfirmTOTP(ctx context.Context, accountID, code string) error {
	f, err := s.pending(ctx, accountID, domain.KindTOTP, "")
	if err != nil {
		return err
	}
	if !mfa.ValidateTOTP(strings.TrimSpace(code), f.Secret, s.now()) {
		return ErrInvalidCode
	}
	return s.confirm(ctx, f)
}

// EnrollPhone creates a pending phone factor and texts it a code. Returns the enrollment id.
func (s *FactorService) EnrollPhone(ctx context.Context, accountID, phone string) (string, error) {
	normalized, ok := NormalizePhone(phone)
	if !ok {
		return "", ErrInvalidPhone
	}
	if _, err := s.beginEnrollment(ctx, accountID); err != nil {
		return "", err
	}
	f := &domain.Factor{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Kind:        domain.KindPhone,
		DisplayName: "Phone",
		Phone:       normalized,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.factors.Create(ctx, f); err != nil {
		return "", err
	}
	hash, exp, err := s.codes.Send(ctx, f.ID, normalized)
	if err != nil {
		_ = s.factors.Delete(ctx, f.ID)
		return "", err
	}
	if err := s.factors.SetPendingCode(ctx, f.ID, hash, exp); err != nil {
		return "", err
	}
	return f.ID, nil
}

// ConfirmPhone completes a phone enrollment with the code that was texted to it.
func (s *FactorService) ConfirmPhone(ctx context.Context, accountID, enrollmentID, code string) error {
	f, err := s.pending(ctx, accountID, domain.KindPhone, enrollmentID)
	if err != nil {
		return err
	}
	if f.PendingCodeExpires == nil || !s.now().Before(*f.PendingCodeExpires) {
		return ErrInvalidCode
	}
	if !mfa.OTPEqual(strings.TrimSpace(code), f.PendingCodeHash) {
		return ErrInvalidCode
	}
	if err := s.confirm(ctx, f); err != nil {
		return err
	}
	s.codes.Forget(ctx, f.ID)
	return nil
}

// Unenroll removes a factor of the account, pending or confirmed.
func (s *FactorService) Unenroll(ctx context.Context, accountID, factorID string) error {
	f, err := s.factors.GetByID(ctx, factorID)
	if err != nil {
		return err
	}
	if f == nil || f.AccountID != accountID {
		return ErrFactorNotFound
	}
	if err := s.factors.Delete(ctx, factorID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, accountID, auditdomain.ActionFactorUnenrolled, "factors", string(f.Kind))
	return nil
}

// pending finds the account's unconfirmed factor of kind; id narrows it when set.
func (s *FactorService) pending(ctx context.Context, accountID string, kind domain.Kind, id string) (*domain.Factor, error) {
	list, err := s.factors.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for i := len(list) - 1; i >= 0; i-- {
		f := list[i]
		if f.Kind == kind && !f.Confirmed() && (id == "" || f.ID == id) {
			return f, nil
		}
	}
	return nil, ErrFactorNotFound
}

func (s *FactorService) confirm(ctx context.Context, f *domain.Factor) error {
	err := s.factors.Confirm(ctx, f.ID, s.now().UTC())
	if errors.Is(err, repository.ErrAlreadyConfirmed) {
		return ErrFactorAlreadyEnrolled
	}
	if err != nil {
		return err
	}
	s.audit.LogEvent(ctx, f.AccountID, auditdomain.ActionFactorEnrolled, "factors", string(f.Kind))
	return nil
}

// NormalizePhone strips formatting and a leading "+" and accepts 8 to 15 digits.
func NormalizePhone(phone string) (string, bool) {
	digits, err := sms.Digits(phone)
	return digits, err == nil
}
