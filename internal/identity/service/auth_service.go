package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	accountdomain "memodams/backend/internal/account/domain"
	accountrepo "memodams/backend/internal/account/repository"
	"memodams/backend/internal/audit"
	auditdomain "memodams/backend/internal/audit/domain"
	identitydomain "memodams/backend/internal/identity/domain"
	"memodams/backend/internal/mail"
	"memodams/backend/internal/security"
	sessiondomain "memodams/backend/internal/session/domain"
)

// Sentinel errors for the auth service; handlers map them to HTTP statuses.
var (
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrInvalidCredentials     = errors.New("invalid email or password")
	ErrInvalidRefreshToken    = errors.New("invalid or expired refresh token")
	ErrRefreshTokenReuse      = errors.New("refresh token reuse detected; all sessions revoked")
	ErrInvalidLink            = errors.New("link is invalid or has expired")
	ErrInvalidEmail           = errors.New("invalid email format")
	ErrWeakPassword           = errors.New("password must be at least 6 characters")
	ErrAccountNotFound        = errors.New("account not found")
	ErrSessionNotFound        = errors.New("session not found")
)

const (
	minPasswordLength    = 6
	verifyEmailLinkTTL   = 24 * time.Hour
	resetPasswordLinkTTL = time.Hour
)

// Tokens is the session material handed to the browser once sign-in completes.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	AccountID    string
	SessionID    string
}

// AccountRepo is the minimal account repository needed by the auth service.
type AccountRepo interface {
	GetByID(ctx context.Context, id string) (*accountdomain.Account, error)
	GetByEmail(ctx context.Context, email string) (*accountdomain.Account, error)
	Create(ctx context.Context, a *accountdomain.Account) error
	SetEmailVerified(ctx context.Context, id string) error
}

// IdentityRepo is the minimal identity repository needed by the auth service.
type IdentityRepo interface {
	GetByAccountAndProvider(ctx context.Context, accountID string, provider identitydomain.Provider) (*identitydomain.Identity, error)
	Create(ctx context.Context, i *identitydomain.Identity) error
	UpdatePasswordHash(ctx context.Context, id, passwordHash string) error
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	GetByID(ctx context.Context, id string) (*sessiondomain.Session, error)
	ListByAccount(ctx context.Context, accountID string) ([]*sessiondomain.Session, error)
	Create(ctx context.Context, s *sessiondomain.Session) error
	Revoke(ctx context.Context, id string) error
	RevokeAllByAccount(ctx context.Context, accountID string) error
	UpdateRefreshToken(ctx context.Context, id, jti, refreshTokenHash string) error
	UpdateLastSeen(ctx context.Context, id string, at time.Time) error
}

// ProfileInitializer creates the empty profile document at sign-up.
type ProfileInitializer interface {
	EnsureCreated(ctx context.Context, accountID string) error
}

// AuthService implements the password credential store: sign-up, first-factor
// sign-in, session issue/refresh/logout, email verification and password reset.
// It never decides step-up requirements; that is the caller's job.
type AuthService struct {
	accounts   AccountRepo
	identities IdentityRepo
	sessions   SessionRepo
	profiles   ProfileInitializer
	hasher     *security.Hasher
	tokens     *security.TokenProvider
	mailer     mail.Sender
	links      mail.Links
	audit      audit.AuditLogger
	refreshTTL time.Duration
	now        func() time.Time
}

// NewAuthService returns an AuthService with the given dependencies. auditLogger may be nil.
func NewAuthService(
	accounts AccountRepo,
	identities IdentityRepo,
	sessions SessionRepo,
	profiles ProfileInitializer,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	mailer mail.Sender,
	links mail.Links,
	auditLogger audit.AuditLogger,
	refreshTTL time.Duration,
) *AuthService {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &AuthService{
		accounts:   accounts,
		identities: identities,
		sessions:   sessions,
		profiles:   profiles,
		hasher:     hasher,
		tokens:     tokens,
		mailer:     mailer,
		links:      links,
		audit:      auditLogger,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// NormalizeEmail trims and lower-cases an email for lookup and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates an unverified account with a local password identity and an empty
// profile, then sends the verification email. A mail failure does not undo the sign-up;
// the user can resend from the verify-email page.
func (s *AuthService) SignUp(ctx context.Context, email, password, name string) (*accountdomain.Account, error) {
	email = NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if len(password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	existing, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailAlreadyRegistered
	}
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	acct := &accountdomain.Account{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Status:    accountdomain.AccountStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := acct.Validate(); err != nil {
		return nil, err
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		if errors.Is(err, accountrepo.ErrEmailTaken) {
			return nil, ErrEmailAlreadyRegistered
		}
		return nil, err
	}
	ident := &identitydomain.Identity{
		ID:           uuid.New().String(),
		AccountID:    acct.ID,
		Provider:     identitydomain.ProviderLocal,
		ProviderID:   email,
		PasswordHash: hashed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.identities.Create(ctx, ident); err != nil {
		return nil, err
	}
	if s.profiles != nil {
		if err := s.profiles.EnsureCreated(ctx, acct.ID); err != nil {
			return nil, err
		}
	}
	s.audit.LogEvent(ctx, acct.ID, auditdomain.ActionSignUp, "account", "")
	_ = s.SendVerificationEmail(ctx, acct.ID)
	return acct, nil
}

// Authenticate checks email and password and returns the account. It is the first
// factor only: no session is created. Unknown email, wrong password, and disabled
// accounts are indistinguishable to the caller.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*accountdomain.Account, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	acct, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if !acct.Active() {
		return nil, ErrInvalidCredentials
	}
	if err := s.checkPassword(ctx, acct.ID, password); err != nil {
		return nil, err
	}
	return acct, nil
}

func (s *AuthService) checkPassword(ctx context.Context, accountID, password string) error {
	ident, err := s.identities.GetByAccountAndProvider(ctx, accountID, identitydomain.ProviderLocal)
	if err != nil {
		return err
	}
	if ident == nil || ident.PasswordHash == "" {
		return ErrInvalidCredentials
	}
	if err := s.hasher.Compare(ident.PasswordHash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// IssueSession creates a session for a fully authorized sign-in and returns its tokens.
func (s *AuthService) IssueSession(ctx context.Context, acct *accountdomain.Account, deviceID, ip string) (*Tokens, error) {
	sessionID := uuid.New().String()
	refreshToken, jti, refreshExp, err := s.tokens.IssueRefresh(sessionID, acct.ID)
	if err != nil {
		return nil, err
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(sessionID, subjectOf(acct))
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	sess := &sessiondomain.Session{
		ID:               sessionID,
		AccountID:        acct.ID,
		DeviceID:         deviceID,
		ExpiresAt:        refreshExp,
		LastSeenAt:       &now,
		IPAddress:        ip,
		RefreshJti:       jti,
		RefreshTokenHash: security.Digest(refreshToken),
		CreatedAt:        now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		AccountID:    acct.ID,
		SessionID:    sessionID,
	}, nil
}

// Refresh validates the refresh token, rotates it, and returns new tokens. The account
// is re-read so claim changes (admin grant, email verification) show up here.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}
	sessionID, jti, accountID, err := s.tokens.ValidateRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !sess.Active(now) || sess.AccountID != accountID {
		return nil, ErrInvalidRefreshToken
	}
	if sess.RefreshJti != jti {
		_ = s.sessions.RevokeAllByAccount(ctx, accountID)
		return nil, ErrRefreshTokenReuse
	}
	if !security.DigestEqual(refreshToken, sess.RefreshTokenHash) {
		return nil, ErrInvalidRefreshToken
	}
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !acct.Active() {
		_ = s.sessions.Revoke(ctx, sessionID)
		return nil, ErrInvalidRefreshToken
	}
	_ = s.sessions.UpdateLastSeen(ctx, sessionID, now)
	newRefresh, newJti, _, err := s.tokens.IssueRefresh(sessionID, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateRefreshToken(ctx, sessionID, newJti, security.Digest(newRefresh)); err != nil {
		return nil, err
	}
	accessToken, accessExp, err := s.tokens.IssueAccess(sessionID, subjectOf(acct))
	if err != nil {
		return nil, err
	}
	return &Tokens{
		AccessToken:  accessToken,
		RefreshToken: newRefresh,
		ExpiresAt:    accessExp,
		AccountID:    accountID,
		SessionID:    sessionID,
	}, nil
}

// Logout revokes the session named by refreshToken, or sessionID when no refresh token is
// given (bearer logout). Invalid tokens are a no-op so logout always succeeds for the client.
func (s *AuthService) Logout(ctx context.Context, refreshToken, sessionID string) error {
	if refreshToken != "" {
		sid, _, _, err := s.tokens.ValidateRefresh(refreshToken)
		if err != nil {
			return nil
		}
		sessionID = sid
	}
	if sessionID == "" {
		return nil
	}
	return s.sessions.Revoke(ctx, sessionID)
}

// ListSessions returns the account's sessions that are still active, newest first.
func (s *AuthService) ListSessions(ctx context.Context, accountID string) ([]*sessiondomain.Session, error) {
	all, err := s.sessions.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	out := all[:0]
	for _, sess := range all {
		if sess.Active(now) {
			out = append(out, sess)
		}
	}
	return out, nil
}

// RevokeSession signs out one of the account's own sessions.
func (s *AuthService) RevokeSession(ctx context.Context, accountID, sessionID string) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess == nil || sess.AccountID != accountID {
		return ErrSessionNotFound
	}
	if err := s.sessions.Revoke(ctx, sessionID); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, accountID, auditdomain.ActionSessionRevoked, "session", "session="+sessionID)
	return nil
}

// SessionActive reports whether sessionID is neither revoked nor expired. It backs the
// access-token check so logout and revocation apply before the token expires.
func (s *AuthService) SessionActive(ctx context.Context, sessionID string) (bool, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return sess.Active(s.now()), nil
}

// Reload returns the current account record (fresh email_verified and admin flags).
func (s *AuthService) Reload(ctx context.Context, accountID string) (*accountdomain.Account, error) {
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

// SendVerificationEmail mails a fresh verification link. No-op for verified accounts.
func (s *AuthService) SendVerificationEmail(ctx context.Context, accountID string) error {
	acct, err := s.Reload(ctx, accountID)
	if err != nil {
		return err
	}
	if acct.EmailVerified {
		return nil
	}
	token, err := s.tokens.IssueAction(security.PurposeVerifyEmail, acct.ID, acct.Email, verifyEmailLinkTTL)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, s.links.VerificationEmail(acct.Email, acct.Name, token))
}

// VerifyEmail consumes a verification link. The link is bound to the address it was sent to.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*accountdomain.Account, error) {
	accountID, boundEmail, err := s.tokens.ValidateAction(token, security.PurposeVerifyEmail)
	if err != nil {
		return nil, ErrInvalidLink
	}
	acct, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil || acct.Email != boundEmail {
		return nil, ErrInvalidLink
	}
	if !acct.EmailVerified {
		if err := s.accounts.SetEmailVerified(ctx, acct.ID); err != nil {
			return nil, err
		}
		acct.EmailVerified = true
		s.audit.LogEvent(ctx, acct.ID, auditdomain.ActionEmailVerified, "account", "")
	}
	return acct, nil
}

// RequestPasswordReset mails a reset link when the email belongs to an account with a
// password. It reports success either way so callers cannot enumerate accounts.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	acct, err := s.accounts.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return err
	}
	if !acct.Active() {
		return nil
	}
	ident, err := s.identities.GetByAccountAndProvider(ctx, acct.ID, identitydomain.ProviderLocal)
	if err != nil || ident == nil {
		return err
	}
	token, err := s.tokens.IssueAction(security.PurposeResetPassword, acct.ID, passwordBinding(ident.PasswordHash), resetPasswordLinkTTL)
	if err != nil {
		return err
	}
	return s.mailer.Send(ctx, s.links.PasswordResetEmail(acct.Email, token))
}

// ResetPassword consumes a reset link. The link dies once the password changes, and every
// session of the account is revoked.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	accountID, binding, err := s.tokens.ValidateAction(token, security.PurposeResetPassword)
	if err != nil {
		return ErrInvalidLink
	}
	ident, err := s.identities.GetByAccountAndProvider(ctx, accountID, identitydomain.ProviderLocal)
	if err != nil {
		return err
	}
	if ident == nil || passwordBinding(ident.PasswordHash) != binding {
		return ErrInvalidLink
	}
	if err := s.setPassword(ctx, ident, newPassword); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, accountID, auditdomain.ActionPasswordReset, "account", "")
	return s.sessions.RevokeAllByAccount(ctx, accountID)
}

// ChangePassword re-authenticates with the current password before replacing it.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	if len(newPassword) < minPasswordLength {
		return ErrWeakPassword
	}
	if err := s.checkPassword(ctx, accountID, currentPassword); err != nil {
		return err
	}
	ident, err := s.identities.GetByAccountAndProvider(ctx, accountID, identitydomain.ProviderLocal)
	if err != nil {
		return err
	}
	if err := s.setPassword(ctx, ident, newPassword); err != nil {
		return err
	}
	s.audit.LogEvent(ctx, accountID, auditdomain.ActionPasswordChanged, "account", "")
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, ident *identitydomain.Identity, password string) error {
	hashed, err := s.hasher.Hash([]byte(password))
	if err != nil {
		return err
	}
	return s.identities.UpdatePasswordHash(ctx, ident.ID, hashed)
}

// passwordBinding fingerprints the current hash so a reset link stops working after use.
func passwordBinding(hash string) string {
	return security.Digest(hash)[:16]
}

func subjectOf(a *accountdomain.Account) security.Subject {
	return security.Subject{AccountID: a.ID, Email: a.Email, EmailVerified: a.EmailVerified, Admin: a.Admin}
}

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func validateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}
