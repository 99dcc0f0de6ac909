package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/rsa"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired, or fails validation.
	ErrInvalidToken = errors.New("invalid token")
)

const (
	useAccess  = "access"
	useRefresh = "refresh"
	useAction  = "action"
)

// Token purposes for single-use action links.
const (
	PurposeVerifyEmail   = "verify_email"
	PurposeResetPassword = "reset_password"
)

// Claims is the typed claim set carried by access tokens. It is the only
// place the API reads identity attributes from a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Admin         bool   `json:"admin"`
	SessionID     string `json:"session_id"`
	Use           string `json:"token_use"`
}

// AccountID returns the subject of the token.
func (c *Claims) AccountID() string { return c.Subject }

// Subject describes the account an access token is issued for.
type Subject struct {
	AccountID     string
	Email         string
	EmailVerified bool
	Admin         bool
}

// RefreshClaims holds JWT claims for the refresh token (jti binds it to the session for rotation).
type RefreshClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"session_id"`
	Use       string `json:"token_use"`
}

// ActionClaims back single-purpose links (email verification, password reset).
// Binding ties the link to mutable account state so it stops working once that state changes.
type ActionClaims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose"`
	Binding string `json:"bnd,omitempty"`
	Use     string `json:"token_use"`
}

// TokenProvider issues and validates JWTs using RS256 or ES256.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenProvider returns a TokenProvider that signs with privateKey and verifies with publicKey.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, accessTTL, refreshTTL time.Duration) *TokenProvider {
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// AccessTTL is the lifetime of issued access tokens.
func (p *TokenProvider) AccessTTL() time.Duration { return p.accessTTL }

func (p *TokenProvider) registered(subject string, ttl time.Duration) (jwt.RegisteredClaims, error) {
	jti, err := generateJTI()
	if err != nil {
		return jwt.RegisteredClaims{}, err
	}
	now := p.now().UTC()
	return jwt.RegisteredClaims{
		ID:        jti,
		Subject:   subject,
		Issuer:    p.issuer,
		Audience:  jwt.ClaimStrings{p.audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}, nil
}

// IssueAccess issues a short-lived access JWT for the session. Returns token and expiry.
func (p *TokenProvider) IssueAccess(sessionID string, sub Subject) (string, time.Time, error) {
	rc, err := p.registered(sub.AccountID, p.accessTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	token, err := p.sign(Claims{
		RegisteredClaims: rc,
		Email:            sub.Email,
		EmailVerified:    sub.EmailVerified,
		Admin:            sub.Admin,
		SessionID:        sessionID,
		Use:              useAccess,
	})
	return token, rc.ExpiresAt.Time, err
}

// IssueRefresh issues a long-lived refresh JWT and returns the token, its jti
// (the caller stores it on the session), and expiration time.
func (p *TokenProvider) IssueRefresh(sessionID, accountID string) (token, jti string, expiresAt time.Time, err error) {
	rc, err := p.registered(accountID, p.refreshTTL)
	if err != nil {
		return "", "", time.Time{}, err
	}
	token, err = p.sign(RefreshClaims{RegisteredClaims: rc, SessionID: sessionID, Use: useRefresh})
	return token, rc.ID, rc.ExpiresAt.Time, err
}

// IssueAction issues a purpose-scoped token for an emailed link.
func (p *TokenProvider) IssueAction(purpose, accountID, binding string, ttl time.Duration) (string, error) {
	rc, err := p.registered(accountID, ttl)
	if err != nil {
		return "", err
	}
	return p.sign(ActionClaims{RegisteredClaims: rc, Purpose: purpose, Binding: binding, Use: useAction})
}

func (p *TokenProvider) sign(claims jwt.Claims) (string, error) {
	var method jwt.SigningMethod
	switch p.privateKey.Public().(type) {
	case *rsa.PublicKey:
		method = jwt.SigningMethodRS256
	case *ecdsa.PublicKey:
		method = jwt.SigningMethodES256
	default:
		return "", ErrInvalidToken
	}
	return jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
}

// parse verifies signature, expiry, issuer and audience, decoding into claims.
func (p *TokenProvider) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		switch token.Method.(type) {
		case *jwt.SigningMethodRSA, *jwt.SigningMethodECDSA:
			return p.publicKey, nil
		}
		return nil, ErrInvalidToken
	},
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// ValidateAccess verifies an access token and returns its typed claims.
func (p *TokenProvider) ValidateAccess(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if err := p.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Use != useAccess || claims.Subject == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateRefresh verifies a refresh token. Returns sessionID, jti, and accountID.
func (p *TokenProvider) ValidateRefresh(tokenString string) (sessionID, jti, accountID string, err error) {
	claims := &RefreshClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return "", "", "", err
	}
	if claims.Use != useRefresh || claims.SessionID == "" || claims.ID == "" {
		return "", "", "", ErrInvalidToken
	}
	return claims.SessionID, claims.ID, claims.Subject, nil
}

// ValidateAction verifies an action token for the given purpose. Returns accountID and binding.
func (p *TokenProvider) ValidateAction(tokenString, purpose string) (accountID, binding string, err error) {
	claims := &ActionClaims{}
	if err := p.parse(tokenString, claims); err != nil {
		return "", "", err
	}
	if claims.Use != useAction || claims.Purpose != purpose || claims.Subject == "" {
		return "", "", ErrInvalidToken
	}
	return claims.Subject, claims.Binding, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
