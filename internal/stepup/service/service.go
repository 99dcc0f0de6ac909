// Package service drives step-up sign-in: password first, then whatever second factor,
// email verification, or security question the account and device still owe.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	accountdomain "memodams/backend/internal/account/domain"
	"memodams/backend/internal/audit"
	auditdomain "memodams/backend/internal/audit/domain"
	identityservice "memodams/backend/internal/identity/service"
	"memodams/backend/internal/logging"
	"memodams/backend/internal/mfa"
	mfadomain "memodams/backend/internal/mfa/domain"
	"memodams/backend/internal/policy/engine"
	profiledomain "memodams/backend/internal/profile/domain"
	"memodams/backend/internal/security"
	"memodams/backend/internal/stepup/domain"
	"memodams/backend/internal/stepup/repository"
	"memodams/backend/internal/telemetry"
	telemetrydomain "memodams/backend/internal/telemetry/domain"
)

var (
	ErrInvalidCredential       = errors.New("invalid email or password")
	ErrInvalidSecondFactorCode = errors.New("invalid verification code")
	ErrInvalidSecurityAnswer   = errors.New("incorrect security answer")
	ErrStaleOrMissingChallenge = errors.New("step-up challenge is missing or expired")
	ErrTooManyAttempts         = errors.New("too many failed attempts")
	// ErrWrongStage is returned when a step is attempted out of order.
	ErrWrongStage = errors.New("challenge is waiting for a different step")
)

const (
	DefaultChallengeTTL     = 10 * time.Minute
	DefaultMaxAttempts      = 5
	DefaultLockoutThreshold = 10
	DefaultLockoutWindow    = 15 * time.Minute
)

// Credentials is the password credential store.
type Credentials interface {
	Authenticate(ctx context.Context, email, password string) (*accountdomain.Account, error)
	Reload(ctx context.Context, accountID string) (*accountdomain.Account, error)
	SendVerificationEmail(ctx context.Context, accountID string) error
	IssueSession(ctx context.Context, acct *accountdomain.Account, deviceID, ip string) (*identityservice.Tokens, error)
}

// Documents returns the per-account profile document holding the security question.
type Documents interface {
	Get(ctx context.Context, accountID string) (*profiledomain.Profile, error)
}

// Factors returns the account's enrolled second factor, or nil.
type Factors interface {
	Enrolled(ctx context.Context, accountID string) (*mfadomain.Factor, error)
}

// DeviceFlags is the device verification flag store.
type DeviceFlags interface {
	VerifiedWithin(ctx context.Context, accountID, deviceID string, maxAge time.Duration) (bool, error)
	MarkDeviceVerified(ctx context.Context, accountID, deviceID, label string) error
	ClearAll(ctx context.Context, deviceID string) error
}

// CodeSender delivers SMS codes and returns their hash.
type CodeSender interface {
	Send(ctx context.Context, deliveryID, phone string) (codeHash string, expiresAt time.Time, err error)
	Forget(ctx context.Context, deliveryID string)
}

// AnswerChecker compares a security answer with its stored hash.
type AnswerChecker interface {
	AnswerMatches(hash, answer string) bool
}

// AccessVerifier verifies bearer tokens and the session behind them.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, token string) (*security.Claims, error)
}

// Deps are the collaborators of Service. Audit, Events, Log and Policy may be nil.
// A nil Lockouts keeps the counters in process memory.
type Deps struct {
	Challenges  repository.Repository
	Lockouts    repository.Lockouts
	Credentials Credentials
	Documents   Documents
	Factors     Factors
	Devices     DeviceFlags
	Codes       CodeSender
	Answers     AnswerChecker
	Tokens      AccessVerifier
	Policy      engine.Evaluator
	Audit       audit.AuditLogger
	Events      telemetry.Recorder
	Log         logging.Logger
}

// Config bounds challenges. Zero values take the defaults.
type Config struct {
	ChallengeTTL time.Duration
	// MaxAttempts is the wrong codes or answers one challenge survives.
	MaxAttempts int
	// LockoutThreshold is the wrong codes or answers an account may give across all of
	// its challenges within LockoutWindow. Reaching it refuses step-up for LockoutWindow.
	LockoutThreshold int
	LockoutWindow    time.Duration
}

// Client identifies the browser driving a sign-in.
type Client struct {
	DeviceID  string
	IP        string
	UserAgent string
}

// Result is the outcome of a step: where the browser goes next and what the page needs.
type Result struct {
	State       domain.State
	Route       string
	ChallengeID string
	Hints       []domain.FactorHint
	// SecurityQuestion is set while the question is pending.
	SecurityQuestion string
	// Email is set while email verification is pending.
	Email     string
	ExpiresAt time.Time
	// Tokens is set once the sign-in is authorized.
	Tokens *identityservice.Tokens
}

type Service struct {
	Deps
	cfg Config
	now func() time.Time
}

func NewService(deps Deps, cfg Config) *Service {
	if cfg.ChallengeTTL <= 0 {
		cfg.ChallengeTTL = DefaultChallengeTTL
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.LockoutThreshold <= 0 {
		cfg.LockoutThreshold = DefaultLockoutThreshold
	}
	if cfg.LockoutWindow <= 0 {
		cfg.LockoutWindow = DefaultLockoutWindow
	}
	if deps.Lockouts == nil {
		deps.Lockouts = repository.NewMemoryLockouts()
	}
	if deps.Policy == nil {
		deps.Policy = engine.Baseline{}
	}
	if deps.Audit == nil {
		deps.Audit = audit.Nop{}
	}
	if deps.Events == nil {
		deps.Events = telemetry.Nop{}
	}
	if deps.Log == nil {
		deps.Log = logging.Nop()
	}
	return &Service{Deps: deps, cfg: cfg, now: time.Now}
}

// SignIn checks the password and decides what the sign-in still owes. Wrong email and
// wrong password are not distinguished and never lock the account. An account locked by
// failed second steps gets ErrTooManyAttempts even with the right password.
func (s *Service) SignIn(ctx context.Context, email, password string, client Client) (*Result, error) {
	acct, err := s.Credentials.Authenticate(ctx, email, password)
	if errors.Is(err, identityservice.ErrInvalidCredentials) {
		s.Audit.LogEvent(ctx, "", auditdomain.ActionLoginFailure, "auth", "")
		s.emit(ctx, telemetrydomain.EventLoginFailed, "", client.DeviceID, nil)
		return nil, ErrInvalidCredential
	}
	if err != nil {
		return nil, err
	}
	if err := s.checkLockout(ctx, acct.ID); err != nil {
		if errors.Is(err, ErrTooManyAttempts) {
			s.Audit.LogEvent(ctx, acct.ID, auditdomain.ActionLoginFailure, "auth", "locked")
			s.emit(ctx, telemetrydomain.EventLoginFailed, acct.ID, client.DeviceID, map[string]string{"reason": "locked"})
		}
		return nil, err
	}
	return s.advance(ctx, acct, client, nil, progress{})
}

// Resume describes a pending challenge to a freshly loaded step-up page. A missing or
// expired challenge sends a signed-in bearer to the dashboard and everyone else to login.
func (s *Service) Resume(ctx context.Context, challengeID, deviceID, bearer string) (*Result, error) {
	ch, err := s.load(ctx, challengeID, deviceID)
	if errors.Is(err, ErrStaleOrMissingChallenge) {
		if bearer != "" {
			_, verr := s.Tokens.VerifyAccess(ctx, bearer)
			if verr == nil {
				return &Result{State: domain.StateAuthorized, Route: domain.RouteDashboard}, nil
			}
			if !security.IsRejected(verr) {
				return nil, verr
			}
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	res := s.pending(ch)
	switch ch.Stage {
	case domain.StageSecurityQuestion:
		p, err := s.Documents.Get(ctx, ch.AccountID)
		if err != nil {
			return nil, err
		}
		res.SecurityQuestion = p.SecurityQuestion
	case domain.StageEmailVerification:
		acct, err := s.Credentials.Reload(ctx, ch.AccountID)
		if err != nil {
			return nil, err
		}
		res.Email = acct.Email
	}
	return res, nil
}

// SendFactorCode texts a fresh code to the enrolled phone. Only the hash is kept.
func (s *Service) SendFactorCode(ctx context.Context, challengeID, deviceID string) error {
	ch, err := s.loadAt(ctx, challengeID, deviceID, domain.StageFactor)
	if err != nil {
		return err
	}
	if _, ok := ch.PhoneHint(); !ok {
		return ErrWrongStage
	}
	f, err := s.currentFactor(ctx, ch)
	if err != nil {
		return err
	}
	hash, exp, err := s.Codes.Send(ctx, ch.ID, f.Phone)
	if err != nil {
		return err
	}
	ch.CodeHash = hash
	ch.CodeExpiresAt = &exp
	ch.UpdatedAt = s.now().UTC()
	return s.Challenges.Update(ctx, ch)
}

// VerifyFactor checks a TOTP or SMS code against the enrolled factor.
func (s *Service) VerifyFactor(ctx context.Context, challengeID, code string, client Client) (*Result, error) {
	ch, err := s.loadAt(ctx, challengeID, client.DeviceID, domain.StageFactor)
	if err != nil {
		return nil, err
	}
	f, err := s.currentFactor(ctx, ch)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	now := s.now()
	var ok bool
	switch f.Kind {
	case mfadomain.KindTOTP:
		ok = mfa.ValidateTOTP(code, f.Secret, now)
	case mfadomain.KindPhone:
		ok = ch.CodeExpiresAt != nil && now.Before(*ch.CodeExpiresAt) && mfa.OTPEqual(code, ch.CodeHash)
	}
	if !ok {
		return nil, s.fail(ctx, ch, ErrInvalidSecondFactorCode)
	}
	s.Codes.Forget(ctx, ch.ID)
	acct, err := s.Credentials.Reload(ctx, ch.AccountID)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, acct, client, ch, progress{factorSatisfied: true})
}

// AnswerSecurityQuestion compares the normalized answer with the stored hash. A match
// marks the device verified for the account.
func (s *Service) AnswerSecurityQuestion(ctx context.Context, challengeID, answer string, client Client) (*Result, error) {
	ch, err := s.loadAt(ctx, challengeID, client.DeviceID, domain.StageSecurityQuestion)
	if err != nil {
		return nil, err
	}
	p, err := s.Documents.Get(ctx, ch.AccountID)
	if err != nil {
		return nil, err
	}
	if p.HasSecurityQuestion() {
		if !s.Answers.AnswerMatches(p.SecurityAnswerHash, answer) {
			return nil, s.fail(ctx, ch, ErrInvalidSecurityAnswer)
		}
		if err := s.Devices.MarkDeviceVerified(ctx, ch.AccountID, ch.DeviceID, client.UserAgent); err != nil {
			return nil, err
		}
	}
	acct, err := s.Credentials.Reload(ctx, ch.AccountID)
	if err != nil {
		return nil, err
	}
	return s.advance(ctx, acct, client, ch, progress{factorSatisfied: ch.FactorSatisfied, questionAnswered: true})
}

// ResendVerification mails a new verification link. Only valid while email verification is pending.
func (s *Service) ResendVerification(ctx context.Context, challengeID, deviceID string) error {
	ch, err := s.loadAt(ctx, challengeID, deviceID, domain.StageEmailVerification)
	if err != nil {
		return err
	}
	return s.Credentials.SendVerificationEmail(ctx, ch.AccountID)
}

// RecheckVerification re-reads the account. Until the email is verified it returns the
// same pending result.
func (s *Service) RecheckVerification(ctx context.Context, challengeID string, client Client) (*Result, error) {
	ch, err := s.loadAt(ctx, challengeID, client.DeviceID, domain.StageEmailVerification)
	if err != nil {
		return nil, err
	}
	acct, err := s.Credentials.Reload(ctx, ch.AccountID)
	if err != nil {
		return nil, err
	}
	if !acct.EmailVerified {
		res := s.pending(ch)
		res.Email = acct.Email
		return res, nil
	}
	return s.advance(ctx, acct, client, ch, progress{factorSatisfied: ch.FactorSatisfied})
}

// Abort drops the challenge, if any, and every verification flag held by the device.
func (s *Service) Abort(ctx context.Context, challengeID, deviceID string) error {
	if challengeID != "" {
		ch, err := s.Challenges.Get(ctx, challengeID)
		if err != nil {
			return err
		}
		if ch != nil && ch.DeviceID == deviceID {
			if err := s.Challenges.Delete(ctx, ch.ID); err != nil {
				return err
			}
			s.Codes.Forget(ctx, ch.ID)
			s.Audit.LogEvent(ctx, ch.AccountID, auditdomain.ActionStepUpAborted, "stepup_challenges", string(ch.Stage))
			s.emit(ctx, telemetrydomain.EventStepUpAborted, ch.AccountID, ch.DeviceID, map[string]string{"stage": string(ch.Stage)})
		}
	}
	return s.Devices.ClearAll(ctx, deviceID)
}

// PurgeExpired deletes challenges past their expiry and failure counters whose window
// and lock have both ended.
func (s *Service) PurgeExpired(ctx context.Context) (int, error) {
	now := s.now().UTC()
	n, err := s.Challenges.DeleteExpired(ctx, now)
	if err != nil {
		return n, err
	}
	m, err := s.Lockouts.DeleteStale(ctx, now.Add(-s.cfg.LockoutWindow), now)
	return n + m, err
}

// RunJanitor purges expired challenges every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				s.Log.Warn(ctx, "stepup: purge expired challenges failed", "error", err)
				continue
			}
			if n > 0 {
				s.Log.Debug(ctx, "stepup: purged expired challenges", "count", n)
			}
		}
	}
}

type progress struct {
	factorSatisfied  bool
	questionAnswered bool
}

// advance evaluates the account's facts and either issues a session or parks the sign-in
// on a challenge. ch is nil on first-factor success.
func (s *Service) advance(ctx context.Context, acct *accountdomain.Account, client Client, ch *domain.Challenge, p progress) (*Result, error) {
	deviceID := client.DeviceID
	if ch != nil {
		deviceID = ch.DeviceID
	}
	facts, hints, question, err := s.gather(ctx, acct, deviceID, p)
	if err != nil {
		return nil, err
	}
	d := domain.Evaluate(facts, hints)
	now := s.now().UTC()

	if d.Terminal() {
		if ch != nil {
			if err := s.Challenges.Delete(ctx, ch.ID); err != nil {
				return nil, err
			}
		}
		tokens, err := s.Credentials.IssueSession(ctx, acct, deviceID, client.IP)
		if err != nil {
			return nil, err
		}
		if ch != nil {
			if err := s.Lockouts.Clear(ctx, acct.ID); err != nil {
				s.Log.Warn(ctx, "stepup: clear failure counter failed", "account_id", acct.ID, "error", err)
			}
			s.Audit.LogEvent(ctx, acct.ID, auditdomain.ActionStepUpPassed, "stepup_challenges", "")
			s.emit(ctx, telemetrydomain.EventStepUpPassed, acct.ID, deviceID, nil)
		}
		s.Audit.LogEvent(ctx, acct.ID, auditdomain.ActionLoginSuccess, "auth", "")
		s.emit(ctx, telemetrydomain.EventLoginSucceeded, acct.ID, deviceID, nil)
		return &Result{State: d.State, Route: d.Route, Tokens: tokens}, nil
	}

	stage, _ := domain.StageOf(d.State)
	if ch == nil {
		ch = &domain.Challenge{
			ID:        uuid.NewString(),
			Version:   domain.ChallengeVersion,
			AccountID: acct.ID,
			DeviceID:  deviceID,
			Stage:     stage,
			Hints:     d.Hints,
			ExpiresAt: now.Add(s.cfg.ChallengeTTL),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.Challenges.Create(ctx, ch); err != nil {
			return nil, err
		}
		s.emit(ctx, telemetrydomain.EventStepUpStarted, acct.ID, deviceID, map[string]string{"stage": string(stage)})
	} else {
		ch.Stage = stage
		if stage == domain.StageFactor {
			ch.Hints = d.Hints
		}
		ch.FactorSatisfied = p.factorSatisfied
		ch.CodeHash = ""
		ch.CodeExpiresAt = nil
		ch.UpdatedAt = now
		if err := s.Challenges.Update(ctx, ch); err != nil {
			return nil, err
		}
	}

	res := s.pending(ch)
	res.Route = d.Route
	switch stage {
	case domain.StageSecurityQuestion:
		res.SecurityQuestion = question
	case domain.StageEmailVerification:
		res.Email = acct.Email
	}
	return res, nil
}

// gather reads the account's documents, factor and device flag into evaluator facts.
// The policy may only add requirements; if it fails the baseline stands.
func (s *Service) gather(ctx context.Context, acct *accountdomain.Account, deviceID string, p progress) (domain.Facts, []domain.FactorHint, string, error) {
	profile, err := s.Documents.Get(ctx, acct.ID)
	if err != nil {
		return domain.Facts{}, nil, "", err
	}
	factor, err := s.Factors.Enrolled(ctx, acct.ID)
	if err != nil {
		return domain.Facts{}, nil, "", err
	}
	var hints []domain.FactorHint
	if factor != nil {
		hints = []domain.FactorHint{hintOf(factor)}
	}
	deviceVerified, err := s.Devices.VerifiedWithin(ctx, acct.ID, deviceID, 0)
	if err != nil {
		return domain.Facts{}, nil, "", err
	}

	req, err := s.Policy.EvaluateStepUp(ctx, engine.Input{
		AccountID:           acct.ID,
		Admin:               acct.Admin,
		EmailVerified:       acct.EmailVerified,
		FactorEnrolled:      factor != nil,
		SecurityQuestionSet: profile.HasSecurityQuestion(),
		DeviceKnown:         deviceVerified,
	})
	if err != nil {
		s.Log.Warn(ctx, "stepup: policy evaluation failed, using baseline", "account_id", acct.ID, "error", err)
		req = engine.Requirements{}
	}
	if req.RequireSecurityQuestion {
		deviceVerified = false
	} else if deviceVerified && req.MaxDeviceTrustAge > 0 {
		if deviceVerified, err = s.Devices.VerifiedWithin(ctx, acct.ID, deviceID, req.MaxDeviceTrustAge); err != nil {
			return domain.Facts{}, nil, "", err
		}
	}

	return domain.Facts{
		EmailVerified:       acct.EmailVerified,
		FactorEnrolled:      factor != nil,
		FactorSatisfied:     p.factorSatisfied,
		SecurityQuestionSet: profile.HasSecurityQuestion(),
		DeviceVerified:      deviceVerified,
		QuestionAnswered:    p.questionAnswered,
	}, hints, profile.SecurityQuestion, nil
}

func hintOf(f *mfadomain.Factor) domain.FactorHint {
	return domain.FactorHint{
		FactorID:    f.ID,
		Kind:        domain.FactorKind(f.Kind),
		DisplayName: f.DisplayName,
		MaskedPhone: f.MaskedPhone(),
	}
}

// load returns an unexpired challenge owned by deviceID. Expired rows are deleted.
func (s *Service) load(ctx context.Context, challengeID, deviceID string) (*domain.Challenge, error) {
	if challengeID == "" {
		return nil, ErrStaleOrMissingChallenge
	}
	ch, err := s.Challenges.Get(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if ch == nil || ch.Version != domain.ChallengeVersion || ch.DeviceID != deviceID {
		return nil, ErrStaleOrMissingChallenge
	}
	if ch.Expired(s.now()) {
		_ = s.Challenges.Delete(ctx, ch.ID)
		return nil, ErrStaleOrMissingChallenge
	}
	return ch, nil
}

func (s *Service) loadAt(ctx context.Context, challengeID, deviceID string, stage domain.Stage) (*domain.Challenge, error) {
	ch, err := s.load(ctx, challengeID, deviceID)
	if err != nil {
		return nil, err
	}
	if ch.Stage != stage {
		return ch, ErrWrongStage
	}
	if err := s.checkLockout(ctx, ch.AccountID); err != nil {
		return nil, err
	}
	return ch, nil
}

func (s *Service) checkLockout(ctx context.Context, accountID string) error {
	l, err := s.Lockouts.Get(ctx, accountID)
	if err != nil {
		return err
	}
	if l.Locked(s.now()) {
		return ErrTooManyAttempts
	}
	return nil
}

// currentFactor returns the enrolled factor the challenge was built for. If it was
// removed or replaced since, the challenge is dropped.
func (s *Service) currentFactor(ctx context.Context, ch *domain.Challenge) (*mfadomain.Factor, error) {
	f, err := s.Factors.Enrolled(ctx, ch.AccountID)
	if err != nil {
		return nil, err
	}
	if f == nil || len(ch.Hints) == 0 || ch.Hints[0].FactorID != f.ID {
		_ = s.Challenges.Delete(ctx, ch.ID)
		return nil, ErrStaleOrMissingChallenge
	}
	return f, nil
}

// fail counts a wrong code or answer against the challenge and the account. The
// challenge is destroyed at either limit; the account limit also locks the account.
func (s *Service) fail(ctx context.Context, ch *domain.Challenge, cause error) error {
	now := s.now().UTC()
	n, err := s.Challenges.IncrementAttempts(ctx, ch.ID, now)
	if err != nil {
		return err
	}
	total, err := s.Lockouts.RecordFailure(ctx, ch.AccountID, now, s.cfg.LockoutWindow)
	if err != nil {
		return err
	}
	meta := map[string]any{"stage": string(ch.Stage), "attempts": n, "account_failures": total}
	s.Audit.LogEvent(ctx, ch.AccountID, auditdomain.ActionStepUpFailed, "stepup_challenges", string(ch.Stage))
	s.emit(ctx, telemetrydomain.EventStepUpFailed, ch.AccountID, ch.DeviceID, meta)
	locked := total >= s.cfg.LockoutThreshold
	if locked {
		until := now.Add(s.cfg.LockoutWindow)
		if err := s.Lockouts.Lock(ctx, ch.AccountID, until); err != nil {
			return err
		}
		meta = map[string]any{"stage": string(ch.Stage), "attempts": n, "account_failures": total, "locked_until": until}
	}
	if n < s.cfg.MaxAttempts && !locked {
		return cause
	}
	if err := s.Challenges.Delete(ctx, ch.ID); err != nil {
		return err
	}
	s.Codes.Forget(ctx, ch.ID)
	s.Audit.LogEvent(ctx, ch.AccountID, auditdomain.ActionStepUpLocked, "stepup_challenges", string(ch.Stage))
	s.emit(ctx, telemetrydomain.EventStepUpLocked, ch.AccountID, ch.DeviceID, meta)
	return ErrTooManyAttempts
}

func (s *Service) pending(ch *domain.Challenge) *Result {
	return &Result{
		State:       ch.Stage.State(),
		Route:       ch.Route(),
		ChallengeID: ch.ID,
		Hints:       ch.Hints,
		ExpiresAt:   ch.ExpiresAt,
	}
}

func (s *Service) emit(ctx context.Context, eventType, accountID, deviceID string, meta any) {
	ev := telemetrydomain.NewEvent(eventType, "stepup", meta)
	ev.AccountID = accountID
	ev.DeviceID = security.DeviceDigest(deviceID)
	s.Events.Record(ctx, ev)
}
