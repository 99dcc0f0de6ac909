package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"memodams/backend/internal/profile/domain"
	"memodams/backend/internal/security"
)

// Sentinel errors; the handler maps them to 4xx responses.
var (
	ErrBirthdayAlreadySet = errors.New("birthday can only be set once")
	ErrInvalidBirthday    = errors.New("birthday must be a past date in YYYY-MM-DD format")
	ErrInvalidAvatarURL   = errors.New("avatar_url must be an http(s) URL")
	ErrBioTooLong         = errors.New("bio must be at most 500 characters")
	ErrQuestionRequired   = errors.New("security question and answer are required")
)

const maxBioLength = 500

// Repo is the document store the service needs.
type Repo interface {
	Get(ctx context.Context, accountID string) (*domain.Profile, error)
	Merge(ctx context.Context, accountID string, patch domain.Patch) error
}

// Update is a partial profile edit from the client; nil means unchanged.
type Update struct {
	Bio       *string
	AvatarURL *string
	Birthday  *string // YYYY-MM-DD
}

// ProfileService owns the profile document, including the hashed security answer.
type ProfileService struct {
	repo   Repo
	hasher *security.Hasher
	now    func() time.Time
}

func NewProfileService(repo Repo, hasher *security.Hasher) *ProfileService {
	return &ProfileService{repo: repo, hasher: hasher, now: time.Now}
}

// Get returns the profile, or an empty document when the account never wrote one.
func (s *ProfileService) Get(ctx context.Context, accountID string) (*domain.Profile, error) {
	p, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &domain.Profile{AccountID: accountID}, nil
	}
	return p, nil
}

// EnsureCreated writes an empty document so later merges always have a row to update.
func (s *ProfileService) EnsureCreated(ctx context.Context, accountID string) error {
	return s.repo.Merge(ctx, accountID, domain.Patch{})
}

// Update validates and merges a partial edit.
func (s *ProfileService) Update(ctx context.Context, accountID string, in Update) (*domain.Profile, error) {
	var patch domain.Patch
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if utf8.RuneCountInString(bio) > maxBioLength {
			return nil, ErrBioTooLong
		}
		patch.Bio = &bio
	}
	if in.AvatarURL != nil {
		raw := strings.TrimSpace(*in.AvatarURL)
		if raw != "" {
			u, err := url.Parse(raw)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return nil, ErrInvalidAvatarURL
			}
		}
		patch.AvatarURL = &raw
	}
	if in.Birthday != nil {
		b, err := time.Parse(time.DateOnly, strings.TrimSpace(*in.Birthday))
		if err != nil || !b.Before(s.now()) {
			return nil, ErrInvalidBirthday
		}
		current, err := s.repo.Get(ctx, accountID)
		if err != nil {
			return nil, err
		}
		if current != nil && current.Birthday != nil {
			return nil, ErrBirthdayAlreadySet
		}
		patch.Birthday = &b
	}
	if err := s.repo.Merge(ctx, accountID, patch); err != nil {
		return nil, err
	}
	return s.Get(ctx, accountID)
}

// SetSecurityQuestion stores the question and a salted hash of the normalized answer.
func (s *ProfileService) SetSecurityQuestion(ctx context.Context, accountID, question, answer string) error {
	question = strings.TrimSpace(question)
	if question == "" || security.NormalizeAnswer(answer) == "" {
		return ErrQuestionRequired
	}
	hash, err := s.hasher.HashAnswer(answer)
	if err != nil {
		return err
	}
	return s.repo.Merge(ctx, accountID, domain.Patch{SecurityQuestion: &question, SecurityAnswerHash: &hash})
}

// ClearSecurityQuestion removes the question so new devices are no longer challenged.
func (s *ProfileService) ClearSecurityQuestion(ctx context.Context, accountID string) error {
	empty := ""
	return s.repo.Merge(ctx, accountID, domain.Patch{SecurityQuestion: &empty, SecurityAnswerHash: &empty})
}
