package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/verse-scribe/internal/auth"
	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/logging"
	"github.com/verse-scribe/internal/models"
	"github.com/verse-scribe/internal/storage"
)

// Profile field limits
const (
	MaxDisplayNameLength = 50
	MaxChurchNameLength  = 100
	MaxAvatarURLLength   = 2048
)

// ProfileService maps verified identities to profiles
type ProfileService struct {
	repo  ProfileStore
	cache *storage.CacheService
}

// NewProfileService creates a new profile service. cache may be nil.
func NewProfileService(repo ProfileStore, cache *storage.CacheService) *ProfileService {
	return &ProfileService{repo: repo, cache: cache}
}

// Resolve returns the profile id for verified claims, creating the profile on
// first login. The mapping is cached per auth subject.
func (s *ProfileService) Resolve(ctx context.Context, claims *auth.Claims) (string, error) {
	if claims == nil || claims.Subject == "" {
		return "", apperrors.NewAuthRequiredError("missing token")
	}

	logger := logging.FromContext(ctx)
	var key string
	if s.cache != nil {
		key = s.cache.ProfileKey(claims.Subject)
		var userID string
		hit, err := s.cache.Get(ctx, key, &userID)
		if err != nil {
			logger.WithError(err).Warn("profile cache read failed")
		} else if hit && userID != "" {
			return userID, nil
		}
	}

	profile, err := s.repo.EnsureProfile(ctx, claims.Identity())
	if err != nil {
		return "", dbError("ensure profile", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, profile.ID); err != nil {
			logger.WithError(err).Warn("profile cache write failed")
		}
	}
	return profile.ID, nil
}

// Get returns the profile summary with lifetime credit totals
func (s *ProfileService) Get(ctx context.Context, userID string) (*models.ProfileSummary, error) {
	summary, err := s.repo.GetSummary(ctx, userID)
	if err != nil {
		return nil, dbError("get profile", err)
	}
	return summary, nil
}

// Update applies a partial profile update and returns the new summary.
// An empty church name clears the affiliation.
func (s *ProfileService) Update(ctx context.Context, userID string, upd models.ProfileUpdate) (*models.ProfileSummary, error) {
	if upd.Empty() {
		return nil, apperrors.NewInvalidParameterError("body", "no fields to update")
	}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, apperrors.NewInvalidParameterError("name", "must not be empty")
		}
		if utf8.RuneCountInString(name) > MaxDisplayNameLength {
			return nil, apperrors.NewInvalidParameterError("name", "too long")
		}
		upd.Name = &name
	}
	if upd.ChurchName != nil {
		church := strings.TrimSpace(*upd.ChurchName)
		if utf8.RuneCountInString(church) > MaxChurchNameLength {
			return nil, apperrors.NewInvalidParameterError("churchName", "too long")
		}
		upd.ChurchName = &church
	}
	if upd.AvatarURL != nil && len(*upd.AvatarURL) > MaxAvatarURLLength {
		return nil, apperrors.NewInvalidParameterError("avatarUrl", "too long")
	}

	if err := s.repo.Update(ctx, userID, upd); err != nil {
		return nil, dbError("update profile", err)
	}
	return s.Get(ctx, userID)
}
