package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/verse-scribe/internal/errors"
	"github.com/verse-scribe/internal/models"
)

// ProfileRepository handles user profile persistence
type ProfileRepository struct {
	db *PostgresDB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *PostgresDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// EnsureProfile upserts the profile for an identity provider subject and
// returns it. Existing names are kept when the identity carries none.
func (r *ProfileRepository) EnsureProfile(ctx context.Context, id models.ProfileIdentity) (*models.Profile, error) {
	if strings.TrimSpace(id.AuthUserID) == "" {
		return nil, apperrors.NewInvalidParameterError("authUserId", "must not be empty")
	}

	query := `
		INSERT INTO users (id, auth_user_id, email, name, avatar_url, provider)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (auth_user_id) DO UPDATE SET
			email      = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE users.email END,
			name       = CASE WHEN users.name = '' THEN EXCLUDED.name ELSE users.name END,
			avatar_url = CASE WHEN users.avatar_url = '' THEN EXCLUDED.avatar_url ELSE users.avatar_url END,
			provider   = CASE WHEN EXCLUDED.provider <> '' THEN EXCLUDED.provider ELSE users.provider END,
			updated_at = NOW()
		RETURNING id, auth_user_id, email, name, avatar_url, provider, church_name, created_at, updated_at
	`

	var p models.Profile
	err := r.db.Pool().QueryRow(ctx, query,
		uuid.New().String(),
		id.AuthUserID,
		id.Email,
		id.Name,
		id.AvatarURL,
		id.Provider,
	).Scan(
		&p.ID,
		&p.AuthUserID,
		&p.Email,
		&p.Name,
		&p.AvatarURL,
		&p.Provider,
		&p.ChurchName,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	return &p, nil
}

// GetByAuthUserID retrieves a profile by identity provider subject
func (r *ProfileRepository) GetByAuthUserID(ctx context.Context, authUserID string) (*models.Profile, error) {
	query := `
		SELECT id, auth_user_id, email, name, avatar_url, provider, church_name, created_at, updated_at
		FROM users
		WHERE auth_user_id = $1
	`

	var p models.Profile
	err := r.db.Pool().QueryRow(ctx, query, authUserID).Scan(
		&p.ID,
		&p.AuthUserID,
		&p.Email,
		&p.Name,
		&p.AvatarURL,
		&p.Provider,
		&p.ChurchName,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewProfileNotFoundError(authUserID)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return &p, nil
}

// GetSummary returns the profile with lifetime credit totals summed over
// the daily ledger
func (r *ProfileRepository) GetSummary(ctx context.Context, userID string) (*models.ProfileSummary, error) {
	query := `
		SELECT u.id, u.name, u.email, u.avatar_url, u.church_name,
			COALESCE(SUM(d.credits_earned), 0)::INT,
			COALESCE(SUM(d.credits_spent), 0)::INT
		FROM users u
		LEFT JOIN daily_credits d ON d.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id
	`

	var (
		s    models.ProfileSummary
		name string
	)
	err := r.db.Pool().QueryRow(ctx, query, userID).Scan(
		&s.UserID,
		&name,
		&s.Email,
		&s.AvatarURL,
		&s.Church,
		&s.TotalCreditsEarned,
		&s.TotalCreditsSpent,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewProfileNotFoundError(userID)
		}
		return nil, fmt.Errorf("failed to get profile summary: %w", err)
	}

	s.DisplayName = name
	if s.DisplayName == "" {
		s.DisplayName = models.DefaultDisplayName
	}
	return &s, nil
}

// Update applies a partial profile update. An empty church name clears the
// affiliation.
func (r *ProfileRepository) Update(ctx context.Context, userID string, upd models.ProfileUpdate) error {
	if upd.Empty() {
		return nil
	}

	var church *string
	clearChurch := false
	if upd.ChurchName != nil {
		if trimmed := strings.TrimSpace(*upd.ChurchName); trimmed != "" {
			church = &trimmed
		} else {
			clearChurch = true
		}
	}

	query := `
		UPDATE users SET
			name        = COALESCE($2, name),
			avatar_url  = COALESCE($3, avatar_url),
			church_name = CASE WHEN $5 THEN NULL ELSE COALESCE($4, church_name) END,
			updated_at  = NOW()
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, userID, upd.Name, upd.AvatarURL, church, clearChurch)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}

	if result.RowsAffected() == 0 {
		return apperrors.NewProfileNotFoundError(userID)
	}

	return nil
}
