// Package models provides persisted record shapes for the verse transcription system.
package models

import (
	"time"
)

// DefaultDisplayName is shown for profiles that never set a name
const DefaultDisplayName = "User"

// Profile represents a user row keyed by the identity provider subject
type Profile struct {
	ID         string    `json:"id" db:"id"`
	AuthUserID string    `json:"authUserId" db:"auth_user_id"`
	Email      string    `json:"email" db:"email"`
	Name       string    `json:"name" db:"name"`
	AvatarURL  string    `json:"avatarUrl" db:"avatar_url"`
	Provider   string    `json:"provider" db:"provider"`
	ChurchName *string   `json:"churchName,omitempty" db:"church_name"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt" db:"updated_at"`
}

// DisplayName returns the name or the default placeholder
func (p *Profile) DisplayName() string {
	if p.Name == "" {
		return DefaultDisplayName
	}
	return p.Name
}

// ProfileSummary is the profile read model with credit totals derived from
// the daily ledger
type ProfileSummary struct {
	UserID             string  `json:"userId"`
	DisplayName        string  `json:"displayName"`
	Email              string  `json:"email,omitempty"`
	AvatarURL          string  `json:"avatarUrl,omitempty"`
	Church             *string `json:"church,omitempty"`
	TotalCreditsEarned int     `json:"totalCreditsEarned"`
	TotalCreditsSpent  int     `json:"totalCreditsSpent"`
}

// ProfileIdentity carries the identity provider claims used to upsert a profile
type ProfileIdentity struct {
	AuthUserID string
	Email      string
	Name       string
	AvatarURL  string
	Provider   string
}

// ProfileUpdate is a partial update; nil fields are left unchanged
type ProfileUpdate struct {
	Name       *string `json:"name,omitempty"`
	AvatarURL  *string `json:"avatarUrl,omitempty"`
	ChurchName *string `json:"churchName,omitempty"`
}

// Empty reports whether the update changes nothing
func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.AvatarURL == nil && u.ChurchName == nil
}
