package models

import "time"

// Video is a catalog entry pointing at a YouTube embed URL.
type Video struct {
	ID            string     `json:"id"`
	YouTubeURL    string     `json:"youtubeUrl"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	IsLive        bool       `json:"isLive"`
	Category      string     `json:"category"`
	FinalCategory string     `json:"finalCategory,omitempty"`
	ScheduledAt   *time.Time `json:"scheduledAt,omitempty"`
	ViewCount     int64      `json:"viewCount"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// IsScheduledAfter reports whether the video has a release time later than now.
func (v Video) IsScheduledAfter(now time.Time) bool {
	return v.ScheduledAt != nil && v.ScheduledAt.After(now)
}

// Category is an admin-managed label used to filter the catalog.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// SettingsDocumentID identifies the single settings document.
const SettingsDocumentID = "config"

// Settings is the site-wide configuration singleton.
type Settings struct {
	LogoURL        string    `json:"logoUrl"`
	DefaultSummary string    `json:"defaultSummary"`
	LiveVideoID    string    `json:"liveVideoId,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// SettingsPatch carries a merge update for Settings; nil fields are left untouched.
type SettingsPatch struct {
	LogoURL        *string
	DefaultSummary *string
	LiveVideoID    *string
}

// VideoPatch carries a partial update for a Video; nil fields are left untouched.
type VideoPatch struct {
	Title         *string
	Summary       *string
	Category      *string
	FinalCategory *string
	ScheduledAt   *time.Time
	ClearSchedule bool
}

// AdminUser is an account allowed into the admin surface.
type AdminUser struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SessionTokens groups the bearer credentials issued to authenticated admins.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
