// Package model defines the persistent records mirrored from Strava.
package model

import (
	"time"

	"github.com/jackc/pgtype"
)

// DefaultSyncSince is the earliest supported sync boundary.
const DefaultSyncSince = "2018-01-01"

// AppConfig holds the OAuth application credentials. Exactly one row
// exists, keyed by ID 1.
type AppConfig struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"-"`
}

// User is a linked Strava account, keyed by the remote athlete id.
// Token fields are excluded from JSON so they can never leak into
// list or detail responses.
type User struct {
	StravaID     int64  `gorm:"primaryKey;autoIncrement:false" json:"strava_id"`
	Firstname    string `json:"firstname"`
	Lastname     string `json:"lastname"`
	ProfilePic   string `json:"profile_pic"`
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
	ExpiresAt    int64  `json:"expires_at"`
	LastSyncedAt *int64 `json:"last_synced_at"`
	SyncSince    string `gorm:"default:'2018-01-01'" json:"sync_since"`
}

// Activity mirrors one remote activity summary. The primary key is the
// remote activity id, so re-applying a page overwrites in place instead
// of duplicating. DataJSON keeps the full raw summary payload.
type Activity struct {
	ID                 int64     `gorm:"primaryKey;autoIncrement:false" json:"id"`
	StravaID           int64     `gorm:"index" json:"strava_id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	StartDate          time.Time `json:"start_date"`
	Distance           float64   `json:"distance"`
	MovingTime         int64     `json:"moving_time"`
	ElapsedTime        int64     `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	DataJSON           string    `gorm:"type:text" json:"-"`
}

// Stream holds the detail time series for one activity. The unique
// index on ActivityID backs the atomic upsert in the store, so at most
// one row can ever exist per activity.
type Stream struct {
	ID         uint         `gorm:"primaryKey" json:"-"`
	StravaID   int64        `gorm:"index" json:"strava_id"`
	ActivityID int64        `gorm:"uniqueIndex" json:"activity_id"`
	Data       pgtype.JSONB `gorm:"type:jsonb;default:'{}'" json:"-"`
}
