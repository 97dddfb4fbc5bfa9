// Package store implements the keyed persistence operations behind the
// sync protocol. All writes are single-row upserts or deletes scoped by
// primary key or owner id; the one exception is the page write, which
// wraps every upsert for one activity page in a single transaction.
package store

import (
	"errors"

	"github.com/lildude/stravasync/internal/errs"
	"github.com/lildude/stravasync/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func storageErr(err error) error {
	return errs.Wrap(errs.KindStorage, "database error", err)
}

// SaveAppConfig stores the singleton OAuth application credentials.
func SaveAppConfig(db *gorm.DB, clientID, clientSecret string) error {
	cfg := model.AppConfig{ID: 1, ClientID: clientID, ClientSecret: clientSecret}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"client_id", "client_secret"}),
	}).Create(&cfg).Error
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// GetAppConfig returns the stored application credentials. A missing row
// means the app was never configured, which is fatal to any unit that
// needs to talk to Strava.
func GetAppConfig(db *gorm.DB) (*model.AppConfig, error) {
	var cfg model.AppConfig
	err := db.First(&cfg, "id = ?", 1).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.New(errs.KindConfiguration, "app not configured")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &cfg, nil
}

// UpsertUser inserts a user or replaces their profile and token fields.
// Sync bookkeeping (last_synced_at, sync_since) is preserved for an
// existing user; a re-auth must not reset sync progress.
func UpsertUser(db *gorm.DB, u *model.User) error {
	if u.SyncSince == "" {
		u.SyncSince = model.DefaultSyncSince
	}
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "strava_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"firstname", "lastname", "profile_pic",
			"access_token", "refresh_token", "expires_at",
		}),
	}).Create(u).Error
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// SaveTokens persists a new access/refresh/expiry triple in one update.
// Refresh tokens are single-use upstream, so the three fields must land
// together before the new access token is used.
func SaveTokens(db *gorm.DB, stravaID int64, accessToken, refreshToken string, expiresAt int64) error {
	res := db.Model(&model.User{}).Where("strava_id = ?", stravaID).Updates(map[string]any{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_at":    expiresAt,
	})
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.New(errs.KindNotFound, "user not found")
	}
	return nil
}

// SetLastSynced records the completion time of a full paging pass.
func SetLastSynced(db *gorm.DB, stravaID, ts int64) error {
	err := db.Model(&model.User{}).Where("strava_id = ?", stravaID).
		Update("last_synced_at", ts).Error
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// UpdateSyncSince updates the owner's sync boundary.
func UpdateSyncSince(db *gorm.DB, stravaID int64, syncSince string) error {
	res := db.Model(&model.User{}).Where("strava_id = ?", stravaID).
		Update("sync_since", syncSince)
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.New(errs.KindNotFound, "user not found")
	}
	return nil
}

// GetUser returns the user with the given remote athlete id.
func GetUser(db *gorm.DB, stravaID int64) (*model.User, error) {
	var u model.User
	err := db.First(&u, "strava_id = ?", stravaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.New(errs.KindNotFound, "user not found")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &u, nil
}

// GetUsers lists all linked users ordered by first name.
func GetUsers(db *gorm.DB) ([]model.User, error) {
	var users []model.User
	if err := db.Order("firstname").Find(&users).Error; err != nil {
		return nil, storageErr(err)
	}
	return users, nil
}

// UpsertActivity inserts an activity or fully replaces every mutable
// field of the existing row. Re-applying an identical record is a no-op
// in effect.
func UpsertActivity(db *gorm.DB, a *model.Activity) error {
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(a).Error
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// SaveActivityPage upserts one page of activities in a single
// transaction, so a unit of work either lands whole or not at all.
func SaveActivityPage(db *gorm.DB, activities []model.Activity) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for i := range activities {
			if err := UpsertActivity(tx, &activities[i]); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetActivity returns one activity by its remote id.
func GetActivity(db *gorm.DB, id int64) (*model.Activity, error) {
	var a model.Activity
	err := db.First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.New(errs.KindNotFound, "activity not found")
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &a, nil
}

// GetActivities lists an owner's activities, most recent first.
func GetActivities(db *gorm.DB, stravaID int64) ([]model.Activity, error) {
	var activities []model.Activity
	err := db.Where("strava_id = ?", stravaID).Order("start_date DESC").Find(&activities).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return activities, nil
}

// DeleteActivity removes one activity and its stream.
func DeleteActivity(db *gorm.DB, id int64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&model.Activity{}, "id = ?", id)
		if res.Error != nil {
			return storageErr(res.Error)
		}
		if res.RowsAffected == 0 {
			return errs.New(errs.KindNotFound, "activity not found")
		}
		if err := tx.Where("activity_id = ?", id).Delete(&model.Stream{}).Error; err != nil {
			return storageErr(err)
		}
		return nil
	})
}

// DeleteAllActivities removes all activities and streams for one owner.
func DeleteAllActivities(db *gorm.DB, stravaID int64) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("strava_id = ?", stravaID).Delete(&model.Activity{}).Error; err != nil {
			return storageErr(err)
		}
		if err := tx.Where("strava_id = ?", stravaID).Delete(&model.Stream{}).Error; err != nil {
			return storageErr(err)
		}
		return nil
	})
}

// UpsertStream atomically inserts or replaces the single stream row for
// an activity. The unique index on activity_id makes this safe under
// concurrent writers.
func UpsertStream(db *gorm.DB, s *model.Stream) error {
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "activity_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data"}),
	}).Create(s).Error
	if err != nil {
		return storageErr(err)
	}
	return nil
}

// GetStream returns the stream for an activity, or nil if none exists.
func GetStream(db *gorm.DB, activityID int64) (*model.Stream, error) {
	var s model.Stream
	err := db.First(&s, "activity_id = ?", activityID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err)
	}
	return &s, nil
}

// MissingStreamActivityIDs returns the ids of the owner's activities
// that have no stream row yet, in ascending id order.
func MissingStreamActivityIDs(db *gorm.DB, stravaID int64) ([]int64, error) {
	var ids []int64
	err := db.Model(&model.Activity{}).
		Joins("LEFT JOIN streams ON streams.activity_id = activities.id").
		Where("activities.strava_id = ? AND streams.id IS NULL", stravaID).
		Order("activities.id").
		Pluck("activities.id", &ids).Error
	if err != nil {
		return nil, storageErr(err)
	}
	return ids, nil
}
