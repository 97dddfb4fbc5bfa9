package syncer

import (
	"context"
	"time"

	"github.com/lildude/stravasync/internal/errs"
	"github.com/lildude/stravasync/internal/model"
	"github.com/lildude/stravasync/internal/store"
	"github.com/lildude/stravasync/internal/strava"
)

// SyncPage fetches and persists one page of activity summaries for the
// owner. An empty page means the paging pass is complete: last_synced_at
// is stamped and the cached list is invalidated. A full page means more
// may follow, so the caller is handed the next cursor. Completion is
// inferred from page size, not an end-of-data sentinel: an exactly
// full-but-last page is reported incomplete and costs one extra empty
// call.
func (s *Syncer) SyncPage(ctx context.Context, user *model.User, page int) (*PageResult, error) {
	unlock := s.locks.lock(user.StravaID)
	defer unlock()

	token, err := s.ensureValidToken(ctx, user)
	if err != nil {
		return nil, err
	}

	since := user.SyncSince
	if since == "" {
		since = model.DefaultSyncSince
	}
	after, err := time.Parse("2006-01-02", since)
	if err != nil {
		return nil, errs.Wrap(errs.KindValidation, "invalid sync_since boundary", err)
	}

	api := strava.NewAPIClient(ctx, token)
	items, err := strava.GetActivitiesPage(ctx, api, page, after)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		if err := store.SetLastSynced(s.db, user.StravaID, time.Now().Unix()); err != nil {
			return nil, err
		}
		warnings := s.notifier.Invalidate(ctx, user.StravaID)
		s.log.WithField("owner", user.StravaID).Info("activity sync complete")
		return &PageResult{Synced: 0, Complete: true, Warnings: warnings}, nil
	}

	activities := make([]model.Activity, 0, len(items))
	for _, it := range items {
		activities = append(activities, model.Activity{
			ID:                 it.ID,
			StravaID:           user.StravaID,
			Name:               it.Name,
			Type:               it.Type,
			StartDate:          it.StartDate,
			Distance:           it.Distance,
			MovingTime:         it.MovingTime,
			ElapsedTime:        it.ElapsedTime,
			TotalElevationGain: it.TotalElevationGain,
			DataJSON:           string(it.Raw),
		})
	}
	if err := store.SaveActivityPage(s.db, activities); err != nil {
		return nil, err
	}

	warnings := s.notifier.Invalidate(ctx, user.StravaID)

	res := &PageResult{
		Synced:   len(items),
		Complete: len(items) < strava.PerPage,
		NextPage: page + 1,
		Warnings: warnings,
	}
	s.log.WithField("owner", user.StravaID).WithField("page", page).
		WithField("synced", res.Synced).Info("synced activity page")
	return res, nil
}
