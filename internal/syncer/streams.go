package syncer

import (
	"context"

	"github.com/jackc/pgtype"
	"github.com/lildude/stravasync/internal/errs"
	"github.com/lildude/stravasync/internal/model"
	"github.com/lildude/stravasync/internal/store"
	"github.com/lildude/stravasync/internal/strava"
)

// BackfillStreams fetches detail streams for up to limit of the owner's
// activities that have none yet, one remote call per activity. A 429
// halts the batch immediately — continuing would only compound the
// rate-limit penalty — and reports the count completed so far. Complete
// is true only when the recomputed missing set is empty afterwards.
func (s *Syncer) BackfillStreams(ctx context.Context, user *model.User, limit int) (*BackfillResult, error) {
	if limit <= 0 {
		limit = DefaultBackfillLimit
	}

	unlock := s.locks.lock(user.StravaID)
	defer unlock()

	// Refreshed once per batch, not per item.
	token, err := s.ensureValidToken(ctx, user)
	if err != nil {
		return nil, err
	}

	ids, err := store.MissingStreamActivityIDs(s.db, user.StravaID)
	if err != nil {
		return nil, err
	}
	batch := ids
	if len(batch) > limit {
		batch = batch[:limit]
	}

	api := strava.NewAPIClient(ctx, token)
	synced := 0
	rateLimited := false
	for _, id := range batch {
		raw, err := strava.GetActivityStreams(ctx, api, id)
		if err != nil {
			if errs.KindOf(err) == errs.KindRateLimited {
				rateLimited = true
				s.log.WithField("owner", user.StravaID).WithField("synced", synced).
					Warn("rate limited mid-batch, halting backfill")
				break
			}
			return nil, err
		}

		var data pgtype.JSONB
		if err := data.Set([]byte(raw)); err != nil {
			return nil, errs.Wrap(errs.KindStorage, "encoding stream data", err)
		}
		if err := store.UpsertStream(s.db, &model.Stream{
			StravaID:   user.StravaID,
			ActivityID: id,
			Data:       data,
		}); err != nil {
			return nil, err
		}
		synced++
	}

	remaining, err := store.MissingStreamActivityIDs(s.db, user.StravaID)
	if err != nil {
		return nil, err
	}

	res := &BackfillResult{
		Synced:      synced,
		Remaining:   len(remaining),
		Complete:    len(remaining) == 0,
		RateLimited: rateLimited,
	}
	s.log.WithField("owner", user.StravaID).WithField("synced", synced).
		WithField("remaining", res.Remaining).Info("backfilled streams")
	return res, nil
}
