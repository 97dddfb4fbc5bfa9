package syncer

import (
	"context"
	"time"

	"github.com/lildude/stravasync/internal/model"
	"github.com/lildude/stravasync/internal/store"
	"github.com/lildude/stravasync/internal/strava"
)

// ensureValidToken returns an access token valid for at least the
// expiry margin, refreshing first when needed. The new refresh token is
// single-use upstream, so the whole triple is persisted before the new
// access token is returned for use: losing the old refresh token
// without durably saving the new one would lock the owner out.
func (s *Syncer) ensureValidToken(ctx context.Context, user *model.User) (string, error) {
	// The caller's snapshot may predate the owner lock: a unit that ran
	// while we waited could have refreshed and superseded the snapshot's
	// refresh token. Re-read before the expiry check so a stale triple
	// is never sent upstream.
	fresh, err := store.GetUser(s.db, user.StravaID)
	if err != nil {
		return "", err
	}
	*user = *fresh

	if time.Until(time.Unix(user.ExpiresAt, 0)) > tokenExpiryMargin {
		return user.AccessToken, nil
	}

	cfg, err := store.GetAppConfig(s.db)
	if err != nil {
		return "", err
	}

	tok, err := strava.RefreshToken(ctx, strava.OauthConfig(cfg, ""), user.RefreshToken)
	if err != nil {
		return "", err
	}

	if err := store.SaveTokens(s.db, user.StravaID, tok.AccessToken, tok.RefreshToken, tok.Expiry.Unix()); err != nil {
		return "", err
	}

	user.AccessToken = tok.AccessToken
	user.RefreshToken = tok.RefreshToken
	user.ExpiresAt = tok.Expiry.Unix()

	s.log.WithField("owner", user.StravaID).Info("refreshed access token")
	return tok.AccessToken, nil
}
