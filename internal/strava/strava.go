// Package strava implements the subset of the Strava v3 API the mirror
// depends on: OAuth tokens, activity summary pages and detail streams.
package strava

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lildude/stravasync/internal/client"
	"github.com/lildude/stravasync/internal/errs"
	"github.com/lildude/stravasync/internal/model"
	"golang.org/x/oauth2"
)

var (
	BaseURL  = "https://www.strava.com/api/v3"
	AuthURL  = "https://www.strava.com/oauth/authorize"
	TokenURL = "https://www.strava.com/oauth/token"
)

const (
	// PerPage is the fixed activity page size. Completion of a paging
	// pass is inferred from receiving fewer items than this.
	PerPage = 30

	// StreamKeys are the detail series requested for each activity.
	StreamKeys = "time,latlng,distance,altitude,heartrate,velocity_smooth"
)

// OauthConfig builds the oauth2 config for the stored application
// credentials.
func OauthConfig(cfg *model.AppConfig, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  AuthURL,
			TokenURL: TokenURL,
		},
		RedirectURL: redirectURL,
		Scopes:      []string{"read,activity:read_all,profile:read_all"},
	}
}

// SummaryActivity holds only the fields we model from an activity
// summary; the rest of the payload is kept raw.
type SummaryActivity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	StartDate          time.Time `json:"start_date"`
	Distance           float64   `json:"distance"`
	MovingTime         int64     `json:"moving_time"`
	ElapsedTime        int64     `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
}

// PageItem pairs a decoded summary with the raw payload it came from.
type PageItem struct {
	SummaryActivity
	Raw json.RawMessage
}

// Athlete is the athlete summary embedded in token exchange responses.
type Athlete struct {
	ID        int64  `json:"id"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
	Profile   string `json:"profile"`
}

// NewAPIClient returns a REST client that authenticates every request
// with the given access token.
func NewAPIClient(ctx context.Context, accessToken string) *client.Client {
	u, _ := url.Parse(BaseURL)
	hc := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	return client.NewClient(u, hc)
}

// GetActivitiesPage fetches one fixed-size page of activity summaries
// with start dates after the given cutoff.
func GetActivitiesPage(ctx context.Context, c *client.Client, page int, after time.Time) ([]PageItem, error) {
	path := fmt.Sprintf("/api/v3/athlete/activities?page=%d&per_page=%d&after=%d", page, PerPage, after.Unix())
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating activities request: %w", err)
	}

	var raws []json.RawMessage
	resp, err := c.Do(req, &raws)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, mapError(err)
	}

	items := make([]PageItem, 0, len(raws))
	for _, raw := range raws {
		var s SummaryActivity
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errs.Wrap(errs.KindUpstream, "decoding activity summary", err)
		}
		items = append(items, PageItem{SummaryActivity: s, Raw: raw})
	}
	return items, nil
}

// GetActivityStreams fetches the keyed detail streams for one activity.
func GetActivityStreams(ctx context.Context, c *client.Client, id int64) (json.RawMessage, error) {
	path := fmt.Sprintf("/api/v3/activities/%d/streams?keys=%s&key_by_type=true", id, StreamKeys)
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("creating streams request: %w", err)
	}

	var raw json.RawMessage
	resp, err := c.Do(req, &raw)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		return nil, mapError(err)
	}
	return raw, nil
}

// RefreshToken exchanges a refresh token for a new access/refresh/expiry
// triple. Refresh tokens are single-use: the caller must persist the
// returned triple before using the new access token anywhere.
func RefreshToken(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	ts := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := ts.Token()
	if err != nil {
		return nil, errs.Wrap(errs.KindTokenRefresh, "refreshing token", err)
	}
	return tok, nil
}

// mapError classifies a transport error into the service taxonomy.
func mapError(err error) error {
	var ae *client.APIError
	if errors.As(err, &ae) {
		switch ae.StatusCode {
		case http.StatusUnauthorized:
			return errs.Wrap(errs.KindUnauthorized, "unauthorized by strava", err)
		case http.StatusTooManyRequests:
			return errs.Wrap(errs.KindRateLimited, "rate limited by strava", err)
		default:
			return errs.Upstream(ae.StatusCode, err)
		}
	}
	return errs.Wrap(errs.KindUpstream, "calling strava", err)
}
