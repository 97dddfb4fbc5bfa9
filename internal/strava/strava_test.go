package strava

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/lildude/stravasync/internal/client"
	"github.com/lildude/stravasync/internal/errs"
	"github.com/lildude/stravasync/internal/model"
)

func TestGetActivitiesPage(t *testing.T) {
	rc, mux, teardown := setup()
	defer teardown()

	page := `[
		{"id": 101, "name": "Morning Run", "type": "Run", "start_date": "2023-01-01T08:00:00Z",
		 "distance": 5000.5, "moving_time": 1500, "elapsed_time": 1600, "total_elevation_gain": 42.1,
		 "average_heartrate": 151.3},
		{"id": 102, "name": "Evening Ride", "type": "Ride", "start_date": "2023-01-02T18:00:00Z",
		 "distance": 20000, "moving_time": 3600, "elapsed_time": 3700, "total_elevation_gain": 120}
	]`
	mux.HandleFunc("/api/v3/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("per_page"); got != "30" {
			t.Errorf("expected per_page=30, got %q", got)
		}
		if got := r.URL.Query().Get("page"); got != "2" {
			t.Errorf("expected page=2, got %q", got)
		}
		if got := r.URL.Query().Get("after"); got == "" {
			t.Error("expected after cutoff to be set")
		}
		fmt.Fprintln(w, page)
	})

	after, _ := time.Parse("2006-01-02", "2018-01-01")
	got, err := GetActivitiesPage(context.Background(), rc, 2, after)
	if err != nil {
		t.Fatalf("expected nil error, got %q", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].ID != 101 || got[0].Name != "Morning Run" || got[0].Distance != 5000.5 {
		t.Errorf("unexpected first summary: %+v", got[0].SummaryActivity)
	}

	// The raw payload must keep fields the summary does not model.
	var raw map[string]any
	if err := json.Unmarshal(got[0].Raw, &raw); err != nil {
		t.Fatalf("raw payload not valid JSON: %v", err)
	}
	if raw["average_heartrate"] != 151.3 {
		t.Errorf("expected raw payload to keep average_heartrate, got %v", raw["average_heartrate"])
	}
}

func TestGetActivitiesPageEmpty(t *testing.T) {
	rc, mux, teardown := setup()
	defer teardown()

	mux.HandleFunc("/api/v3/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `[]`)
	})

	got, err := GetActivitiesPage(context.Background(), rc, 1, time.Time{})
	if err != nil {
		t.Fatalf("expected nil error, got %q", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty page, got %d items", len(got))
	}
}

func TestGetActivitiesPageErrors(t *testing.T) {
	tests := []struct {
		desc     string
		status   int
		wantKind errs.Kind
	}{
		{"unauthorized", http.StatusUnauthorized, errs.KindUnauthorized},
		{"rate limited", http.StatusTooManyRequests, errs.KindRateLimited},
		{"server error", http.StatusBadGateway, errs.KindUpstream},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			rc, mux, teardown := setup()
			defer teardown()

			mux.HandleFunc("/api/v3/athlete/activities", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
			})

			_, err := GetActivitiesPage(context.Background(), rc, 1, time.Time{})
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if errs.KindOf(err) != tc.wantKind {
				t.Errorf("expected kind %v, got %v (%v)", tc.wantKind, errs.KindOf(err), err)
			}
		})
	}
}

func TestGetActivityStreams(t *testing.T) {
	rc, mux, teardown := setup()
	defer teardown()

	streams := `{"time":{"data":[0,1,2]},"latlng":{"data":[[51.5,-0.1],[51.6,-0.2]]}}`
	mux.HandleFunc("/api/v3/activities/101/streams", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key_by_type"); got != "true" {
			t.Errorf("expected key_by_type=true, got %q", got)
		}
		fmt.Fprintln(w, streams)
	})

	raw, err := GetActivityStreams(context.Background(), rc, 101)
	if err != nil {
		t.Fatalf("expected nil error, got %q", err)
	}
	if !json.Valid(raw) {
		t.Fatal("expected valid JSON stream payload")
	}
	var decoded map[string]any
	json.Unmarshal(raw, &decoded) //nolint:errcheck
	if _, ok := decoded["latlng"]; !ok {
		t.Errorf("expected latlng stream in payload, got %v", decoded)
	}
}

func TestRefreshToken(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("expected grant_type=refresh_token, got %q", got)
		}
		if got := r.Form.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("expected refresh_token=old-refresh, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintln(w, `{"access_token":"new-access","refresh_token":"new-refresh","expires_in":21600,"token_type":"Bearer"}`)
	})

	cfg := OauthConfig(&model.AppConfig{ClientID: "cid", ClientSecret: "secret"}, "")
	cfg.Endpoint.TokenURL = server.URL + "/oauth/token"

	tok, err := RefreshToken(context.Background(), cfg, "old-refresh")
	if err != nil {
		t.Fatalf("expected nil error, got %q", err)
	}
	if tok.AccessToken != "new-access" {
		t.Errorf("expected new access token, got %q", tok.AccessToken)
	}
	if tok.RefreshToken != "new-refresh" {
		t.Errorf("expected rotated refresh token, got %q", tok.RefreshToken)
	}
	if !tok.Expiry.After(time.Now()) {
		t.Error("expected expiry in the future")
	}
}

func TestRefreshTokenFailure(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, `{"message":"Bad Request","errors":[{"resource":"RefreshToken","code":"invalid"}]}`)
	})

	cfg := OauthConfig(&model.AppConfig{ClientID: "cid", ClientSecret: "secret"}, "")
	cfg.Endpoint.TokenURL = server.URL + "/oauth/token"

	_, err := RefreshToken(context.Background(), cfg, "revoked")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if errs.KindOf(err) != errs.KindTokenRefresh {
		t.Errorf("expected token refresh kind, got %v", errs.KindOf(err))
	}
}

// setup establishes a test server and a REST client pointed at it.
func setup() (rc *client.Client, mux *http.ServeMux, teardown func()) {
	mux = http.NewServeMux()
	server := httptest.NewServer(mux)

	surl, _ := url.Parse(server.URL)
	rc = client.NewClient(surl, nil)

	return rc, mux, server.Close
}
