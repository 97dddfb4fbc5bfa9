// Package auth implements the OAuth login and callback handlers.
package auth

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lildude/stravasync/internal/cache"
	"github.com/lildude/stravasync/internal/errs"
	"github.com/lildude/stravasync/internal/handlers/respond"
	"github.com/lildude/stravasync/internal/model"
	"github.com/lildude/stravasync/internal/store"
	"github.com/lildude/stravasync/internal/strava"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

const stateTTL = 10 * time.Minute

type Handler struct {
	DB      *gorm.DB
	Cache   cache.Cache
	Log     logrus.FieldLogger
	BaseURL string
}

func (h *Handler) redirectURL() string {
	return h.BaseURL + "/api/auth/callback"
}

// Login redirects to the Strava authorize URL (GET /api/auth/login).
// The state nonce is stored with a TTL and verified on callback.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	cfg, err := store.GetAppConfig(h.DB)
	if err != nil {
		respond.Error(w, err)
		return
	}

	state := uuid.NewString()
	if err := h.Cache.SetEX(r.Context(), cache.StateKey(state), "1", stateTTL); err != nil {
		h.Log.WithError(err).Error("unable to store oauth state")
		respond.Error(w, errs.Wrap(errs.KindInternal, "unable to store oauth state", err))
		return
	}

	u := strava.OauthConfig(cfg, h.redirectURL()).
		AuthCodeURL(state, oauth2.SetAuthURLParam("approval_prompt", "force"))
	h.Log.WithField("url", u).Info("redirecting to strava auth")
	http.Redirect(w, r, u, http.StatusFound)
}

// Callback exchanges the authorization code, upserts the user and
// redirects to their page (GET /api/auth/callback).
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		respond.Error(w, errs.New(errs.KindValidation, "strava auth error: "+e))
		return
	}
	code := q.Get("code")
	if code == "" {
		respond.Error(w, errs.New(errs.KindValidation, "no code provided"))
		return
	}

	state := q.Get("state")
	if state == "" {
		respond.Error(w, errs.New(errs.KindValidation, "state invalid"))
		return
	}
	v, err := h.Cache.Get(r.Context(), cache.StateKey(state))
	if err != nil || v != "1" {
		respond.Error(w, errs.New(errs.KindValidation, "state invalid"))
		return
	}
	h.Cache.Del(r.Context(), cache.StateKey(state)) //nolint:errcheck // single-use nonce, best effort

	cfg, err := store.GetAppConfig(h.DB)
	if err != nil {
		respond.Error(w, err)
		return
	}

	token, err := strava.OauthConfig(cfg, h.redirectURL()).Exchange(r.Context(), code)
	if err != nil {
		h.Log.WithError(err).Error("token exchange failed")
		respond.Error(w, errs.Wrap(errs.KindTokenRefresh, "token exchange failed", err))
		return
	}

	athlete, ok := token.Extra("athlete").(map[string]any)
	if !ok {
		h.Log.Error("unable to get athlete info")
		respond.Error(w, errs.New(errs.KindUpstream, "token response missing athlete"))
		return
	}
	id, ok := athlete["id"].(float64)
	if !ok {
		respond.Error(w, errs.New(errs.KindUpstream, "token response missing athlete id"))
		return
	}

	user := &model.User{
		StravaID:     int64(id),
		Firstname:    str(athlete["firstname"]),
		Lastname:     str(athlete["lastname"]),
		ProfilePic:   str(athlete["profile"]),
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.Expiry.Unix(),
	}
	if err := store.UpsertUser(h.DB, user); err != nil {
		h.Log.WithError(err).Error("unable to store user")
		respond.Error(w, err)
		return
	}

	h.Log.WithField("athlete", user.StravaID).Info("successfully authenticated")
	http.Redirect(w, r, fmt.Sprintf("/user/%d", user.StravaID), http.StatusFound)
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
