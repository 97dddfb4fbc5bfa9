// Package activities implements the activity read and delete endpoints.
package activities

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lildude/stravasync/internal/cache"
	"github.com/lildude/stravasync/internal/errs"
	"github.com/lildude/stravasync/internal/handlers/respond"
	"github.com/lildude/stravasync/internal/model"
	"github.com/lildude/stravasync/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Handler struct {
	DB    *gorm.DB
	Cache cache.Cache
	Log   logrus.FieldLogger
}

// activityResponse is the stored activity with the raw payload parsed.
// A corrupt payload yields data_json null rather than an error.
type activityResponse struct {
	ID                 int64           `json:"id"`
	StravaID           int64           `json:"strava_id"`
	Name               string          `json:"name"`
	Type               string          `json:"type"`
	StartDate          time.Time       `json:"start_date"`
	Distance           float64         `json:"distance"`
	MovingTime         int64           `json:"moving_time"`
	ElapsedTime        int64           `json:"elapsed_time"`
	TotalElevationGain float64         `json:"total_elevation_gain"`
	DataJSON           json.RawMessage `json:"data_json"`
	Stream             json.RawMessage `json:"stream,omitempty"`
}

func toResponse(a *model.Activity) activityResponse {
	return activityResponse{
		ID:                 a.ID,
		StravaID:           a.StravaID,
		Name:               a.Name,
		Type:               a.Type,
		StartDate:          a.StartDate,
		Distance:           a.Distance,
		MovingTime:         a.MovingTime,
		ElapsedTime:        a.ElapsedTime,
		TotalElevationGain: a.TotalElevationGain,
		DataJSON:           parsedData(a.DataJSON),
	}
}

func parsedData(raw string) json.RawMessage {
	if raw == "" || !json.Valid([]byte(raw)) {
		return nil
	}
	return json.RawMessage(raw)
}

func pathID(r *http.Request, message string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errs.New(errs.KindValidation, message)
	}
	return id, nil
}

// ListForUser returns an owner's activities, most recent first
// (GET /api/users/{id}/activities). The response is cached per owner
// until the next sync write batch invalidates it.
func (h *Handler) ListForUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "invalid user id")
	if err != nil {
		respond.Error(w, err)
		return
	}

	key := cache.ActivityListKey(id)
	if h.Cache != nil {
		var cached []activityResponse
		if err := h.Cache.GetJSON(r.Context(), key, &cached); err == nil && cached != nil {
			respond.JSON(w, http.StatusOK, cached)
			return
		}
	}

	acts, err := store.GetActivities(h.DB, id)
	if err != nil {
		h.Log.WithError(err).Error("listing activities")
		respond.Error(w, err)
		return
	}

	resp := make([]activityResponse, 0, len(acts))
	for i := range acts {
		resp = append(resp, toResponse(&acts[i]))
	}

	if h.Cache != nil {
		if err := h.Cache.SetJSON(r.Context(), key, resp); err != nil {
			h.Log.WithError(err).Warn("unable to cache activity list")
		}
	}
	respond.JSON(w, http.StatusOK, resp)
}

// Get returns one activity merged with its stream if present
// (GET /api/activities/{id}).
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "invalid activity id")
	if err != nil {
		respond.Error(w, err)
		return
	}

	a, err := store.GetActivity(h.DB, id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	resp := toResponse(a)

	st, err := store.GetStream(h.DB, id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if st != nil && json.Valid(st.Data.Bytes) {
		resp.Stream = json.RawMessage(st.Data.Bytes)
	}
	respond.JSON(w, http.StatusOK, resp)
}

// Delete removes one activity and its stream (DELETE /api/activities/{id}).
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "invalid activity id")
	if err != nil {
		respond.Error(w, err)
		return
	}

	a, err := store.GetActivity(h.DB, id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if err := store.DeleteActivity(h.DB, id); err != nil {
		respond.Error(w, err)
		return
	}
	h.dropCachedList(r, a.StravaID)
	h.Log.WithField("activity", id).Info("deleted activity")
	respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// DeleteAllForUser removes all of an owner's activities and streams
// (DELETE /api/users/{id}/activities).
func (h *Handler) DeleteAllForUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "invalid user id")
	if err != nil {
		respond.Error(w, err)
		return
	}
	if err := store.DeleteAllActivities(h.DB, id); err != nil {
		respond.Error(w, err)
		return
	}
	h.dropCachedList(r, id)
	h.Log.WithField("owner", id).Info("deleted all activities")
	respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) dropCachedList(r *http.Request, ownerID int64) {
	if h.Cache == nil {
		return
	}
	if err := h.Cache.Del(r.Context(), cache.ActivityListKey(ownerID)); err != nil {
		h.Log.WithError(err).Warn("unable to invalidate cached activity list")
	}
}
