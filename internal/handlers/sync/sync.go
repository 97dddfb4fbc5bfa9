// Package sync implements the bounded unit-of-work endpoints of the
// resumable sync protocol. Each request performs one idempotent unit
// and returns whether the caller should invoke again; no session state
// is held between calls.
package sync

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/lildude/stravasync/internal/errs"
	"github.com/lildude/stravasync/internal/handlers/respond"
	"github.com/lildude/stravasync/internal/policy"
	"github.com/lildude/stravasync/internal/store"
	"github.com/lildude/stravasync/internal/syncer"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Handler struct {
	DB     *gorm.DB
	Syncer *syncer.Syncer
	Policy policy.Policy
	Log    logrus.FieldLogger
}

func ownerID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errs.New(errs.KindValidation, "invalid user id")
	}
	return id, nil
}

// Page runs one activity paging unit (POST /api/users/{id}/sync?page=N).
// The capability check runs before the existence lookup: a denied owner
// learns nothing about what is stored.
func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	id, err := ownerID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}
	if !h.Policy.CanSync(id) {
		respond.Error(w, errs.New(errs.KindForbidden, "sync is not enabled for this user"))
		return
	}

	user, err := store.GetUser(h.DB, id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		page, err = strconv.Atoi(p)
		if err != nil || page < 1 {
			respond.Error(w, errs.New(errs.KindValidation, "page must be a positive integer"))
			return
		}
	}

	res, err := h.Syncer.SyncPage(r.Context(), user, page)
	if err != nil {
		h.Log.WithError(err).WithField("owner", id).Error("sync page failed")
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}

// Streams runs one stream backfill unit
// (POST /api/users/{id}/streams?limit=N).
func (h *Handler) Streams(w http.ResponseWriter, r *http.Request) {
	id, err := ownerID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	user, err := store.GetUser(h.DB, id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	limit := syncer.DefaultBackfillLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		limit, err = strconv.Atoi(l)
		if err != nil || limit < 1 {
			respond.Error(w, errs.New(errs.KindValidation, "limit must be a positive integer"))
			return
		}
	}

	res, err := h.Syncer.BackfillStreams(r.Context(), user, limit)
	if err != nil {
		h.Log.WithError(err).WithField("owner", id).Error("stream backfill failed")
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, res)
}
