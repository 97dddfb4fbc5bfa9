// Package users implements the user listing and configuration endpoints.
package users

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/lildude/stravasync/internal/errs"
	"github.com/lildude/stravasync/internal/handlers/respond"
	"github.com/lildude/stravasync/internal/store"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var validate = validator.New()

type Handler struct {
	DB  *gorm.DB
	Log logrus.FieldLogger
}

func ownerID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		return 0, errs.New(errs.KindValidation, "invalid user id")
	}
	return id, nil
}

// List returns all linked users, token fields stripped (GET /api/users).
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	us, err := store.GetUsers(h.DB)
	if err != nil {
		h.Log.WithError(err).Error("listing users")
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, us)
}

// Get returns a single user (GET /api/users/{id}).
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := ownerID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}
	u, err := store.GetUser(h.DB, id)
	if err != nil {
		respond.Error(w, err)
		return
	}
	respond.JSON(w, http.StatusOK, u)
}

type syncConfigRequest struct {
	SyncSince string `json:"sync_since" validate:"required,datetime=2006-01-02"`
}

// UpdateConfig updates the owner's sync boundary
// (PATCH /api/users/{id}/config).
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	id, err := ownerID(r)
	if err != nil {
		respond.Error(w, err)
		return
	}

	var req syncConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, errs.New(errs.KindValidation, "invalid JSON body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.Error(w, errs.New(errs.KindValidation, "sync_since must be a YYYY-MM-DD date"))
		return
	}

	if err := store.UpdateSyncSince(h.DB, id, req.SyncSince); err != nil {
		respond.Error(w, err)
		return
	}
	h.Log.WithField("owner", id).WithField("sync_since", req.SyncSince).Info("updated sync boundary")
	respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
