// Package config implements the application credential endpoint.
package config

import (
	"encoding/json"
	"net/http"

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

type saveRequest struct {
	ClientID     string `json:"client_id" validate:"required"`
	ClientSecret string `json:"client_secret" validate:"required"`
}

// Save stores the singleton OAuth client credentials (POST /api/config).
func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, errs.New(errs.KindValidation, "invalid JSON body"))
		return
	}
	if err := validate.Struct(req); err != nil {
		respond.Error(w, errs.New(errs.KindValidation, "client_id and client_secret are required"))
		return
	}

	if err := store.SaveAppConfig(h.DB, req.ClientID, req.ClientSecret); err != nil {
		h.Log.WithError(err).Error("saving app config")
		respond.Error(w, err)
		return
	}
	h.Log.Info("app credentials configured")
	respond.JSON(w, http.StatusOK, map[string]bool{"success": true})
}
