package controllers

import (
	"net/http"

	"github.com/coachlyhq/coachly-backend/api/responses"
	"github.com/coachlyhq/coachly-backend/api/validators"
	"github.com/coachlyhq/coachly-backend/internal/users"
	pkgerrors "github.com/coachlyhq/coachly-backend/pkg/errors"
	"github.com/coachlyhq/coachly-backend/pkg/logger"
)

type upsertProfileRequest struct {
	DisplayName    *string `json:"displayName,omitempty" validate:"omitempty,max=120"`
	Timezone       *string `json:"timezone,omitempty" validate:"omitempty,max=64"`
	TelegramChatID *int64  `json:"telegramChatId,omitempty"`
	UnlinkTelegram bool    `json:"unlinkTelegram,omitempty"`
}

// GetProfile returns the acting user's delivery profile.
func GetProfile(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}

		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Get(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}

// UpsertProfile creates or patches the acting user's delivery profile.
func UpsertProfile(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "profile service unavailable"))
			return
		}

		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body upsertProfileRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := users.UpsertParams{
			DisplayName: body.DisplayName,
			Timezone:    body.Timezone,
		}
		if body.UnlinkTelegram {
			var unlink *int64
			params.TelegramChatID = &unlink
		} else if body.TelegramChatID != nil {
			params.TelegramChatID = &body.TelegramChatID
		}

		user, err := svc.Upsert(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, user)
	}
}
