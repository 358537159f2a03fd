package controllers

import (
	"net/http"

	"github.com/coachlyhq/coachly-backend/api/responses"
	"github.com/coachlyhq/coachly-backend/api/validators"
	"github.com/coachlyhq/coachly-backend/internal/commands"
	pkgerrors "github.com/coachlyhq/coachly-backend/pkg/errors"
	"github.com/coachlyhq/coachly-backend/pkg/logger"
)

type commandRescheduleRequest struct {
	Reference    string `json:"reference" validate:"required,max=200"`
	ScheduledFor string `json:"scheduledFor" validate:"required"`
}

type commandSnoozeRequest struct {
	Reference string `json:"reference" validate:"required,max=200"`
	Minutes   int    `json:"minutes" validate:"required,min=1,max=1440"`
}

type commandCancelRequest struct {
	Reference string `json:"reference" validate:"required,max=200"`
}

// CommandToday lists the acting user's notifications for today in their
// timezone, ordered by scheduled time.
func CommandToday(svc commands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commands service unavailable"))
			return
		}

		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListToday(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"notifications": rows})
	}
}

// CommandCreate schedules a notification through the command surface. The
// payload matches the direct create endpoint.
func CommandCreate(svc commands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commands service unavailable"))
			return
		}

		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := decodeCreateParams(r, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Create(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

// CommandReschedule moves a notification addressed by a free-form reference.
func CommandReschedule(svc commands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commands service unavailable"))
			return
		}

		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body commandRescheduleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		at, err := parseTimestamp(body.ScheduledFor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Reschedule(r.Context(), userID, body.Reference, at)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// CommandSnooze pushes a referenced notification forward by N minutes.
func CommandSnooze(svc commands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commands service unavailable"))
			return
		}

		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body commandSnoozeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Snooze(r.Context(), userID, body.Reference, body.Minutes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// CommandCancel cancels a referenced notification.
func CommandCancel(svc commands.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commands service unavailable"))
			return
		}

		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body commandCancelRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), userID, body.Reference); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"cancelled": true})
	}
}
