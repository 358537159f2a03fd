package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coachlyhq/coachly-backend/api/middleware"
	"github.com/coachlyhq/coachly-backend/api/responses"
	"github.com/coachlyhq/coachly-backend/api/validators"
	"github.com/coachlyhq/coachly-backend/internal/notifications"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
	pkgerrors "github.com/coachlyhq/coachly-backend/pkg/errors"
	"github.com/coachlyhq/coachly-backend/pkg/logger"
)

type createNotificationRequest struct {
	Type         string  `json:"type" validate:"required"`
	Tone         *string `json:"tone,omitempty"`
	Channel      string  `json:"channel,omitempty"`
	Title        string  `json:"title" validate:"required,max=200"`
	Content      string  `json:"content" validate:"required,max=4000"`
	ScheduledFor string  `json:"scheduledFor" validate:"required"`
	TaskID       *string `json:"taskId,omitempty"`
}

type editNotificationRequest struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,max=200"`
	Content *string `json:"content,omitempty" validate:"omitempty,max=4000"`
	Tone    *string `json:"tone,omitempty"`
}

type rescheduleRequest struct {
	ScheduledFor string `json:"scheduledFor" validate:"required"`
}

type snoozeRequest struct {
	Minutes int `json:"minutes" validate:"required,min=1,max=1440"`
}

type duplicateRequest struct {
	ScheduledFor *string `json:"scheduledFor,omitempty"`
}

// CreateNotification schedules a one-off notification for the acting user.
func CreateNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
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

// ListNotifications returns the acting user's live pending notifications,
// optionally filtered by a time window and type.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		userID, err := actingUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := notifications.ListParams{UserID: userID}

		if from := strings.TrimSpace(r.URL.Query().Get("from")); from != "" {
			value, err := parseTimestamp(from)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.From = &value
		}

		if to := strings.TrimSpace(r.URL.Query().Get("to")); to != "" {
			value, err := parseTimestamp(to)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.To = &value
		}

		if typ := strings.TrimSpace(r.URL.Query().Get("type")); typ != "" {
			value, err := enums.ParseNotificationType(typ)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification type"))
				return
			}
			params.Type = &value
		}

		rows, err := svc.ListActive(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"notifications": rows})
	}
}

// GetNotification returns a single notification owned by the acting user.
func GetNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		userID, notificationID, err := actingUserAndNotification(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Get(r.Context(), userID, notificationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// EditNotification patches content fields on a pending notification.
func EditNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		userID, notificationID, err := actingUserAndNotification(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body editNotificationRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := notifications.EditParams{Title: body.Title, Content: body.Content}
		if body.Tone != nil {
			tone, err := enums.ParseTone(*body.Tone)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tone"))
				return
			}
			params.Tone = &tone
		}

		row, err := svc.Edit(r.Context(), userID, notificationID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// RescheduleNotification moves a pending notification to a new time.
func RescheduleNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		userID, notificationID, err := actingUserAndNotification(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body rescheduleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		at, err := parseTimestamp(body.ScheduledFor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Reschedule(r.Context(), userID, notificationID, at)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// SnoozeNotification pushes a pending notification forward by N minutes.
func SnoozeNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		userID, notificationID, err := actingUserAndNotification(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body snoozeRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		row, err := svc.Snooze(r.Context(), userID, notificationID, body.Minutes)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, row)
	}
}

// DuplicateNotification copies a notification into a fresh pending row.
func DuplicateNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		userID, notificationID, err := actingUserAndNotification(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body duplicateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params := notifications.DuplicateParams{}
		if body.ScheduledFor != nil {
			at, err := parseTimestamp(*body.ScheduledFor)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			params.ScheduledFor = &at
		}

		row, err := svc.Duplicate(r.Context(), userID, notificationID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, row)
	}
}

// CancelNotification cancels a pending or delivering notification.
func CancelNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		userID, notificationID, err := actingUserAndNotification(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Cancel(r.Context(), userID, notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"cancelled": true})
	}
}

// DeleteNotification soft-deletes a notification.
func DeleteNotification(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications service unavailable"))
			return
		}

		userID, notificationID, err := actingUserAndNotification(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), userID, notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

func decodeCreateParams(r *http.Request, userID uuid.UUID) (notifications.CreateParams, error) {
	var body createNotificationRequest
	if err := validators.DecodeJSONBody(r, &body); err != nil {
		return notifications.CreateParams{}, err
	}

	params := notifications.CreateParams{
		UserID:  userID,
		Title:   body.Title,
		Content: body.Content,
	}

	var err error
	params.Type, err = enums.ParseNotificationType(body.Type)
	if err != nil {
		return notifications.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification type")
	}

	if body.Tone != nil {
		tone, err := enums.ParseTone(*body.Tone)
		if err != nil {
			return notifications.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid tone")
		}
		params.Tone = &tone
	}

	if body.Channel != "" {
		params.Channel, err = enums.ParseChannel(body.Channel)
		if err != nil {
			return notifications.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery channel")
		}
	}

	params.ScheduledFor, err = parseTimestamp(body.ScheduledFor)
	if err != nil {
		return notifications.CreateParams{}, err
	}

	if body.TaskID != nil {
		taskID, err := uuid.Parse(*body.TaskID)
		if err != nil {
			return notifications.CreateParams{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid task id")
		}
		params.TaskID = &taskID
	}

	return params, nil
}

func actingUser(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}
	return id, nil
}

func actingUserAndNotification(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, err := actingUser(r)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	notificationID, err := uuid.Parse(chi.URLParam(r, "notificationId"))
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid notification id")
	}
	return userID, notificationID, nil
}

func parseTimestamp(value string) (time.Time, error) {
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "timestamps must be RFC 3339")
	}
	return parsed.UTC(), nil
}
