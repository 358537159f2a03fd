package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coachlyhq/coachly-backend/internal/commands"
	"github.com/coachlyhq/coachly-backend/internal/notifications"
	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	pkgerrors "github.com/coachlyhq/coachly-backend/pkg/errors"
)

type testCommandsService struct {
	listTodayFn  func(ctx context.Context, userID uuid.UUID) ([]models.PendingNotification, error)
	cancelFn     func(ctx context.Context, userID uuid.UUID, reference string) error
	rescheduleFn func(ctx context.Context, userID uuid.UUID, reference string, at time.Time) (*models.PendingNotification, error)
}

func (s *testCommandsService) ListToday(ctx context.Context, userID uuid.UUID) ([]models.PendingNotification, error) {
	if s.listTodayFn != nil {
		return s.listTodayFn(ctx, userID)
	}
	return nil, nil
}

func (s *testCommandsService) Create(ctx context.Context, params notifications.CreateParams) (*models.PendingNotification, error) {
	return nil, nil
}

func (s *testCommandsService) Reschedule(ctx context.Context, userID uuid.UUID, reference string, at time.Time) (*models.PendingNotification, error) {
	if s.rescheduleFn != nil {
		return s.rescheduleFn(ctx, userID, reference, at)
	}
	return nil, nil
}

func (s *testCommandsService) Snooze(ctx context.Context, userID uuid.UUID, reference string, minutes int) (*models.PendingNotification, error) {
	return nil, nil
}

func (s *testCommandsService) Cancel(ctx context.Context, userID uuid.UUID, reference string) error {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, userID, reference)
	}
	return nil
}

func TestCommandTodayReturnsRows(t *testing.T) {
	userID := uuid.New()
	svc := &testCommandsService{
		listTodayFn: func(ctx context.Context, uid uuid.UUID) ([]models.PendingNotification, error) {
			if uid != userID {
				t.Fatalf("unexpected user %s", uid)
			}
			return []models.PendingNotification{{ID: uuid.New(), Title: "Morning run"}}, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/commands/today", nil)
	req = withUser(req, userID)

	resp := httptest.NewRecorder()
	CommandToday(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data struct {
			Notifications []models.PendingNotification `json:"notifications"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(envelope.Data.Notifications) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(envelope.Data.Notifications))
	}
}

func TestCommandCancelAmbiguousSurfacesCandidates(t *testing.T) {
	svc := &testCommandsService{
		cancelFn: func(ctx context.Context, userID uuid.UUID, reference string) error {
			return pkgerrors.New(pkgerrors.CodeAmbiguous, "reference matches multiple notifications").
				WithDetails(map[string]any{"candidates": []commands.Candidate{
					{ID: uuid.New(), Title: "Morning run"},
					{ID: uuid.New(), Title: "Morning stretch"},
				}})
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/commands/cancel", strings.NewReader(`{"reference":"morning"}`))
	req = withUser(req, uuid.New())

	resp := httptest.NewRecorder()
	CommandCancel(svc, testLogger())(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeAmbiguous) {
		t.Fatalf("unexpected code %s", envelope.Error.Code)
	}
	candidates, ok := envelope.Error.Details["candidates"].([]any)
	if !ok || len(candidates) != 2 {
		t.Fatalf("expected 2 candidates in details, got %v", envelope.Error.Details)
	}
}

func TestCommandRescheduleForwardsReference(t *testing.T) {
	userID := uuid.New()
	at := time.Date(2026, 4, 1, 18, 30, 0, 0, time.UTC)
	svc := &testCommandsService{
		rescheduleFn: func(ctx context.Context, uid uuid.UUID, reference string, got time.Time) (*models.PendingNotification, error) {
			if reference != "6:30pm" {
				t.Fatalf("unexpected reference %q", reference)
			}
			if !got.Equal(at) {
				t.Fatalf("expected %s got %s", at, got)
			}
			return &models.PendingNotification{ID: uuid.New(), UserID: uid, ScheduledFor: got}, nil
		},
	}

	body := `{"reference":"6:30pm","scheduledFor":"` + at.Format(time.RFC3339) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/commands/reschedule", strings.NewReader(body))
	req = withUser(req, userID)

	resp := httptest.NewRecorder()
	CommandReschedule(svc, testLogger())(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.Code, resp.Body.String())
	}
}

func TestCommandCancelMissingReference(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/commands/cancel", strings.NewReader(`{}`))
	req = withUser(req, uuid.New())

	resp := httptest.NewRecorder()
	CommandCancel(&testCommandsService{}, testLogger())(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
