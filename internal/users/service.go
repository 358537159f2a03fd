package users

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	pkgerrors "github.com/coachlyhq/coachly-backend/pkg/errors"
)

// Directory is the slice of the repository the profile service needs.
type Directory interface {
	Create(ctx context.Context, user *models.User) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateDisplayName(ctx context.Context, id uuid.UUID, name string) error
	UpdateTelegramChat(ctx context.Context, id uuid.UUID, chatID *int64) error
	UpdateTimezone(ctx context.Context, id uuid.UUID, tz string) error
}

// Service manages the delivery profile: display name, timezone, and the
// optional Telegram link.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.User, error)
	Upsert(ctx context.Context, userID uuid.UUID, params UpsertParams) (*models.User, error)
}

// UpsertParams patches profile fields; nil fields are left unchanged. A nil
// TelegramChatID pointer-to-pointer means "do not touch"; a pointer to nil
// unlinks the chat.
type UpsertParams struct {
	DisplayName    *string
	Timezone       *string
	TelegramChatID **int64
}

type service struct {
	repo Directory
}

// NewService wires profile dependencies.
func NewService(repo Directory) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}
	return user, nil
}

func (s *service) Upsert(ctx context.Context, userID uuid.UUID, params UpsertParams) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if params.Timezone != nil {
		if _, err := time.LoadLocation(*params.Timezone); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid IANA timezone")
		}
	}

	user, err := s.repo.FindByID(ctx, userID)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		fresh := &models.User{ID: userID, Timezone: "UTC"}
		if params.DisplayName != nil {
			fresh.DisplayName = *params.DisplayName
		}
		if fresh.DisplayName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name required for a new profile")
		}
		if params.Timezone != nil {
			fresh.Timezone = *params.Timezone
		}
		if params.TelegramChatID != nil {
			fresh.TelegramChatID = *params.TelegramChatID
		}
		user, err = s.repo.Create(ctx, fresh)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create profile")
		}
		return user, nil
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load profile")
	}

	if params.DisplayName != nil && *params.DisplayName != user.DisplayName {
		if *params.DisplayName == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "display name cannot be empty")
		}
		if err := s.repo.UpdateDisplayName(ctx, userID, *params.DisplayName); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update display name")
		}
		user.DisplayName = *params.DisplayName
	}
	if params.Timezone != nil && *params.Timezone != user.Timezone {
		if err := s.repo.UpdateTimezone(ctx, userID, *params.Timezone); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update timezone")
		}
		user.Timezone = *params.Timezone
	}
	if params.TelegramChatID != nil {
		if err := s.repo.UpdateTelegramChat(ctx, userID, *params.TelegramChatID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update telegram link")
		}
		user.TelegramChatID = *params.TelegramChatID
	}
	return user, nil
}
