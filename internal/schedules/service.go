package schedules

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	dbpkg "github.com/coachlyhq/coachly-backend/pkg/db"
	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
	pkgerrors "github.com/coachlyhq/coachly-backend/pkg/errors"
)

// specParser accepts the standard five-field cron format. Occurrences are
// computed in the owning user's timezone at expansion time.
var specParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ParseSpec validates and compiles a recurrence spec.
func ParseSpec(spec string) (cron.Schedule, error) {
	return specParser.Parse(spec)
}

// Service defines recurring-schedule management.
type Service interface {
	Create(ctx context.Context, params CreateParams) (*models.MessageSchedule, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*models.MessageSchedule, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.MessageSchedule, error)
	Update(ctx context.Context, userID, id uuid.UUID, params UpdateParams) (*models.MessageSchedule, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
}

// CreateParams describes a new recurring schedule.
type CreateParams struct {
	UserID   uuid.UUID
	Slug     string
	Type     enums.NotificationType
	Tone     enums.Tone
	Channel  enums.Channel
	Title    string
	Content  string
	CronSpec string
}

// UpdateParams patches schedule fields; nil fields are left unchanged.
type UpdateParams struct {
	Title    *string
	Content  *string
	Tone     *enums.Tone
	CronSpec *string
	Active   *bool
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires schedule dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "schedules repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) Create(ctx context.Context, params CreateParams) (*models.MessageSchedule, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !slugPattern.MatchString(params.Slug) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "slug must be lowercase kebab-case")
	}
	if !params.Type.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid notification type")
	}
	if !params.Tone.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid tone")
	}
	channel := params.Channel
	if channel == "" {
		channel = enums.ChannelInApp
	}
	if !channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid delivery channel")
	}
	if params.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title required")
	}
	if params.Content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content required")
	}
	if _, err := ParseSpec(params.CronSpec); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recurrence spec")
	}

	row := &models.MessageSchedule{
		ID:       uuid.New(),
		UserID:   params.UserID,
		Slug:     params.Slug,
		Type:     params.Type,
		Tone:     params.Tone,
		Channel:  channel,
		Title:    params.Title,
		Content:  params.Content,
		CronSpec: params.CronSpec,
		Active:   true,
	}
	if err := s.repo.Create(ctx, row); err != nil {
		if dbpkg.IsUniqueViolation(err, "ux_message_schedules_user_slug_live") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "slug already in use")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create schedule")
	}
	return row, nil
}

func (s *service) Get(ctx context.Context, userID, id uuid.UUID) (*models.MessageSchedule, error) {
	row, err := s.load(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if row.Deleted() {
		return nil, pkgerrors.New(pkgerrors.CodeGone, "schedule deleted")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.MessageSchedule, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	rows, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list schedules")
	}
	return rows, nil
}

func (s *service) Update(ctx context.Context, userID, id uuid.UUID, params UpdateParams) (*models.MessageSchedule, error) {
	if params.Title == nil && params.Content == nil && params.Tone == nil && params.CronSpec == nil && params.Active == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no fields to update")
	}
	if params.Title != nil && *params.Title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title cannot be empty")
	}
	if params.Content != nil && *params.Content == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content cannot be empty")
	}
	if params.Tone != nil && !params.Tone.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid tone")
	}
	if params.CronSpec != nil {
		if _, err := ParseSpec(*params.CronSpec); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid recurrence spec")
		}
	}
	if _, err := s.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if params.Title != nil {
		fields["title"] = *params.Title
	}
	if params.Content != nil {
		fields["content"] = *params.Content
	}
	if params.Tone != nil {
		fields["tone"] = *params.Tone
	}
	if params.CronSpec != nil {
		fields["cron_spec"] = *params.CronSpec
	}
	if params.Active != nil {
		fields["active"] = *params.Active
	}

	if _, err := s.repo.Update(ctx, id, fields); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update schedule")
	}
	return s.Get(ctx, userID, id)
}

func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if _, err := s.load(ctx, userID, id); err != nil {
		return err
	}
	// Zero rows means the schedule was already soft-deleted.
	if _, err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete schedule")
	}
	return nil
}

func (s *service) load(ctx context.Context, userID, id uuid.UUID) (*models.MessageSchedule, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "schedule id required")
	}
	row, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load schedule")
	}
	if userID != uuid.Nil && row.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "schedule not found")
	}
	return row, nil
}
