package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/coachlyhq/coachly-backend/internal/delivery"
	"github.com/coachlyhq/coachly-backend/internal/schedule"
	"github.com/coachlyhq/coachly-backend/pkg/config"
	"github.com/coachlyhq/coachly-backend/pkg/db/models"
	"github.com/coachlyhq/coachly-backend/pkg/enums"
	"github.com/coachlyhq/coachly-backend/pkg/logger"
	"github.com/coachlyhq/coachly-backend/pkg/metrics"
)

const (
	defaultTickInterval    = 30 * time.Second
	defaultBatchSize       = 100
	defaultDeliveryTimeout = 10 * time.Second
	defaultRetryBudget     = 3
	defaultBackoffBase     = time.Minute
	defaultBackoffCap      = 30 * time.Minute
	defaultStaleClaimAfter = 5 * time.Minute
)

type store interface {
	Get(ctx context.Context, id uuid.UUID) (*models.PendingNotification, error)
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	MarkRetry(ctx context.Context, id uuid.UUID, next time.Time, cause error) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, cause error) (bool, error)
	ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error)
}

type dueIndex interface {
	DueBefore(instant time.Time, limit int) []schedule.Entry
	Upsert(entry schedule.Entry, active bool)
	Remove(id uuid.UUID)
}

type userDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type taskDirectory interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
}

type sender interface {
	Send(ctx context.Context, user *models.User, channel enums.Channel, msg delivery.Message) (delivery.Receipt, error)
}

// ServiceParams wires the dispatcher's dependencies.
type ServiceParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Store   store
	Index   dueIndex
	Users   userDirectory
	Tasks   taskDirectory
	Router  sender
	Metrics *metrics.DispatcherMetrics

	// Clock overrides time.Now for tests.
	Clock func() time.Time
}

// Service runs the due-scan loop: claim, render, deliver, settle.
type Service struct {
	logg    *logger.Logger
	store   store
	index   dueIndex
	users   userDirectory
	tasks   taskDirectory
	router  sender
	metrics *metrics.DispatcherMetrics
	now     func() time.Time

	tickInterval    time.Duration
	batchSize       int
	deliveryTimeout time.Duration
	retryBudget     int
	backoffBase     time.Duration
	backoffCap      time.Duration
	staleClaimAfter time.Duration
}

// NewService validates and wires the dispatcher.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Store == nil {
		return nil, errors.New("notification store is required")
	}
	if params.Index == nil {
		return nil, errors.New("schedule index is required")
	}
	if params.Users == nil {
		return nil, errors.New("user directory is required")
	}
	if params.Tasks == nil {
		return nil, errors.New("task directory is required")
	}
	if params.Router == nil {
		return nil, errors.New("delivery router is required")
	}

	cfg := params.Config.Dispatcher
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	deliveryTimeout := cfg.DeliveryTimeout
	if deliveryTimeout <= 0 {
		deliveryTimeout = defaultDeliveryTimeout
	}
	budget := cfg.RetryBudget
	if budget <= 0 {
		budget = defaultRetryBudget
	}
	backoffBase := cfg.BackoffBase
	if backoffBase <= 0 {
		backoffBase = defaultBackoffBase
	}
	backoffCap := cfg.BackoffCap
	if backoffCap <= 0 {
		backoffCap = defaultBackoffCap
	}
	staleAfter := cfg.StaleClaimAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleClaimAfter
	}

	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		logg:            params.Logger,
		store:           params.Store,
		index:           params.Index,
		users:           params.Users,
		tasks:           params.Tasks,
		router:          params.Router,
		metrics:         params.Metrics,
		now:             now,
		tickInterval:    tick,
		batchSize:       batch,
		deliveryTimeout: deliveryTimeout,
		retryBudget:     budget,
		backoffBase:     backoffBase,
		backoffCap:      backoffCap,
		staleClaimAfter: staleAfter,
	}, nil
}

// Run ticks on the configured interval until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	// Sweep before the first tick so claims abandoned by a crashed worker
	// become dispatchable immediately.
	if released, err := s.store.ReleaseStaleClaims(ctx, s.now().Add(-s.staleClaimAfter)); err != nil {
		s.logg.Error(ctx, "stale claim sweep failed", err)
	} else if released > 0 {
		s.metrics.AddStaleClaims(released)
		s.logg.Info(s.logg.WithField(ctx, "released", released), "released stale claims")
	}

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "dispatcher context canceled")
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				s.logg.Error(ctx, "dispatcher tick error", err)
			}
		}
	}
}

// Tick sweeps stale claims and dispatches everything due. Per-notification
// failures are aggregated so one bad row never stalls the batch.
func (s *Service) Tick(ctx context.Context) error {
	start := s.now()

	released, err := s.store.ReleaseStaleClaims(ctx, start.Add(-s.staleClaimAfter))
	if err != nil {
		return fmt.Errorf("stale claim sweep: %w", err)
	}
	s.metrics.AddStaleClaims(released)

	due := s.index.DueBefore(start, s.batchSize)
	s.metrics.SetDueBacklog(len(due))

	var errs error
	for _, entry := range due {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if err := s.dispatchOne(ctx, entry); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("dispatch %s: %w", entry.ID, err))
		}
	}

	s.metrics.ObserveTick(s.now().Sub(start))
	return errs
}

func (s *Service) dispatchOne(ctx context.Context, entry schedule.Entry) error {
	ctx = s.logg.WithNotificationID(ctx, entry.ID.String())

	claimed, err := s.store.Claim(ctx, entry.ID, s.now())
	if err != nil {
		return fmt.Errorf("claim: %w", err)
	}
	// The entry is out of the due set either way: claimed rows are ours, and
	// a lost claim means a mutation or another worker got there first. The
	// reconcile loop re-adds anything that is still pending.
	s.index.Remove(entry.ID)
	if !claimed {
		s.metrics.IncDelivery(metrics.OutcomeSkipped, "")
		return nil
	}

	row, err := s.store.Get(ctx, entry.ID)
	if err != nil {
		return s.settleFailure(ctx, entry.ID, nil, fmt.Errorf("load claimed row: %w", err), 0)
	}

	user, err := s.users.FindByID(ctx, row.UserID)
	if err != nil {
		return s.settleFailure(ctx, row.ID, row, fmt.Errorf("load user: %w", err), row.RetryCount)
	}

	msg := s.render(ctx, row, user)

	sendCtx, cancel := context.WithTimeout(ctx, s.deliveryTimeout)
	receipt, sendErr := s.router.Send(sendCtx, user, row.Channel, msg)
	cancel()
	if sendErr != nil {
		return s.settleFailure(ctx, row.ID, row, sendErr, row.RetryCount)
	}

	marked, err := s.store.MarkSent(ctx, row.ID, s.now())
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if !marked {
		// A cancel or delete raced the send; the message went out but the
		// row is no longer ours to settle.
		s.metrics.IncDelivery(metrics.OutcomeDiscarded, string(row.Channel))
		s.logg.Warn(ctx, "delivery discarded after concurrent mutation")
		return nil
	}

	s.metrics.IncDelivery(metrics.OutcomeSent, string(receipt.Channel))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"channel":     receipt.Channel,
		"provider_id": receipt.ProviderID,
	}), "notification delivered")
	return nil
}

// settleFailure retries within budget and fails terminally beyond it.
func (s *Service) settleFailure(ctx context.Context, id uuid.UUID, row *models.PendingNotification, cause error, retryCount int) error {
	channel := ""
	if row != nil {
		channel = string(row.Channel)
	}

	if retryCount >= s.retryBudget {
		marked, err := s.store.MarkFailed(ctx, id, cause)
		if err != nil {
			return fmt.Errorf("mark failed: %w", err)
		}
		if marked {
			s.metrics.IncDelivery(metrics.OutcomeFailed, channel)
			s.logg.Error(s.logg.WithField(ctx, "retry_count", retryCount), "notification failed terminally", cause)
		}
		return nil
	}

	next := s.now().Add(s.backoff(retryCount))
	marked, err := s.store.MarkRetry(ctx, id, next, cause)
	if err != nil {
		return fmt.Errorf("mark retry: %w", err)
	}
	if marked {
		if row != nil {
			s.index.Upsert(schedule.Entry{ID: id, UserID: row.UserID, ScheduledFor: next}, true)
		}
		s.metrics.IncDelivery(metrics.OutcomeRetried, channel)
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"retry_count": retryCount + 1,
			"next_at":     next.Format(time.RFC3339),
			"error":       cause.Error(),
		}), "delivery failed, retry scheduled")
	}
	return nil
}

// backoff doubles per attempt from the base, capped.
func (s *Service) backoff(retryCount int) time.Duration {
	d := s.backoffBase
	for i := 0; i < retryCount; i++ {
		d *= 2
		if d >= s.backoffCap {
			return s.backoffCap
		}
	}
	if d > s.backoffCap {
		return s.backoffCap
	}
	return d
}

// render substitutes the {{user}} and {{task}} placeholders. A deleted task
// falls back to the notification's own title so old rows still read sensibly.
func (s *Service) render(ctx context.Context, row *models.PendingNotification, user *models.User) delivery.Message {
	taskTitle := row.Title
	if row.TaskID != nil {
		if task, err := s.tasks.FindByID(ctx, *row.TaskID); err == nil {
			taskTitle = task.Title
		}
	}

	replacer := strings.NewReplacer(
		"{{user}}", user.DisplayName,
		"{{task}}", taskTitle,
	)
	return delivery.Message{
		NotificationID: row.ID,
		Type:           row.Type,
		Title:          replacer.Replace(row.Title),
		Body:           replacer.Replace(row.Content),
	}
}
