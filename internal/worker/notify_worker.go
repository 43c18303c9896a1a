package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sparkleclean/internal/metrics"
	"sparkleclean/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// TaskStore persists notification tasks so they survive restarts. It is
// optional: without one the worker runs on redis and the in-memory queue only.
type TaskStore interface {
	CreateNotifyTask(ctx context.Context, task *models.NotifyTask) error
	GetPendingNotifyTasks(ctx context.Context, limit int) ([]models.NotifyTask, error)
	UpdateNotifyTaskStatus(ctx context.Context, id int64, status, lastError string, nextRetry *time.Time) error
}

// Drafter turns a booking into a structured notification document.
type Drafter interface {
	DraftNotification(ctx context.Context, booking *models.Booking, serviceTitle string) (*models.NotificationDocument, error)
}

// Deliverer sends a drafted notification to the site owner.
type Deliverer interface {
	Deliver(doc *models.NotificationDocument) error
}

// NotifyWorker consumes booking-notification tasks: it drafts the owner
// notification and delivers it, with retries and a dead-letter list.
type NotifyWorker struct {
	tasks         TaskStore
	drafter       Drafter
	deliverer     Deliverer
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.NotifyTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	titleFor      func(serviceID string) string
	logger        *zerolog.Logger
}

// NewNotifyWorker builds a worker with sane defaults. titleFor resolves a
// service id to its display title; nil keeps the raw id.
func NewNotifyWorker(tasks TaskStore, drafter Drafter, deliverer Deliverer, redisClient *redis.Client, retry RetryPolicy, titleFor func(string) string, logger *zerolog.Logger) *NotifyWorker {
	if retry.MaxRetries == 0 {
		retry.MaxRetries = 5
	}
	if retry.InitialDelay == 0 {
		retry.InitialDelay = 2 * time.Second
	}
	if retry.MaxDelay == 0 {
		retry.MaxDelay = 1 * time.Minute
	}
	if retry.BackoffFactor == 0 {
		retry.BackoffFactor = 2
	}
	if titleFor == nil {
		titleFor = func(id string) string { return id }
	}

	return &NotifyWorker{
		tasks:         tasks,
		drafter:       drafter,
		deliverer:     deliverer,
		redis:         redisClient,
		retryPolicy:   retry,
		queue:         make(chan models.NotifyTask, models.WorkerQueueSize),
		redisQueueKey: "notify:queue",
		deadLetterKey: "notify:deadletter",
		pollInterval:  2 * time.Second,
		batchSize:     20,
		titleFor:      titleFor,
		logger:        logger,
	}
}

// EnqueueBookingNotification persists a task for the booking and schedules it
// via redis or the in-memory queue.
func (w *NotifyWorker) EnqueueBookingNotification(ctx context.Context, booking *models.Booking) error {
	if booking == nil || booking.ID == 0 {
		return errors.New("booking id is required")
	}

	task := models.NotifyTask{
		BookingID: booking.ID,
		Booking:   booking,
		Status:    "pending",
		CreatedAt: time.Now().UTC(),
	}

	if w.tasks != nil {
		if err := w.tasks.CreateNotifyTask(ctx, &task); err != nil {
			return fmt.Errorf("persist notify task: %w", err)
		}
	}

	// Redis first so the task survives a restart even without a TaskStore.
	if w.redis != nil {
		if err := w.pushRedis(ctx, task); err != nil {
			w.logger.Warn().Err(err).Msg("redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("memory queue full, task left to db polling")
	}

	return nil
}

// Start runs the main loop until ctx is done.
func (w *NotifyWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("notify worker started")
	defer w.logger.Info().Msg("notify worker stopped")

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}

		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if w.tasks == nil {
			w.sleep(ctx)
			continue
		}

		pending, err := w.tasks.GetPendingNotifyTasks(ctx, w.batchSize)
		if err != nil {
			w.logger.Error().Err(err).Msg("fetch pending tasks")
			w.sleep(ctx)
			continue
		}
		if len(pending) == 0 {
			w.sleep(ctx)
			continue
		}

		for i := range pending {
			w.processTask(ctx, &pending[i])
		}
	}
}

func (w *NotifyWorker) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(w.pollInterval):
	}
}

func (w *NotifyWorker) tryLocalQueue() (models.NotifyTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.NotifyTask{}, false
	}
}

func (w *NotifyWorker) tryRedis(ctx context.Context) (models.NotifyTask, bool) {
	if w.redis == nil {
		return models.NotifyTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.NotifyTask{}, false
		}
		w.logger.Error().Err(err).Msg("redis BRPOP error")
		return models.NotifyTask{}, false
	}
	if len(res) != 2 {
		return models.NotifyTask{}, false
	}
	var task models.NotifyTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("decode redis task")
		return models.NotifyTask{}, false
	}
	return task, true
}

func (w *NotifyWorker) processTask(ctx context.Context, task *models.NotifyTask) {
	if task.Booking == nil {
		w.failTask(ctx, task, errors.New("booking payload missing"))
		return
	}

	draftCtx, cancel := context.WithTimeout(ctx, time.Duration(models.NotifyTimeoutSeconds)*time.Second)
	defer cancel()

	doc, err := w.drafter.DraftNotification(draftCtx, task.Booking, w.titleFor(task.Booking.Service))
	if err != nil {
		w.retryOrFail(ctx, task, fmt.Errorf("draft notification: %w", err))
		return
	}

	if err := w.deliverer.Deliver(doc); err != nil {
		w.retryOrFail(ctx, task, fmt.Errorf("deliver notification: %w", err))
		return
	}

	w.markStatus(ctx, task.ID, "completed", "", nil)
	metrics.IncNotification("delivered")
	w.logger.Info().Int64("booking_id", task.BookingID).Msg("notification delivered")
}

func (w *NotifyWorker) retryOrFail(ctx context.Context, task *models.NotifyTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	delay := w.retryPolicy.Delay(attempt)
	nextTime := time.Now().Add(delay)
	w.markStatus(ctx, task.ID, "retry", cause.Error(), &nextTime)
	if w.tasks == nil {
		// Nothing polls the database here, so the attempt count rides on the
		// task itself and it goes back on the queue after the backoff.
		retried := *task
		retried.Status = "retry"
		retried.LastError = cause.Error()
		retried.RetryCount = attempt
		retried.NextRetry = nextTime
		w.requeueAfter(ctx, retried, delay)
	}
	metrics.IncNotification("retried")
	w.logger.Warn().Err(cause).Int64("booking_id", task.BookingID).Int("attempt", attempt).Time("next_retry", nextTime).Msg("notification retry scheduled")
}

func (w *NotifyWorker) requeueAfter(ctx context.Context, task models.NotifyTask, delay time.Duration) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if w.redis != nil {
			err := w.pushRedis(ctx, task)
			if err == nil {
				return
			}
			w.logger.Warn().Err(err).Int64("booking_id", task.BookingID).Msg("redis requeue failed, falling back to memory queue")
		}

		select {
		case w.queue <- task:
		default:
			w.failTask(ctx, &task, errors.New("memory queue full"))
		}
	}()
}

func (w *NotifyWorker) failTask(ctx context.Context, task *models.NotifyTask, cause error) {
	w.markStatus(ctx, task.ID, "failed", cause.Error(), nil)
	metrics.IncNotification("failed")
	w.pushDeadLetter(ctx, task)
	w.logger.Error().Err(cause).Int64("booking_id", task.BookingID).Msg("notification task failed")
}

func (w *NotifyWorker) markStatus(ctx context.Context, id int64, status, lastError string, nextRetry *time.Time) {
	if w.tasks == nil || id == 0 {
		return
	}
	if err := w.tasks.UpdateNotifyTaskStatus(ctx, id, status, lastError, nextRetry); err != nil {
		w.logger.Error().Err(err).Int64("task_id", id).Str("status", status).Msg("update task status")
	}
}

func (w *NotifyWorker) pushRedis(ctx context.Context, task models.NotifyTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, w.redisQueueKey, data).Err()
}

func (w *NotifyWorker) pushDeadLetter(ctx context.Context, task *models.NotifyTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode deadletter task")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("deadletter push")
	}
}
