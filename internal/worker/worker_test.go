package worker

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"sparkleclean/internal/models"
	"sparkleclean/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type fakeDrafter struct {
	err   error
	calls int
	title string
}

func (f *fakeDrafter) DraftNotification(ctx context.Context, booking *models.Booking, serviceTitle string) (*models.NotificationDocument, error) {
	f.calls++
	f.title = serviceTitle
	if f.err != nil {
		return nil, f.err
	}
	return &models.NotificationDocument{
		Subject:         "New Cleaning Appointment: " + booking.Name,
		Summary:         "summary",
		Details:         models.NotificationDetail{Name: booking.Name},
		SuggestedAction: "call",
	}, nil
}

type fakeDeliverer struct {
	err   error
	calls int
	last  *models.NotificationDocument
}

func (f *fakeDeliverer) Deliver(doc *models.NotificationDocument) error {
	f.calls++
	f.last = doc
	return f.err
}

func newTestTaskStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	st, err := store.NewSQLiteStore(":memory:", &logger)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestWorker(t *testing.T, tasks TaskStore, drafter Drafter, deliverer Deliverer, rdb *redis.Client, retry RetryPolicy) *NotifyWorker {
	t.Helper()
	logger := zerolog.New(os.Stdout)
	titleFor := func(id string) string {
		if id == "deep-cleaning" {
			return "Deep Cleaning"
		}
		return id
	}
	return NewNotifyWorker(tasks, drafter, deliverer, rdb, retry, titleFor, &logger)
}

func workerBooking(id int64) *models.Booking {
	return &models.Booking{
		ID:            id,
		BookingNumber: "SPKAAAAAA",
		Name:          "Jane Doe",
		Service:       "deep-cleaning",
		Date:          "2024-08-01",
		Time:          "10:00",
		Status:        models.StatusPending,
	}
}

func TestProcessTaskSuccess(t *testing.T) {
	st := newTestTaskStore(t)
	drafter := &fakeDrafter{}
	deliverer := &fakeDeliverer{}
	w := newTestWorker(t, st, drafter, deliverer, nil, RetryPolicy{})

	ctx := context.Background()
	if err := w.EnqueueBookingNotification(ctx, workerBooking(1)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	if drafter.calls != 1 {
		t.Fatalf("expected 1 draft call, got %d", drafter.calls)
	}
	if drafter.title != "Deep Cleaning" {
		t.Fatalf("expected resolved title, got %q", drafter.title)
	}
	if deliverer.calls != 1 {
		t.Fatalf("expected 1 deliver call, got %d", deliverer.calls)
	}

	pending, err := st.GetPendingNotifyTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending tasks after completion, got %d", len(pending))
	}
}

func TestProcessTaskRetry(t *testing.T) {
	st := newTestTaskStore(t)
	drafter := &fakeDrafter{err: errors.New("boom")}
	w := newTestWorker(t, st, drafter, &fakeDeliverer{}, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Minute})

	ctx := context.Background()
	if err := w.EnqueueBookingNotification(ctx, workerBooking(2)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	// Retry is scheduled a minute out, so the task is not yet eligible.
	pending, err := st.GetPendingNotifyTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected retry task not yet eligible, got %d", len(pending))
	}
}

func TestProcessTaskFail(t *testing.T) {
	st := newTestTaskStore(t)
	drafter := &fakeDrafter{err: errors.New("fatal")}
	w := newTestWorker(t, st, drafter, &fakeDeliverer{}, nil, RetryPolicy{MaxRetries: 1})

	ctx := context.Background()
	if err := w.EnqueueBookingNotification(ctx, workerBooking(3)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := w.tryLocalQueue()
	w.processTask(ctx, &task)

	pending, err := st.GetPendingNotifyTasks(ctx, 10)
	if err != nil {
		t.Fatalf("pending: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected failed task out of the queue, got %d", len(pending))
	}
}

func TestProcessTaskDeliveryFailureRetries(t *testing.T) {
	st := newTestTaskStore(t)
	deliverer := &fakeDeliverer{err: errors.New("telegram down")}
	w := newTestWorker(t, st, &fakeDrafter{}, deliverer, nil, RetryPolicy{MaxRetries: 3, InitialDelay: time.Minute})

	ctx := context.Background()
	if err := w.EnqueueBookingNotification(ctx, workerBooking(4)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, _ := w.tryLocalQueue()
	w.processTask(ctx, &task)

	if deliverer.calls != 1 {
		t.Fatalf("expected delivery attempt, got %d", deliverer.calls)
	}
}

// flakyDrafter fails the first N calls, then behaves like fakeDrafter.
type flakyDrafter struct {
	fakeDrafter
	failures int
}

func (f *flakyDrafter) DraftNotification(ctx context.Context, booking *models.Booking, serviceTitle string) (*models.NotificationDocument, error) {
	if f.fakeDrafter.calls < f.failures {
		f.fakeDrafter.calls++
		return nil, errors.New("transient")
	}
	return f.fakeDrafter.DraftNotification(ctx, booking, serviceTitle)
}

func TestStorelessRetryRequeues(t *testing.T) {
	drafter := &flakyDrafter{failures: 1}
	deliverer := &fakeDeliverer{}
	w := newTestWorker(t, nil, drafter, deliverer, nil, RetryPolicy{MaxRetries: 3, InitialDelay: 10 * time.Millisecond})

	ctx := context.Background()
	if err := w.EnqueueBookingNotification(ctx, workerBooking(7)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	task, ok := w.tryLocalQueue()
	if !ok {
		t.Fatalf("expected task in local queue")
	}
	w.processTask(ctx, &task)

	// With no task store the failed attempt must come back on the queue
	// after the backoff instead of disappearing.
	deadline := time.After(2 * time.Second)
	var retried models.NotifyTask
	for {
		if retried, ok = w.tryLocalQueue(); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("retry was not requeued")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if retried.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", retried.RetryCount)
	}

	w.processTask(ctx, &retried)
	if deliverer.calls != 1 {
		t.Fatalf("expected delivery after the retried attempt, got %d calls", deliverer.calls)
	}
}

func TestEnqueueValidation(t *testing.T) {
	w := newTestWorker(t, nil, &fakeDrafter{}, &fakeDeliverer{}, nil, RetryPolicy{})

	if err := w.EnqueueBookingNotification(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil booking")
	}
	if err := w.EnqueueBookingNotification(context.Background(), &models.Booking{}); err == nil {
		t.Fatalf("expected error for zero booking id")
	}
}

func TestEnqueuePrefersRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	w := newTestWorker(t, nil, &fakeDrafter{}, &fakeDeliverer{}, rdb, RetryPolicy{})

	ctx := context.Background()
	if err := w.EnqueueBookingNotification(ctx, workerBooking(5)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if _, ok := w.tryLocalQueue(); ok {
		t.Fatalf("expected task in redis, not the memory queue")
	}

	task, ok := w.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	if task.BookingID != 5 {
		t.Fatalf("expected booking id 5, got %d", task.BookingID)
	}
}

func TestFailedTaskGoesToDeadLetter(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	w := newTestWorker(t, nil, &fakeDrafter{err: errors.New("fatal")}, &fakeDeliverer{}, rdb, RetryPolicy{MaxRetries: 1})

	ctx := context.Background()
	if err := w.EnqueueBookingNotification(ctx, workerBooking(6)); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	task, ok := w.tryRedis(ctx)
	if !ok {
		t.Fatalf("expected task from redis")
	}
	w.processTask(ctx, &task)

	if n, err := rdb.LLen(ctx, w.deadLetterKey).Result(); err != nil || n != 1 {
		t.Fatalf("expected 1 deadletter entry, got %d (err %v)", n, err)
	}
}

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{InitialDelay: time.Second, BackoffFactor: 2, MaxDelay: 5 * time.Second}

	if d := policy.Delay(1); d != time.Second {
		t.Fatalf("attempt1 expected 1s, got %s", d)
	}
	if d := policy.Delay(2); d != 2*time.Second {
		t.Fatalf("attempt2 expected 2s, got %s", d)
	}
	if d := policy.Delay(5); d != 5*time.Second {
		t.Fatalf("attempt5 expected capped 5s, got %s", d)
	}
	if d := policy.Delay(0); d != time.Second {
		t.Fatalf("attempt0 expected floor 1s, got %s", d)
	}
}
