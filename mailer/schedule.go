package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/mailify/domain"
	"github.com/DukeRupert/mailify/internal/metrics"
)

// ErrTaskCancelled is the result of a task stopped before it fired.
var ErrTaskCancelled = errors.New("scheduled send cancelled")

type taskState int

const (
	taskPending taskState = iota
	taskRunning
	taskFinished
	taskCancelled
)

// Task is a handle to a send armed by Schedule. Pending tasks live only in
// memory and are lost when the process exits.
type Task struct {
	ID     uuid.UUID
	SendAt time.Time

	mu    sync.Mutex
	state taskState
	timer *time.Timer
	err   error
	done  chan struct{}
}

// Schedule arms a one-shot timer that calls Send with req after delay and
// returns immediately. A negative delay is rejected with EINVALID.
//
// The send runs on its own goroutine with a background context; its
// outcome is available from the returned Task.
func (m *Mailer) Schedule(delay time.Duration, req SendRequest) (*Task, error) {
	if delay < 0 {
		metrics.SendRejected()
		return nil, domain.Invalid("mailer.schedule", fmt.Sprintf("delay %s is negative", delay))
	}

	t := &Task{
		ID:     uuid.New(),
		SendAt: time.Now().Add(delay),
		done:   make(chan struct{}),
	}

	metrics.SendArmed()

	t.mu.Lock()
	t.timer = time.AfterFunc(delay, func() { t.fire(m, req) })
	t.mu.Unlock()

	m.logger.Info("email scheduled",
		"task_id", t.ID,
		"subject", req.Subject,
		"delay", delay,
		"send_at", t.SendAt,
	)

	return t, nil
}

func (t *Task) fire(m *Mailer, req SendRequest) {
	t.mu.Lock()
	if t.state != taskPending {
		t.mu.Unlock()
		return
	}
	t.state = taskRunning
	t.mu.Unlock()

	metrics.SendFired()

	err := m.Send(context.Background(), req)
	if err != nil {
		m.logger.Error("scheduled send failed", "task_id", t.ID, "error", err)
	}

	t.mu.Lock()
	t.err = err
	t.state = taskFinished
	t.mu.Unlock()
	close(t.done)
}

// Cancel stops the task if it has not fired yet and reports whether it did.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != taskPending {
		return false
	}

	t.timer.Stop()
	t.state = taskCancelled
	t.err = ErrTaskCancelled
	close(t.done)
	metrics.SendCancelled()
	return true
}

// Done is closed once the send has finished or the task was cancelled.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task completes and returns its result, or until
// ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the send result once Done is closed, and nil before.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
