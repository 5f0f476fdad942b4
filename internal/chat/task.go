// ABOUTME: Cancellable streaming task bound to one conversation
// ABOUTME: Exposes cancel, wait and outcome; cancellation is cooperative through the context cause

package chat

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Cancellation causes attached to a task's context.
var (
	ErrStreamCanceled = errors.New("stream canceled")
	ErrStreamTimeout  = errors.New("stream timed out")
)

// Task is one in-flight streaming request.
type Task struct {
	ConversationID int64
	MessageID      string
	StartedAt      time.Time

	ctx    context.Context
	cancel context.CancelCauseFunc
	stop   context.CancelFunc
	done   chan struct{}

	mu       sync.Mutex
	canceled bool
	settled  bool
	outcome  Outcome
	err      error
}

func newTask(parent context.Context, conversationID int64, messageID string, timeout time.Duration) *Task {
	ctx, cancel := context.WithCancelCause(parent)
	stop := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, stop = context.WithTimeoutCause(ctx, timeout, ErrStreamTimeout)
	}

	return &Task{
		ConversationID: conversationID,
		MessageID:      messageID,
		StartedAt:      time.Now(),
		ctx:            ctx,
		cancel:         cancel,
		stop:           stop,
		done:           make(chan struct{}),
	}
}

// Cancel aborts the task. Returns false if the task was already canceled or
// its outcome is settled, so repeated cancels are no-ops.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.canceled || t.settled {
		return false
	}
	t.canceled = true
	t.cancel(ErrStreamCanceled)
	return true
}

// Done is closed once the message has been finalized.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-t.done:
		return t.Result()
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}
}

// Result returns the outcome so far; OutcomePending while running.
func (t *Task) Result() (Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.outcome, t.err
}

// settle fixes the final outcome; Cancel refuses from here on. A cancel that
// landed after the last frame but before settle still wins over completion.
func (t *Task) settle(outcome Outcome, err error) (Outcome, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.settled = true
	if t.canceled && outcome == OutcomeCompleted {
		return OutcomeCanceled, ErrStreamCanceled
	}
	return outcome, err
}

// complete records the outcome and releases waiters. Called once by the session.
func (t *Task) complete(outcome Outcome, err error) {
	t.mu.Lock()
	t.outcome = outcome
	t.err = err
	close(t.done)
	t.mu.Unlock()

	t.stop()
	t.cancel(nil)
}

// classify maps a stream error to its outcome using the task context's cause.
func (t *Task) classify(err error) (Outcome, error) {
	if errors.Is(err, errUnauthorized) {
		return OutcomeUnauthorized, err
	}
	if t.ctx.Err() != nil {
		cause := context.Cause(t.ctx)
		if errors.Is(cause, ErrStreamTimeout) {
			return OutcomeTimedOut, ErrStreamTimeout
		}
		return OutcomeCanceled, ErrStreamCanceled
	}
	return OutcomeFailed, err
}
