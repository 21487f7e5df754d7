package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/powa-team/errnotify/internal/model"
	"github.com/powa-team/errnotify/internal/notifier"
)

// mockSender implements Sender for testing.
type mockSender struct {
	calls   atomic.Int32
	lastErr atomic.Value
	release chan struct{}
	resp    *model.Response
	err     error
}

func (m *mockSender) NotifySync(ctx context.Context, err error, opts ...notifier.NoticeOption) (*model.Response, error) {
	m.calls.Add(1)
	m.lastErr.Store(err)
	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.resp, m.err
}

func TestScheduler_RunNow(t *testing.T) {
	sender := &mockSender{resp: &model.Response{ID: "42", Status: model.StatusSuccess}}
	sched := New(sender, zap.NewNop(), nil)

	sched.RunNow()

	assert.Equal(t, int32(1), sender.calls.Load())
	var canary *CanaryError
	require.True(t, errors.As(sender.lastErr.Load().(error), &canary))
	assert.NotEmpty(t, canary.RunID)
	require.NotNil(t, sched.LastResponse())
	assert.Equal(t, "42", sched.LastResponse().ID)
}

func TestScheduler_RunFailureKeepsLastResponse(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sender := &mockSender{err: errors.New("connection refused")}
	sched := New(sender, zap.New(core), nil)

	sched.RunNow()

	assert.Nil(t, sched.LastResponse())
	assert.Equal(t, 1, logs.FilterMessage("Canary failed").Len())
}

// TestScheduler_Concurrency ensures canary runs are skipped if one is already in progress
func TestScheduler_Concurrency(t *testing.T) {
	sender := &mockSender{release: make(chan struct{}), resp: &model.Response{Status: model.StatusSuccess}}
	sched := New(sender, zap.NewNop(), nil)

	done := make(chan struct{})
	go func() {
		sched.RunNow()
		close(done)
	}()

	require.Eventually(t, sched.IsSending, time.Second, time.Millisecond)

	sched.RunNow()
	assert.Equal(t, int32(1), sender.calls.Load(), "overlapping run must be skipped")

	close(sender.release)
	<-done
	assert.False(t, sched.IsSending())
}

func TestScheduler_Timeout(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sender := &mockSender{release: make(chan struct{})}
	sched := New(sender, zap.New(core), nil)
	sched.SetTimeout(10 * time.Millisecond)

	sched.RunNow()

	assert.Equal(t, 1, logs.FilterMessage("Canary timed out").Len())
}

func TestScheduler_StartStop(t *testing.T) {
	sched := New(&mockSender{}, zap.NewNop(), time.UTC)

	if sched.IsRunning() {
		t.Error("Scheduler should not be running initially")
	}

	sched.Start()
	if !sched.IsRunning() {
		t.Error("Scheduler should be running after Start()")
	}

	// Start again should be no-op
	sched.Start()
	if !sched.IsRunning() {
		t.Error("Scheduler should still be running")
	}

	ctx := sched.Stop()
	select {
	case <-ctx.Done():
	case <-time.After(1 * time.Second):
		t.Error("Stop context should be done")
	}

	if sched.IsRunning() {
		t.Error("Scheduler should not be running after Stop()")
	}
}

func TestScheduler_Schedule(t *testing.T) {
	sched := New(&mockSender{}, zap.NewNop(), nil)

	assert.NoError(t, sched.Schedule("0 */5 * * * *"))
	assert.Error(t, sched.Schedule("every five minutes"))
}

func TestScheduler_DefaultTimeout(t *testing.T) {
	sched := New(&mockSender{}, nil, nil)

	if sched.timeout != DefaultCanaryTimeout {
		t.Errorf("Default timeout = %v, want %v", sched.timeout, DefaultCanaryTimeout)
	}
}
