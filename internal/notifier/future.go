package notifier

import (
	"context"
	"errors"

	"github.com/powa-team/errnotify/internal/model"
)

// Future is the pending outcome of a NotifyAsync call. It completes exactly
// once with either a response or an error.
type Future struct {
	done chan struct{}
	resp *model.Response
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func resolved(resp *model.Response) *Future {
	f := newFuture()
	f.complete(resp, nil)
	return f
}

func failed(err error) *Future {
	f := newFuture()
	f.complete(nil, err)
	return f
}

func (f *Future) complete(resp *model.Response, err error) {
	f.resp, f.err = resp, err
	close(f.done)
}

// Done is closed when the outcome is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result blocks until the outcome is available and returns it.
func (f *Future) Result() (*model.Response, error) {
	<-f.done
	return f.resp, f.err
}

// Wait returns the outcome, or ctx.Err() if ctx ends first. Giving up on
// waiting does not cancel the underlying call.
func (f *Future) Wait(ctx context.Context) (*model.Response, error) {
	select {
	case <-f.done:
		return f.resp, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Canceled reports whether the call ended because its context was canceled
// or timed out. It blocks until the outcome is available.
func (f *Future) Canceled() bool {
	<-f.done
	return errors.Is(f.err, context.Canceled) || errors.Is(f.err, context.DeadlineExceeded)
}
