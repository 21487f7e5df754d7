package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/powa-team/errnotify/internal/notice"
	"github.com/powa-team/errnotify/internal/notifier"
)

// PanicError wraps a value recovered from a handler panic.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap exposes a panicked error value.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// Recoverer reports handler panics to reporter at critical severity and
// answers 500 unless the handler already wrote a status. http.ErrAbortHandler
// is re-raised untouched.
func Recoverer(reporter notifier.Reporter, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				// WithStack records the recovering frames, which include the
				// panicking handler.
				err := pkgerrors.WithStack(&PanicError{Value: rec})
				logger.Error("Handler panicked",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				if reporter != nil {
					// The request context ends with the response; delivery must not.
					reporter.Notify(context.WithoutCancel(r.Context()), err,
						notifier.WithSeverity(notice.SeverityCritical),
						notifier.WithRequest(r),
					)
				}

				if ww.Status() == 0 {
					ww.WriteHeader(http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
