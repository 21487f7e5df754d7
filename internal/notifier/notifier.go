// Package notifier reports errors to the error tracker asynchronously.
package notifier

import (
	"context"
	"fmt"
	"net/http"
	"runtime"

	"go.uber.org/zap"

	"github.com/powa-team/errnotify/internal/config"
	"github.com/powa-team/errnotify/internal/filter"
	"github.com/powa-team/errnotify/internal/logging"
	"github.com/powa-team/errnotify/internal/model"
	"github.com/powa-team/errnotify/internal/notice"
	"github.com/powa-team/errnotify/internal/transport"
)

// Logger receives the outcome of fire-and-forget notify calls.
type Logger interface {
	LogResponse(resp *model.Response)
	LogError(err error)
}

// Reporter is the fire-and-forget surface used by middleware and jobs.
type Reporter interface {
	Notify(ctx context.Context, err error, opts ...NoticeOption)
}

// Notifier builds, filters and sends notices.
// It is safe for concurrent use.
type Notifier struct {
	cfg      config.NotifierConfig
	handler  transport.RequestHandler
	logger   Logger
	fileSink *logging.Sink
	zlog     *zap.Logger
	filters  filter.Chain
	platform string
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithRequestHandler replaces the net/http request handler.
func WithRequestHandler(h transport.RequestHandler) Option {
	return func(n *Notifier) { n.handler = h }
}

// WithLogger sets the sink that Notify reports outcomes to.
func WithLogger(l Logger) Option {
	return func(n *Notifier) { n.logger = l }
}

// WithZapLogger sets the diagnostic logger.
func WithZapLogger(l *zap.Logger) Option {
	return func(n *Notifier) { n.zlog = l }
}

// New creates a Notifier. Missing credentials do not fail construction;
// every notify call fails instead.
func New(cfg config.NotifierConfig, opts ...Option) (*Notifier, error) {
	n := &Notifier{
		cfg:      cfg.Clone(),
		platform: runtime.Version(),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.zlog == nil {
		n.zlog = zap.NewNop()
	}
	n.zlog = n.zlog.Named("notifier")

	if n.handler == nil {
		timeout, err := n.cfg.TimeoutParsed()
		if err != nil {
			timeout = 0
		}
		n.handler = transport.NewHTTPRequestHandler(n.cfg.Host, n.cfg.ProjectID, n.cfg.ProjectKey, timeout, nil)
	}

	if n.logger == nil && n.cfg.LogFile != "" {
		sink, err := logging.OpenFile(n.cfg.LogFile)
		if err != nil {
			return nil, fmt.Errorf("creating file logger: %w", err)
		}
		n.logger = sink
		n.fileSink = sink
	}

	return n, nil
}

// Close releases the LogFile sink opened by New. Outcomes of Notify calls
// still in flight are not recorded after Close.
func (n *Notifier) Close() error {
	if n.fileSink == nil {
		return nil
	}
	return n.fileSink.Close()
}

// AddFilter appends f to the filter chain. Calls already filtering keep the
// snapshot they started with.
func (n *Notifier) AddFilter(f filter.Filter) {
	n.filters.Add(f)
}

// NoticeOption customizes a single notify call.
type NoticeOption func(*noticeOptions)

type noticeOptions struct {
	severity notice.Severity
	http     *notice.HTTPContext
}

// WithSeverity overrides the default error severity.
func WithSeverity(s notice.Severity) NoticeOption {
	return func(o *noticeOptions) { o.severity = s }
}

// WithHTTPContext attaches request details to the notice.
func WithHTTPContext(h notice.HTTPContext) NoticeOption {
	return func(o *noticeOptions) { o.http = &h }
}

// WithRequest attaches the details of r to the notice.
func WithRequest(r *http.Request) NoticeOption {
	return func(o *noticeOptions) {
		if r == nil {
			return
		}
		h := notice.HTTPContextFromRequest(r)
		o.http = &h
	}
}

// Notify reports err without waiting. When a Logger is configured the
// outcome is handed to it once the call completes.
func (n *Notifier) Notify(ctx context.Context, err error, opts ...NoticeOption) {
	f := n.NotifyAsync(ctx, err, opts...)
	if n.logger == nil {
		return
	}
	go func() {
		<-f.Done()
		n.logOutcome(f.Result())
	}()
}

// NotifySync reports err and waits for the outcome.
func (n *Notifier) NotifySync(ctx context.Context, err error, opts ...NoticeOption) (*model.Response, error) {
	return n.NotifyAsync(ctx, err, opts...).Wait(ctx)
}

// NotifyAsync reports err and returns a Future for the outcome. Credential
// checks, suppression and filtering run before it returns; only the HTTP
// exchange runs in the background.
func (n *Notifier) NotifyAsync(ctx context.Context, err error, opts ...NoticeOption) *Future {
	if ctx == nil {
		ctx = context.Background()
	}

	if cerr := n.cfg.CheckCredentials(); cerr != nil {
		noticesTotal.WithLabelValues(labelConfigError).Inc()
		return failed(cerr)
	}

	if IsIgnored(n.cfg.Environment, n.cfg.IgnoreEnvironments) {
		noticesTotal.WithLabelValues(model.StatusIgnored.String()).Inc()
		n.zlog.Debug("Notice ignored by environment", zap.String("environment", n.cfg.Environment))
		return resolved(model.Ignored())
	}

	var o noticeOptions
	for _, opt := range opts {
		opt(&o)
	}

	nt, perr := n.prepare(err, o)
	if perr != nil {
		noticesTotal.WithLabelValues(labelFailed).Inc()
		return failed(perr)
	}
	if nt == nil {
		noticesTotal.WithLabelValues(model.StatusIgnored.String()).Inc()
		n.zlog.Debug("Notice suppressed by filter")
		return resolved(model.Ignored())
	}

	f := newFuture()
	go func() {
		resp, err := n.send(ctx, nt)
		observe(resp, err)
		f.complete(resp, err)
	}()
	return f
}

// prepare builds and filters the notice. A nil notice means a filter
// suppressed it. Panics from filters are returned as errors.
func (n *Notifier) prepare(err error, o noticeOptions) (nt *notice.Notice, perr error) {
	defer func() {
		if r := recover(); r != nil {
			nt, perr = nil, fmt.Errorf("preparing notice: panic: %v", r)
		}
	}()

	b := notice.NewBuilder().
		SetErrorEntries(err).
		SetConfigurationContext(n.cfg).
		SetSeverity(o.severity).
		SetEnvironmentContext(n.cfg.Hostname, n.cfg.OSDescription, n.platform)
	if o.http != nil {
		b.SetHTTPContext(*o.http, n.cfg)
	}
	nt = b.ToNotice()

	if filters := n.filters.Snapshot(); len(filters) > 0 {
		nt = filter.Apply(nt, filters)
	}
	return nt, nil
}

func (n *Notifier) logOutcome(resp *model.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			n.zlog.Error("Notice logger panicked", zap.Any("panic", r))
		}
	}()
	if err != nil {
		n.logger.LogError(err)
		return
	}
	n.logger.LogResponse(resp)
}
