package notice

import (
	"errors"
	"fmt"
	"maps"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"

	"github.com/powa-team/errnotify/internal/config"
)

// FilteredValue replaces the value of every blocklisted key.
const FilteredValue = "[Filtered]"

// maxChainDepth bounds the unwrap walk for self-referencing error chains.
const maxChainDepth = 16

type stackTracer interface {
	StackTrace() pkgerrors.StackTrace
}

// Builder assembles a Notice. A Builder is not safe for concurrent use;
// build one per notify call.
type Builder struct {
	n Notice
}

// NewBuilder returns a builder for an error-severity notice.
func NewBuilder() *Builder {
	return &Builder{n: Notice{
		Errors:  []ErrorEntry{},
		Context: Context{Notifier: Notifier, Severity: SeverityError},
	}}
}

// SetErrorEntries records err and every error it wraps. Backtraces are taken
// from github.com/pkg/errors stack traces when an error carries one. Wrappers
// that only add a stack (errors.WithStack) do not get an entry; their stack
// goes to the error they wrap unless it has its own.
func (b *Builder) SetErrorEntries(err error) *Builder {
	b.n.Errors = b.n.Errors[:0]
	var pending []Frame
	for depth := 0; err != nil && depth < maxChainDepth; depth++ {
		st, hasStack := err.(stackTracer)
		inner := errors.Unwrap(err)
		if hasStack && isStackOnly(err, inner) {
			if pending == nil {
				pending = framesOf(st.StackTrace())
			}
			err = inner
			continue
		}

		entry := ErrorEntry{
			Type:      errorType(err),
			Message:   err.Error(),
			Backtrace: []Frame{},
		}
		switch {
		case hasStack:
			entry.Backtrace = framesOf(st.StackTrace())
		case pending != nil:
			entry.Backtrace = pending
		}
		pending = nil
		b.n.Errors = append(b.n.Errors, entry)
		err = inner
	}
	return b
}

// isStackOnly reports whether err adds nothing but a stack to inner.
func isStackOnly(err, inner error) bool {
	return inner != nil && err.Error() == inner.Error()
}

// SetConfigurationContext copies environment and version from cfg.
func (b *Builder) SetConfigurationContext(cfg config.NotifierConfig) *Builder {
	b.n.Context.Environment = cfg.Environment
	b.n.Context.AppVersion = cfg.AppVersion
	return b
}

// SetSeverity overrides the default error severity.
func (b *Builder) SetSeverity(s Severity) *Builder {
	if s != "" {
		b.n.Context.Severity = s
	}
	return b
}

// SetHTTPContext copies request fields into the notice, masking values of
// keys listed in cfg.BlocklistKeys.
func (b *Builder) SetHTTPContext(h HTTPContext, cfg config.NotifierConfig) *Builder {
	b.n.Context.URL = h.URL
	b.n.Context.HTTPMethod = h.Method
	b.n.Context.UserAgent = h.UserAgent
	b.n.Context.UserAddr = h.UserAddr
	b.n.Context.Component = h.Component
	b.n.Context.Action = h.Action

	b.n.Params = filterKeys(h.Params, cfg.BlocklistKeys)
	b.n.Session = filterKeys(h.Session, cfg.BlocklistKeys)
	if env := filterKeys(h.Environment, cfg.BlocklistKeys); env != nil {
		if b.n.Environment == nil {
			b.n.Environment = map[string]any{}
		}
		maps.Copy(b.n.Environment, env)
	}
	return b
}

// SetEnvironmentContext records host identity and the runtime platform.
func (b *Builder) SetEnvironmentContext(hostname, osDescription, platform string) *Builder {
	b.n.Context.Hostname = hostname
	b.n.Context.OS = osDescription
	b.n.Context.Language = platform
	return b
}

// ToNotice returns the assembled notice. Later builder calls do not affect it.
func (b *Builder) ToNotice() *Notice {
	n := b.n
	n.Errors = append([]ErrorEntry{}, b.n.Errors...)
	n.Environment = maps.Clone(b.n.Environment)
	n.Session = maps.Clone(b.n.Session)
	n.Params = maps.Clone(b.n.Params)
	return &n
}

func errorType(err error) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
}

func framesOf(st pkgerrors.StackTrace) []Frame {
	frames := make([]Frame, 0, len(st))
	for _, f := range st {
		line, _ := strconv.Atoi(fmt.Sprintf("%d", f))
		frames = append(frames, Frame{
			File:     frameFile(f),
			Line:     line,
			Function: fmt.Sprintf("%n", f),
		})
	}
	return frames
}

// frameFile returns the full source path of f. %+s prints the function
// name, a newline and a tab before the path.
func frameFile(f pkgerrors.Frame) string {
	s := fmt.Sprintf("%+s", f)
	if i := strings.LastIndex(s, "\n\t"); i >= 0 {
		return s[i+2:]
	}
	return s
}

func filterKeys(values map[string]any, blocklist []string) map[string]any {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]any, len(values))
	for k, v := range values {
		if isBlocked(k, blocklist) {
			out[k] = FilteredValue
			continue
		}
		out[k] = v
	}
	return out
}

func isBlocked(key string, blocklist []string) bool {
	for _, b := range blocklist {
		if strings.EqualFold(key, b) {
			return true
		}
	}
	return false
}
