package notice

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/powa-team/errnotify/internal/config"
)

func TestBuilder_Defaults(t *testing.T) {
	n := NewBuilder().ToNotice()

	assert.Equal(t, SeverityError, n.Context.Severity)
	assert.Equal(t, Notifier, n.Context.Notifier)
	assert.NotNil(t, n.Errors)
}

func TestBuilder_SetErrorEntries_WalksChain(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("handling request: %w", base)

	n := NewBuilder().SetErrorEntries(err).ToNotice()

	require.Len(t, n.Errors, 2)
	assert.Equal(t, "handling request: boom", n.Errors[0].Message)
	assert.Equal(t, "fmt.wrapError", n.Errors[0].Type)
	assert.Equal(t, "boom", n.Errors[1].Message)
	assert.Equal(t, "errors.errorString", n.Errors[1].Type)
	assert.Empty(t, n.Errors[1].Backtrace)
}

func TestBuilder_SetErrorEntries_PkgErrorsBacktrace(t *testing.T) {
	err := pkgerrors.New("disk full")

	n := NewBuilder().SetErrorEntries(err).ToNotice()

	require.Len(t, n.Errors, 1)
	require.NotEmpty(t, n.Errors[0].Backtrace)
	top := n.Errors[0].Backtrace[0]
	assert.True(t, strings.HasSuffix(top.File, "internal/notice/builder_test.go"), "file = %q", top.File)
	assert.Positive(t, top.Line)
	assert.Contains(t, top.Function, "TestBuilder_SetErrorEntries_PkgErrorsBacktrace")
}

func TestBuilder_SetErrorEntries_Nil(t *testing.T) {
	n := NewBuilder().SetErrorEntries(nil).ToNotice()
	require.NotNil(t, n.Errors)
	assert.Empty(t, n.Errors)

	body, err := ToJSON(n)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"errors":[]`)
}

type queryError struct{ table string }

func (e *queryError) Error() string { return "query failed on " + e.table }

func TestBuilder_SetErrorEntries_WithStackMovesToWrapped(t *testing.T) {
	err := pkgerrors.WithStack(&queryError{table: "orders"})

	n := NewBuilder().SetErrorEntries(err).ToNotice()

	require.Len(t, n.Errors, 1)
	assert.Equal(t, "notice.queryError", n.Errors[0].Type)
	assert.Equal(t, "query failed on orders", n.Errors[0].Message)
	require.NotEmpty(t, n.Errors[0].Backtrace)
	assert.Contains(t, n.Errors[0].Backtrace[0].Function, "TestBuilder_SetErrorEntries_WithStackMovesToWrapped")
}

func TestBuilder_SetErrorEntries_Wrap(t *testing.T) {
	base := errors.New("connection reset")
	err := pkgerrors.Wrap(base, "loading cart")

	n := NewBuilder().SetErrorEntries(err).ToNotice()

	require.Len(t, n.Errors, 2)
	assert.Equal(t, "errors.withMessage", n.Errors[0].Type)
	assert.Equal(t, "loading cart: connection reset", n.Errors[0].Message)
	assert.NotEmpty(t, n.Errors[0].Backtrace)
	assert.Equal(t, "errors.errorString", n.Errors[1].Type)
	assert.Empty(t, n.Errors[1].Backtrace)
}

func TestBuilder_SetErrorEntries_InnerStackWins(t *testing.T) {
	inner := pkgerrors.New("disk full")
	err := pkgerrors.WithStack(inner)

	n := NewBuilder().SetErrorEntries(err).ToNotice()

	require.Len(t, n.Errors, 1)
	assert.Equal(t, "errors.fundamental", n.Errors[0].Type)
	assert.Equal(t, framesOf(inner.(stackTracer).StackTrace()), n.Errors[0].Backtrace)
}

func TestBuilder_Context(t *testing.T) {
	cfg := config.NotifierConfig{Environment: "prod", AppVersion: "1.2.3"}

	n := NewBuilder().
		SetConfigurationContext(cfg).
		SetSeverity(SeverityWarning).
		SetEnvironmentContext("web-1", "linux/amd64", "go1.25").
		ToNotice()

	assert.Equal(t, "prod", n.Context.Environment)
	assert.Equal(t, "1.2.3", n.Context.AppVersion)
	assert.Equal(t, SeverityWarning, n.Context.Severity)
	assert.Equal(t, "web-1", n.Context.Hostname)
	assert.Equal(t, "linux/amd64", n.Context.OS)
	assert.Equal(t, "go1.25", n.Context.Language)
}

func TestBuilder_SetSeverity_EmptyKeepsDefault(t *testing.T) {
	n := NewBuilder().SetSeverity("").ToNotice()
	assert.Equal(t, SeverityError, n.Context.Severity)
}

func TestBuilder_SetHTTPContext_Blocklist(t *testing.T) {
	cfg := config.NotifierConfig{BlocklistKeys: []string{"password", "authorization"}}
	h := HTTPContext{
		URL:         "http://example.com/login",
		Method:      "POST",
		Params:      map[string]any{"user": "alice", "Password": "hunter2"},
		Environment: map[string]any{"Authorization": "Bearer x", "Accept": "text/html"},
	}

	n := NewBuilder().SetHTTPContext(h, cfg).ToNotice()

	assert.Equal(t, "http://example.com/login", n.Context.URL)
	assert.Equal(t, "POST", n.Context.HTTPMethod)
	assert.Equal(t, "alice", n.Params["user"])
	assert.Equal(t, FilteredValue, n.Params["Password"])
	assert.Equal(t, FilteredValue, n.Environment["Authorization"])
	assert.Equal(t, "text/html", n.Environment["Accept"])
	assert.Nil(t, n.Session)
}

func TestBuilder_ToNotice_IsIndependent(t *testing.T) {
	b := NewBuilder().SetErrorEntries(errors.New("first"))
	n := b.ToNotice()
	b.SetErrorEntries(errors.New("second")).SetSeverity(SeverityInfo)

	require.Len(t, n.Errors, 1)
	assert.Equal(t, "first", n.Errors[0].Message)
	assert.Equal(t, SeverityError, n.Context.Severity)
}

func TestHTTPContextFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "http://shop.local/cart?item=7&token=abc", nil)
	r.RemoteAddr = "10.0.0.9:51234"
	r.Header.Set("User-Agent", "curl/8.0")

	h := HTTPContextFromRequest(r)

	assert.Equal(t, "http://shop.local/cart", h.URL)
	assert.Equal(t, "GET", h.Method)
	assert.Equal(t, "curl/8.0", h.UserAgent)
	assert.Equal(t, "10.0.0.9", h.UserAddr)
	assert.Equal(t, "7", h.Params["item"])
	assert.Equal(t, "abc", h.Params["token"])
	assert.Equal(t, "curl/8.0", h.Environment["User-Agent"])
}

func TestToJSON(t *testing.T) {
	n := NewBuilder().
		SetErrorEntries(errors.New("boom")).
		SetConfigurationContext(config.NotifierConfig{Environment: "prod"}).
		ToNotice()

	body, err := ToJSON(n)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	errs := decoded["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "boom", errs[0].(map[string]any)["message"])
	ctx := decoded["context"].(map[string]any)
	assert.Equal(t, "prod", ctx["environment"])
	assert.Equal(t, "error", ctx["severity"])
}

func TestToJSON_Nil(t *testing.T) {
	_, err := ToJSON(nil)
	assert.Error(t, err)
}

func TestParseSeverity(t *testing.T) {
	s, err := ParseSeverity("critical")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, s)

	_, err = ParseSeverity("fatal")
	assert.Error(t, err)
}
