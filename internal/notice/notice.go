// Package notice builds the JSON payload sent to the error tracker.
package notice

import (
	"encoding/json"
	"fmt"
)

// Severity classifies a reported event.
type Severity string

const (
	SeverityDebug     Severity = "debug"
	SeverityInfo      Severity = "info"
	SeverityNotice    Severity = "notice"
	SeverityWarning   Severity = "warning"
	SeverityError     Severity = "error"
	SeverityCritical  Severity = "critical"
	SeverityAlert     Severity = "alert"
	SeverityEmergency Severity = "emergency"
)

// ParseSeverity maps a name to a Severity. Unknown names are an error.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityDebug, SeverityInfo, SeverityNotice, SeverityWarning,
		SeverityError, SeverityCritical, SeverityAlert, SeverityEmergency:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// Notifier identifies this client in every notice.
var Notifier = NotifierInfo{
	Name:    "errnotify",
	Version: "0.3.0",
	URL:     "https://github.com/powa-team/errnotify",
}

// Notice is one reported error event.
type Notice struct {
	Errors      []ErrorEntry   `json:"errors"`
	Context     Context        `json:"context"`
	Environment map[string]any `json:"environment,omitempty"`
	Session     map[string]any `json:"session,omitempty"`
	Params      map[string]any `json:"params,omitempty"`
}

// ErrorEntry describes one error of an unwrap chain, outermost first.
type ErrorEntry struct {
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Backtrace []Frame `json:"backtrace"`
}

// Frame is a single backtrace line.
type Frame struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Function string `json:"function"`
}

// NotifierInfo names the client library.
type NotifierInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	URL     string `json:"url"`
}

// Context holds the notice's descriptive fields.
type Context struct {
	Notifier    NotifierInfo `json:"notifier"`
	Environment string       `json:"environment,omitempty"`
	AppVersion  string       `json:"version,omitempty"`
	Severity    Severity     `json:"severity"`

	Hostname string `json:"hostname,omitempty"`
	OS       string `json:"os,omitempty"`
	Language string `json:"language,omitempty"`

	URL        string `json:"url,omitempty"`
	HTTPMethod string `json:"httpMethod,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
	UserAddr   string `json:"userAddr,omitempty"`
	Component  string `json:"component,omitempty"`
	Action     string `json:"action,omitempty"`
}

// ToJSON serializes a notice into the wire format.
func ToJSON(n *Notice) ([]byte, error) {
	if n == nil {
		return nil, fmt.Errorf("nil notice")
	}
	body, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("marshaling notice: %w", err)
	}
	return body, nil
}
