// Package model holds the result values shared by the notifier, its logger
// sinks and the HTTP surfaces.
package model

// Status classifies the outcome of a single notify call.
type Status int

const (
	// StatusSuccess means the endpoint answered 201 Created.
	StatusSuccess Status = iota
	// StatusIgnored means the notice was suppressed before any network call,
	// either by environment or by a filter.
	StatusIgnored
	// StatusRequestError means the endpoint answered with any other code.
	StatusRequestError
)

// String returns the lower-case status name used in logs and metric labels.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusIgnored:
		return "ignored"
	case StatusRequestError:
		return "request_error"
	default:
		return "unknown"
	}
}

// Response is the result of one notify call.
type Response struct {
	// ID is the notice identifier assigned by the endpoint.
	ID string `json:"id"`

	// URL points at the notice in the error tracker UI.
	URL string `json:"url"`

	// Message carries the endpoint's error text on rejection.
	Message string `json:"message,omitempty"`

	// Status is set by the notifier, never decoded from the body.
	Status Status `json:"-"`

	// StatusCode is the HTTP status code, zero when no request was made.
	StatusCode int `json:"-"`
}

// Ignored returns a fresh response for a suppressed notice.
func Ignored() *Response {
	return &Response{Status: StatusIgnored}
}
