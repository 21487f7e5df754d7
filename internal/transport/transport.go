// Package transport provides the request objects the notifier sends notices
// through.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
)

const userAgent = "errnotify/v1"

// RequestHandler hands out a fresh, fully addressed request per call.
type RequestHandler interface {
	Get() Request
}

// Request is a single outbound call. The body is written to the stream
// returned by RequestStream before Response is awaited.
type Request interface {
	Header() http.Header
	SetMethod(method string)
	RequestStream(ctx context.Context) (io.WriteCloser, error)
	Response(ctx context.Context) (Response, error)
}

// Response is the endpoint's answer. Implementations that hold resources
// also implement io.Closer.
type Response interface {
	StatusCode() int
	Body() io.Reader
}

// NoticesURL returns the notice endpoint for a project with the key embedded.
func NoticesURL(host, projectID, projectKey string) string {
	return fmt.Sprintf("%s/api/v3/projects/%s/notices?key=%s",
		strings.TrimRight(host, "/"), url.PathEscape(projectID), url.QueryEscape(projectKey))
}

// HTTPRequestHandler issues requests with a net/http client.
type HTTPRequestHandler struct {
	url    string
	client *http.Client
}

// NewHTTPRequestHandler creates a handler posting to the project's notice
// endpoint. A nil client selects a pooled client with the given timeout.
func NewHTTPRequestHandler(host, projectID, projectKey string, timeout time.Duration, client *http.Client) *HTTPRequestHandler {
	if client == nil {
		client = cleanhttp.DefaultPooledClient()
		client.Timeout = timeout
	}
	return &HTTPRequestHandler{
		url:    NoticesURL(host, projectID, projectKey),
		client: client,
	}
}

// Get implements RequestHandler.
func (h *HTTPRequestHandler) Get() Request {
	header := http.Header{}
	header.Set("User-Agent", userAgent)
	return &httpRequest{
		client: h.client,
		url:    h.url,
		method: http.MethodPost,
		header: header,
	}
}

type httpRequest struct {
	client *http.Client
	url    string
	method string
	header http.Header
	body   bytes.Buffer
}

func (r *httpRequest) Header() http.Header { return r.header }

func (r *httpRequest) SetMethod(method string) { r.method = method }

// RequestStream returns a writer buffering the body until Response is called.
func (r *httpRequest) RequestStream(ctx context.Context) (io.WriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.body.Reset()
	return nopWriteCloser{&r.body}, nil
}

func (r *httpRequest) Response(ctx context.Context) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, r.url, bytes.NewReader(r.body.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header = r.header.Clone()

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	return &httpResponse{resp: resp}, nil
}

type httpResponse struct {
	resp *http.Response
}

func (r *httpResponse) StatusCode() int { return r.resp.StatusCode }

func (r *httpResponse) Body() io.Reader { return r.resp.Body }

// Close drains and closes the body so the connection can be reused.
func (r *httpResponse) Close() error {
	_, _ = io.Copy(io.Discard, r.resp.Body)
	return r.resp.Body.Close()
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// RedactURL masks credentials in a URL for safe logging.
// It redacts userinfo passwords and query parameter values.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	redacted := u.Redacted()
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			q.Set(key, "REDACTED")
		}
		r, err := url.Parse(redacted)
		if err != nil {
			return redacted
		}
		r.RawQuery = q.Encode()
		return r.String()
	}
	return redacted
}
