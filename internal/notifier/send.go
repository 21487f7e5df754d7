package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/powa-team/errnotify/internal/model"
	"github.com/powa-team/errnotify/internal/notice"
	"github.com/powa-team/errnotify/internal/transport"
)

const (
	contentTypeJSON = "application/json"

	// maxMessageLen bounds a non-JSON rejection body copied into Message.
	maxMessageLen = 512
)

// send performs the HTTP exchange for a filtered notice.
func (n *Notifier) send(ctx context.Context, nt *notice.Notice) (*model.Response, error) {
	body, err := notice.ToJSON(nt)
	if err != nil {
		return nil, err
	}

	req := n.handler.Get()
	req.SetMethod(http.MethodPost)
	req.Header().Set("Content-Type", contentTypeJSON)
	req.Header().Set("Accept", contentTypeJSON)

	start := time.Now()

	if err := writeBody(ctx, req, body); err != nil {
		return nil, transportError(ctx, "writing notice", err)
	}

	resp, err := req.Response(ctx)
	if err != nil {
		sendDuration.WithLabelValues(labelFailed).Observe(time.Since(start).Seconds())
		return nil, transportError(ctx, "awaiting response", err)
	}
	if resp == nil {
		return nil, errors.New("awaiting response: no response")
	}
	defer closeResponse(resp, n.zlog)

	result, err := classify(resp)
	if err != nil {
		sendDuration.WithLabelValues(labelFailed).Observe(time.Since(start).Seconds())
		return nil, err
	}
	sendDuration.WithLabelValues(result.Status.String()).Observe(time.Since(start).Seconds())

	n.zlog.Debug("Notice sent",
		zap.Stringer("status", result.Status),
		zap.Int("status_code", result.StatusCode),
		zap.String("id", result.ID),
	)
	return result, nil
}

func writeBody(ctx context.Context, req transport.Request, body []byte) error {
	w, err := req.RequestStream(ctx)
	if err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// classify decodes the endpoint's answer. 201 Created is the only success;
// every other code is a rejection that still carries the decoded body.
func classify(resp transport.Response) (*model.Response, error) {
	code := resp.StatusCode()

	var raw []byte
	if b := resp.Body(); b != nil {
		var err error
		raw, err = io.ReadAll(b)
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
	}

	result := &model.Response{}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, result); err != nil {
			if code == http.StatusCreated {
				return nil, fmt.Errorf("decoding response: %w", err)
			}
			result.Message = truncate(strings.TrimSpace(string(raw)), maxMessageLen)
		}
	}

	result.StatusCode = code
	if code == http.StatusCreated {
		result.Status = model.StatusSuccess
	} else {
		result.Status = model.StatusRequestError
	}
	return result, nil
}

// transportError keeps cancellation distinct from failure: when ctx has
// ended, the bare context error is returned.
func transportError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if isCanceled(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func closeResponse(resp transport.Response, log *zap.Logger) {
	c, ok := resp.(io.Closer)
	if !ok {
		return
	}
	if err := c.Close(); err != nil {
		log.Debug("Closing response failed", zap.Error(err))
	}
}

// truncate shortens s to at most limit bytes without splitting a rune.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
