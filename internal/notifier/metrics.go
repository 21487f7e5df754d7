package notifier

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/powa-team/errnotify/internal/model"
)

const (
	labelConfigError = "config_error"
	labelFailed      = "failed"
	labelCanceled    = "canceled"
)

var (
	noticesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errnotify_notices_total",
			Help: "Total notify calls by outcome.",
		},
		[]string{"status"},
	)
	sendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "errnotify_send_duration_seconds",
			Help:    "Duration of notice HTTP exchanges.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)
)

// observe counts the outcome of a dispatched notice.
func observe(resp *model.Response, err error) {
	switch {
	case err != nil && isCanceled(err):
		noticesTotal.WithLabelValues(labelCanceled).Inc()
	case err != nil:
		noticesTotal.WithLabelValues(labelFailed).Inc()
	default:
		noticesTotal.WithLabelValues(resp.Status.String()).Inc()
	}
}
