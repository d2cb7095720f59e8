package metrics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "photo_gateway"

// Error kinds reported on the operation_errors_total counter
const (
	KindValidation = "validation"
	KindNotFound   = "not_found"
	KindMediaType  = "unsupported_media_type"
	KindStorage    = "storage"
	KindCancelled  = "cancelled"
	KindOther      = "other"
)

// PrometheusObserver exports gateway metrics to Prometheus.
type PrometheusObserver struct {
	operationDuration *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
	uploadBytes       prometheus.Counter
	uploadSize        prometheus.Histogram
}

var _ gateway.Observer = (*PrometheusObserver)(nil)

// NewPrometheusObserver registers the gateway metrics on reg, or on the default registerer when reg is nil.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	var err error
	observer := &PrometheusObserver{}

	observer.operationDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latency of photo gateway operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"}))
	if err != nil {
		return nil, err
	}

	observer.operationErrors, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operation_errors_total",
		Help:      "Count of failed photo gateway operations.",
	}, []string{"operation", "kind"}))
	if err != nil {
		return nil, err
	}

	observer.uploadBytes, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploaded_bytes_total",
		Help:      "Cumulative payload size successfully written to object storage.",
	}))
	if err != nil {
		return nil, err
	}

	observer.uploadSize, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upload_size_bytes",
		Help:      "Size distribution of uploaded photos.",
		Buckets:   prometheus.ExponentialBuckets(16<<10, 4, 8),
	}))
	if err != nil {
		return nil, err
	}

	return observer, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register gateway metric: %w", err)
	}
	return collector, nil
}

func (o *PrometheusObserver) RecordOperation(operation string, duration time.Duration, err error) {
	if o == nil {
		return
	}
	o.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		o.operationErrors.WithLabelValues(operation, ErrorKind(err)).Inc()
	}
}

func (o *PrometheusObserver) RecordUpload(sizeBytes int) {
	if o == nil {
		return
	}
	o.uploadBytes.Add(float64(sizeBytes))
	o.uploadSize.Observe(float64(sizeBytes))
}

// ErrorKind maps a gateway error onto a low-cardinality label value.
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, gateway.ErrValidation):
		return KindValidation
	case errors.Is(err, gateway.ErrNotFound):
		return KindNotFound
	case errors.Is(err, gateway.ErrUnsupportedMediaType):
		return KindMediaType
	case errors.Is(err, gateway.ErrStorage):
		return KindStorage
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindOther
	}
}
