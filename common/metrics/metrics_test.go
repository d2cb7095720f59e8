package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/LexiconIndonesia/photo-storage-gateway/common/gateway"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusObserverRecordsOperations(t *testing.T) {
	reg := prometheus.NewRegistry()
	observer, err := NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	observer.RecordOperation(gateway.OperationUpload, 20*time.Millisecond, nil)
	observer.RecordOperation(gateway.OperationDelete, 5*time.Millisecond, gateway.ErrNotFound)
	observer.RecordOperation(gateway.OperationList, time.Second, fmt.Errorf("%w: list: boom", gateway.ErrStorage))
	observer.RecordUpload(2048)
	observer.RecordUpload(1024)

	assert.Equal(t, 1.0, testutil.ToFloat64(observer.operationErrors.WithLabelValues(gateway.OperationDelete, KindNotFound)))
	assert.Equal(t, 1.0, testutil.ToFloat64(observer.operationErrors.WithLabelValues(gateway.OperationList, KindStorage)))
	assert.Equal(t, 0.0, testutil.ToFloat64(observer.operationErrors.WithLabelValues(gateway.OperationUpload, KindStorage)))
	assert.Equal(t, 3072.0, testutil.ToFloat64(observer.uploadBytes))
	assert.Equal(t, 3, testutil.CollectAndCount(observer.operationDuration))
}

func TestNewPrometheusObserverReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheusObserver("", reg)
	require.NoError(t, err)
	second, err := NewPrometheusObserver("", reg)
	require.NoError(t, err)

	second.RecordUpload(10)
	assert.Equal(t, 10.0, testutil.ToFloat64(first.uploadBytes))
}

func TestNilObserverIsSafe(t *testing.T) {
	var observer *PrometheusObserver
	assert.NotPanics(t, func() {
		observer.RecordOperation(gateway.OperationList, time.Millisecond, nil)
		observer.RecordUpload(1)
	})
}

func TestErrorKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{gateway.ErrMissingCustomer, KindValidation},
		{gateway.ErrMissingFile, KindValidation},
		{gateway.ErrNotFound, KindNotFound},
		{fmt.Errorf("%w: image/gif", gateway.ErrUnsupportedMediaType), KindMediaType},
		{fmt.Errorf("%w: put: timeout", gateway.ErrStorage), KindStorage},
		{context.DeadlineExceeded, KindCancelled},
		{errors.New("mystery"), KindOther},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorKind(tt.err))
		})
	}
}
