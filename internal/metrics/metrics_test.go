package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestBindingGauge(t *testing.T) {
	before := testutil.ToFloat64(bindingsActive.WithLabelValues(KindDocument))
	BindingOpened(KindDocument)
	BindingOpened(KindDocument)
	BindingClosed(KindDocument)
	assert.Equal(t, before+1, testutil.ToFloat64(bindingsActive.WithLabelValues(KindDocument)))
}

func TestRecordWrite(t *testing.T) {
	ok := testutil.ToFloat64(writes.WithLabelValues("swap", "true"))
	failed := testutil.ToFloat64(writes.WithLabelValues("swap", "false"))

	RecordWrite("swap", nil)
	RecordWrite("swap", errors.New("boom"))
	RecordWrite("swap", errors.New("boom"))

	assert.Equal(t, ok+1, testutil.ToFloat64(writes.WithLabelValues("swap", "true")))
	assert.Equal(t, failed+2, testutil.ToFloat64(writes.WithLabelValues("swap", "false")))
}

func TestRegisterMetrics_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		RegisterMetrics()
		RegisterMetrics()
	})
}
