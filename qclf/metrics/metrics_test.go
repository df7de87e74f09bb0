package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveBatch(3, 12)
	m.ObserveBatch(2, 7)
	m.AddIgnoredWords(4)
	m.AddIgnoredWords(0)
	m.AddUnknownSubwords(1)
	m.ObservePass("loss", time.Now(), nil)
	m.ObservePass("loss", time.Now(), errors.New("boom"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchesEncoded))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ExamplesEncoded))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.IgnoredWords))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnknownSubwords))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PassErrors.WithLabelValues("loss")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PassDuration))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveBatch(1, 1)
		m.AddIgnoredWords(1)
		m.AddUnknownSubwords(1)
		m.ObservePass("forward", time.Now(), nil)
	})
}

func TestNewWithoutRegistry(t *testing.T) {
	m := New(nil)
	m.ObserveBatch(1, 4)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BatchesEncoded))
}
