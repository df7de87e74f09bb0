// Package metrics defines the Prometheus collectors for batch encoding and
// model passes. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all Prometheus collectors for the classifier.
type Metrics struct {
	BatchesEncoded  prometheus.Counter
	ExamplesEncoded prometheus.Counter
	IgnoredWords    prometheus.Counter
	UnknownSubwords prometheus.Counter
	BatchMaxLength  prometheus.Histogram
	PassDuration    *prometheus.HistogramVec
	PassErrors      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg. A nil reg skips
// registration, which is what tests usually want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BatchesEncoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qclf_batches_encoded_total",
			Help: "Total number of batches assembled from word sequences.",
		}),
		ExamplesEncoded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qclf_examples_encoded_total",
			Help: "Total number of word sequences converted to subword ids.",
		}),
		IgnoredWords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qclf_ignored_words_total",
			Help: "Words replaced by the pad placeholder before subword splitting.",
		}),
		UnknownSubwords: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "qclf_unknown_subwords_total",
			Help: "Subwords with no vocabulary id that were mapped to [UNK].",
		}),
		BatchMaxLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "qclf_batch_max_length",
			Help:    "Padded subword length of assembled batches.",
			Buckets: prometheus.ExponentialBuckets(4, 2, 8),
		}),
		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qclf_pass_duration_seconds",
			Help:    "Duration of model passes by operation (forward, loss, features).",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"op"}),
		PassErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "qclf_pass_errors_total",
			Help: "Failed model passes by operation.",
		}, []string{"op"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.BatchesEncoded,
			m.ExamplesEncoded,
			m.IgnoredWords,
			m.UnknownSubwords,
			m.BatchMaxLength,
			m.PassDuration,
			m.PassErrors,
		)
	}
	return m
}

func (m *Metrics) ObserveBatch(examples, maxLen int) {
	if m == nil {
		return
	}
	m.BatchesEncoded.Inc()
	m.ExamplesEncoded.Add(float64(examples))
	m.BatchMaxLength.Observe(float64(maxLen))
}

func (m *Metrics) AddIgnoredWords(n int) {
	if m == nil || n == 0 {
		return
	}
	m.IgnoredWords.Add(float64(n))
}

func (m *Metrics) AddUnknownSubwords(n int) {
	if m == nil || n == 0 {
		return
	}
	m.UnknownSubwords.Add(float64(n))
}

// ObservePass records the duration of op since start, and counts it as
// failed when err is non-nil.
func (m *Metrics) ObservePass(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.PassDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		m.PassErrors.WithLabelValues(op).Inc()
	}
}
