// Copyright (C) 2024 right-sizer contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package metrics exposes Prometheus instrumentation for the pipeline
// runtime: per-module queue depth, IU throughput, and retry/event
// bookkeeping, grouped into one registered struct the way the teacher's
// metrics packages group related gauges and counters together.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics groups every Prometheus collector the runtime registers.
// A single instance is meant to be constructed once per process and shared
// across modules, the network controller, and the retry package.
type PipelineMetrics struct {
	QueueDepth       *prometheus.GaugeVec
	IUsProcessed     *prometheus.CounterVec
	IUsRevoked       *prometheus.CounterVec
	IUsCommitted     *prometheus.CounterVec
	WorkerRestarts   *prometheus.CounterVec
	EventsDispatched *prometheus.CounterVec
	HandlerLatency   *prometheus.HistogramVec
	RetryAttempts    *prometheus.CounterVec
	RetrySuccesses   *prometheus.CounterVec

	registerOnce sync.Once
}

// NewPipelineMetrics constructs the collector set without registering it.
// Call Register to attach it to a prometheus.Registerer.
func NewPipelineMetrics() *PipelineMetrics {
	return &PipelineMetrics{
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "retico_queue_depth",
			Help: "Number of update messages currently buffered in an incremental queue.",
		}, []string{"provider", "consumer"}),
		IUsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retico_ius_processed_total",
			Help: "Total incremental units processed by a module.",
		}, []string{"module"}),
		IUsRevoked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retico_ius_revoked_total",
			Help: "Total incremental units revoked by a module.",
		}, []string{"module"}),
		IUsCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retico_ius_committed_total",
			Help: "Total incremental units committed by a module.",
		}, []string{"module"}),
		WorkerRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retico_worker_restarts_total",
			Help: "Total worker loop terminations due to a fatal type violation or hook error.",
		}, []string{"module"}),
		EventsDispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retico_events_dispatched_total",
			Help: "Total event callback dispatches, by event name.",
		}, []string{"event"}),
		HandlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "retico_event_handler_latency_seconds",
			Help:    "Time an event handler took to return, by event name.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event"}),
		RetryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retico_retry_attempts_total",
			Help: "Total retry attempts by operation.",
		}, []string{"operation"}),
		RetrySuccesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "retico_retry_successes_total",
			Help: "Total retry operations that eventually succeeded.",
		}, []string{"operation"}),
	}
}

// Register attaches every collector to reg exactly once per PipelineMetrics
// instance; subsequent calls are no-ops so callers may Register defensively.
func (m *PipelineMetrics) Register(reg prometheus.Registerer) {
	m.registerOnce.Do(func() {
		reg.MustRegister(
			m.QueueDepth,
			m.IUsProcessed,
			m.IUsRevoked,
			m.IUsCommitted,
			m.WorkerRestarts,
			m.EventsDispatched,
			m.HandlerLatency,
			m.RetryAttempts,
			m.RetrySuccesses,
		)
	})
}

// RecordRetryAttempt records a single retry attempt for operation.
func (m *PipelineMetrics) RecordRetryAttempt(operation string, attempt int) {
	if m == nil {
		return
	}
	m.RetryAttempts.WithLabelValues(operation).Inc()
}

// RecordRetrySuccess records that operation eventually succeeded after
// one or more retries.
func (m *PipelineMetrics) RecordRetrySuccess(operation string) {
	if m == nil {
		return
	}
	m.RetrySuccesses.WithLabelValues(operation).Inc()
}
