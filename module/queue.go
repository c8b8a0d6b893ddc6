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

// Package module implements the pipeline's scheduling unit: the
// IncrementalQueue that links exactly one provider to one consumer, and the
// Module runtime (general, producing, consuming, trigger) built on top of
// it. The two live together because a queue holds live references to both
// of its endpoint modules and a module holds slices of its queues — the
// same co-location the source uses for AbstractModule and IncrementalQueue.
package module

import (
	"sync"
	"time"

	"retico-go/core"
	"retico-go/metrics"
)

// Queue is a single-producer/single-consumer FIFO. Capacity 0 means
// unbounded; a positive capacity makes Put block once full, propagating
// backpressure to the provider's worker.
type Queue struct {
	mu       sync.Mutex
	buf      []*core.UpdateMessage
	capacity int

	provider *Module
	consumer *Module

	metrics *metrics.PipelineMetrics

	notify chan struct{}
}

// NewQueue creates a queue between provider and consumer. capacity <= 0
// means unbounded. m may be nil, in which case queue depth is not reported.
func NewQueue(provider, consumer *Module, capacity int, m *metrics.PipelineMetrics) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		capacity: capacity,
		provider: provider,
		consumer: consumer,
		metrics:  m,
		notify:   make(chan struct{}),
	}
}

// reportDepth publishes the queue's current length as a gauge, labeled by
// the names of the modules it links. Callers must hold q.mu.
func (q *Queue) reportDepth() {
	if q.metrics == nil {
		return
	}
	q.metrics.QueueDepth.WithLabelValues(q.provider.Name(), q.consumer.Name()).Set(float64(len(q.buf)))
}

// Provider returns the module that appends to this queue.
func (q *Queue) Provider() *Module { return q.provider }

// Consumer returns the module that reads from this queue.
func (q *Queue) Consumer() *Module { return q.consumer }

// Len returns the number of messages currently buffered.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.buf)
}

// wake closes the current notify channel (broadcasting to every blocked
// waiter) and installs a fresh one. Callers must hold q.mu.
func (q *Queue) wake() {
	close(q.notify)
	q.notify = make(chan struct{})
}

// Put appends a copy of msg so that every consumer observes an independent
// UpdateMessage object while sharing the contained IU references. If the
// queue is bounded and full, Put blocks the calling worker until space
// frees up, propagating backpressure upstream.
func (q *Queue) Put(msg *core.UpdateMessage) {
	clone := msg.Clone()
	for {
		q.mu.Lock()
		if q.capacity > 0 && len(q.buf) >= q.capacity {
			waitCh := q.notify
			q.mu.Unlock()
			<-waitCh
			continue
		}
		q.buf = append(q.buf, clone)
		q.wake()
		q.reportDepth()
		q.mu.Unlock()
		return
	}
}

// Get waits up to timeout for the next message. It returns (nil, false) on
// timeout, which is not an error — the worker loop simply continues to the
// next buffer.
func (q *Queue) Get(timeout time.Duration) (*core.UpdateMessage, bool) {
	deadline := time.Now().Add(timeout)
	for {
		q.mu.Lock()
		if len(q.buf) > 0 {
			msg := q.buf[0]
			q.buf = q.buf[1:]
			q.wake()
			q.reportDepth()
			q.mu.Unlock()
			return msg, true
		}
		waitCh := q.notify
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		select {
		case <-waitCh:
		case <-time.After(remaining):
			return nil, false
		}
	}
}

// Clear discards every buffered message without delivering it.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.buf = nil
	q.wake()
	q.reportDepth()
}

// Remove unlinks the queue from both endpoints' buffer lists. Idempotent.
func (q *Queue) Remove() {
	if q.provider != nil {
		q.provider.removeRightBuffer(q)
	}
	if q.consumer != nil {
		q.consumer.removeLeftBuffer(q)
	}
}
