// Copyright (C) 2024 right-sizer contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package events

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retico-go/metrics"
)

func TestBus_NamedSubscription(t *testing.T) {
	b := NewBus()

	var mu sync.Mutex
	var got []string
	done := make(chan struct{}, 1)

	b.Subscribe(EventProcessIU, func(name string, data interface{}) {
		mu.Lock()
		got = append(got, data.(string))
		mu.Unlock()
		done <- struct{}{}
	})

	b.Call(EventProcessIU, "iu-1")

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"iu-1"}, got)
}

func TestBus_WildcardReceivesEverything(t *testing.T) {
	b := NewBus()

	var mu sync.Mutex
	var names []string
	var wg sync.WaitGroup
	wg.Add(2)

	b.Subscribe(Wildcard, func(name string, data interface{}) {
		mu.Lock()
		names = append(names, name)
		mu.Unlock()
		wg.Done()
	})

	b.Call(EventStart, nil)
	b.Call(EventStop, nil)

	waitOrTimeout(t, &wg, time.Second)

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{EventStart, EventStop}, names)
}

func TestBus_CallWildcardIsNoOp(t *testing.T) {
	b := NewBus()

	called := make(chan struct{}, 1)
	b.Subscribe(Wildcard, func(name string, data interface{}) {
		called <- struct{}{}
	})

	b.Call(Wildcard, "should not fire")

	select {
	case <-called:
		t.Fatal("wildcard must not be a publishable topic")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_HandlerPanicDoesNotEscape(t *testing.T) {
	b := NewBus()

	done := make(chan struct{}, 1)
	b.Subscribe(EventStart, func(name string, data interface{}) {
		defer close(done)
		panic("boom")
	})

	require.NotPanics(t, func() {
		b.Call(EventStart, nil)
		<-done
	})
}

func TestBus_SubscriberCounts(t *testing.T) {
	b := NewBus()

	b.Subscribe(EventStart, func(string, interface{}) {})
	b.Subscribe(EventStart, func(string, interface{}) {})
	b.Subscribe(Wildcard, func(string, interface{}) {})

	assert.Equal(t, 2, b.SubscriberCount(EventStart))
	assert.Equal(t, 0, b.SubscriberCount(EventStop))
	assert.Equal(t, 1, b.WildcardCount())
}

func TestBus_SetMetrics_RecordsDispatchAndLatency(t *testing.T) {
	b := NewBus()
	pm := metrics.NewPipelineMetrics()
	b.SetMetrics(pm)

	done := make(chan struct{}, 1)
	b.Subscribe(EventStart, func(string, interface{}) {
		time.Sleep(5 * time.Millisecond)
		done <- struct{}{}
	})

	b.Call(EventStart, nil)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler was not called")
	}

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(pm.EventsDispatched.WithLabelValues(EventStart)) == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, testutil.CollectAndCount(pm.HandlerLatency))
}

func waitOrTimeout(t *testing.T, wg *sync.WaitGroup, d time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		t.Fatal("timed out waiting for handlers")
	}
}
