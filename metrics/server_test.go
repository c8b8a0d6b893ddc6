// Copyright (C) 2024 right-sizer contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServer_ServesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPipelineMetrics()
	m.Register(reg)
	m.RecordRetryAttempt("network.save", 1)

	addr := fmt.Sprintf("127.0.0.1:%d", freePort(t))
	server := NewServer(addr, reg)
	errCh := server.Start()

	var resp *http.Response
	var err error
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		resp, err = http.Get("http://" + addr + "/metrics")
		if err == nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(string(body)), "retry_attempts")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))

	select {
	case serveErr := <-errCh:
		assert.NoError(t, serveErr)
	case <-time.After(time.Second):
		t.Fatal("server did not report shutdown")
	}
}
