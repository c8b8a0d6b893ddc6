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

// Package network discovers the connected graph of modules reachable from
// one or more seeds, orchestrates batched setup/run/stop across that
// graph, and persists/reconstructs a topology to/from a ".rtc" record
// file.
package network

import (
	"sync"

	"go.uber.org/multierr"

	"retico-go/errors"
	"retico-go/logger"
	"retico-go/module"
)

// Connection is one edge of a discovered graph, oriented consumer<-provider
// to match the source's own connection tuple order.
type Connection struct {
	Consumer *module.Module
	Provider *module.Module
}

// Discover performs a breadth-first traversal from seeds over left-buffer
// providers and right-buffer consumers, returning the union of every
// module and edge reachable from any of them. Segmented networks require
// one seed per component, matching the source's own
// "if not isinstance(module, list): module = [module]" normalization;
// passing a single seed still works exactly as before.
func Discover(seeds ...*module.Module) ([]*module.Module, []Connection) {
	visited := map[*module.Module]bool{}
	seenEdge := map[[2]*module.Module]bool{}

	var modules []*module.Module
	var connections []Connection

	queue := append([]*module.Module(nil), seeds...)
	for len(queue) > 0 {
		m := queue[0]
		queue = queue[1:]
		if visited[m] {
			continue
		}
		visited[m] = true
		modules = append(modules, m)

		for _, q := range m.LeftBuffers() {
			p := q.Provider()
			addEdge(&connections, seenEdge, m, p)
			if !visited[p] {
				queue = append(queue, p)
			}
		}
		for _, q := range m.RightBuffers() {
			c := q.Consumer()
			addEdge(&connections, seenEdge, c, m)
			if !visited[c] {
				queue = append(queue, c)
			}
		}
	}
	return modules, connections
}

func addEdge(connections *[]Connection, seen map[[2]*module.Module]bool, consumer, provider *module.Module) {
	key := [2]*module.Module{consumer, provider}
	if seen[key] {
		return
	}
	seen[key] = true
	*connections = append(*connections, Connection{Consumer: consumer, Provider: provider})
}

// Run discovers the union of the graphs reachable from seeds, calls Setup
// on every module, and only once every Setup has succeeded calls
// Run(false) on every module. A Setup failure aborts the whole run: no
// module in any of the graphs is started. Segmented networks pass one
// seed per component in a single call.
func Run(seeds ...*module.Module) error {
	modules, _ := Discover(seeds...)

	for _, m := range modules {
		if err := m.Setup(); err != nil {
			return errors.NetworkErrorf("run", err, "setup failed for module %q, aborting run", m.Name())
		}
	}
	for _, m := range modules {
		if err := m.Run(false); err != nil {
			return errors.NetworkErrorf("run", err, "starting module %q failed", m.Name())
		}
	}
	return nil
}

// Stop discovers the union of the graphs reachable from seeds, stops
// every module, waits for each worker to finish, and aggregates every
// module's shutdown error (if any) into one returned error without
// losing any of them. Segmented networks pass one seed per component in
// a single call.
func Stop(seeds ...*module.Module) error {
	modules, _ := Discover(seeds...)

	var wg sync.WaitGroup
	errsMu := sync.Mutex{}
	var combined error

	for _, m := range modules {
		m.Stop(true)
	}
	for _, m := range modules {
		wg.Add(1)
		go func(m *module.Module) {
			defer wg.Done()
			m.Wait()
			if err := m.ShutdownErr(); err != nil {
				errsMu.Lock()
				combined = multierr.Append(combined, errors.ModuleErrorf("stop", err, "module %q shutdown failed", m.Name()))
				errsMu.Unlock()
				logger.Warn("module %q shutdown returned an error: %v", m.Name(), err)
			}
		}(m)
	}
	wg.Wait()

	return combined
}
