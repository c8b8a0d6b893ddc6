// Copyright (C) 2024 right-sizer contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package events

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"retico-go/logger"
)

// DashboardBridge fans fired events out to connected websocket clients for
// live pipeline visualization. It subscribes to a Bus as a wildcard
// observer; per section 4.5/9 of the runtime it never participates in
// dataflow and a slow or disconnected client must never block a firing
// module, so every client write happens on its own buffered channel.
type DashboardBridge struct {
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*dashboardClient]struct{}
}

type dashboardClient struct {
	conn *websocket.Conn
	send chan dashboardMessage
}

type dashboardMessage struct {
	Event   string      `json:"event"`
	Data    interface{} `json:"data"`
	FiredAt time.Time   `json:"fired_at"`
}

// clientSendBuffer bounds how many undelivered messages a slow dashboard
// client may accumulate before being dropped.
const clientSendBuffer = 64

// NewDashboardBridge creates a bridge ready to be attached to a Bus via
// Attach and served over HTTP via ServeHTTP.
func NewDashboardBridge() *DashboardBridge {
	return &DashboardBridge{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[*dashboardClient]struct{}),
	}
}

// Attach subscribes the bridge to every event fired on bus.
func (d *DashboardBridge) Attach(bus *Bus) {
	bus.Subscribe(Wildcard, d.onEvent)
}

func (d *DashboardBridge) onEvent(name string, data interface{}) {
	msg := dashboardMessage{Event: name, Data: data, FiredAt: time.Now()}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for c := range d.clients {
		select {
		case c.send <- msg:
		default:
			logger.Warn("dashboard client send buffer full, dropping event %q", name)
		}
	}
}

// ServeHTTP upgrades the connection to a websocket and streams events to
// it until the client disconnects.
func (d *DashboardBridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("dashboard websocket upgrade failed: %v", err)
		return
	}

	client := &dashboardClient{conn: conn, send: make(chan dashboardMessage, clientSendBuffer)}

	d.mu.Lock()
	d.clients[client] = struct{}{}
	d.mu.Unlock()

	go d.writeLoop(client)
	d.readLoop(client)
}

func (d *DashboardBridge) writeLoop(c *dashboardClient) {
	for msg := range c.send {
		b, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
			d.removeClient(c)
			return
		}
	}
}

func (d *DashboardBridge) readLoop(c *dashboardClient) {
	defer d.removeClient(c)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (d *DashboardBridge) removeClient(c *dashboardClient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.clients[c]; ok {
		delete(d.clients, c)
		close(c.send)
		c.conn.Close()
	}
}

// ClientCount reports how many dashboards are currently connected.
func (d *DashboardBridge) ClientCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.clients)
}
