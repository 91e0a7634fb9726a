// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package relay bridges one device transport to many WebSocket clients.
//
// Telemetry from the device is transformed by an Envelope and broadcast to
// every registered client. Client commands are parsed, handed to a
// dispatcher and answered to the sending client only.
//
// Each client owns a bounded outbound queue drained by one writer
// goroutine. Broadcast snapshots the registry and enqueues without
// blocking: a full queue drops the message for that client, a closed client
// is skipped, and a failed or timed-out write unregisters that client
// alone. Command replies wait up to the write timeout for queue room.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/devmgr/internal/dispatch"
	"github.com/Thermoquad/devmgr/internal/metrics"
	"github.com/Thermoquad/devmgr/internal/mirror"
	"github.com/Thermoquad/devmgr/pkg/adsb"
	"github.com/Thermoquad/devmgr/pkg/pelco"
)

// Bridge defaults
const (
	DefaultQueueSize    = 64
	DefaultWriteTimeout = 5 * time.Second

	// MaxMessageSize is the largest client message read before the
	// connection is closed
	MaxMessageSize = 64 * 1024
)

// Options configures a Bridge
type Options struct {
	Name         string
	Dispatcher   dispatch.Dispatcher
	Log          *logrus.Entry
	Metrics      *metrics.Relay // created from Name when nil
	Mirror       *mirror.Queue  // optional
	QueueSize    int
	WriteTimeout time.Duration
}

// Bridge owns the client registry of one relay
type Bridge struct {
	name         string
	dispatcher   dispatch.Dispatcher
	log          *logrus.Entry
	metrics      *metrics.Relay
	mirror       *mirror.Queue
	queueSize    int
	writeTimeout time.Duration
	upgrader     websocket.Upgrader

	mu      sync.RWMutex
	clients map[uuid.UUID]*client
}

// NewBridge creates a bridge
func NewBridge(opts Options) *Bridge {
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewRelay(opts.Name)
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}

	return &Bridge{
		name:         opts.Name,
		dispatcher:   opts.Dispatcher,
		log:          opts.Log,
		metrics:      opts.Metrics,
		mirror:       opts.Mirror,
		queueSize:    opts.QueueSize,
		writeTimeout: opts.WriteTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*client),
	}
}

// Name returns the relay name
func (b *Bridge) Name() string {
	return b.name
}

// Metrics returns the relay collectors
func (b *Bridge) Metrics() *metrics.Relay {
	return b.metrics
}

// Clients returns the number of registered clients
func (b *Bridge) Clients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects
func (b *Bridge) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	conn.SetReadLimit(MaxMessageSize)
	b.serve(r.Context(), conn)
}

// serve registers conn and runs its read loop
func (b *Bridge) serve(ctx context.Context, conn wsConn) {
	c := b.register(conn)
	defer b.drop(c)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				c.log.WithField("limit", MaxMessageSize).Warn("WebSocket message too large, dropping client")
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !c.isClosed() {
				c.log.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		b.handle(ctx, c, data)
	}
}

// register adds a client and starts its writer
func (b *Bridge) register(conn wsConn) *client {
	c := newClient(conn, b.queueSize, b.log)

	b.mu.Lock()
	b.clients[c.id] = c
	n := len(b.clients)
	b.mu.Unlock()

	b.metrics.Clients.Set(float64(n))
	c.log.Info("WebSocket client connected")

	go c.writeLoop(b.writeTimeout, func(err error) {
		c.log.WithError(err).Warn("WebSocket write failed, dropping client")
		b.drop(c)
	})
	return c
}

// drop unregisters and closes a client. Safe to call more than once.
func (b *Bridge) drop(c *client) {
	b.mu.Lock()
	_, registered := b.clients[c.id]
	delete(b.clients, c.id)
	n := len(b.clients)
	b.mu.Unlock()

	c.close()
	if registered {
		b.metrics.Clients.Set(float64(n))
		c.log.Info("WebSocket client disconnected")
	}
}

func (b *Bridge) registered(c *client) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.clients[c.id]
	return ok
}

// handle parses and dispatches one client message and queues the reply
func (b *Bridge) handle(ctx context.Context, c *client, data []byte) {
	if !b.registered(c) {
		return
	}
	c.log.WithField("message", string(data)).Debug("Received from client")

	reply := b.execute(ctx, data)

	out, err := json.Marshal(reply)
	if err != nil {
		c.log.WithError(err).Error("failed to encode reply")
		return
	}
	if !c.enqueueWait(TextMessage(out), b.writeTimeout) {
		c.log.Warn("reply dropped, client queue full or closed")
	}
}

// execute runs the parse/dispatch pipeline for one message
func (b *Bridge) execute(ctx context.Context, data []byte) Reply {
	req, err := ParseRequest(data)
	if err != nil {
		b.countCommand(err)
		return ErrorReply(err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.writeTimeout)
	defer cancel()

	result, err := b.dispatcher.Dispatch(ctx, *req.Command, req.Data)
	if err != nil {
		b.countCommand(err)
		b.log.WithError(err).WithField("command", *req.Command).Debug("command rejected")
		return ErrorReply(err)
	}

	b.metrics.Commands.WithLabelValues(metrics.ResultOK).Inc()
	entry := b.log.WithFields(logrus.Fields{
		"command":  result.Action,
		"delivery": result.DeliveryStatus(),
	})
	if result.Delivery != nil {
		b.metrics.SendFailures.Inc()
		entry.WithError(result.Delivery).Warn("device send failed")
	} else {
		entry.Debug("command dispatched")
	}
	return NewReply(result)
}

func (b *Bridge) countCommand(err error) {
	result := metrics.ResultInvalid
	switch {
	case errors.Is(err, ErrMalformedMessage):
		result = metrics.ResultMalformed
	case errors.Is(err, dispatch.ErrUnknownCommand):
		result = metrics.ResultUnknown
	}
	b.metrics.Commands.WithLabelValues(result).Inc()
}

// Broadcast queues msg for every registered client and returns the number
// of clients it was queued for
func (b *Bridge) Broadcast(msg Message) int {
	b.mu.RLock()
	snapshot := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		snapshot = append(snapshot, c)
	}
	b.mu.RUnlock()

	b.metrics.Broadcasts.Inc()
	queued := 0
	for _, c := range snapshot {
		if c.enqueue(msg) {
			queued++
			continue
		}
		b.metrics.BroadcastDrops.Inc()
	}
	return queued
}

// Ingest transforms a device payload and broadcasts the result.
// Payloads the envelope rejects are logged at debug level and counted.
func (b *Bridge) Ingest(env Envelope, payload []byte) {
	b.metrics.TelemetryReceived.Inc()

	msgs, err := env.Transform(payload)
	if err != nil {
		reason := metrics.ReasonEncode
		switch {
		case errors.Is(err, adsb.ErrUnmatchedEnvelope):
			reason = metrics.ReasonUnmatched
		case errors.Is(err, pelco.ErrChecksumMismatch):
			reason = metrics.ReasonChecksum
		}
		b.metrics.TelemetryDropped.WithLabelValues(reason).Inc()
		b.log.WithError(err).WithField("bytes", len(payload)).Debug("telemetry dropped")
	}

	for _, msg := range msgs {
		b.Broadcast(msg)
		if b.mirror != nil && !b.mirror.Offer(b.name, msg.Data) {
			b.log.Debug("mirror queue full, payload not mirrored")
		}
	}
}

// Close drops every client
func (b *Bridge) Close() {
	b.mu.Lock()
	clients := make([]*client, 0, len(b.clients))
	for _, c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[uuid.UUID]*client)
	b.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	b.metrics.Clients.Set(0)
}
