// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// wsConn is the part of *websocket.Conn a client uses
type wsConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// client is one registered WebSocket connection. All writes go through the
// outbound queue and the single writer goroutine.
type client struct {
	id   uuid.UUID
	conn wsConn
	log  *logrus.Entry
	out  chan Message

	mu     sync.Mutex
	closed bool
	done   chan struct{}
}

func newClient(conn wsConn, queueSize int, log *logrus.Entry) *client {
	id := uuid.New()
	return &client{
		id:   id,
		conn: conn,
		log:  log.WithField("client", id.String()),
		out:  make(chan Message, queueSize),
		done: make(chan struct{}),
	}
}

// enqueue queues msg without blocking.
// Returns false when the client is closed or its queue is full.
func (c *client) enqueue(msg Message) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.out <- msg:
		return true
	default:
		return false
	}
}

// enqueueWait queues msg, waiting up to timeout for room.
// Returns false when the client closes or the wait expires.
func (c *client) enqueueWait(msg Message, timeout time.Duration) bool {
	if c.enqueue(msg) {
		return true
	}
	if c.isClosed() {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case c.out <- msg:
		return true
	case <-c.done:
		return false
	case <-timer.C:
		return false
	}
}

// close marks the client closed and closes the connection. Idempotent.
func (c *client) close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.conn.Close()
}

func (c *client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// writeLoop drains the queue until the client is closed or a write fails.
// onFail is called once for the first failed write.
func (c *client) writeLoop(timeout time.Duration, onFail func(error)) {
	for {
		select {
		case <-c.done:
			return
		case msg := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteMessage(msg.Type, msg.Data); err != nil {
				onFail(err)
				return
			}
		}
	}
}
