// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mirror republishes broadcast telemetry to external brokers.
// Mirror failures are logged and never reach WebSocket clients.
package mirror

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// Sink publishes one telemetry payload for a relay
type Sink interface {
	Publish(ctx context.Context, relay string, payload []byte) error
	Close() error
}

// Multi fans a payload out to several sinks
type Multi []Sink

// Publish sends to every sink and joins their errors
func (m Multi) Publish(ctx context.Context, relay string, payload []byte) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, relay, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishTimeout bounds one publish from the queue
const PublishTimeout = 2 * time.Second

type item struct {
	relay   string
	payload []byte
}

// Queue decouples the ingress path from broker latency. Offer never
// blocks; payloads offered while the queue is full are dropped.
type Queue struct {
	sink  Sink
	log   *logrus.Entry
	items chan item
}

// NewQueue creates a queue of the given capacity in front of sink
func NewQueue(sink Sink, log *logrus.Entry, size int) *Queue {
	return &Queue{
		sink:  sink,
		log:   log,
		items: make(chan item, size),
	}
}

// Offer enqueues a payload; returns false when it was dropped
func (q *Queue) Offer(relay string, payload []byte) bool {
	select {
	case q.items <- item{relay: relay, payload: payload}:
		return true
	default:
		return false
	}
}

// Run publishes queued payloads until ctx is cancelled, then closes the sink
func (q *Queue) Run(ctx context.Context) {
	defer func() {
		if err := q.sink.Close(); err != nil {
			q.log.WithError(err).Warn("mirror close failed")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case it := <-q.items:
			pctx, cancel := context.WithTimeout(ctx, PublishTimeout)
			if err := q.sink.Publish(pctx, it.relay, it.payload); err != nil {
				q.log.WithError(err).WithField("relay", it.relay).Warn("mirror publish failed")
			}
			cancel()
		}
	}
}
