// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package metrics exposes per-relay Prometheus collectors and the
// /metrics and /health endpoints.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons for TelemetryDropped
const (
	ReasonUnmatched = "unmatched"
	ReasonChecksum  = "checksum"
	ReasonEncode    = "encode"
)

// Command results for Commands
const (
	ResultOK        = "ok"
	ResultMalformed = "malformed"
	ResultUnknown   = "unknown"
	ResultInvalid   = "invalid"
)

// Relay holds the collectors of one relay on its own registry
type Relay struct {
	registry *prometheus.Registry

	Clients           prometheus.Gauge
	TelemetryReceived prometheus.Counter
	TelemetryDropped  *prometheus.CounterVec
	Broadcasts        prometheus.Counter
	BroadcastDrops    prometheus.Counter
	Commands          *prometheus.CounterVec
	SendFailures      prometheus.Counter
}

// NewRelay creates and registers the collectors for a relay
func NewRelay(name string) *Relay {
	labels := prometheus.Labels{"relay": name}
	m := &Relay{
		registry: prometheus.NewRegistry(),

		Clients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "devmgr_clients",
			Help:        "Connected WebSocket clients",
			ConstLabels: labels,
		}),
		TelemetryReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "devmgr_telemetry_received_total",
			Help:        "Telemetry payloads received from the device transport",
			ConstLabels: labels,
		}),
		TelemetryDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "devmgr_telemetry_dropped_total",
			Help:        "Telemetry payloads dropped before broadcast",
			ConstLabels: labels,
		}, []string{"reason"}),
		Broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "devmgr_broadcast_total",
			Help:        "Messages broadcast to clients",
			ConstLabels: labels,
		}),
		BroadcastDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "devmgr_broadcast_drops_total",
			Help:        "Per-client deliveries dropped because the client queue was full or closed",
			ConstLabels: labels,
		}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "devmgr_commands_total",
			Help:        "Client commands by outcome",
			ConstLabels: labels,
		}, []string{"result"}),
		SendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "devmgr_transport_send_failures_total",
			Help:        "Device writes that failed",
			ConstLabels: labels,
		}),
	}

	m.registry.MustRegister(
		m.Clients,
		m.TelemetryReceived,
		m.TelemetryDropped,
		m.Broadcasts,
		m.BroadcastDrops,
		m.Commands,
		m.SendFailures,
	)
	return m
}

// Registry returns the relay's registry
func (m *Relay) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves /metrics and /health
func (m *Relay) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}
