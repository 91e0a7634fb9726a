// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(NewRelay("radar").Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
}

func TestMetricsEndpoint(t *testing.T) {
	m := NewRelay("camera")
	m.Clients.Set(2)
	m.Commands.WithLabelValues(ResultOK).Inc()
	m.TelemetryDropped.WithLabelValues(ReasonUnmatched).Add(3)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	text := string(body)
	assert.True(t, strings.Contains(text, `devmgr_clients{relay="camera"} 2`), text)
	assert.True(t, strings.Contains(text, `devmgr_commands_total{relay="camera",result="ok"} 1`), text)
	assert.True(t, strings.Contains(text, `devmgr_telemetry_dropped_total{reason="unmatched",relay="camera"} 3`), text)
}

func TestRelaysAreIndependent(t *testing.T) {
	a := NewRelay("jammer")
	b := NewRelay("adsb")

	a.TelemetryReceived.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.TelemetryReceived))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.TelemetryReceived))
}
