// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/devmgr/internal/dispatch"
	"github.com/Thermoquad/devmgr/internal/transport"
	"github.com/Thermoquad/devmgr/pkg/devcmd"
)

func TestServer_RunRelaysUDPAndShutsDown(t *testing.T) {
	udp, err := transport.ListenUDP("127.0.0.1:0")
	require.NoError(t, err)

	b := newTestBridge(dispatch.NewSystem(devcmd.Jammer, nil), 8)
	s := &Server{
		Bridge:      b,
		WSListen:    "127.0.0.1:0",
		UDP:         udp,
		UDPEnvelope: Raw{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-s.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("server not ready")
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+s.Addr().String(), nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return b.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	device, err := net.Dial("udp", udp.LocalAddr().String())
	require.NoError(t, err)
	defer device.Close()
	_, err = device.Write([]byte("STATUS,OK"))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "STATUS,OK", string(data))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}

	// Shutdown closes every client connection
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
	assert.Zero(t, b.Clients())
}

func TestServer_MetricsEndpoint(t *testing.T) {
	// Reserve a free port for the metrics listener
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	httpAddr := ln.Addr().String()
	ln.Close()

	s := &Server{
		Bridge:     newTestBridge(dispatch.NewSystem(devcmd.Radar, nil), 8),
		WSListen:   "127.0.0.1:0",
		HTTPListen: httpAddr,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)
	<-s.Ready()

	resp, err := http.Get("http://" + httpAddr + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "OK", string(body))
}

func TestServer_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	closed := false
	s := &Server{
		Bridge:   newTestBridge(dispatch.NewSystem(devcmd.Radar, nil), 8),
		WSListen: ln.Addr().String(),
		Closers:  []func() error{func() error { closed = true; return nil }},
	}

	err = s.Run(context.Background())
	assert.Error(t, err)
	assert.True(t, closed, "transports are released when the relay cannot bind")
}
