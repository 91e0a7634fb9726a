// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package relay

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/devmgr/internal/transport"
)

// ShutdownTimeout bounds the graceful HTTP shutdown
const ShutdownTimeout = 3 * time.Second

// Server runs one relay: the WebSocket endpoint, the metrics/health
// endpoint and the device ingress.
type Server struct {
	Bridge *Bridge

	WSListen   string // required
	HTTPListen string // metrics and health, empty disables

	// UDP telemetry ingress, nil disables
	UDP         *transport.UDPSocket
	UDPEnvelope Envelope

	// Serial response ingress, nil disables
	Serial         *transport.SerialPort
	SerialEnvelope Envelope

	// Closed on shutdown after the ingress transports
	Closers []func() error

	mu      sync.Mutex
	wsAddr  net.Addr
	ready   chan struct{}
	readyMu sync.Once
}

// Addr returns the bound WebSocket address once Run has started listening
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wsAddr
}

// Ready is closed once the listeners are bound
func (s *Server) Ready() <-chan struct{} {
	s.readyMu.Do(func() { s.ready = make(chan struct{}) })
	return s.ready
}

// Run binds the listeners and serves until ctx is cancelled. Only a bind
// failure is returned; ingress read errors are logged and stop that
// ingress alone.
func (s *Server) Run(ctx context.Context) error {
	log := s.Bridge.log
	s.Ready()
	ready := s.ready

	wsLn, err := net.Listen("tcp", s.WSListen)
	if err != nil {
		s.closeTransports()
		return fmt.Errorf("%s: failed to listen on %s: %w", s.Bridge.Name(), s.WSListen, err)
	}

	var httpLn net.Listener
	if s.HTTPListen != "" {
		httpLn, err = net.Listen("tcp", s.HTTPListen)
		if err != nil {
			wsLn.Close()
			s.closeTransports()
			return fmt.Errorf("%s: failed to listen on %s: %w", s.Bridge.Name(), s.HTTPListen, err)
		}
	}

	s.mu.Lock()
	s.wsAddr = wsLn.Addr()
	s.mu.Unlock()

	baseCtx := func(net.Listener) context.Context { return ctx }
	servers := []*http.Server{{Handler: s.Bridge, BaseContext: baseCtx}}
	listeners := []net.Listener{wsLn}
	log.WithField("addr", wsLn.Addr().String()).Info("WebSocket server running")

	if httpLn != nil {
		servers = append(servers, &http.Server{Handler: s.Bridge.Metrics().Handler(), BaseContext: baseCtx})
		listeners = append(listeners, httpLn)
		log.WithField("addr", httpLn.Addr().String()).Info("metrics server running")
	}

	var wg sync.WaitGroup
	for i := range servers {
		srv, ln := servers[i], listeners[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("HTTP server stopped")
			}
		}()
	}

	if s.UDP != nil {
		env := s.UDPEnvelope
		if env == nil {
			env = Raw{}
		}
		log.WithField("addr", s.UDP.LocalAddr().String()).Info("UDP server listening")
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.UDP.Serve(ctx, func(payload []byte, from net.Addr) {
				log.WithFields(logrus.Fields{"from": from.String(), "bytes": len(payload)}).Debug("Received UDP message")
				s.Bridge.Ingest(env, payload)
			})
			if err != nil {
				log.WithError(err).Error("UDP ingress stopped")
			}
		}()
	}

	if s.Serial != nil && s.SerialEnvelope != nil {
		log.WithField("port", s.Serial.Name()).Info("serial ingress running")
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Serial.Serve(ctx, func(chunk []byte) {
				s.Bridge.Ingest(s.SerialEnvelope, chunk)
			})
			if err != nil {
				log.WithError(err).Error("serial ingress stopped")
			}
		}()
	}

	close(ready)
	<-ctx.Done()

	log.Info("shutting down")
	s.closeTransports()
	s.Bridge.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
		}
	}

	wg.Wait()
	return nil
}

func (s *Server) closeTransports() {
	if s.UDP != nil {
		s.UDP.Close()
	}
	if s.Serial != nil {
		s.Serial.Close()
	}
	for _, closeFn := range s.Closers {
		closeFn()
	}
}
