// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/devmgr/internal/config"
	"github.com/Thermoquad/devmgr/internal/dispatch"
	"github.com/Thermoquad/devmgr/internal/mirror"
	"github.com/Thermoquad/devmgr/internal/relay"
	"github.com/Thermoquad/devmgr/internal/transport"
	"github.com/Thermoquad/devmgr/pkg/adsb"
	"github.com/Thermoquad/devmgr/pkg/devcmd"
	"github.com/Thermoquad/devmgr/pkg/pelco"
)

// mirrorQueueSize is the capacity of the shared mirror queue
const mirrorQueueSize = 256

var serveCmd = &cobra.Command{
	Use:   "serve [relay...]",
	Short: "Run the device relays",
	Long: `Run one WebSocket relay per device class.

With no arguments every relay enabled in the configuration is started.
Naming relays (radar, camera, jammer, adsb) starts only those.

Only a failure to bind a listener stops the command. A camera serial port
that cannot be opened is logged and the camera relay runs without it.`,
	ValidArgs: []string{"radar", "camera", "jammer", "adsb"},
	Args:      cobra.OnlyValidArgs,
	RunE:      runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	classes, err := selectClasses(cfg, args)
	if err != nil {
		return err
	}
	if len(classes) == 0 {
		return fmt.Errorf("no relays enabled")
	}

	base := logrus.NewEntry(logger)

	queue := buildMirror(ctx, cfg.Mirror, base)

	var wg sync.WaitGroup
	if queue != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			queue.Run(ctx)
		}()
	}

	servers := make([]*relay.Server, 0, len(classes))
	for _, class := range classes {
		rc, _ := cfg.Relay(class)
		srv, err := buildServer(class, rc, base.WithField("relay", string(class)), queue)
		if err != nil {
			for _, s := range servers {
				closeServer(s)
			}
			stop()
			wg.Wait()
			return err
		}
		servers = append(servers, srv)
	}

	// The first bind failure cancels every relay
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		wg.Add(1)
		go func(s *relay.Server) {
			defer wg.Done()
			if err := s.Run(runCtx); err != nil {
				errCh <- fmt.Errorf("%s relay: %w", s.Bridge.Name(), err)
				cancel()
			}
		}(srv)
	}

	base.WithField("relays", len(servers)).Info("devmgr started")

	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	base.Info("devmgr stopped")
	return nil
}

// selectClasses returns the enabled classes, restricted to names when given
func selectClasses(c *config.Config, names []string) ([]devcmd.Class, error) {
	var classes []devcmd.Class
	if len(names) == 0 {
		for _, class := range devcmd.Classes() {
			rc, _ := c.Relay(class)
			if rc.Enabled {
				classes = append(classes, class)
			}
		}
		return classes, nil
	}

	seen := make(map[devcmd.Class]bool)
	for _, name := range names {
		class := devcmd.Class(strings.ToLower(name))
		rc, err := c.Relay(class)
		if err != nil {
			return nil, err
		}
		if !rc.Enabled {
			return nil, fmt.Errorf("%w: relay %s is disabled", config.ErrInvalidConfig, class)
		}
		if !seen[class] {
			seen[class] = true
			classes = append(classes, class)
		}
	}
	return classes, nil
}

// buildMirror connects the configured sinks. A sink that cannot connect is
// logged and skipped. Returns nil when no sink is available.
func buildMirror(ctx context.Context, mc config.MirrorConfig, log *logrus.Entry) *mirror.Queue {
	var sinks mirror.Multi

	if mc.MQTT.Broker != "" {
		m, err := mirror.NewMQTT(mc.MQTT.Broker, mc.MQTT.ClientID, mc.MQTT.TopicPrefix)
		if err != nil {
			log.WithError(err).WithField("broker", mc.MQTT.Broker).Warn("mqtt mirror unavailable")
		} else {
			log.WithField("broker", mc.MQTT.Broker).Info("mqtt mirror connected")
			sinks = append(sinks, m)
		}
	}

	if mc.Redis.Addr != "" {
		r, err := mirror.NewRedis(ctx, mc.Redis.Addr, mc.Redis.Password, mc.Redis.DB, mc.Redis.ChannelPrefix)
		if err != nil {
			log.WithError(err).WithField("addr", mc.Redis.Addr).Warn("redis mirror unavailable")
		} else {
			log.WithField("addr", mc.Redis.Addr).Info("redis mirror connected")
			sinks = append(sinks, r)
		}
	}

	if len(sinks) == 0 {
		return nil
	}
	return mirror.NewQueue(sinks, log.WithField("component", "mirror"), mirrorQueueSize)
}

// buildServer opens the transports of one relay and assembles its server.
// Listeners are bound later by Server.Run.
func buildServer(class devcmd.Class, rc *config.RelayConfig, log *logrus.Entry, queue *mirror.Queue) (*relay.Server, error) {
	srv := &relay.Server{
		WSListen:   rc.WSListen,
		HTTPListen: rc.HTTPListen,
	}

	var udp *transport.UDPSocket
	if rc.UDPListen != "" {
		var err error
		udp, err = transport.ListenUDP(rc.UDPListen)
		if err != nil {
			return nil, err
		}
		srv.UDP = udp
	}

	fail := func(err error) (*relay.Server, error) {
		closeServer(srv)
		return nil, err
	}

	// Camera commands go to the serial line, never to device_addr
	var sender transport.Sender
	if rc.DeviceAddr != "" && class != devcmd.ClassCamera {
		var s *transport.UDPSender
		var err error
		if udp != nil {
			s, err = udp.SenderTo(rc.DeviceAddr)
		} else {
			s, err = transport.DialUDP(rc.DeviceAddr)
		}
		if err != nil {
			return fail(err)
		}
		srv.Closers = append(srv.Closers, s.Close)
		sender = s
	}

	var dispatcher dispatch.Dispatcher
	switch class {
	case devcmd.ClassRadar:
		dispatcher = dispatch.NewSystem(devcmd.Radar, sender)
		srv.UDPEnvelope = relay.Raw{}

	case devcmd.ClassJammer:
		dispatcher = dispatch.NewSystem(devcmd.Jammer, sender)
		srv.UDPEnvelope = relay.Raw{}

	case devcmd.ClassADSB:
		enc, err := adsb.ParseEncoding(rc.Encoding)
		if err != nil {
			return fail(err)
		}
		dispatcher = dispatch.NewSystem(devcmd.ADSB, sender)
		srv.UDPEnvelope = relay.ADSB{Encoding: enc}

	case devcmd.ClassCamera:
		camera, err := buildCamera(rc, log, srv)
		if err != nil {
			return fail(err)
		}
		dispatcher = camera
		srv.UDPEnvelope = relay.Raw{}

	default:
		return fail(fmt.Errorf("%w: unknown relay %q", config.ErrInvalidConfig, class))
	}

	srv.Bridge = relay.NewBridge(relay.Options{
		Name:         string(class),
		Dispatcher:   dispatcher,
		Log:          log,
		Mirror:       queue,
		QueueSize:    rc.QueueSize,
		WriteTimeout: rc.WriteTimeout,
	})
	return srv, nil
}

// buildCamera sets up the PELCO codec and the serial line of the camera relay
func buildCamera(rc *config.RelayConfig, log *logrus.Entry, srv *relay.Server) (*dispatch.Camera, error) {
	variant, ok := pelco.ParseVariant(rc.Pelco.Variant)
	if !ok {
		return nil, fmt.Errorf("%w: pelco variant %q", config.ErrInvalidConfig, rc.Pelco.Variant)
	}
	mapping, err := pelco.ParseMapping(rc.Pelco.Mapping)
	if err != nil {
		return nil, err
	}
	codec := pelco.NewCodec(variant)

	for _, group := range mapping.Collisions() {
		log.WithFields(logrus.Fields{
			"mapping": mapping.Name(),
			"actions": strings.Join(group, ","),
		}).Warn("actions encode to identical frames")
	}

	var sender transport.Sender
	if rc.Serial.Enabled {
		port, err := transport.OpenSerial(rc.Serial.Port, rc.Serial.BaudRate)
		if err != nil {
			log.WithError(err).WithField("port", rc.Serial.Port).Warn("camera serial unavailable, commands will not be delivered")
		} else {
			log.WithFields(logrus.Fields{
				"port":    rc.Serial.Port,
				"baud":    rc.Serial.BaudRate,
				"variant": variant.String(),
			}).Info("camera serial open")
			srv.Serial = port
			srv.SerialEnvelope = relay.NewPelcoResponses(codec)
			sender = port
		}
	}

	return dispatch.NewCamera(codec, mapping, byte(rc.Pelco.Address), sender), nil
}

// closeServer releases transports of a server that never ran
func closeServer(s *relay.Server) {
	if s.UDP != nil {
		_ = s.UDP.Close()
	}
	if s.Serial != nil {
		_ = s.Serial.Close()
	}
	for _, c := range s.Closers {
		_ = c()
	}
}
