// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirror

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTT publishes telemetry to <prefix>/<relay> at QoS 0
type MQTT struct {
	client mqtt.Client
	prefix string
}

// NewMQTT connects to broker and returns the sink
func NewMQTT(broker, clientID, prefix string) (*MQTT, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if err := connect(client, broker, mqttConnectTimeout); err != nil {
		return nil, err
	}
	return &MQTT{client: client, prefix: prefix}, nil
}

const mqttConnectTimeout = 10 * time.Second

// connect waits for the first connection. On failure the client is
// disconnected so connect retries stop.
func connect(client mqtt.Client, broker string, timeout time.Duration) error {
	token := client.Connect()
	if ok := token.WaitTimeout(timeout); !ok {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect to %s timed out", broker)
	}
	if err := token.Error(); err != nil {
		client.Disconnect(0)
		return fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	return nil
}

// Topic returns the topic a relay publishes to
func Topic(prefix, relay string) string {
	if prefix == "" {
		return relay
	}
	return prefix + "/" + relay
}

// Publish sends one payload and waits for the broker or ctx
func (m *MQTT) Publish(ctx context.Context, relay string, payload []byte) error {
	token := m.client.Publish(Topic(m.prefix, relay), 0, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return fmt.Errorf("mqtt publish: %w", ctx.Err())
	}
}

// Close disconnects from the broker
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}
