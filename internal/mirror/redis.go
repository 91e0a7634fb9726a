// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mirror

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis publishes telemetry on the pub/sub channel <prefix>:<relay>
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects and pings the server
func NewRedis(ctx context.Context, addr, password string, db int, prefix string) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connect to %s: %w", addr, err)
	}
	return &Redis{client: client, prefix: prefix}, nil
}

// Channel returns the pub/sub channel of a relay
func Channel(prefix, relay string) string {
	if prefix == "" {
		return relay
	}
	return prefix + ":" + relay
}

// Publish sends one payload
func (r *Redis) Publish(ctx context.Context, relay string, payload []byte) error {
	if err := r.client.Publish(ctx, Channel(r.prefix, relay), payload).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Close releases the connection pool
func (r *Redis) Close() error {
	return r.client.Close()
}
