// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package config loads the relay configuration.
//
// Defaults() alone runs every relay on its usual ports. A YAML file given
// with --config is decoded over the defaults, so it only needs the keys it
// changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Thermoquad/devmgr/pkg/adsb"
	"github.com/Thermoquad/devmgr/pkg/devcmd"
	"github.com/Thermoquad/devmgr/pkg/pelco"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete devmgr configuration
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Relays RelaysConfig `yaml:"relays"`
	Mirror MirrorConfig `yaml:"mirror"`
}

// LogConfig selects logrus level, formatter and output
type LogConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"` // text or json
	Output   string `yaml:"output"` // stdout, stderr or file
	FilePath string `yaml:"file_path"`
}

// RelaysConfig holds one section per device class
type RelaysConfig struct {
	Radar  RelayConfig `yaml:"radar"`
	Camera RelayConfig `yaml:"camera"`
	Jammer RelayConfig `yaml:"jammer"`
	ADSB   RelayConfig `yaml:"adsb"`
}

// RelayConfig configures one relay
type RelayConfig struct {
	Enabled      bool          `yaml:"enabled"`
	WSListen     string        `yaml:"ws_listen"`
	HTTPListen   string        `yaml:"http_listen"`        // metrics and health, empty disables
	UDPListen    string        `yaml:"udp_listen"`         // telemetry ingress, empty disables
	DeviceAddr   string        `yaml:"device_addr"`        // UDP command egress, empty disables
	Encoding     string        `yaml:"encoding,omitempty"` // adsb only: json or cbor
	QueueSize    int           `yaml:"queue_size"`         // per-client outbound queue
	WriteTimeout time.Duration `yaml:"write_timeout"`      // per-message WebSocket write deadline
	Serial       SerialConfig  `yaml:"serial,omitempty"`   // camera only
	Pelco        PelcoConfig   `yaml:"pelco,omitempty"`    // camera only
}

// SerialConfig describes the PELCO serial line
type SerialConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// PelcoConfig selects the PELCO variant, unit address and action mapping
type PelcoConfig struct {
	Variant string `yaml:"variant"`
	Address int    `yaml:"address"`
	Mapping string `yaml:"mapping"`
}

// MirrorConfig configures the optional telemetry mirrors
type MirrorConfig struct {
	MQTT  MQTTConfig  `yaml:"mqtt"`
	Redis RedisConfig `yaml:"redis"`
}

// MQTTConfig configures the MQTT mirror. An empty broker disables it.
type MQTTConfig struct {
	Broker      string `yaml:"broker"`
	TopicPrefix string `yaml:"topic_prefix"`
	ClientID    string `yaml:"client_id"`
}

// RedisConfig configures the Redis pub/sub mirror. An empty addr disables it.
type RedisConfig struct {
	Addr          string `yaml:"addr"`
	Password      string `yaml:"password"`
	DB            int    `yaml:"db"`
	ChannelPrefix string `yaml:"channel_prefix"`
}

// Relay defaults
const (
	DefaultQueueSize    = 64
	DefaultWriteTimeout = 5 * time.Second
)

// Defaults returns the built-in configuration
func Defaults() *Config {
	relay := func(ws, http, udp string) RelayConfig {
		return RelayConfig{
			Enabled:      true,
			WSListen:     ws,
			HTTPListen:   http,
			UDPListen:    udp,
			QueueSize:    DefaultQueueSize,
			WriteTimeout: DefaultWriteTimeout,
		}
	}

	camera := relay(":4002", ":3002", ":41441")
	camera.Serial = SerialConfig{
		Enabled:  true,
		Port:     "/dev/ttyUSB0",
		BaudRate: pelco.DefaultBaudRate,
	}
	camera.Pelco = PelcoConfig{
		Variant: "D",
		Address: pelco.AddressDefault,
		Mapping: pelco.MappingVendor,
	}

	adsbRelay := relay(":4004", ":3004", ":41440")
	adsbRelay.Encoding = string(adsb.EncodingJSON)

	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Relays: RelaysConfig{
			Radar:  relay(":4000", ":3000", ""),
			Camera: camera,
			Jammer: relay(":4003", ":3003", ":41442"),
			ADSB:   adsbRelay,
		},
		Mirror: MirrorConfig{
			MQTT: MQTTConfig{
				TopicPrefix: "devmgr",
				ClientID:    "devmgr",
			},
			Redis: RedisConfig{
				ChannelPrefix: "devmgr",
			},
		},
	}
}

// Load reads path over the defaults and validates the result.
// An empty path returns the validated defaults.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := Parse(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over cfg and validates the result
func Parse(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg.Validate()
}

// Relay returns the section of a device class
func (c *Config) Relay(class devcmd.Class) (*RelayConfig, error) {
	switch class {
	case devcmd.ClassRadar:
		return &c.Relays.Radar, nil
	case devcmd.ClassCamera:
		return &c.Relays.Camera, nil
	case devcmd.ClassJammer:
		return &c.Relays.Jammer, nil
	case devcmd.ClassADSB:
		return &c.Relays.ADSB, nil
	}
	return nil, fmt.Errorf("%w: unknown relay %q", ErrInvalidConfig, class)
}

// Validate checks value ranges and enumerations
func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (use text or json)", ErrInvalidConfig, c.Log.Format)
	}
	if c.Log.Output == "file" && c.Log.FilePath == "" {
		return fmt.Errorf("%w: log.output file needs log.file_path", ErrInvalidConfig)
	}

	for _, class := range devcmd.Classes() {
		r, _ := c.Relay(class)
		if err := r.validate(class); err != nil {
			return err
		}
	}
	return nil
}

func (r *RelayConfig) validate(class devcmd.Class) error {
	if !r.Enabled {
		return nil
	}
	if r.WSListen == "" {
		return fmt.Errorf("%w: relays.%s.ws_listen is required", ErrInvalidConfig, class)
	}
	if r.QueueSize <= 0 {
		return fmt.Errorf("%w: relays.%s.queue_size must be positive", ErrInvalidConfig, class)
	}
	if r.WriteTimeout <= 0 {
		return fmt.Errorf("%w: relays.%s.write_timeout must be positive", ErrInvalidConfig, class)
	}

	if class == devcmd.ClassADSB {
		if _, err := adsb.ParseEncoding(r.Encoding); err != nil {
			return fmt.Errorf("%w: relays.%s.encoding: %v", ErrInvalidConfig, class, err)
		}
	}

	if class == devcmd.ClassCamera {
		if _, ok := pelco.ParseVariant(r.Pelco.Variant); !ok {
			return fmt.Errorf("%w: relays.%s.pelco.variant %q (use D or P)", ErrInvalidConfig, class, r.Pelco.Variant)
		}
		if r.Pelco.Address < 0 || r.Pelco.Address > 0xFF {
			return fmt.Errorf("%w: relays.%s.pelco.address %d outside 0-255", ErrInvalidConfig, class, r.Pelco.Address)
		}
		if _, err := pelco.ParseMapping(r.Pelco.Mapping); err != nil {
			return fmt.Errorf("%w: relays.%s.pelco.mapping: %v", ErrInvalidConfig, class, err)
		}
		if r.Serial.Enabled && (r.Serial.Port == "" || r.Serial.BaudRate <= 0) {
			return fmt.Errorf("%w: relays.%s.serial needs port and baud_rate", ErrInvalidConfig, class)
		}
		if r.DeviceAddr != "" {
			return fmt.Errorf("%w: relays.%s.device_addr is not used, camera commands go to serial", ErrInvalidConfig, class)
		}
	}
	return nil
}
