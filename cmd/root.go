// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/devmgr/internal/config"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string

	// Loaded in PersistentPreRunE
	cfg    *config.Config
	logger *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "devmgr",
	Short: "Device-control relays for radar, camera, jammer and ADS-B",
	Long: `devmgr - WebSocket relays in front of field devices.

Each relay bridges one device transport to any number of WebSocket clients:

  radar   ws :4000  commands only
  camera  ws :4002  PELCO-D/P over serial, telemetry on udp :41441
  jammer  ws :4003  telemetry on udp :41442
  adsb    ws :4004  ADS-B records on udp :41440

Clients send {"command": <int>, "data": <any>} and receive a reply on the
same connection; telemetry is broadcast to every client.

Settings come from built-in defaults, optionally overlaid with a YAML file
given by --config.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			cfg.Log.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			cfg.Log.Format = logFormat
		}
		logger = setupLogger(cfg.Log)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text or json)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// setupLogger builds the process logger from the log section
func setupLogger(lc config.LogConfig) *logrus.Logger {
	log := logrus.New()

	level, levelErr := logrus.ParseLevel(lc.Level)
	if levelErr != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if lc.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	switch lc.Output {
	case "stderr":
		log.SetOutput(os.Stderr)
	case "file":
		file, err := os.OpenFile(lc.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Warnf("failed to open log file %s: %v, using stdout", lc.FilePath, err)
			break
		}
		log.SetOutput(file)
	default:
		log.SetOutput(os.Stdout)
	}

	if levelErr != nil {
		log.Warnf("unknown log level %q, using info", lc.Level)
	}
	return log
}
