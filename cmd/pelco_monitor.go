// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devmgr/internal/transport"
	"github.com/Thermoquad/devmgr/pkg/pelco"
)

var (
	showAll       bool
	statsInterval int
)

var pelcoMonitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Decode and validate frames on the serial line",
	Long: `Decode PELCO frames read from the serial port.

Each frame is checked for checksum errors, reserved bits, speed range and
extended commands unknown to the mapping. By default only problems are
shown; --show-all prints every frame with the actions it matches.

Decode errors before the first good frame are counted, not reported, while
the decoder synchronizes. A statistics summary is printed periodically.`,
	Args: cobra.NoArgs,
	RunE: runPelcoMonitor,
}

func init() {
	pelcoMonitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	pelcoMonitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	pelcoCmd.AddCommand(pelcoMonitorCmd)
}

func runPelcoMonitor(cmd *cobra.Command, args []string) error {
	variant, ok := pelco.ParseVariant(pelcoVariant)
	if !ok {
		return fmt.Errorf("unknown PELCO variant %q (use D or P)", pelcoVariant)
	}
	mapping, err := pelco.ParseMapping(pelcoMapping)
	if err != nil {
		return err
	}
	if statsInterval <= 0 {
		return fmt.Errorf("stats-interval must be positive")
	}

	port, err := transport.OpenSerial(pelcoPort, pelcoBaud)
	if err != nil {
		return err
	}
	defer port.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "devmgr - PELCO-%s Monitor\n", variant)
	fmt.Fprintf(out, "Port: %s @ %d baud\n", pelcoPort, pelcoBaud)
	fmt.Fprintf(out, "Mapping: %s\n", mapping.Name())
	fmt.Fprintf(out, "Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Fprintf(out, "Mode: All frames\n")
	} else {
		fmt.Fprintf(out, "Mode: Errors only\n")
	}
	fmt.Fprintf(out, "Press Ctrl+C to exit\n\n")

	chunks := make(chan []byte, 10)
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- port.Serve(ctx, func(data []byte) {
			select {
			case chunks <- data:
			case <-ctx.Done():
			}
		})
	}()

	mon := newFrameMonitor(out, pelco.NewCodec(variant), mapping, showAll)

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case data := <-chunks:
			mon.feed(data)

		case <-statsTicker.C:
			fmt.Fprintln(out)
			fmt.Fprint(out, mon.stats.String())
			fmt.Fprintln(out)

		case err := <-serveErr:
			fmt.Fprintln(out)
			fmt.Fprint(out, mon.stats.String())
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}
	}
}

// frameMonitor decodes a byte stream and reports frames and anomalies
type frameMonitor struct {
	out     io.Writer
	decoder *pelco.Decoder
	mapping *pelco.Mapping
	stats   *pelco.Statistics
	showAll bool

	// Decode errors are ignored until the first valid frame
	synchronized            bool
	invalidFramesBeforeSync int
}

func newFrameMonitor(out io.Writer, codec *pelco.Codec, mapping *pelco.Mapping, showAll bool) *frameMonitor {
	return &frameMonitor{
		out:     out,
		decoder: pelco.NewDecoder(codec),
		mapping: mapping,
		stats:   pelco.NewStatistics(),
		showAll: showAll,
	}
}

func (m *frameMonitor) feed(data []byte) {
	for _, b := range data {
		frame, decodeErr := m.decoder.DecodeByte(b)

		if decodeErr != nil {
			if m.synchronized {
				m.stats.Update(decodeErr, nil)
				m.printDecodeError(decodeErr)
			} else {
				m.invalidFramesBeforeSync++
			}
			continue
		}
		if frame == nil {
			continue
		}

		if !m.synchronized {
			m.synchronized = true
			if m.invalidFramesBeforeSync > 0 {
				fmt.Fprintf(m.out, "[SYNC] Synchronized after skipping %d corrupt frames\n\n", m.invalidFramesBeforeSync)
			} else {
				fmt.Fprintf(m.out, "[SYNC] Synchronized\n\n")
			}
		}

		validationErrors := pelco.ValidateFrame(*frame, m.mapping)
		m.stats.Update(nil, validationErrors)

		if len(validationErrors) > 0 {
			m.printValidationErrors(*frame, validationErrors)
		} else if m.showAll {
			fmt.Fprint(m.out, pelco.FormatFrame(*frame, m.mapping))
		}
	}
}

// printDecodeError prints a decode error in highlighted format
func (m *frameMonitor) printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(m.out, "[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Fprintf(m.out, "  >>> FRAME REJECTED <<<\n\n")
}

// printValidationErrors prints the anomalies of one frame
func (m *frameMonitor) printValidationErrors(f pelco.Frame, errs []pelco.ValidationError) {
	fmt.Fprintf(m.out, "\033[1;33mVALIDATION ERROR:\033[0m %s", pelco.FormatFrame(f, m.mapping))
	for i, err := range errs {
		switch err.Type {
		case pelco.AnomalyReservedBits, pelco.AnomalyChecksum:
			fmt.Fprintf(m.out, "  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
		case pelco.AnomalySpeedRange, pelco.AnomalyUnknownCommand:
			fmt.Fprintf(m.out, "  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		default:
			fmt.Fprintf(m.out, "  Issue %d: %s\n", i+1, err.Message)
		}
	}
	fmt.Fprintln(m.out)
}
