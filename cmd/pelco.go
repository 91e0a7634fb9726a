// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devmgr/internal/transport"
	"github.com/Thermoquad/devmgr/pkg/pelco"
)

var (
	pelcoPort    string
	pelcoBaud    int
	pelcoVariant string
	pelcoAddress int
	pelcoMapping string
)

var pelcoCmd = &cobra.Command{
	Use:   "pelco",
	Short: "PELCO-D/P tools",
	Long: `Inspect and exercise the PELCO action tables and serial line.

Flags default to the camera section of the configuration.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		pc := cfg.Relays.Camera
		flags := cmd.Flags()
		if !flags.Changed("port") {
			pelcoPort = pc.Serial.Port
		}
		if !flags.Changed("baud") {
			pelcoBaud = pc.Serial.BaudRate
		}
		if !flags.Changed("variant") {
			pelcoVariant = pc.Pelco.Variant
		}
		if !flags.Changed("address") {
			pelcoAddress = pc.Pelco.Address
		}
		if !flags.Changed("mapping") {
			pelcoMapping = pc.Pelco.Mapping
		}
		return nil
	},
}

var pelcoActionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the actions of a mapping and its ambiguous frames",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		mapping, err := pelco.ParseMapping(pelcoMapping)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Mapping: %s\n\n", mapping.Name())
		for _, a := range mapping.Actions() {
			fmt.Fprintln(out, pelco.FormatAction(a))
		}

		collisions := mapping.Collisions()
		if len(collisions) == 0 {
			return nil
		}
		fmt.Fprintf(out, "\nIdentical frames:\n")
		for _, group := range collisions {
			fmt.Fprintf(out, "  %s\n", strings.Join(group, " = "))
		}
		return nil
	},
}

var pelcoEncodeCmd = &cobra.Command{
	Use:   "encode ACTION [VALUE]",
	Short: "Print the frame of an action",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := buildActionFrame(args)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), pelco.FormatHex(frame.Bytes()))
		return nil
	},
}

var pelcoSendCmd = &cobra.Command{
	Use:   "send ACTION [VALUE]",
	Short: "Write the frame of an action to the serial port",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		frame, err := buildActionFrame(args)
		if err != nil {
			return err
		}

		port, err := transport.OpenSerial(pelcoPort, pelcoBaud)
		if err != nil {
			return err
		}
		defer port.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
		defer cancel()
		if err := port.Send(ctx, frame.Bytes()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %s\n", pelco.FormatHex(frame.Bytes()), pelcoPort)
		return nil
	},
}

func init() {
	pf := pelcoCmd.PersistentFlags()
	pf.StringVarP(&pelcoPort, "port", "p", "", "Serial port")
	pf.IntVarP(&pelcoBaud, "baud", "b", pelco.DefaultBaudRate, "Baud rate")
	pf.StringVar(&pelcoVariant, "variant", "D", "PELCO variant (D or P)")
	pf.IntVar(&pelcoAddress, "address", pelco.AddressDefault, "Unit address (0-255)")
	pf.StringVar(&pelcoMapping, "mapping", pelco.MappingVendor, "Action mapping (vendor or standard)")

	pelcoCmd.AddCommand(pelcoActionsCmd, pelcoEncodeCmd, pelcoSendCmd)
	rootCmd.AddCommand(pelcoCmd)
}

// buildActionFrame encodes args (ACTION [VALUE]) with the current flags
func buildActionFrame(args []string) (pelco.Frame, error) {
	variant, ok := pelco.ParseVariant(pelcoVariant)
	if !ok {
		return pelco.Frame{}, fmt.Errorf("unknown PELCO variant %q (use D or P)", pelcoVariant)
	}
	if pelcoAddress < 0 || pelcoAddress > 0xFF {
		return pelco.Frame{}, fmt.Errorf("address %d outside 0-255", pelcoAddress)
	}
	mapping, err := pelco.ParseMapping(pelcoMapping)
	if err != nil {
		return pelco.Frame{}, err
	}

	action, ok := mapping.Lookup(strings.ToUpper(args[0]))
	if !ok {
		return pelco.Frame{}, fmt.Errorf("action %s not in %s mapping", args[0], mapping.Name())
	}

	value := 0
	if len(args) > 1 {
		if action.Operand == pelco.OperandNone {
			return pelco.Frame{}, fmt.Errorf("action %s takes no value", action.Name)
		}
		value, err = strconv.Atoi(args[1])
		if err != nil {
			return pelco.Frame{}, fmt.Errorf("invalid value %q: %v", args[1], err)
		}
	} else if action.Operand != pelco.OperandNone {
		return pelco.Frame{}, fmt.Errorf("action %s needs %s (0-%d)", action.Name, action.Param, action.Operand.Max())
	}

	return pelco.NewCodec(variant).EncodeAction(byte(pelcoAddress), action, value)
}
