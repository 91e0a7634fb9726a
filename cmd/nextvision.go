// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/devmgr/pkg/nextvision"
)

var nextvisionJSON bool

var nextvisionCmd = &cobra.Command{
	Use:   "nextvision ACTION [ARG...]",
	Short: "Build a NextVision DIGICAM_CONTROL command",
	Long: `Print the COMMAND_LONG parameters for a NextVision camera action.

Actions: set_mode, snapshot, recording. Up to six numeric arguments follow
the sub-command in param2..param7, for example:

  devmgr nextvision set_mode 3`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values := make([]float32, 0, len(args)-1)
		for _, arg := range args[1:] {
			v, err := strconv.ParseFloat(arg, 32)
			if err != nil {
				return fmt.Errorf("invalid argument %q: %v", arg, err)
			}
			values = append(values, float32(v))
		}

		c, err := nextvision.Build(strings.ToLower(args[0]), values...)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if nextvisionJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(c)
		}
		fmt.Fprintln(out, c.String())
		return nil
	},
}

func init() {
	nextvisionCmd.Flags().BoolVar(&nextvisionJSON, "json", false, "Print the command as JSON")
	rootCmd.AddCommand(nextvisionCmd)
}
