// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	watchURL      string
	watchDuration int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch relay telemetry and connection stability",
	Long: `Connect to a relay without sending commands and print every message
received for a fixed duration.

Useful for checking that telemetry reaches clients and that the connection
stays up.

Exit codes:
  0 - Watch completed normally
  1 - Connection dropped
  2 - Connection error`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchURL, "url", "u", "ws://localhost:4004", "Relay WebSocket URL")
	watchCmd.Flags().IntVar(&watchDuration, "duration", 30, "Watch duration in seconds")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	conn, err := DialRelay(cmd.Context(), watchURL, false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Relay Watch\n")
	fmt.Printf("Connection: %s\n", watchURL)
	fmt.Printf("Duration: %d seconds\n\n", watchDuration)

	readChan := make(chan string, 100)
	errChan := make(chan error, 1)

	go func() {
		for {
			msg, err := conn.Next()
			if err != nil {
				errChan <- err
				return
			}
			readChan <- msg
		}
	}()

	start := time.Now()
	endTime := start.Add(time.Duration(watchDuration) * time.Second)
	bytesReceived := 0
	messagesReceived := 0

	fmt.Printf("Listening for telemetry...\n\n")

	for time.Now().Before(endTime) {
		select {
		case msg := <-readChan:
			bytesReceived += len(msg)
			messagesReceived++
			fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), msg)

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n",
				time.Now().Format("15:04:05.000"), err)
			fmt.Printf("\n--- Watch Results ---\n")
			fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
			fmt.Printf("Messages received: %d\n", messagesReceived)
			fmt.Printf("Bytes received: %d\n", bytesReceived)
			fmt.Printf("Result: FAILED (connection dropped)\n")
			os.Exit(1)

		case <-time.After(1 * time.Second):
			remaining := time.Until(endTime).Seconds()
			fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
				time.Now().Format("15:04:05.000"), remaining)
		}
	}

	fmt.Printf("\n--- Watch Results ---\n")
	fmt.Printf("Duration: %d seconds\n", watchDuration)
	fmt.Printf("Messages received: %d\n", messagesReceived)
	fmt.Printf("Bytes received: %d\n", bytesReceived)
	fmt.Printf("Result: PASSED (connection stable)\n")

	return nil
}
