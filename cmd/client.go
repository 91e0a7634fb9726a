// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Thermoquad/devmgr/internal/relay"
	"github.com/Thermoquad/devmgr/pkg/devcmd"
)

var (
	clientURL        string
	clientRelay      string
	clientUser       string
	clientCommand    int
	clientData       string
	clientPlain      bool
	clientNoSSLCheck bool
	clientWait       time.Duration
)

var clientCmd = &cobra.Command{
	Use:   "client",
	Short: "Send commands to a relay",
	Long: `Connect to a relay and send commands.

Each input line is a command number, optionally followed by a JSON data
value:

  1
  3 {"mode": "standby"}

The number is checked against the relay's command table before it is sent.
Without data the client sends {"user": <user>, "timestamp": <ms>}. Replies
and telemetry are printed as they arrive. Type "exit" to quit.

With --command the client sends one command, prints the reply and exits.
On a terminal the client runs an interactive UI unless --plain is given.`,
	RunE: runClient,
}

func init() {
	clientCmd.Flags().StringVarP(&clientURL, "url", "u", "", "Relay WebSocket URL (default: ws://localhost:<relay ws port>)")
	clientCmd.Flags().StringVarP(&clientRelay, "relay", "r", string(devcmd.ClassRadar), "Relay class for command validation (radar, camera, jammer, adsb)")
	clientCmd.Flags().StringVar(&clientUser, "user", "testUser", "User name in the default command data")
	clientCmd.Flags().IntVar(&clientCommand, "command", -1, "Send one command and exit")
	clientCmd.Flags().StringVar(&clientData, "data", "", "JSON data for --command")
	clientCmd.Flags().BoolVar(&clientPlain, "plain", false, "Line mode even on a terminal")
	clientCmd.Flags().BoolVar(&clientNoSSLCheck, "no-ssl-verify", false, "Skip TLS certificate verification for wss://")
	clientCmd.Flags().DurationVar(&clientWait, "wait", 5*time.Second, "How long --command waits for the reply")
	rootCmd.AddCommand(clientCmd)
}

// errExit ends an input loop
var errExit = errors.New("exit")

// commandLine is one parsed client input line
type commandLine struct {
	Code devcmd.Code
	Data json.RawMessage
}

// parseCommandLine validates a line against table. An empty data part is
// replaced by defaultData.
func parseCommandLine(table *devcmd.Table, line string, defaultData func() json.RawMessage) (commandLine, error) {
	line = strings.TrimSpace(line)
	if strings.EqualFold(line, "exit") {
		return commandLine{}, errExit
	}

	head, rest, _ := strings.Cut(line, " ")
	n, err := strconv.Atoi(head)
	if err != nil || !table.Contains(devcmd.Code(n)) {
		return commandLine{}, fmt.Errorf("%s Available commands are: %s", relay.MessageInvalidCommand, table)
	}

	data := json.RawMessage(strings.TrimSpace(rest))
	if len(data) == 0 {
		data = defaultData()
	} else if !json.Valid(data) {
		return commandLine{}, fmt.Errorf("data is not valid JSON: %s", data)
	}
	return commandLine{Code: devcmd.Code(n), Data: data}, nil
}

// defaultClientData builds the data sent with a bare command number
func defaultClientData() json.RawMessage {
	data, _ := json.Marshal(struct {
		User      string `json:"user"`
		Timestamp int64  `json:"timestamp"`
	}{clientUser, time.Now().UnixMilli()})
	return data
}

func runClient(cmd *cobra.Command, args []string) error {
	class := devcmd.Class(strings.ToLower(clientRelay))
	table, err := devcmd.ForClass(class)
	if err != nil {
		return err
	}

	url := clientURL
	if url == "" {
		rc, err := cfg.Relay(class)
		if err != nil {
			return err
		}
		url = localURL(rc.WSListen)
	}

	conn, err := DialRelay(cmd.Context(), url, clientNoSSLCheck)
	if err != nil {
		return err
	}
	defer conn.Close()

	if clientCommand >= 0 {
		return runClientOnce(conn, table)
	}

	if !clientPlain && term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd())) {
		return runClientTUI(conn, table, url)
	}
	return runClientLines(conn, table, url)
}

// localURL turns a listen address into a dialable ws:// URL
func localURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		listen = "localhost" + listen
	}
	return "ws://" + listen
}

func runClientOnce(conn *RelayConnection, table *devcmd.Table) error {
	line := strconv.Itoa(clientCommand)
	if clientData != "" {
		line += " " + clientData
	}
	req, err := parseCommandLine(table, line, defaultClientData)
	if err != nil {
		return err
	}
	if err := conn.Send(req.Code, req.Data); err != nil {
		return err
	}

	// Telemetry may arrive before the reply
	replies := make(chan string)
	errs := make(chan error, 1)
	go func() {
		for {
			msg, err := conn.Next()
			if err != nil {
				errs <- err
				return
			}
			if isReply(msg) {
				replies <- msg
				return
			}
		}
	}()

	select {
	case msg := <-replies:
		fmt.Println(msg)
		return nil
	case err := <-errs:
		return fmt.Errorf("connection closed before reply: %w", err)
	case <-time.After(clientWait):
		return fmt.Errorf("no reply within %s", clientWait)
	}
}

// isReply reports whether msg is a command reply rather than telemetry
func isReply(msg string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(msg), &probe); err != nil {
		return false
	}
	if _, ok := probe["response"]; ok {
		return true
	}
	if raw, ok := probe["error"]; ok && len(probe) == 1 {
		var s string
		return json.Unmarshal(raw, &s) == nil
	}
	return false
}

func runClientLines(conn *RelayConnection, table *devcmd.Table, url string) error {
	fmt.Printf("Connected to %s\n", url)
	fmt.Printf("Available commands: %s\n", table)
	fmt.Println("Enter a number corresponding to the command:")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			msg, err := conn.Next()
			if err != nil {
				fmt.Println("Connection closed.")
				return
			}
			fmt.Printf("Received from server: %s\n", msg)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-closed:
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			req, err := parseCommandLine(table, line, defaultClientData)
			if errors.Is(err, errExit) {
				fmt.Println("Exiting program...")
				return nil
			}
			if err != nil {
				fmt.Println(err)
				continue
			}
			if err := conn.Send(req.Code, req.Data); err != nil {
				return err
			}
			fmt.Printf("Sent to server: {\"command\":%d,\"data\":%s}\n", req.Code, req.Data)
		}
	}
}
