// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/devmgr/pkg/devcmd"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

type clientLogEntry struct {
	timestamp time.Time
	text      string
	kind      int
}

// Log entry kinds
const (
	entryInfo = iota
	entrySent
	entryReply
	entryTelemetry
	entryError
)

// clientModel is the Bubble Tea model for the interactive client
type clientModel struct {
	conn  *RelayConnection
	table *devcmd.Table
	url   string

	input         textinput.Model
	log           []clientLogEntry
	maxLogEntries int

	sent      int
	replies   int
	telemetry int

	width        int
	height       int
	disconnected bool
	quitting     bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type relayMsg struct {
	text string
}

type relayClosedMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialClientModel(conn *RelayConnection, table *devcmd.Table, url string) clientModel {
	ti := textinput.New()
	ti.Placeholder = `1 {"user": "operator"}`
	ti.CharLimit = 512
	ti.Width = 60
	ti.Focus()

	m := clientModel{
		conn:          conn,
		table:         table,
		url:           url,
		input:         ti,
		maxLogEntries: 200,
		width:         80,
		height:        24,
	}
	m.addLogEntry(fmt.Sprintf("Connected to %s", url), entryInfo)
	return m
}

func runClientTUI(conn *RelayConnection, table *devcmd.Table, url string) error {
	m := initialClientModel(conn, table, url)
	p := tea.NewProgram(m, tea.WithAltScreen())

	go func() {
		for {
			text, err := conn.Next()
			if err != nil {
				p.Send(relayClosedMsg{err: err})
				return
			}
			p.Send(relayMsg{text: text})
		}
	}()

	_, err := p.Run()
	return err
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m clientModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m clientModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 10)

	case relayMsg:
		if isReply(msg.text) {
			m.replies++
			m.addLogEntry(msg.text, entryReply)
		} else {
			m.telemetry++
			m.addLogEntry(msg.text, entryTelemetry)
		}
		return m, nil

	case relayClosedMsg:
		m.disconnected = true
		m.addLogEntry(fmt.Sprintf("Connection closed: %v", msg.err), entryError)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m clientModel) submit() (tea.Model, tea.Cmd) {
	line := strings.TrimSpace(m.input.Value())
	m.input.SetValue("")
	if line == "" {
		return m, nil
	}

	req, err := parseCommandLine(m.table, line, defaultClientData)
	if errors.Is(err, errExit) {
		m.quitting = true
		return m, tea.Quit
	}
	if err != nil {
		m.addLogEntry(err.Error(), entryError)
		return m, nil
	}
	if m.disconnected {
		m.addLogEntry("Cannot send command: connection closed", entryError)
		return m, nil
	}

	if err := m.conn.Send(req.Code, req.Data); err != nil {
		m.addLogEntry(fmt.Sprintf("Send failed: %v", err), entryError)
		return m, nil
	}
	m.sent++

	name, _ := m.table.Name(req.Code)
	m.addLogEntry(fmt.Sprintf("%d %s %s", req.Code, name, req.Data), entrySent)
	return m, nil
}

func (m *clientModel) addLogEntry(text string, kind int) {
	m.log = append(m.log, clientLogEntry{
		timestamp: time.Now(),
		text:      text,
		kind:      kind,
	})
	if len(m.log) > m.maxLogEntries {
		m.log = m.log[len(m.log)-m.maxLogEntries:]
	}
}

func (m clientModel) View() string {
	if m.quitting {
		return "Exiting program...\n"
	}

	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	sentStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	replyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	s.WriteString(titleStyle.Render(fmt.Sprintf("devmgr client - %s", m.table.Class())))
	s.WriteString("  ")
	status := statsValueStyle.Render(m.url)
	if m.disconnected {
		status = errorStyle.Render("DISCONNECTED")
	}
	s.WriteString(status)
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Commands: %s", m.table)))
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s\n\n",
		statsLabelStyle.Render("Sent:"), statsValueStyle.Render(fmt.Sprint(m.sent)),
		statsLabelStyle.Render("Replies:"), statsValueStyle.Render(fmt.Sprint(m.replies)),
		statsLabelStyle.Render("Telemetry:"), statsValueStyle.Render(fmt.Sprint(m.telemetry)),
	))

	// Log, newest at the bottom
	logLines := max(m.height-10, 3)
	start := max(len(m.log)-logLines, 0)
	var logView strings.Builder
	for i, entry := range m.log[start:] {
		if i > 0 {
			logView.WriteString("\n")
		}
		line := fmt.Sprintf("%s %s", entry.timestamp.Format("15:04:05"), entry.text)
		if w := m.width - 6; w > 0 && len(line) > w {
			line = line[:w]
		}
		switch entry.kind {
		case entryError:
			line = errorStyle.Render(line)
		case entrySent:
			line = sentStyle.Render(line)
		case entryReply:
			line = replyStyle.Render(line)
		case entryTelemetry:
			line = headerStyle.Render(line)
		}
		logView.WriteString(line)
	}
	s.WriteString(boxStyle.Width(max(m.width-2, 20)).Render(logView.String()))
	s.WriteString("\n")

	s.WriteString(m.input.View())
	s.WriteString("\n")
	s.WriteString(headerStyle.Render("enter: send  exit/esc/ctrl+c: quit"))
	return s.String()
}
