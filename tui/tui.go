/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package tui renders the agent dashboard in a terminal. The model reacts
// to coordinator events and turns key presses into coordinator operations.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/tejzpr/livewire-go/dashboard"
)

// Controller is the part of the coordinator the dashboard drives
type Controller interface {
	GoOnline(ctx context.Context, host, token string) error
	GoOffline(ctx context.Context) error
	AcceptCall(ctx context.Context) error
	RejectCall(ctx context.Context) error
	HangupCall(ctx context.Context) error
	CleanupBeforeUnload() <-chan struct{}
	Snapshot() dashboard.Snapshot
}

// Config holds the configuration for the terminal dashboard
type Config struct {
	// RelayHost is passed to GoOnline.
	RelayHost string
	// Token is an operator-supplied session token. Empty means fetch one.
	Token string
	// OperationTimeout bounds each coordinator operation.
	OperationTimeout time.Duration
	// QuitTimeout is how long quitting waits for cleanup.
	QuitTimeout time.Duration
}

// DefaultConfig returns the default configuration for the terminal dashboard
func DefaultConfig() *Config {
	return &Config{
		OperationTimeout: 30 * time.Second,
		QuitTimeout:      2 * time.Second,
	}
}

type (
	statusMsg            dashboard.StatusChange
	incomingMsg          dashboard.IncomingCall
	incomingDismissedMsg struct{}
	callInfoMsg          dashboard.CallInfoUpdate
	callInfoClearedMsg   struct{}
	subscriberMsg        dashboard.Subscriber
	alertMsg             string
	cleanupDoneMsg       struct{}
)

// opDoneMsg reports the result of a coordinator operation.
type opDoneMsg struct {
	op  string
	err error
}

// Bridge forwards coordinator events to send, which is normally a
// tea.Program's Send.
func Bridge(emitter *dashboard.EventEmitter, send func(tea.Msg)) {
	emitter.On(dashboard.EventStatus, func(data interface{}) {
		if change, ok := data.(dashboard.StatusChange); ok {
			send(statusMsg(change))
		}
	})
	emitter.On(dashboard.EventIncomingCall, func(data interface{}) {
		if call, ok := data.(dashboard.IncomingCall); ok {
			send(incomingMsg(call))
		}
	})
	emitter.On(dashboard.EventIncomingDismissed, func(interface{}) {
		send(incomingDismissedMsg{})
	})
	emitter.On(dashboard.EventCallInfo, func(data interface{}) {
		if update, ok := data.(dashboard.CallInfoUpdate); ok {
			send(callInfoMsg(update))
		}
	})
	emitter.On(dashboard.EventCallInfoCleared, func(interface{}) {
		send(callInfoClearedMsg{})
	})
	emitter.On(dashboard.EventSubscriber, func(data interface{}) {
		if sub, ok := data.(dashboard.Subscriber); ok {
			send(subscriberMsg(sub))
		}
	})
	emitter.On(dashboard.EventAlert, func(data interface{}) {
		if text, ok := data.(string); ok {
			send(alertMsg(text))
		}
	})
}

// Model is the Bubble Tea model of the dashboard
type Model struct {
	ctrl   Controller
	config *Config

	status       dashboard.Status
	presentation dashboard.Presentation

	incoming     *dashboard.IncomingCall
	incomingInfo string
	callInfo     string
	showCallInfo bool

	subscriber     dashboard.Subscriber
	showSubscriber bool

	alert    string
	quitting bool

	spinner spinner.Model
	help    help.Model
	width   int
}

// New creates a dashboard model. The dashboard starts offline.
func New(ctrl Controller, config *Config) Model {
	if config == nil {
		config = DefaultConfig()
	}

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(colorConnecting)

	return Model{
		ctrl:         ctrl,
		config:       config,
		status:       dashboard.StatusOffline,
		presentation: dashboard.Present(dashboard.StatusOffline),
		subscriber:   dashboard.DefaultSubscriber(),
		spinner:      sp,
		help:         help.New(),
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case statusMsg:
		m.status = msg.Status
		m.presentation = msg.Presentation
		return m, nil

	case incomingMsg:
		call := dashboard.IncomingCall(msg)
		m.incoming = &call
		m.alert = ""
		return m, nil

	case incomingDismissedMsg:
		m.incoming = nil
		return m, nil

	case callInfoMsg:
		m.incomingInfo = msg.Incoming
		m.callInfo = msg.Dashboard
		m.showCallInfo = msg.Visible
		return m, nil

	case callInfoClearedMsg:
		m.incomingInfo = ""
		m.callInfo = ""
		m.showCallInfo = false
		return m, nil

	case subscriberMsg:
		m.subscriber = dashboard.Subscriber(msg)
		return m, nil

	case alertMsg:
		m.alert = string(msg)
		return m, nil

	case opDoneMsg:
		if msg.err != nil {
			m.alert = fmt.Sprintf("%s failed: %v", msg.op, msg.err)
		}
		return m, nil

	case cleanupDoneMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.quitting {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, m.cleanup()
	case key.Matches(msg, keys.Online):
		m.alert = ""
		host, token := m.config.RelayHost, m.config.Token
		return m, m.run("Go online", func(ctx context.Context) error {
			return m.ctrl.GoOnline(ctx, host, token)
		})
	case key.Matches(msg, keys.Offline):
		return m, m.run("Go offline", m.ctrl.GoOffline)
	case key.Matches(msg, keys.Accept):
		return m, m.run("Accept", m.ctrl.AcceptCall)
	case key.Matches(msg, keys.Reject):
		return m, m.run("Reject", m.ctrl.RejectCall)
	case key.Matches(msg, keys.Hangup):
		return m, m.run("Hang up", m.ctrl.HangupCall)
	case key.Matches(msg, keys.Subscriber):
		m.showSubscriber = !m.showSubscriber
	}
	return m, nil
}

// run performs op off the update loop and reports back with opDoneMsg.
func (m Model) run(name string, op func(ctx context.Context) error) tea.Cmd {
	timeout := m.config.OperationTimeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return opDoneMsg{op: name, err: op(ctx)}
	}
}

// cleanup tears the session down and quits once it finishes or the quit
// timeout passes, whichever is first.
func (m Model) cleanup() tea.Cmd {
	done := m.ctrl.CleanupBeforeUnload()
	timeout := m.config.QuitTimeout
	return func() tea.Msg {
		select {
		case <-done:
		case <-time.After(timeout):
		}
		return cleanupDoneMsg{}
	}
}

// View implements tea.Model
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("LiveWire Agent Dashboard"))
	b.WriteString("\n\n")

	dot := lipgloss.NewStyle().Foreground(indicatorColor(m.presentation.Indicator)).Render("●")
	b.WriteString(fmt.Sprintf("%s %s", dot, labelStyle.Render(m.presentation.Label)))
	if m.status == dashboard.StatusConnecting {
		b.WriteString(" " + m.spinner.View())
	}
	b.WriteString("\n")
	if m.presentation.CallStatus != "" {
		b.WriteString(dimStyle.Render(m.presentation.CallStatus))
		b.WriteString("\n")
	}

	if m.incoming != nil {
		lines := []string{
			labelStyle.Render("Incoming call"),
			"From: " + m.incoming.CallerName,
		}
		if m.incomingInfo != "" {
			lines = append(lines, m.incomingInfo)
		}
		lines = append(lines, dimStyle.Render("[a] accept  [r] reject"))
		b.WriteString("\n")
		b.WriteString(incomingStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	if m.showCallInfo && m.callInfo != "" {
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(labelStyle.Render("Call info") + "\n" + m.callInfo))
		b.WriteString("\n")
	}

	if m.showSubscriber {
		s := m.subscriber
		lines := []string{
			labelStyle.Render("My info"),
			fmt.Sprintf("Name: %s %s", s.FirstName, s.LastName),
			"Email: " + s.Email,
		}
		if s.DisplayName != "" {
			lines = append(lines, "Display name: "+s.DisplayName)
		}
		if s.JobTitle != "" {
			lines = append(lines, "Job title: "+s.JobTitle)
		}
		if s.CompanyName != "" {
			lines = append(lines, "Company: "+s.CompanyName)
		}
		if s.TimeZone != "" {
			lines = append(lines, "Time zone: "+s.TimeZone)
		}
		if loc := strings.Join(nonEmpty(s.Region, s.Country), ", "); loc != "" {
			lines = append(lines, "Location: "+loc)
		}
		lines = append(lines, dimStyle.Render("ID: "+s.ID))
		b.WriteString("\n")
		b.WriteString(panelStyle.Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}

	if m.alert != "" {
		b.WriteString("\n")
		b.WriteString(alertStyle.Render(m.alert))
		b.WriteString("\n")
	}

	if m.quitting {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("Going offline..."))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(keys))
	b.WriteString("\n")
	return b.String()
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
