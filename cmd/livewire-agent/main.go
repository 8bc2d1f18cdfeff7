/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Command livewire-agent is the LiveWire agent dashboard for the terminal.
// Without a subcommand it starts the interactive dashboard; subcommands call
// single backend endpoints.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	livewire "github.com/tejzpr/livewire-go"
	"github.com/tejzpr/livewire-go/config"
	"github.com/tejzpr/livewire-go/dashboard"
	"github.com/tejzpr/livewire-go/livewiresdk"
	"github.com/tejzpr/livewire-go/media"
	"github.com/tejzpr/livewire-go/relay"
	"github.com/tejzpr/livewire-go/tui"
)

var (
	// version is set via -ldflags at build time.
	version = "dev"

	relayHost string
	token     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "livewire-agent",
		Short:   "LiveWire agent dashboard",
		Version: version,
		Long: `Terminal dashboard for LiveWire subscribers: go online, take inbound
calls and see caller details.

Running without a subcommand launches the interactive dashboard.
Configuration is read from the environment and from ENV_FILE or .env.`,
		SilenceUsage: true,
		RunE:         runDashboard,
	}

	rootCmd.PersistentFlags().StringVar(&relayHost, "relay", "", "Relay host (overrides RELAY_HOST)")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "Session token to connect with (overrides SESSION_TOKEN)")

	rootCmd.AddCommand(
		newTokenCmd(),
		newCallInfoCmd(),
		newOfflineCmd(),
		newWidgetConfigCmd(),
		newSwmlHandlerCmd(),
		newCreateMemberCmd(),
		newProbeCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app is what every command needs: configuration, a logger and the
// backend client.
type app struct {
	cfg       *config.Agent
	logger    *zerolog.Logger
	// sdkLogger is handed to the library packages.
	sdkLogger livewiresdk.Logger
	client    *livewire.LiveWireClient
	closer    io.Closer
}

// infoLogger adapts zerolog to the Printf logger the library packages take.
// (*zerolog.Logger).Printf logs at debug, which the default level drops.
type infoLogger struct {
	logger *zerolog.Logger
}

func (l infoLogger) Printf(format string, v ...interface{}) {
	l.logger.Info().Msgf(format, v...)
}

// setup loads configuration and builds the backend client. logToFile keeps
// the terminal free for the dashboard.
func setup(logToFile bool) (*app, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}
	cfg, err := config.New[config.Agent]()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if relayHost != "" {
		cfg.RelayHost = relayHost
	}
	if token != "" {
		cfg.Token = token
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	var closer io.Closer
	if logToFile {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out, closer = f, f
	}
	logger := zerolog.New(out).Level(level).With().Timestamp().Str("component", "livewire-agent").Logger()
	sdkLogger := infoLogger{logger: &logger}

	headers := map[string]string{}
	if cfg.SessionCookie != "" {
		headers["Cookie"] = cfg.SessionCookie
	}
	client, err := livewire.NewClient(&livewiresdk.Config{
		BaseURL:        cfg.BaseURL,
		Timeout:        cfg.Timeout,
		DefaultHeaders: headers,
		MaxRetries:     2,
		RetryBaseDelay: 500 * time.Millisecond,
		Logger:         sdkLogger,
	})
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, err
	}

	return &app{cfg: cfg, logger: &logger, sdkLogger: sdkLogger, client: client, closer: closer}, nil
}

func (a *app) Close() {
	if a.closer != nil {
		a.closer.Close()
	}
}

func (a *app) relayConfig() *relay.Config {
	rc := relay.DefaultConfig()
	rc.Logger = a.sdkLogger
	rc.Media = &media.Config{
		ICEServers: media.ICEServersFromURLs(a.cfg.ICEServers),
		Logger:     a.sdkLogger,
	}
	return rc
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a, err := setup(true)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.cfg.RelayHost == "" {
		return fmt.Errorf("relay host is required: set RELAY_HOST or pass --relay")
	}

	dc := dashboard.DefaultConfig()
	dc.OnlineAttempts = a.cfg.OnlineAttempts
	dc.OnlineRetryDelay = a.cfg.OnlineRetryDelay
	dc.Logger = a.sdkLogger

	coordinator, err := a.client.Dashboard(a.relayConfig(), dc)
	if err != nil {
		return err
	}

	tc := tui.DefaultConfig()
	tc.RelayHost = a.cfg.RelayHost
	tc.Token = a.cfg.Token

	p := tea.NewProgram(tui.New(coordinator, tc), tea.WithAltScreen())
	tui.Bridge(coordinator.Emitter, p.Send)

	a.logger.Info().Str("relay", a.cfg.RelayHost).Str("backend", a.cfg.BaseURL).Msg("starting dashboard")
	_, err = p.Run()
	return err
}
