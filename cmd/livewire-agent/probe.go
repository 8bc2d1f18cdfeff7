/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tejzpr/livewire-go/dashboard"
	"github.com/tejzpr/livewire-go/relay"
)

// newProbeCmd connects to the relay without the dashboard and prints every
// invite and call-state event it sees.
func newProbeCmd() *cobra.Command {
	var (
		listen time.Duration
		reject bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Connect to the relay and print incoming call events",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.RelayHost == "" {
				return fmt.Errorf("relay host is required: set RELAY_HOST or pass --relay")
			}
			ctx := cmd.Context()

			raw := a.cfg.Token
			if raw == "" {
				fmt.Println("[1/3] Requesting session token...")
				tok, err := a.client.Tokens().Create(ctx)
				if err != nil {
					return fmt.Errorf("failed to create token: %w", err)
				}
				raw = tok.Raw
				if !tok.ExpiresAt.IsZero() {
					fmt.Printf("  Expires: %s\n", tok.ExpiresAt.Format(time.RFC3339))
				}
			} else {
				fmt.Println("[1/3] Using supplied session token")
			}

			fmt.Printf("[2/3] Connecting to %s...\n", a.cfg.RelayHost)
			client, err := relay.Dial(ctx, a.cfg.RelayHost, raw, a.relayConfig())
			if err != nil {
				return fmt.Errorf("failed to connect to relay: %w", err)
			}
			defer client.Disconnect()
			fmt.Printf("  Identity: %s\n", client.Identity())

			var invites atomic.Int64
			client.OnCallState(func(ev dashboard.CallStateEvent) {
				if ev.ParentCallID != "" {
					fmt.Printf("  [call.state] %s %s (parent %s)\n", ev.CallID, ev.State, ev.ParentCallID)
					return
				}
				fmt.Printf("  [call.state] %s %s\n", ev.CallID, ev.State)
			})

			fmt.Println("[3/3] Going online...")
			err = client.Online(ctx, func(n dashboard.Notification) {
				count := invites.Add(1)
				d := n.Invite.Details()
				fmt.Printf("\n=== INVITE #%d ===\n", count)
				fmt.Printf("  Call: %s\n", d.CallID)
				fmt.Printf("  From: %s\n", dashboard.DisplayName(d))
				if reject {
					rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := n.Invite.Reject(rctx); err != nil {
						fmt.Printf("  REJECT ERROR: %v\n", err)
					} else {
						fmt.Println("  Rejected")
					}
				}
				fmt.Println("==================")
			})
			if err != nil {
				return fmt.Errorf("failed to go online: %w", err)
			}
			fmt.Printf("Online. Listening for %s.\n\n", listen)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-sigCh:
				fmt.Println("\nStopping...")
			case <-client.Done():
				fmt.Println("\nRelay closed the connection.")
			case <-time.After(listen):
				fmt.Printf("\nTimeout. Received %d invite(s).\n", invites.Load())
			}

			octx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Offline(octx); err != nil {
				a.logger.Warn().Err(err).Msg("going offline failed")
			}
			fmt.Println("Disconnected.")
			return nil
		},
	}

	cmd.Flags().DurationVar(&listen, "listen", 2*time.Minute, "How long to listen for events")
	cmd.Flags().BoolVar(&reject, "reject", false, "Reject every invite")
	return cmd
}
