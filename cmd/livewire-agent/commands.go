/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tejzpr/livewire-go/members"
)

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Request a subscriber session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()

			tok, err := a.client.Tokens().Create(cmd.Context())
			if err != nil {
				return err
			}
			out := map[string]string{"token": tok.Raw}
			if !tok.ExpiresAt.IsZero() {
				out["expires_at"] = tok.ExpiresAt.Format(time.RFC3339)
			}
			return printJSON(out)
		},
	}
}

func newCallInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "call-info <call-id>",
		Short: "Show the caller details stored for a call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.client.CallInfo().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
}

func newOfflineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "offline <subscriber-id>",
		Short: "Mark a subscriber offline",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.client.Presence().Offline(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "Subscriber %s marked offline\n", args[0])
			return nil
		},
	}
}

func newWidgetConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "widget-config",
		Short: "Fetch the click-to-call widget configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()

			settings, err := a.client.Widget().Config(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(settings)
		},
	}
}

func newSwmlHandlerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "swml-handler",
		Short: "Create or update the call handler for the widget destination",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()

			handler, err := a.client.Widget().EnsureHandler(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(handler)
		},
	}
}

func newCreateMemberCmd() *cobra.Command {
	m := &members.Member{}
	var password string

	cmd := &cobra.Command{
		Use:   "create-member",
		Short: "Register a member from a caller's details",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("MEMBER_PASSWORD")
			}
			m.Password = password
			m.ConfirmPassword = password

			if err := members.Validate(m); err != nil {
				var verr *members.ValidationError
				if errors.As(err, &verr) {
					for field, msg := range verr.Fields {
						fmt.Fprintf(os.Stderr, "  %s: %s\n", field, msg)
					}
				}
				return err
			}

			a, err := setup(false)
			if err != nil {
				return err
			}
			defer a.Close()

			created, err := a.client.Members().Create(cmd.Context(), m)
			if err != nil {
				return err
			}
			return printJSON(created)
		},
	}

	f := cmd.Flags()
	f.StringVar(&m.FirstName, "first-name", "", "First name")
	f.StringVar(&m.LastName, "last-name", "", "Last name")
	f.StringVar(&m.Email, "email", "", "Email address")
	f.StringVar(&password, "password", "", "Password (or MEMBER_PASSWORD)")
	f.StringVar(&m.Phone, "phone", "", "Phone number")
	f.StringVar(&m.DisplayName, "display-name", "", "Display name")
	f.StringVar(&m.JobTitle, "job-title", "", "Job title")
	f.StringVar(&m.CompanyName, "company", "", "Company name")
	f.StringVar(&m.CallID, "call-id", "", "Call the member was created from")
	return cmd
}
