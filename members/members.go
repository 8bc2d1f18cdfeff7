/* SPDX-License-Identifier: MPL-2.0
 * Copyright 2025 Tejus Pratap <tejzpr@gmail.com>
 *
 * See CONTRIBUTORS.md for full contributor list.
 */

// Package members signs up a caller as a member during a call.
package members

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strings"

	"github.com/tejzpr/livewire-go/livewiresdk"
)

// MinPasswordLength is the shortest password accepted by Validate.
const MinPasswordLength = 8

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phonePattern = regexp.MustCompile(`^[+]?[(]?[0-9]{3}[)]?[-\s.]?[0-9]{3}[-\s.]?[0-9]{4,6}$`)
)

// Member is the sign-up form submitted for a caller.
type Member struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Phone           string `json:"phone,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	JobTitle        string `json:"job_title,omitempty"`
	CompanyName     string `json:"company_name,omitempty"`
	// CallID ties the new member to the call it was created on. When empty
	// the backend falls back to the call recorded in the session.
	CallID string `json:"call_id,omitempty"`
}

// Created is the backend's acknowledgement of a new member.
type Created struct {
	MemberID string `json:"member_id"`
}

// ValidationError lists the fields that failed validation, keyed by their
// JSON names.
type ValidationError struct {
	Fields map[string]string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "invalid member: " + strings.Join(parts, "; ")
}

// Validate checks m the way the sign-up form does. Only the first failing
// rule of each field is reported.
func Validate(m *Member) error {
	if m == nil {
		return &ValidationError{Fields: map[string]string{"member": "Member is required"}}
	}

	fields := make(map[string]string)

	if strings.TrimSpace(m.FirstName) == "" {
		fields["first_name"] = "First name is required"
	}
	if strings.TrimSpace(m.LastName) == "" {
		fields["last_name"] = "Last name is required"
	}

	switch {
	case strings.TrimSpace(m.Email) == "":
		fields["email"] = "Email is required"
	case !emailPattern.MatchString(m.Email):
		fields["email"] = "Please enter a valid email address"
	}

	switch {
	case strings.TrimSpace(m.Password) == "":
		fields["password"] = "Password is required"
	case len(m.Password) < MinPasswordLength:
		fields["password"] = fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)
	}

	if m.ConfirmPassword != m.Password {
		fields["confirm_password"] = "Passwords do not match"
	}

	if strings.TrimSpace(m.Phone) != "" && !phonePattern.MatchString(m.Phone) {
		fields["phone"] = "Please enter a valid phone number"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Config holds the configuration for the Members plugin
type Config struct {
	Path string
}

// DefaultConfig returns the default configuration for the Members plugin
func DefaultConfig() *Config {
	return &Config{
		Path: "api/create_member",
	}
}

// Client is the members API client
type Client struct {
	livewireClient *livewiresdk.Client
	config         *Config
}

// New creates a new Members plugin
func New(livewireClient *livewiresdk.Client, config *Config) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	return &Client{
		livewireClient: livewireClient,
		config:         config,
	}
}

// Create validates m and submits it. Invalid input never reaches the
// backend.
func (c *Client) Create(ctx context.Context, m *Member) (*Created, error) {
	if err := Validate(m); err != nil {
		return nil, err
	}

	var created Created
	if err := c.livewireClient.DoEnvelope(ctx, http.MethodPost, c.config.Path, m, nil, &created); err != nil {
		return nil, err
	}
	return &created, nil
}
