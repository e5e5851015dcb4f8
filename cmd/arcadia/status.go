// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Arcadia Planner Contributors

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/arcadia-planner/arcadia/internal/config"
)

// EndpointStatus holds the probe result for one listener.
type EndpointStatus struct {
	Endpoint string `json:"endpoint"`
	Addr     string `json:"addr"`
	Up       bool   `json:"up"`
	Error    string `json:"error,omitempty"`
}

// statusConfig holds configuration for the status command.
type statusConfig struct {
	jsonOutput bool
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	cfg := &statusConfig{}
	defaults := config.Default()

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show status of a running auth service",
		Long:  `Probe the API and observability listeners of a running auth service.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loaded, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runStatus(cmd, loaded, cfg)
		},
	}

	cmd.Flags().String("server.addr", defaults.Server.Addr, "API listen address")
	cmd.Flags().String("observability.addr", defaults.Observability.Addr, "metrics/health listen address")
	cmd.Flags().BoolVar(&cfg.jsonOutput, "json", false, "output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, loaded config.Config, cfg *statusConfig) error {
	statuses := []EndpointStatus{
		probeEndpoint("api", loaded.Server.Addr, "/health"),
	}
	if loaded.Observability.Addr != "" {
		statuses = append(statuses,
			probeEndpoint("observability", loaded.Observability.Addr, "/healthz/readiness"))
	}

	var output string
	if cfg.jsonOutput {
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		output = string(data)
	} else {
		output = formatStatusTable(statuses)
	}

	cmd.Println(output)
	return nil
}

// probeEndpoint issues a GET against one listener and classifies the result.
func probeEndpoint(name, addr, path string) EndpointStatus {
	status := EndpointStatus{Endpoint: name, Addr: addr}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + path)
	if err != nil {
		status.Error = fmt.Sprintf("failed to connect: %v", err)
		return status
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		status.Error = fmt.Sprintf("unexpected status: %s", resp.Status)
		return status
	}

	status.Up = true
	return status
}

// formatStatusTable formats the probe results as a human-readable table.
func formatStatusTable(statuses []EndpointStatus) string {
	var buf []byte
	w := tabwriter.NewWriter((*byteWriter)(&buf), 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "ENDPOINT\tADDR\tSTATUS")
	_, _ = fmt.Fprintln(w, "--------\t----\t------")

	for _, status := range statuses {
		if status.Up {
			_, _ = fmt.Fprintf(w, "%s\t%s\tup\n", status.Endpoint, status.Addr)
		} else {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", status.Endpoint, status.Addr, status.Error)
		}
	}

	_ = w.Flush()
	return string(buf)
}

// byteWriter is a simple writer that appends to a byte slice.
type byteWriter []byte

func (w *byteWriter) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}
