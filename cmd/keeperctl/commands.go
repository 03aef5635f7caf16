// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"

	"github.com/solbet-labs/keeper/lib/keyfile"
	"github.com/solbet-labs/keeper/lib/reconcile"
)

// statusResult mirrors the daemon's status response.
type statusResult struct {
	Version   string                 `json:"version"`
	StartedAt time.Time              `json:"started_at"`
	LastPass  *reconcile.PassSummary `json:"last_pass,omitempty"`
	SkipCache int                    `json:"skip_cache_entries"`
}

type skipListResult struct {
	Entries []reconcile.SkipEntry `json:"entries"`
	Total   int                   `json:"total"`
}

func writeJSON(stdout io.Writer, value any) error {
	encoder := json.NewEncoder(stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func statusCommand(ctx context.Context, client caller, args []string, stdout io.Writer) error {
	var asJSON bool
	flags := pflag.NewFlagSet("status", pflag.ContinueOnError)
	flags.BoolVar(&asJSON, "json", false, "print the raw status as JSON")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var status statusResult
	if err := client.Call(ctx, "status", nil, &status); err != nil {
		return err
	}
	if asJSON {
		return writeJSON(stdout, status)
	}

	writer := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "version\t%s\n", status.Version)
	fmt.Fprintf(writer, "started\t%s\n", status.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "skip cache\t%d entries\n", status.SkipCache)
	if status.LastPass == nil {
		fmt.Fprintf(writer, "last pass\tnone yet\n")
	} else {
		writePassSummary(writer, status.LastPass)
	}
	return writer.Flush()
}

func writePassSummary(writer io.Writer, summary *reconcile.PassSummary) {
	fmt.Fprintf(writer, "last pass\t%s (%s)\n", summary.Started.Format(time.RFC3339), summary.Duration.Round(time.Millisecond))
	if summary.Error != "" {
		fmt.Fprintf(writer, "  error\t%s\n", summary.Error)
		return
	}
	fmt.Fprintf(writer, "  slot\t%d\n", summary.Slot)
	fmt.Fprintf(writer, "  accounts\t%d (skipped %d, malformed %d)\n", summary.Accounts, summary.Skipped, summary.Malformed)
	fmt.Fprintf(writer, "  succeeded\t%s\n", formatCounts(summary.Succeeded))
	fmt.Fprintf(writer, "  failed\t%s\n", formatCounts(summary.Failed))
	if len(summary.FailedKinds) > 0 {
		fmt.Fprintf(writer, "  failure kinds\t%s\n", formatCounts(summary.FailedKinds))
	}
	if summary.DryRun {
		fmt.Fprintf(writer, "  mode\tdry run\n")
	}
}

// formatCounts renders counts as "a=1 b=2" in key order, or "-".
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(counts))
	for _, key := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%s=%d", key, counts[key]))
	}
	return strings.Join(parts, " ")
}

func runPassCommand(ctx context.Context, client caller, args []string, stdout io.Writer) error {
	var (
		asJSON  bool
		timeout time.Duration
	)
	flags := pflag.NewFlagSet("run-pass", pflag.ContinueOnError)
	flags.BoolVar(&asJSON, "json", false, "print the pass summary as JSON")
	flags.DurationVar(&timeout, "timeout", 10*time.Minute, "how long to wait for the pass")
	if err := flags.Parse(args); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var summary reconcile.PassSummary
	if err := client.Call(ctx, "run-pass", nil, &summary); err != nil {
		return err
	}
	if asJSON {
		return writeJSON(stdout, summary)
	}
	writer := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	writePassSummary(writer, &summary)
	return writer.Flush()
}

func skipListCommand(ctx context.Context, client caller, args []string, stdout io.Writer) error {
	var (
		asJSON bool
		limit  int
	)
	flags := pflag.NewFlagSet("skip list", pflag.ContinueOnError)
	flags.BoolVar(&asJSON, "json", false, "print entries as JSON")
	flags.IntVar(&limit, "limit", 0, "maximum entries to print (0 for all)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	var fields map[string]any
	if limit != 0 {
		fields = map[string]any{"limit": limit}
	}
	var listing skipListResult
	if err := client.Call(ctx, "skip-list", fields, &listing); err != nil {
		return err
	}
	if asJSON {
		return writeJSON(stdout, listing)
	}

	writer := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(writer, "GAME\tENTRY\n")
	for _, entry := range listing.Entries {
		kind := "skipped"
		if entry.Action != "" {
			kind = "handled " + entry.Action
		}
		fmt.Fprintf(writer, "%s\t%s\n", entry.Address, kind)
	}
	if len(listing.Entries) < listing.Total {
		fmt.Fprintf(writer, "(%d more)\t\n", listing.Total-len(listing.Entries))
	}
	return writer.Flush()
}

func skipClearCommand(ctx context.Context, client caller, args []string, stdout io.Writer) error {
	flags := pflag.NewFlagSet("skip clear", pflag.ContinueOnError)
	if err := flags.Parse(args); err != nil {
		return err
	}
	var result struct {
		Cleared int `json:"cleared"`
	}
	if err := client.Call(ctx, "skip-clear", nil, &result); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "cleared %d entries\n", result.Cleared)
	return nil
}

// sealKeyCommand encrypts a keypair from stdin to age recipients. The
// keypair is validated first so a typo is caught before sealing.
func sealKeyCommand(args []string, stdin io.Reader, stdout io.Writer) error {
	var recipients []string
	flags := pflag.NewFlagSet("seal-key", pflag.ContinueOnError)
	flags.StringArrayVar(&recipients, "recipient", nil, "age recipient (age1...); repeatable")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if len(recipients) == 0 {
		return errors.New("seal-key requires at least one --recipient")
	}

	plaintext, err := io.ReadAll(stdin)
	if err != nil {
		return fmt.Errorf("reading keypair: %w", err)
	}
	defer clear(plaintext)

	keypair, err := keyfile.Parse(plaintext)
	if err != nil {
		return err
	}
	if err := keypair.Close(); err != nil {
		return err
	}

	sealed, err := keyfile.Seal(plaintext, recipients)
	if err != nil {
		return err
	}
	_, err = stdout.Write(sealed)
	return err
}
