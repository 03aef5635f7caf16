// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Keeperctl talks to a running solbet-keeper over its control socket.
//
// Usage:
//
//	keeperctl [--socket PATH] status [--json]
//	keeperctl [--socket PATH] run-pass [--json] [--timeout 5m]
//	keeperctl [--socket PATH] skip list [--limit N] [--json]
//	keeperctl [--socket PATH] skip clear
//	keeperctl seal-key --recipient age1... < keeper.json > keeper.json.age
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/solbet-labs/keeper/lib/process"
	"github.com/solbet-labs/keeper/lib/service"
	"github.com/solbet-labs/keeper/lib/version"
)

const (
	defaultSocket = "/run/solbet/keeper.sock"
	socketEnv     = "SOLBET_KEEPER_SOCKET"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdin, os.Stdout)
	stop()
	if err != nil {
		process.Fatal(err)
	}
}

// caller is the part of *service.Client the commands use.
type caller interface {
	Call(ctx context.Context, action string, fields map[string]any, result any) error
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	socketPath := os.Getenv(socketEnv)
	if socketPath == "" {
		socketPath = defaultSocket
	}
	var showVersion bool

	flags := pflag.NewFlagSet("keeperctl", pflag.ContinueOnError)
	flags.StringVar(&socketPath, "socket", socketPath, "control socket path (env "+socketEnv+")")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	flags.SetInterspersed(false)
	if err := flags.Parse(args); err != nil {
		return err
	}
	if showVersion {
		fmt.Fprintf(stdout, "keeperctl %s\n", version.Info())
		return nil
	}

	rest := flags.Args()
	if len(rest) == 0 {
		return errors.New("a command is required: status, run-pass, skip, or seal-key")
	}
	client := service.NewClient(socketPath)

	command, commandArgs := rest[0], rest[1:]
	switch command {
	case "status":
		return statusCommand(ctx, client, commandArgs, stdout)
	case "run-pass":
		return runPassCommand(ctx, client, commandArgs, stdout)
	case "skip":
		if len(commandArgs) == 0 {
			return errors.New("skip requires a subcommand: list or clear")
		}
		switch commandArgs[0] {
		case "list":
			return skipListCommand(ctx, client, commandArgs[1:], stdout)
		case "clear":
			return skipClearCommand(ctx, client, commandArgs[1:], stdout)
		}
		return fmt.Errorf("unknown skip subcommand %q", commandArgs[0])
	case "seal-key":
		return sealKeyCommand(commandArgs, stdin, stdout)
	}
	return fmt.Errorf("unknown command %q", command)
}
