// Package main is the entry point for the fabtest CLI.
//
// fabtest validates an NVMe-oF TCP target end to end: it provisions
// the kernel nvmet export on a target host over SSH, verifies the
// resulting configuration, drives fio workloads from an initiator
// host, collects diagnostics, and tears everything down.
//
// Commands: init, run, setup, verify, test, cleanup, logs.
//
// For detailed usage information, run:
//
//	fabtest --help
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fabriclab/fabtest/cmd/fabtest/commands"
	"github.com/fabriclab/fabtest/cmd/fabtest/handlers"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)

	// An interrupt cancels the running phases; log collection and
	// cleanup are detached from this context and still complete.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := commands.Root().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(handlers.ExitCode(err))
	}
}
