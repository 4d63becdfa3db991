// Package commands holds the kong command tree of sorrydb-sync.
package commands

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sorrydb-sync/internal/cli"
)

// Global carries shared dependencies into subcommands.
type Global struct {
	Executor cli.CommandExecutor
	Stdout   io.Writer
}

// NewGlobal wires the real executor.
func NewGlobal() *Global {
	return &Global{Executor: cli.NewCommandExecutor(), Stdout: os.Stdout}
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path (defaults to sorrydb-sync.yaml when present)" type:"path"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Run     RunCmd     `cmd:"" default:"withargs" help:"Run one update: container refresh, commit, tag and push"`
	Daemon  DaemonCmd  `cmd:"" help:"Run updates on a cron schedule and serve /metrics"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
	History HistoryCmd `cmd:"" help:"List recorded runs"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM, which also stops any running child process.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
