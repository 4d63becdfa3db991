package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/sorrydb-sync/internal/cli"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Schedule string `help:"Cron schedule (overrides daemon.schedule)"`
	RunNow   bool   `name:"run-now" help:"Run once immediately after starting"`
}

func (d *DaemonCmd) Run(g *Global, root *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	resp, err := g.Executor.ExecuteDaemon(ctx, cli.DaemonRequest{
		ConfigPath: root.Config,
		Schedule:   d.Schedule,
		RunNow:     d.RunNow,
	}).ToTuple()
	if err != nil {
		return err
	}
	slog.Info("Daemon exited", slog.Int64("runs", resp.Runs), slog.Time("started", resp.StartTime))
	return nil
}
