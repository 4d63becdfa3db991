package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"git.home.luguber.info/inful/sorrydb-sync/internal/cli"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of runs to show (0 for all)" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	resp, err := g.Executor.ExecuteHistory(context.Background(), cli.HistoryRequest{
		ConfigPath: root.Config,
		Limit:      h.Limit,
	}).ToTuple()
	if err != nil {
		return err
	}

	if len(resp.Runs) == 0 {
		fmt.Fprintf(g.Stdout, "No runs recorded in %s\n", resp.Path)
		return nil
	}

	tw := tabwriter.NewWriter(g.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tOUTCOME\tTAG\tDURATION\tRUN ID\tERROR")
	for _, r := range resp.Runs {
		tag := r.Tag
		if tag == "" {
			tag = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.StartedAt.Format(time.DateTime), r.Outcome, tag,
			r.Duration().Round(time.Second), r.ID, r.Error)
	}
	return tw.Flush()
}
