package commands

import "git.home.luguber.info/inful/sorrydb-sync/internal/cli"

// RunCmd implements the 'run' command.
type RunCmd struct {
	Repo    string `help:"Local data repository (overrides repository.path)" type:"path"`
	Image   string `help:"Container image (overrides container.image)"`
	Backend string `help:"Version control backend: cli or go-git (overrides repository.backend)"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	ctx, stop := signalContext()
	defer stop()

	_, err := g.Executor.ExecuteRun(ctx, cli.RunRequest{
		ConfigPath: root.Config,
		Repo:       r.Repo,
		Image:      r.Image,
		Backend:    r.Backend,
	}).ToTuple()
	return err
}
