package commands

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/sorrydb-sync/internal/cli"
	"git.home.luguber.info/inful/sorrydb-sync/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := root.Config
	if path == "" {
		path = config.DefaultFile
	}

	fmt.Fprintf(g.Stdout, "Writing configuration to %s\n", path)
	if _, err := g.Executor.ExecuteInit(context.Background(), cli.InitRequest{ConfigPath: path, Force: i.Force}).ToTuple(); err != nil {
		fmt.Fprintln(g.Stdout, "Initialization failed")
		return err
	}
	fmt.Fprintln(g.Stdout, "initialized successfully")
	return nil
}
