package main

import (
	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sorrydb-sync/cmd/sorrydb-sync/commands"
	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/version"
)

func main() {
	var cli commands.CLI
	ctx := kong.Parse(&cli,
		kong.Name("sorrydb-sync"),
		kong.Description("Refresh the SorryDB data repository and publish the result."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
	)

	err := ctx.Run(commands.NewGlobal(), &cli)
	ferrors.NewCLIErrorAdapter(cli.Verbose, nil).HandleError(err)
}
