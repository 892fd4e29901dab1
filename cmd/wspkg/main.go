package main

import (
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/wspkg/cmd/wspkg/commands"
	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}

	parser := kong.Parse(cli,
		kong.Name("wspkg"),
		kong.Description("Build and install packages from workspaces."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)

	adapter := errors.NewCLIErrorAdapter(cli.Verbose, global.Logger)
	os.Exit(adapter.Run(func() error {
		return parser.Run(global, cli)
	}))
}
