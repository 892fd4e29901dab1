package commands

import (
	"os"

	"git.home.luguber.info/inful/wspkg/internal/config"
	"git.home.luguber.info/inful/wspkg/internal/foundation/errors"
	"git.home.luguber.info/inful/wspkg/internal/messages"
	"git.home.luguber.info/inful/wspkg/internal/workspace"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Dir         string `arg:"" optional:"" type:"path" help:"Workspace root (default: the working directory)"`
	WriteConfig bool   `name:"write-config" help:"Also write an example configuration file to --config"`
	Force       bool   `help:"Overwrite an existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	dir := i.Dir
	if dir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return errors.RuntimeError("failed to determine working directory").WithCause(err).Build()
		}
		dir = cwd
	}
	printer := messages.New(g.out())

	ws, err := workspace.Init(dir)
	if err != nil {
		return errors.FileSystemError("failed to initialize workspace").WithCause(err).WithContext("path", dir).Build()
	}
	printer.Note("Initialized workspace in %s", ws)

	if !i.WriteConfig {
		return nil
	}
	cfgPath := root.Config
	if cfgPath == "" {
		cfgPath = config.DefaultPath()
	}
	if err := config.Init(cfgPath, i.Force); err != nil {
		return err
	}
	printer.Note("Wrote configuration to %s", cfgPath)
	return nil
}
