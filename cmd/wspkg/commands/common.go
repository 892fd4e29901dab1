package commands

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/wspkg/internal/config"
	"git.home.luguber.info/inful/wspkg/internal/observability"
)

// Global carries state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	// Out receives user-facing output. Nil means stdout.
	Out io.Writer
	// Level is the live log level; the configured log_level may lower it
	// once the configuration is loaded.
	Level *slog.LevelVar
}

func (g *Global) out() io.Writer {
	if g == nil || g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

// context returns a root context tagged with a fresh run id and command name.
func (g *Global) context(command string) context.Context {
	ctx := observability.WithRunID(context.Background(), observability.NewRunID())
	return observability.WithCommand(ctx, command)
}

// CLI definition & global flags.
type CLI struct {
	Config   string           `short:"c" help:"Configuration file path (default: $WSPKG_CONFIG or the user config directory)" type:"path"`
	Verbose  bool             `short:"v" help:"Enable verbose logging"`
	Cfg      []string         `name:"cfg" help:"Configuration flag passed to every unit (repeatable)" sep:"none"`
	Sysroot  string           `help:"Compiler sysroot"`
	PathHack bool             `name:"path-hack" help:"Install packages built outside every workspace into the current directory"`
	OptLevel int              `name:"opt-level" help:"Optimization level (0-3); -1 keeps the configured value" default:"-1"`
	Target   string           `help:"Target triple passed to the compiler"`
	Version  kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build     BuildCmd     `cmd:"" help:"Build a package"`
	Install   InstallCmd   `cmd:"" help:"Build and install a package"`
	Test      TestCmd      `cmd:"" help:"Build and run the tests of a package"`
	Clean     CleanCmd     `cmd:"" help:"Remove the build directory of a package"`
	List      ListCmd      `cmd:"" help:"List installed packages"`
	Info      InfoCmd      `cmd:"" help:"Show information about a package"`
	Init      InitCmd      `cmd:"" help:"Create a workspace layout"`
	Uninstall UninstallCmd `cmd:"" help:"Remove an installed package"`
	Watch     WatchCmd     `cmd:"" help:"Rebuild a package whenever its sources change"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply(g *Global) error {
	if g.Level == nil {
		g.Level = new(slog.LevelVar)
	}
	g.Level.Set(startupLevel(c.Verbose))
	g.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: g.Level}))
	slog.SetDefault(g.Logger)
	return nil
}

// startupLevel is used until the configuration file has been read.
func startupLevel(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return config.LogLevel(os.Getenv(config.EnvLogLevel)).SlogLevel()
}

// applyOverrides lets command line flags win over file and environment values.
func (c *CLI) applyOverrides(cfg *config.Config) {
	cfg.Cfgs = append(cfg.Cfgs, c.Cfg...)
	if c.Sysroot != "" {
		cfg.Sysroot = c.Sysroot
	}
	if c.PathHack {
		cfg.UsePathHack = true
	}
	if c.OptLevel >= 0 {
		cfg.Compiler.OptLevel = c.OptLevel
	}
	if c.Target != "" {
		cfg.Compiler.Target = c.Target
	}
}

// applyLogLevel adopts the configured level unless --verbose was given.
func (g *Global) applyLogLevel(cfg *config.Config, verbose bool) {
	if g == nil || g.Level == nil || verbose || cfg.LogLevel == "" {
		return
	}
	g.Level.Set(cfg.LogLevel.SlogLevel())
}
