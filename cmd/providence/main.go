package main

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/alecthomas/errors"
	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	"github.com/joho/godotenv"

	"github.com/alecthomas/providence"
	_ "github.com/alecthomas/providence/providers/cron"
	"github.com/alecthomas/providence/providers/logging"
	_ "github.com/alecthomas/providence/providers/pubsub"
	"github.com/alecthomas/providence/providers/sql"
)

var cli struct {
	Version kong.VersionFlag `help:"Print the version and exit."`
	Config  kong.ConfigFlag  `help:"Load configuration from this TOML file." placeholder:"FILE"`
	Logging logging.Config   `embed:"" prefix:"log-"`
	SQL     sql.Config       `embed:"" prefix:"sql-"`

	Graph graphCmd `cmd:"" help:"Print the provider dependency graph in DOT format."`
	Up    upCmd    `cmd:"" help:"Initialize the named providers and report all provider states."`
}

type graphCmd struct{}

func (g *graphCmd) Run() error {
	fmt.Println("digraph providers {")
	for _, p := range providence.Default().Providers() {
		deps := p.Requires()
		if len(deps) == 0 {
			fmt.Printf("  %q;\n", p.Name())
			continue
		}
		for _, dep := range deps {
			fmt.Printf("  %q -> %q;\n", p.Name(), dep)
		}
	}
	fmt.Println("}")
	return nil
}

type upCmd struct {
	Providers []string `arg:"" help:"Provider names to initialize."`
}

func (u *upCmd) Run(ctx context.Context) error {
	registry := providence.Default()
	for _, name := range u.Providers {
		p, ok := registry.Lookup(name)
		if !ok {
			return errors.Errorf("unknown provider %q", name)
		}
		if err := p.Initialize(ctx); err != nil {
			return errors.Errorf("failed to initialize %s: %w", name, err)
		}
	}
	for _, p := range registry.Providers() {
		fmt.Printf("%s: %s\n", p.Name(), p.State())
	}
	return nil
}

func main() {
	_ = godotenv.Load()
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		version = info.Main.Version
	}
	kctx := kong.Parse(&cli,
		kong.Description("Inspect and exercise the process-wide provider registry."),
		kong.Vars{"version": version},
		kong.Configuration(kongtoml.Loader, "providence.toml", "~/.config/providence.toml"),
	)
	logging.Configure(cli.Logging)
	sql.Configure(cli.SQL)
	ctx := context.Background()
	kctx.BindTo(ctx, (*context.Context)(nil))
	err := kctx.Run()
	kctx.FatalIfErrorf(err)
}
