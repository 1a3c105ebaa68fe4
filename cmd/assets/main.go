package main

import (
	"context"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/muspy/assets/cmd/assets/internal/commands"
)

var (
	version = "dev"
	cli     struct {
		Debug     bool   `help:"Enable debug mode."`
		Root      string `help:"project root the descriptor paths are relative to" default:"." env:"MUSPY_ASSETS_ROOT" type:"existingdir"`
		Overrides string `help:"YAML file overriding descriptor fields" default:"" env:"MUSPY_ASSETS_OVERRIDES"`
		Version   kong.VersionFlag

		Resolve  commands.ResolveCmd  `cmd:"" help:"Print the resolved build descriptor"`
		Variants commands.VariantsCmd `cmd:"" help:"List the declared build variants"`
		Diff     commands.DiffCmd     `cmd:"" help:"Show how two variants differ"`
		Build    commands.BuildCmd    `cmd:"" help:"Build assets once"`
		Watch    commands.WatchCmd    `cmd:"" help:"Rebuild assets when sources change"`
		Serve    commands.ServeCmd    `cmd:"" help:"Serve built assets for local development"`
	}
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx := context.Background()
	cmd := kong.Parse(&cli,
		kong.Vars{
			"version": version,
		},
		kong.BindTo(ctx, (*context.Context)(nil)))
	err := cmd.Run(&commands.Globals{
		Debug:     cli.Debug,
		Version:   version,
		Root:      cli.Root,
		Overrides: cli.Overrides,
	})
	cmd.FatalIfErrorf(err)
}
