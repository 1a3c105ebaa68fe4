package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/muspy/assets/internal/assets"
	"github.com/muspy/assets/internal/logger"
)

type WatchCmd struct {
	Variant string    `arg:"" optional:"" help:"variant to watch" default:"development" env:"MUSPY_ASSETS_VARIANT"`
	Tracing bool      `help:"export build metrics and traces over OTLP" default:"false" env:"MUSPY_ASSETS_TRACING"`
	Sass    SassFlags `embed:"" prefix:"sass-"`
}

func (c *WatchCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if c.Tracing {
		shutdown := initTelemetry(ctx, log, globals.Version)
		defer shutdown()
	}

	desc, err := globals.descriptor(log, c.Variant)
	if err != nil {
		return err
	}

	pipeline, err := assets.New(desc, globals.assetsConfig(c.Sass.Binary, c.Sass.IncludePaths))
	if err != nil {
		return fmt.Errorf("failed to create assets pipeline: %w", err)
	}
	defer pipeline.Close()

	return pipeline.Watch(ctx)
}
