package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/muspy/assets/internal/assets"
	"github.com/muspy/assets/internal/logger"
	"github.com/muspy/assets/internal/telemetry"
	"github.com/rs/zerolog"
)

type BuildCmd struct {
	Variant  string    `arg:"" optional:"" help:"variant to build" default:"production" env:"MUSPY_ASSETS_VARIANT"`
	Metafile string    `help:"write the esbuild metafile to this path" default:"" env:"MUSPY_ASSETS_METAFILE"`
	Tracing  bool      `help:"export build metrics and traces over OTLP" default:"false" env:"MUSPY_ASSETS_TRACING"`
	Sass     SassFlags `embed:"" prefix:"sass-"`
}

func (c *BuildCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	log.Info().Str("version", globals.Version).Str("variant", c.Variant).Msg("Starting build")

	if c.Tracing {
		shutdown := initTelemetry(ctx, log, globals.Version)
		defer shutdown()
	}

	desc, err := globals.descriptor(log, c.Variant)
	if err != nil {
		return err
	}

	cfg := globals.assetsConfig(c.Sass.Binary, c.Sass.IncludePaths)
	cfg.MetafilePath = c.Metafile

	pipeline, err := assets.New(desc, cfg)
	if err != nil {
		return fmt.Errorf("failed to create assets pipeline: %w", err)
	}
	defer func() {
		if err := pipeline.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to stop sass compiler")
		}
	}()

	if _, err := pipeline.Build(ctx); err != nil {
		return fmt.Errorf("failed to build assets: %w", err)
	}

	return nil
}

// initTelemetry starts OTLP export and returns a flush function. Failures only disable telemetry.
func initTelemetry(ctx context.Context, log zerolog.Logger, version string) func() {
	log.Info().Msg("Tracing is enabled")

	shutdown, err := telemetry.InitTelemetry(ctx, "muspy-assets", version, 10*time.Second)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		return func() {}
	}

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown telemetry")
		}
	}
}
