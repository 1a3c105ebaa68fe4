package commands

import (
	"fmt"
	"net/http"
	"time"

	"github.com/muspy/assets/internal/assets"
	"github.com/muspy/assets/internal/buildconfig"
	"github.com/rs/zerolog"
)

type Globals struct {
	Debug     bool
	Version   string
	Root      string
	Overrides string
}

// descriptor resolves a variant, applies the overrides file and validates the result.
func (g *Globals) descriptor(log zerolog.Logger, variant string) (buildconfig.BuildDescriptor, error) {
	desc, err := buildconfig.ResolveVariant(variant)
	if err != nil {
		return desc, err
	}

	if desc.Legacy {
		log.Warn().
			Str("variant", variant).
			Msg("Legacy build variant selected, its output paths and manifest may not be read by the serving layer")
	}

	overrides, err := buildconfig.LoadOverrides(g.Overrides)
	if err != nil {
		return desc, fmt.Errorf("failed to load overrides: %w", err)
	}
	desc = desc.Apply(overrides)

	if err := desc.Validate(); err != nil {
		return desc, err
	}

	return desc, nil
}

func (g *Globals) assetsConfig(sassBinary string, includePaths []string) assets.Config {
	cfg := assets.DefaultConfig()
	cfg.Root = g.Root
	cfg.SassBinary = sassBinary
	cfg.SassIncludePaths = includePaths
	return cfg
}

// SassFlags configure the Dart Sass compiler used by the sass transform
type SassFlags struct {
	Binary       string   `help:"path to the dart sass binary" default:"" env:"MUSPY_ASSETS_SASS_BINARY"`
	IncludePaths []string `help:"extra sass load paths" env:"MUSPY_ASSETS_SASS_INCLUDE_PATHS"`
}

func configureHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       time.Minute,
		WriteTimeout:      time.Minute,
		IdleTimeout:       5 * time.Minute,
		MaxHeaderBytes:    8 * 1024, // 8KiB
	}
}
