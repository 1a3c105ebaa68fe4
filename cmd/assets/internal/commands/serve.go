package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/muspy/assets/internal/assets"
	httpmiddleware "github.com/muspy/assets/internal/http"
	"github.com/muspy/assets/internal/logger"
	"github.com/muspy/assets/internal/manifest"
	"github.com/rs/zerolog"
)

type ServeCmd struct {
	Variant     string        `arg:"" optional:"" help:"variant to serve" default:"development" env:"MUSPY_ASSETS_VARIANT"`
	Listen      string        `help:"HTTP server listen address" default:"127.0.0.1:8080" env:"MUSPY_ASSETS_LISTEN"`
	CORSOrigins []string      `help:"origins allowed to load assets" default:"http://localhost:8000,http://127.0.0.1:8000" env:"MUSPY_ASSETS_CORS_ORIGINS"`
	Watch       bool          `help:"rebuild when sources change" default:"true" negatable:"" env:"MUSPY_ASSETS_WATCH"`
	Template    string        `help:"preview page template, empty uses the built-in page" default:"" env:"MUSPY_ASSETS_TEMPLATE"`
	CacheSize   int           `help:"number of on-the-fly compressed responses to keep" default:"256"`
	ReadyWait   time.Duration `help:"how long manifest requests wait for a running build" default:"30s"`
	Sass        SassFlags     `embed:"" prefix:"sass-"`
}

func (c *ServeCmd) Run(ctx context.Context, globals *Globals) error {
	log := logger.Setup(globals.Debug)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	desc, err := globals.descriptor(log, c.Variant)
	if err != nil {
		return err
	}

	pipeline, err := assets.NewWithTemplate(desc, globals.assetsConfig(c.Sass.Binary, c.Sass.IncludePaths), c.Template)
	if err != nil {
		return fmt.Errorf("failed to create assets pipeline: %w", err)
	}
	defer pipeline.Close()

	if c.Watch {
		go func() {
			if err := pipeline.Watch(ctx); err != nil {
				log.Error().Err(err).Msg("Watch stopped")
			}
		}()
	} else if _, err := pipeline.Build(ctx); err != nil {
		return fmt.Errorf("failed to build assets: %w", err)
	}

	handler, err := c.handler(pipeline, log)
	if err != nil {
		return err
	}

	srv := configureHTTPServer(c.Listen, handler)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown server")
		}
	}()

	log.Info().
		Str("addr", c.Listen).
		Str("variant", desc.Variant).
		Str("output", pipeline.OutputDir()).
		Msg("Serving assets")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *ServeCmd) handler(pipeline *assets.Pipeline, log zerolog.Logger) (http.Handler, error) {
	prefix, err := publicPrefix(pipeline.Descriptor().PublicPath)
	if err != nil {
		return nil, err
	}

	files, err := httpmiddleware.NewAssetHandler(pipeline.OutputDir(), c.CacheSize)
	if err != nil {
		return nil, err
	}

	templateName := assets.DefaultTemplate
	if c.Template != "" {
		templateName = filepath.Base(c.Template)
	}

	preview, err := pipeline.Handler(templateName, "muspy assets", pipeline.Descriptor().ChunkName, nil)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(prefix, http.StripPrefix(strings.TrimSuffix(prefix, "/"), httpmiddleware.CacheControl(pipeline.Immutable)(files)))
	mux.HandleFunc("/manifest.json", c.manifestHandler(pipeline, log))
	mux.HandleFunc("/{$}", preview)

	withLogging := httpmiddleware.ClientIPMiddleware()(httpmiddleware.RequestLogger()(mux))
	return httpmiddleware.WithCORS(c.CORSOrigins, withLogging), nil
}

// manifestHandler returns the tracking file once the running build has finished.
func (c *ServeCmd) manifestHandler(pipeline *assets.Pipeline, log zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := manifest.WaitReady(r.Context(), pipeline.ManifestPath(), c.ReadyWait)
		if err != nil {
			log.Warn().Err(err).Msg("Manifest not ready")
			http.Error(w, "manifest not ready", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			log.Error().Err(err).Msg("Failed to write manifest")
		}
	}
}

// publicPrefix turns a public path such as /static/dist/ or https://cdn/static/ into a mux prefix.
func publicPrefix(publicPath string) (string, error) {
	u, err := url.Parse(publicPath)
	if err != nil {
		return "", fmt.Errorf("invalid public path %q: %w", publicPath, err)
	}

	p := u.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p, nil
}
