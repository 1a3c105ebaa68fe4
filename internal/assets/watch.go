package assets

import (
	"context"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// Watch builds the assets and rebuilds them whenever an input changes, until ctx is done.
// Each rebuild rewrites the outputs and the tracking manifest through the same path as Build.
func (p *Pipeline) Watch(ctx context.Context) error {
	opts := p.buildOptions()
	opts.Plugins = append(opts.Plugins, p.emitPlugin(ctx))

	bctx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return newBuildError(ctxErr.Errors)
	}
	defer bctx.Dispose()

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return err
	}

	log.Info().Str("entrypoint", p.desc.EntryPath).Str("variant", p.desc.Variant).Msg("Watching assets")

	<-ctx.Done()

	log.Info().Msg("Stopped watching assets")
	return nil
}

// emitPlugin hooks build start and end so every watch rebuild marks the manifest
// compiling and then emits its outputs.
func (p *Pipeline) emitPlugin(ctx context.Context) api.Plugin {
	return api.Plugin{
		Name: "emit",
		Setup: func(build api.PluginBuild) {
			build.OnStart(func() (api.OnStartResult, error) {
				p.mu.Lock()
				defer p.mu.Unlock()

				if err := p.begin(); err != nil {
					log.Error().Err(err).Msg("Failed to start rebuild")
				}
				return api.OnStartResult{}, nil
			})

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				p.mu.Lock()
				defer p.mu.Unlock()

				if _, err := p.emit(ctx, *result); err != nil {
					log.Error().Err(err).Msg("Rebuild failed")
				}
				return api.OnEndResult{}, nil
			})
		},
	}
}
