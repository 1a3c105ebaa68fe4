package assets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/muspy/assets/internal/buildconfig"
	"github.com/muspy/assets/internal/manifest"
	"github.com/muspy/assets/internal/telemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// Build runs esbuild once with the descriptor settings, writes the outputs and the tracking manifest
func (p *Pipeline) Build(ctx context.Context) (*manifest.Stats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, span := telemetry.Tracer().Start(ctx, "assets.Build")
	defer span.End()
	span.SetAttributes(
		attribute.String("assets.variant", p.desc.Variant),
		attribute.String("assets.entry", p.desc.EntryPath),
	)

	if err := p.begin(); err != nil {
		return nil, err
	}

	log.Info().Str("entrypoint", p.desc.EntryPath).Str("variant", p.desc.Variant).Msg("Building assets")

	result := api.Build(p.buildOptions())

	stats, err := p.emit(ctx, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return stats, err
}

func (p *Pipeline) begin() error {
	p.started = time.Now()
	if err := manifest.Write(p.ManifestPath(), manifest.Compiling()); err != nil {
		return fmt.Errorf("failed to mark build as compiling: %w", err)
	}
	return nil
}

// assetNames names files pulled in through the file loader; esbuild appends the extension.
const assetNames = "[name]-[hash]"

// Immutable reports whether an output file, relative to the output directory, carries a content hash
// in its name and can be cached forever.
func (p *Pipeline) Immutable(name string) bool {
	for _, pattern := range []string{p.desc.OutputFilenamePattern, p.cssPattern(), assetNames + ".[ext]"} {
		if buildconfig.HasHashPlaceholder(pattern) && buildconfig.MatchesPattern(pattern, name) {
			return true
		}
	}
	return false
}

func (p *Pipeline) buildOptions() api.BuildOptions {
	return api.BuildOptions{
		EntryPointsAdvanced: []api.EntryPoint{
			{InputPath: p.path(p.desc.EntryPath), OutputPath: p.desc.ChunkName},
		},
		AbsWorkingDir:     p.root,
		Bundle:            true,
		Write:             false,
		Outdir:            p.OutputDir(),
		EntryNames:        "[name]",
		AssetNames:        assetNames,
		PublicPath:        p.desc.PublicPath,
		Format:            api.FormatIIFE,
		MinifyWhitespace:  p.desc.Minify,
		MinifyIdentifiers: p.desc.Minify,
		MinifySyntax:      p.desc.Minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         cond(p.desc.SourceMap, api.SourceMapInline, api.SourceMapNone),
		Loader:            fileLoaders(),
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
		Plugins:           []api.Plugin{p.transformPlugin()},
	}
}

func fileLoaders() map[string]api.Loader {
	m := map[string]api.Loader{}
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".gif", ".svg", ".ico", ".woff", ".woff2", ".ttf", ".eot"} {
		m[ext] = api.LoaderFile
	}
	return m
}

type emittedFile struct {
	path     string
	contents []byte
}

// emit turns an esbuild result into files on disk and a tracking manifest. Callers hold p.mu.
func (p *Pipeline) emit(ctx context.Context, result api.BuildResult) (*manifest.Stats, error) {
	metrics := telemetry.GetMetrics()
	attrs := metric.WithAttributes(attribute.String("variant", p.desc.Variant))
	defer func() {
		metrics.BuildDuration.Record(ctx, float64(time.Since(p.started).Milliseconds()), attrs)
	}()
	metrics.BuildsTotal.Add(ctx, 1, attrs)

	for _, msg := range result.Warnings {
		log.Warn().Str("warning", msg.Text).Msg("Build warning")
	}

	if len(result.Errors) > 0 {
		for _, msg := range result.Errors {
			log.Error().Str("error", msg.Text).Msg("Build error")
		}
		metrics.BuildErrorsTotal.Add(ctx, 1, attrs)
		return nil, p.fail(newBuildError(result.Errors))
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return nil, p.fail(fmt.Errorf("failed to parse metafile: %w", err))
	}

	if p.config.MetafilePath != "" {
		if err := os.WriteFile(p.path(p.config.MetafilePath), []byte(result.Metafile), 0o600); err != nil {
			return nil, p.fail(err)
		}
	}

	files, chunk, err := p.nameOutputs(metadata, result.OutputFiles)
	if err != nil {
		return nil, p.fail(err)
	}

	var (
		contents [][]byte
		total    int64
	)
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
			return nil, p.fail(err)
		}
		if err := os.WriteFile(f.path, f.contents, 0o644); err != nil { //nolint:gosec
			return nil, p.fail(err)
		}
		if p.desc.Precompress && compressible(f.path) {
			if err := precompress(f.path, f.contents); err != nil {
				return nil, p.fail(err)
			}
		}
		contents = append(contents, f.contents)
		total += int64(len(f.contents))
		log.Info().Str("file", f.path).Int("bytes", len(f.contents)).Msg("Built file")
	}
	metrics.OutputBytes.Add(ctx, total, attrs)

	assets := make([]manifest.Asset, 0, len(chunk))
	for _, f := range chunk {
		assets = append(assets, p.asset(f))
	}

	stats := &manifest.Stats{
		Status:     manifest.StatusDone,
		Chunks:     map[string][]manifest.Asset{p.desc.ChunkName: assets},
		PublicPath: p.desc.PublicPath,
		Hash:       manifest.Hash(contents...),
	}

	if err := manifest.Write(p.ManifestPath(), stats); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	log.Info().
		Str("manifest", p.ManifestPath()).
		Str("hash", stats.Hash).
		Dur("duration", time.Since(p.started)).
		Msg("Assets built")

	p.stats = stats
	return stats, nil
}

// nameOutputs applies the descriptor filename patterns to the entry script and its
// extracted stylesheet. Other outputs (fonts, images) keep the names esbuild gave them.
func (p *Pipeline) nameOutputs(metadata BuildMetadata, outputs []api.OutputFile) ([]emittedFile, []string, error) {
	renames := map[string]string{}
	var chunk []string

	for rel, info := range metadata.Outputs {
		// the stylesheet of a JS entry also reports the entry point; it is named through cssBundle
		if info.EntryPoint == "" || path.Ext(rel) == ".css" {
			continue
		}
		renames[p.path(rel)] = p.desc.OutputFilenamePattern
		chunk = append(chunk, p.path(rel))
		if info.CSSBundle != "" {
			renames[p.path(info.CSSBundle)] = p.cssPattern()
			chunk = append(chunk, p.path(info.CSSBundle))
		}
	}

	if len(chunk) == 0 {
		return nil, nil, errors.New("entrypoint not found in metadata")
	}

	files := make([]emittedFile, 0, len(outputs))
	for _, out := range outputs {
		target := out.Path
		if pattern, ok := renames[out.Path]; ok {
			target = filepath.Join(p.OutputDir(), filepath.FromSlash(
				buildconfig.ExpandPattern(pattern, p.desc.ChunkName, manifest.Hash(out.Contents))))
			for i, c := range chunk {
				if c == out.Path {
					chunk[i] = target
				}
			}
		}
		files = append(files, emittedFile{path: target, contents: out.Contents})
	}

	return files, chunk, nil
}

func (p *Pipeline) cssPattern() string {
	if p.desc.CSSOutputPattern != "" {
		return p.desc.CSSOutputPattern
	}
	return strings.TrimSuffix(p.desc.OutputFilenamePattern, ".js") + ".css"
}

func (p *Pipeline) asset(abs string) manifest.Asset {
	rel, err := filepath.Rel(p.OutputDir(), abs)
	if err != nil {
		rel = filepath.Base(abs)
	}
	rel = filepath.ToSlash(rel)

	a := manifest.Asset{Name: rel, Path: abs}
	if p.desc.PublicPath != "" {
		a.PublicPath = strings.TrimSuffix(p.desc.PublicPath, "/") + "/" + rel
	}
	return a
}

func (p *Pipeline) fail(err error) error {
	if werr := manifest.Write(p.ManifestPath(), manifest.Failed("ModuleBuildError", err)); werr != nil {
		log.Error().Err(werr).Msg("Failed to write error manifest")
	}
	return err
}

// LoadScripts returns the public URLs of the scripts and stylesheets emitted for the given chunk
func (p *Pipeline) LoadScripts(chunkName string) ([]string, []string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stats == nil {
		return nil, nil, errors.New("assets not built yet, call Build() first")
	}

	assets, ok := p.stats.Chunks[chunkName]
	if !ok {
		return nil, nil, errors.New("chunk not found in manifest")
	}

	var scripts, styles []string
	for _, a := range assets {
		url := a.PublicPath
		if url == "" {
			url = "/" + a.Name
		}
		switch path.Ext(a.Name) {
		case ".js":
			scripts = append(scripts, url)
		case ".css":
			styles = append(styles, url)
		}
	}

	return scripts, styles, nil
}

// Stats returns the manifest of the last successful build, or nil
func (p *Pipeline) Stats() *manifest.Stats {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stats
}

// Handler returns an http.HandlerFunc that renders the given template with the scripts of a chunk
func (p *Pipeline) Handler(templateName, title, chunkName string, contextFn func(ctx context.Context) any) (http.HandlerFunc, error) {
	if p.tmpl == nil {
		return nil, errors.New("template not loaded, use NewWithTemplate")
	}

	if contextFn == nil {
		contextFn = func(ctx context.Context) any {
			return nil
		}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		scripts, styles, err := p.LoadScripts(chunkName)
		if err != nil {
			log.Error().Err(err).Msg("Failed to load scripts")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		data := map[string]any{
			"Title":   title,
			"Scripts": scripts,
			"Styles":  styles,
			"Context": contextFn(r.Context()),
		}

		if err := p.tmpl.ExecuteTemplate(w, templateName, data); err != nil {
			log.Error().Err(err).Msg("Failed to render template")
		}
	}, nil
}

func cond[T any](condition bool, trueVal, falseVal T) T {
	if condition {
		return trueVal
	}
	return falseVal
}
