package assets

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"maps"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/muspy/assets/internal/buildconfig"
	"github.com/muspy/assets/internal/manifest"
)

//go:embed templates/*.html
var templates embed.FS

// DefaultTemplate is the name of the embedded preview page
const DefaultTemplate = "preview.html"

type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	CSSBundle  string       `json:"cssBundle"`
	Imports    []ImportInfo `json:"imports"`
	Bytes      int          `json:"bytes"`
}

type ImportInfo struct {
	Path string `json:"path"`
}

// BuildError collects the messages of a failed esbuild run
type BuildError struct {
	Messages []string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("esbuild failed with %d errors: %s", len(e.Messages), strings.Join(e.Messages, "; "))
}

func newBuildError(msgs []api.Message) *BuildError {
	err := &BuildError{}
	for _, msg := range msgs {
		if msg.Location != nil {
			err.Messages = append(err.Messages, fmt.Sprintf("%s:%d:%d: %s", msg.Location.File, msg.Location.Line, msg.Location.Column, msg.Text))
			continue
		}
		err.Messages = append(err.Messages, msg.Text)
	}
	return err
}

// Pipeline runs a resolved build descriptor through esbuild and tracks the emitted files
type Pipeline struct {
	desc    buildconfig.BuildDescriptor
	config  Config
	root    string
	stats   *manifest.Stats
	tmpl    *template.Template
	sass    *sassCompiler
	started time.Time
	mu      sync.RWMutex
}

// New creates a new asset pipeline for the given descriptor
func New(desc buildconfig.BuildDescriptor, config Config) (*Pipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}

	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root: %w", err)
	}

	return &Pipeline{
		desc:   desc,
		config: config,
		root:   root,
		sass: &sassCompiler{
			binary:       config.SassBinary,
			includePaths: config.SassIncludePaths,
		},
	}, nil
}

// NewWithTemplate creates a new asset pipeline and loads the preview template.
// An empty templatePath loads the embedded default.
func NewWithTemplate(desc buildconfig.BuildDescriptor, config Config, templatePath string) (*Pipeline, error) {
	return NewWithTemplateAndFuncs(desc, config, templatePath, nil)
}

// NewWithTemplateAndFuncs creates a new asset pipeline and loads the preview template with custom functions
func NewWithTemplateAndFuncs(desc buildconfig.BuildDescriptor, config Config, templatePath string, customFuncs template.FuncMap) (*Pipeline, error) {
	p, err := New(desc, config)
	if err != nil {
		return nil, err
	}

	funcs := template.FuncMap{
		"marshal": marshal,
		"safe": func(s string) template.HTML {
			return template.HTML(s) //nolint:gosec
		},
	}

	// Merge custom functions
	maps.Copy(funcs, customFuncs)

	var tmpl *template.Template
	if templatePath == "" {
		tmpl, err = template.New(DefaultTemplate).Funcs(funcs).ParseFS(templates, "templates/*.html")
	} else {
		tmpl, err = template.New(filepath.Base(templatePath)).Funcs(funcs).ParseFiles(templatePath)
	}
	if err != nil {
		return nil, err
	}
	p.tmpl = tmpl
	return p, nil
}

// Descriptor returns the descriptor the pipeline was created with
func (p *Pipeline) Descriptor() buildconfig.BuildDescriptor {
	return p.desc
}

// ManifestPath returns the absolute path of the tracking file
func (p *Pipeline) ManifestPath() string {
	return p.path(p.desc.ManifestPath)
}

// OutputDir returns the absolute output directory
func (p *Pipeline) OutputDir() string {
	return p.path(p.desc.OutputDirectory)
}

// Close stops the sass compiler if it was started
func (p *Pipeline) Close() error {
	return p.sass.Close()
}

func (p *Pipeline) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.root, rel)
}

func marshal(value any) string {
	buf := new(bytes.Buffer)

	if err := json.NewEncoder(buf).Encode(value); err != nil {
		panic(errors.New("context can only be json serializable"))
	}

	return buf.String()
}
