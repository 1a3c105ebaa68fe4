package assets

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/rs/zerolog/log"
)

// sassCompiler starts the embedded Dart Sass protocol on first use. The
// transpiler is safe for concurrent use by esbuild's loader goroutines.
type sassCompiler struct {
	binary       string
	includePaths []string

	once       sync.Once
	transpiler *godartsass.Transpiler
	err        error
	mu         sync.Mutex
}

func (s *sassCompiler) start() (*godartsass.Transpiler, error) {
	s.once.Do(func() {
		t, err := godartsass.Start(godartsass.Options{
			DartSassEmbeddedFilename: s.binary,
			LogEventHandler: func(e godartsass.LogEvent) {
				log.Warn().Str("message", e.Message).Msg("Sass")
			},
		})

		s.mu.Lock()
		s.transpiler, s.err = t, err
		s.mu.Unlock()
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transpiler, s.err
}

func (s *sassCompiler) compile(path, source string) (string, error) {
	t, err := s.start()
	if err != nil {
		return "", fmt.Errorf("failed to start dart sass: %w", err)
	}
	if t == nil {
		return "", errors.New("sass compiler closed")
	}

	res, err := t.Execute(godartsass.Args{
		Source:       source,
		IncludePaths: append([]string{filepath.Dir(path)}, s.includePaths...),
		SourceSyntax: godartsass.SourceSyntaxSCSS,
		OutputStyle:  godartsass.OutputStyleExpanded,
	})
	if err != nil {
		return "", fmt.Errorf("sass %s: %w", path, err)
	}

	return res.CSS, nil
}

func (s *sassCompiler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.transpiler == nil {
		return nil
	}
	err := s.transpiler.Close()
	s.transpiler = nil
	return err
}
