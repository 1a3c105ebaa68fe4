package assets

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

func compressible(path string) bool {
	switch filepath.Ext(path) {
	case ".js", ".css", ".svg", ".json":
		return true
	}
	return false
}

// precompress writes .gz and .zst siblings next to path so a static file server
// can hand them out without compressing per request.
func precompress(path string, contents []byte) error {
	gz, err := Gzip(contents)
	if err != nil {
		return fmt.Errorf("failed to gzip %s: %w", path, err)
	}
	if err := os.WriteFile(path+".gz", gz, 0o644); err != nil { //nolint:gosec
		return err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return fmt.Errorf("failed to create encoder: %w", err)
	}
	defer enc.Close()

	zst := enc.EncodeAll(contents, nil)
	if err := os.WriteFile(path+".zst", zst, 0o644); err != nil { //nolint:gosec
		return err
	}

	log.Debug().
		Str("file", path).
		Int("original_bytes", len(contents)).
		Int("gzip_bytes", len(gz)).
		Int("zstd_bytes", len(zst)).
		Msg("Precompressed asset")

	return nil
}

// Gzip compresses contents at the best compression level.
func Gzip(contents []byte) ([]byte, error) {
	var buf bytes.Buffer

	w, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(contents); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
