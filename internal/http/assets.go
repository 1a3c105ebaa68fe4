package http

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/gzip"
	"github.com/muspy/assets/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// encodings in preference order, each with the suffix of its precompressed sibling
var encodings = []struct {
	name   string
	suffix string
}{
	{"zstd", ".zst"},
	{"gzip", ".gz"},
}

type cacheKey struct {
	path    string
	modTime time.Time
}

// AssetHandler serves files below dir. Precompressed .zst and .gz siblings are preferred when the
// client accepts them; otherwise compressible files are gzipped on the fly and the result is kept
// in an LRU cache keyed by path and modification time.
type AssetHandler struct {
	dir   string
	cache *lru.Cache[cacheKey, []byte]
}

// NewAssetHandler creates an AssetHandler caching up to cacheSize compressed responses.
func NewAssetHandler(dir string, cacheSize int) (*AssetHandler, error) {
	cache, err := lru.New[cacheKey, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create compression cache: %w", err)
	}
	return &AssetHandler{dir: dir, cache: cache}, nil
}

func (h *AssetHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	telemetry.GetMetrics().AssetRequestsTotal.Add(r.Context(), 1)

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	name := path.Clean("/" + r.URL.Path)
	file := filepath.Join(h.dir, filepath.FromSlash(name))

	info, err := os.Stat(file)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	w.Header().Add("Vary", "Accept-Encoding")
	accepted := r.Header.Get("Accept-Encoding")

	for _, enc := range encodings {
		if !acceptsEncoding(accepted, enc.name) {
			continue
		}
		if _, err := os.Stat(file + enc.suffix); err == nil {
			h.serveEncoded(w, r, file, file+enc.suffix, enc.name, info.ModTime())
			return
		}
	}

	if acceptsEncoding(accepted, "gzip") && compressible(file) {
		body, err := h.gzipped(r, file, info.ModTime())
		if err == nil {
			setContentType(w, file)
			w.Header().Set("Content-Encoding", "gzip")
			http.ServeContent(w, r, "", info.ModTime(), bytes.NewReader(body))
			return
		}
		log.Warn().Err(err).Str("file", file).Msg("Failed to compress asset, serving identity")
	}

	http.ServeFile(w, r, file)
}

func (h *AssetHandler) serveEncoded(w http.ResponseWriter, r *http.Request, file, encoded, encoding string, modTime time.Time) {
	f, err := os.Open(encoded)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	setContentType(w, file)
	w.Header().Set("Content-Encoding", encoding)
	http.ServeContent(w, r, "", modTime, f)
}

func (h *AssetHandler) gzipped(r *http.Request, file string, modTime time.Time) ([]byte, error) {
	key := cacheKey{path: file, modTime: modTime}
	if body, ok := h.cache.Get(key); ok {
		telemetry.GetMetrics().CompressCacheHits.Add(r.Context(), 1)
		return body, nil
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzip.BestSpeed)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	h.cache.Add(key, buf.Bytes())
	return buf.Bytes(), nil
}

func setContentType(w http.ResponseWriter, file string) {
	switch filepath.Ext(file) {
	case ".js":
		w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	case ".css":
		w.Header().Set("Content-Type", "text/css; charset=utf-8")
	case ".json":
		w.Header().Set("Content-Type", "application/json")
	case ".svg":
		w.Header().Set("Content-Type", "image/svg+xml")
	}
}

func compressible(file string) bool {
	switch filepath.Ext(file) {
	case ".js", ".css", ".json", ".svg", ".html":
		return true
	}
	return false
}

func acceptsEncoding(header, encoding string) bool {
	for _, part := range strings.Split(header, ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		if !strings.EqualFold(strings.TrimSpace(name), encoding) {
			continue
		}
		return strings.ReplaceAll(strings.TrimSpace(params), " ", "") != "q=0"
	}
	return false
}
