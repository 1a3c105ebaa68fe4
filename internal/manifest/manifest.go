// Package manifest reads and writes the bundle tracking file consumed by the
// Django serving layer. The layout follows webpack-bundle-tracker so
// django-webpack-loader can read it unchanged.
package manifest

import (
	"context"
	"encoding/base32"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/minio/crc64nvme"
)

const (
	StatusCompiling = "compiling"
	StatusDone      = "done"
	StatusError     = "error"
)

// ErrStillCompiling is returned by WaitReady when the build did not finish in time.
var ErrStillCompiling = errors.New("bundle is still compiling")

// Stats is the tracking file document.
type Stats struct {
	Status     string             `json:"status"`
	Chunks     map[string][]Asset `json:"chunks,omitempty"`
	PublicPath string             `json:"publicPath,omitempty"`
	Hash       string             `json:"hash,omitempty"`
	Error      string             `json:"error,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// Asset is one generated file belonging to a chunk.
type Asset struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	PublicPath string `json:"publicPath,omitempty"`
}

func Compiling() *Stats {
	return &Stats{Status: StatusCompiling}
}

// Failed builds an error document; kind mirrors the webpack error class names
// django-webpack-loader reports to the developer.
func Failed(kind string, err error) *Stats {
	return &Stats{Status: StatusError, Error: kind, Message: err.Error()}
}

// Write stores stats at path atomically, creating parent directories.
func Write(path string, stats *Stats) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create manifest directory: %w", err)
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".stats-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close manifest: %w", err)
	}

	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod manifest: %w", err)
	}

	return os.Rename(tmp.Name(), path)
}

// Read loads the stats document at path.
func Read(path string) (*Stats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var stats Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	return &stats, nil
}

// WaitReady polls path until its status leaves compiling, the same way the
// serving layer waits for a dev build. Missing files are retried too.
func WaitReady(ctx context.Context, path string, maxWait time.Duration) (*Stats, error) {
	return backoff.Retry(ctx, func() (*Stats, error) {
		stats, err := Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		if stats.Status == StatusCompiling {
			return nil, ErrStillCompiling
		}
		return stats, nil
	},
		backoff.WithBackOff(&backoff.ExponentialBackOff{
			InitialInterval:     50 * time.Millisecond,
			RandomizationFactor: backoff.DefaultRandomizationFactor,
			Multiplier:          backoff.DefaultMultiplier,
			MaxInterval:         time.Second,
		}),
		backoff.WithMaxElapsedTime(maxWait),
	)
}

var hashEncoding = base32.NewEncoding("abcdefghijklmnopqrstuvwxyz234567").WithPadding(base32.NoPadding)

// Hash returns a lowercase base32 CRC64-NVME digest over the given contents.
// Each part is length-prefixed so boundaries contribute to the digest.
func Hash(parts ...[]byte) string {
	h := crc64nvme.New()
	var lenBuf [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(lenBuf[:], uint64(len(p)))
		h.Write(lenBuf[:])
		h.Write(p)
	}

	sum := h.Sum(nil)
	// repeat the 64 bit digest so long placeholders like [hash:20] stay content derived
	return hashEncoding.EncodeToString(append(sum, reverse(sum)...))
}

func reverse(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[len(b)-1-i] = b[i]
	}
	return out
}
