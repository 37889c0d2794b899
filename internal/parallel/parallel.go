// Package parallel provides chunked parallel iteration used by buffer fills
// and dtype conversions.
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls chunked parallel execution.
type Config struct {
	Enabled      bool // Whether to fan out across goroutines at all.
	NumWorkers   int  // Upper bound on concurrent goroutines.
	MinChunkSize int  // Below this many items the work stays sequential.
}

// DefaultConfig returns defaults based on the CPU count.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 1024,
	}
}

// Chunks runs f over contiguous [start, end) ranges covering [0, n),
// fanning out across at most cfg.NumWorkers goroutines. Work smaller than
// cfg.MinChunkSize runs on the calling goroutine. All chunks run to
// completion; the first error observed is returned.
func Chunks(n int, cfg Config, f func(start, end int) error) error {
	if n <= 0 {
		return nil
	}
	if !cfg.Enabled || n < cfg.MinChunkSize || cfg.NumWorkers <= 1 {
		return f(0, n)
	}

	chunk := (n + cfg.NumWorkers - 1) / cfg.NumWorkers
	if chunk < cfg.MinChunkSize {
		chunk = cfg.MinChunkSize
	}

	var g errgroup.Group
	g.SetLimit(cfg.NumWorkers)
	for start := 0; start < n; start += chunk {
		end := start + chunk
		if end > n {
			end = n
		}
		g.Go(func() error {
			return f(start, end)
		})
	}
	return g.Wait()
}
