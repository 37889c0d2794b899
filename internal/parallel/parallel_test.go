package parallel

import (
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunksCoversAllItems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinChunkSize = 8

	n := 1000
	var counter int64
	err := Chunks(n, cfg, func(start, end int) error {
		for i := start; i < end; i++ {
			atomic.AddInt64(&counter, 1)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(n), counter)
}

func TestChunksSequentialBelowThreshold(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 8, MinChunkSize: 100}

	var calls int
	err := Chunks(10, cfg, func(start, end int) error {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 10, end)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "small work must run as a single sequential chunk")
}

func TestChunksZeroItems(t *testing.T) {
	err := Chunks(0, DefaultConfig(), func(int, int) error {
		t.Fatal("must not be called")
		return nil
	})
	require.NoError(t, err)
}

func TestChunksPropagatesError(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}
	boom := errors.New("boom")

	err := Chunks(100, cfg, func(start, end int) error {
		if start == 0 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
}
