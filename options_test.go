package vmthread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRuntimeOptions_defaults(t *testing.T) {
	cfg, err := resolveRuntimeOptions(nil)
	require.NoError(t, err)
	assert.Nil(t, cfg.logger)
	assert.Equal(t, defaultWarningRates, cfg.warningRates)
	assert.Equal(t, 2, cfg.minFreeMonitors)
	assert.Equal(t, 5, cfg.maxFreeMonitors)
}

func TestResolveRuntimeOptions(t *testing.T) {
	var buf syncBuffer
	logger := newTestLogger(&buf)
	rates := map[time.Duration]int{time.Minute: 3}

	cfg, err := resolveRuntimeOptions([]RuntimeOption{
		nil,
		WithLogger(logger),
		WithWarningRateLimits(rates),
		WithMonitorFreeList(1, 1),
	})
	require.NoError(t, err)
	assert.Same(t, logger, cfg.logger)
	assert.Equal(t, rates, cfg.warningRates)
	assert.Equal(t, 1, cfg.minFreeMonitors)
	assert.Equal(t, 1, cfg.maxFreeMonitors)
}

func TestResolveRuntimeOptions_invalid(t *testing.T) {
	for _, opt := range []RuntimeOption{
		WithWarningRateLimits(map[time.Duration]int{0: 1}),
		WithWarningRateLimits(map[time.Duration]int{time.Second: 0}),
		WithMonitorFreeList(0, 5),
		WithMonitorFreeList(3, 2),
	} {
		_, err := resolveRuntimeOptions([]RuntimeOption{opt})
		assert.Error(t, err)
		_, err = New(opt)
		assert.Error(t, err)
	}
}

func TestResolveThreadOptions(t *testing.T) {
	cfg, err := resolveThreadOptions([]ThreadOption{nil, WithName(`x`), WithBackground(true)})
	require.NoError(t, err)
	assert.Equal(t, `x`, cfg.name)
	assert.True(t, cfg.background)
}
