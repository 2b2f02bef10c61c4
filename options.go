// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package vmthread

import (
	"errors"
	"time"

	"github.com/joeycumines/logiface"
)

// runtimeOptions holds configuration options for Runtime creation.
type runtimeOptions struct {
	logger          *logiface.Logger[logiface.Event]
	warningRates    map[time.Duration]int
	minFreeMonitors int
	maxFreeMonitors int
}

// threadOptions holds configuration options for Thread creation.
type threadOptions struct {
	name       string
	background bool
}

// --- Runtime Options ---

// RuntimeOption configures a Runtime instance.
type RuntimeOption interface {
	applyRuntime(*runtimeOptions) error
}

// runtimeOptionImpl implements RuntimeOption.
type runtimeOptionImpl struct {
	applyRuntimeFunc func(*runtimeOptions) error
}

func (r *runtimeOptionImpl) applyRuntime(opts *runtimeOptions) error {
	return r.applyRuntimeFunc(opts)
}

// WithLogger sets the structured logger used by the Runtime, and every
// thread it creates. A nil logger (the default) disables logging.
func WithLogger(logger *logiface.Logger[logiface.Event]) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithWarningRateLimits configures the per-category rate limits applied to
// repeated warnings, such as monitor ownership violations. The rates follow
// the rules of catrate.NewLimiter. A nil or empty map disables limiting.
func WithWarningRateLimits(rates map[time.Duration]int) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		for d, n := range rates {
			if d <= 0 || n <= 0 {
				return errors.New("vmthread: invalid warning rate limit")
			}
		}
		opts.warningRates = rates
		return nil
	}}
}

// WithMonitorFreeList sets the bounds of the per-thread monitor free list,
// used by the MonitorPool. When a thread's free list exceeds max, all but min
// monitors are moved to the shared free list.
// Defaults to min 2, max 5.
func WithMonitorFreeList(min, max int) RuntimeOption {
	return &runtimeOptionImpl{func(opts *runtimeOptions) error {
		if min < 1 || max < min {
			return errors.New("vmthread: invalid monitor free list bounds")
		}
		opts.minFreeMonitors = min
		opts.maxFreeMonitors = max
		return nil
	}}
}

// resolveRuntimeOptions applies RuntimeOption instances to runtimeOptions.
func resolveRuntimeOptions(opts []RuntimeOption) (*runtimeOptions, error) {
	cfg := &runtimeOptions{
		warningRates:    defaultWarningRates,
		minFreeMonitors: 2,
		maxFreeMonitors: 5,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyRuntime(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// --- Thread Options ---

// ThreadOption configures a Thread instance.
type ThreadOption interface {
	applyThread(*threadOptions) error
}

// threadOptionImpl implements ThreadOption.
type threadOptionImpl struct {
	applyThreadFunc func(*threadOptions) error
}

func (t *threadOptionImpl) applyThread(opts *threadOptions) error {
	return t.applyThreadFunc(opts)
}

// WithName sets the thread's name, used for diagnostics.
func WithName(name string) ThreadOption {
	return &threadOptionImpl{func(opts *threadOptions) error {
		opts.name = name
		return nil
	}}
}

// WithBackground marks the thread as a background thread, which does not
// keep Runtime.WaitForegroundThreads waiting.
func WithBackground(background bool) ThreadOption {
	return &threadOptionImpl{func(opts *threadOptions) error {
		opts.background = background
		return nil
	}}
}

// resolveThreadOptions applies ThreadOption instances to threadOptions.
func resolveThreadOptions(opts []ThreadOption) (*threadOptions, error) {
	cfg := &threadOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyThread(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
