// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package transport delivers encoded event packets over a fixed number of
// reusable request handles.
package transport

import (
	"net/http"
)

// DefaultPoolSize is the number of handles used when no size is given.
const DefaultPoolSize = 16

// Option configures the handles of a pool.
type Option func(*handleConfig)

type handleConfig struct {
	compression bool
}

// WithCompression gzips request bodies.
func WithCompression(enabled bool) Option {
	return func(c *handleConfig) {
		c.compression = enabled
	}
}

// Pool is a fixed size set of handles. Handles are created up front and are
// never created or destroyed afterwards, so idle plus checked out handles
// always add up to the pool size.
type Pool struct {
	idle chan *Handle
	size int
}

// NewPool creates a pool of size idle handles sharing the given HTTP client.
func NewPool(size int, httpClient *http.Client, opts ...Option) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	var conf handleConfig
	for _, opt := range opts {
		opt(&conf)
	}

	p := &Pool{
		idle: make(chan *Handle, size),
		size: size,
	}

	for i := 0; i < size; i++ {
		p.idle <- newHandle(p, httpClient, conf)
	}

	return p
}

// TryAcquire checks out an idle handle. It never blocks, if every handle is
// in use it returns false.
func (p *Pool) TryAcquire() (*Handle, bool) {
	select {
	case h := <-p.idle:
		h.inUse.Store(true)
		return h, true
	default:
		return nil, false
	}
}

// Release returns a checked out handle to the pool. The caller must not use
// the handle afterwards. Releasing a handle that is not checked out, or that
// belongs to another pool, does nothing.
func (p *Pool) Release(h *Handle) {
	if h == nil || h.pool != p || !h.inUse.CompareAndSwap(true, false) {
		return
	}

	p.idle <- h
}

// Idle returns the number of handles available for checkout.
func (p *Pool) Idle() int {
	return len(p.idle)
}

// Cap returns the total number of handles owned by the pool.
func (p *Pool) Cap() int {
	return p.size
}
