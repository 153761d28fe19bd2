// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 The Noisy Sockets Authors.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package transport_test

import (
	"net/http"
	"sync"
	"testing"

	"github.com/dpeckett/raven/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_TryAcquire(t *testing.T) {
	const size = 4
	pool := transport.NewPool(size, http.DefaultClient)
	require.Equal(t, size, pool.Cap())
	require.Equal(t, size, pool.Idle())

	var handles []*transport.Handle
	for i := 0; i < size; i++ {
		h, ok := pool.TryAcquire()
		require.True(t, ok, "acquire %d", i)
		handles = append(handles, h)
	}

	_, ok := pool.TryAcquire()
	assert.False(t, ok, "pool should be exhausted")
	assert.Equal(t, 0, pool.Idle())

	pool.Release(handles[0])
	assert.Equal(t, 1, pool.Idle())

	h, ok := pool.TryAcquire()
	require.True(t, ok)
	assert.Same(t, handles[0], h)

	_, ok = pool.TryAcquire()
	assert.False(t, ok)

	for _, h := range handles {
		pool.Release(h)
	}
	assert.Equal(t, size, pool.Idle())
}

func TestPool_DefaultSize(t *testing.T) {
	pool := transport.NewPool(0, nil)
	assert.Equal(t, transport.DefaultPoolSize, pool.Cap())
	assert.Equal(t, transport.DefaultPoolSize, pool.Idle())
}

func TestPool_ReleaseIsIdempotent(t *testing.T) {
	pool := transport.NewPool(2, http.DefaultClient)

	h, ok := pool.TryAcquire()
	require.True(t, ok)

	pool.Release(h)
	pool.Release(h)
	pool.Release(nil)

	assert.Equal(t, 2, pool.Idle())
}

func TestPool_ReleaseForeignHandle(t *testing.T) {
	pool := transport.NewPool(1, http.DefaultClient)
	other := transport.NewPool(1, http.DefaultClient)

	h, ok := other.TryAcquire()
	require.True(t, ok)

	pool.Release(h)
	assert.Equal(t, 1, pool.Idle())
	assert.Equal(t, 0, other.Idle())
}

func TestPool_Concurrent(t *testing.T) {
	const size = 8
	pool := transport.NewPool(size, http.DefaultClient)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inFlight int
		maxSeen  int
	)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for j := 0; j < 100; j++ {
				h, ok := pool.TryAcquire()
				if !ok {
					continue
				}

				mu.Lock()
				inFlight++
				if inFlight > maxSeen {
					maxSeen = inFlight
				}
				mu.Unlock()

				mu.Lock()
				inFlight--
				mu.Unlock()

				pool.Release(h)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, maxSeen, size)
	assert.Equal(t, size, pool.Idle())
}
