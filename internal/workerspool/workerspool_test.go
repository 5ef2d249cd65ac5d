// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package workerspool

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Limit(t *testing.T) {
	const maxParallelism, numJobs = 3, 20
	pool := New(maxParallelism)
	require.Equal(t, maxParallelism, pool.MaxParallelism())

	var running, maxRunning, finished atomic.Int32
	for range numJobs {
		pool.Go(func() {
			current := running.Add(1)
			for {
				seen := maxRunning.Load()
				if current <= seen || maxRunning.CompareAndSwap(seen, current) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			runtime.Gosched()
			running.Add(-1)
			finished.Add(1)
		})
	}
	pool.Wait()
	assert.Equal(t, int32(numJobs), finished.Load())
	assert.LessOrEqual(t, int(maxRunning.Load()), maxParallelism)
	assert.Equal(t, int32(0), running.Load())
}

func TestPool_Sequential(t *testing.T) {
	pool := New(1)
	var order []int
	for ii := range 5 {
		pool.Go(func() { order = append(order, ii) })
	}
	pool.Wait()
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestPool_NestedJobs(t *testing.T) {
	pool := New(-1)
	require.True(t, pool.IsUnlimited())
	require.Equal(t, -1, pool.MaxParallelism())

	var mu sync.Mutex
	var got []string
	record := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, name)
	}
	pool.Go(func() {
		record("parent")
		pool.Go(func() {
			time.Sleep(5 * time.Millisecond)
			record("child")
		})
	})
	pool.Wait()
	assert.ElementsMatch(t, []string{"parent", "child"}, got)
}

func TestPool_DefaultParallelism(t *testing.T) {
	pool := New(0)
	assert.Equal(t, runtime.NumCPU(), pool.MaxParallelism())
	pool.Wait() // No jobs: returns immediately.
}
