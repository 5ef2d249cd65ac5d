// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs independent jobs (e.g. optimizing several SDFG files) with bounded parallelism.
package workerspool

import (
	"runtime"
	"sync"

	"github.com/pkg/errors"
)

// Pool of workers. Jobs are started with Go, and Wait blocks until all started jobs have finished.
//
// Jobs may start new jobs while someone is waiting.
type Pool struct {
	// maxParallelism is the limit of jobs running at the same time.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Signaled whenever numRunning or numPending is decreased.
	numRunning     int

	// numPending counts jobs started and not yet finished, including those waiting for a worker.
	numPending int
}

// New returns a new Pool with the given parallelism.
//
// If maxParallelism is 0, runtime.NumCPU() is used.
// If maxParallelism is negative, parallelism is unlimited.
// If maxParallelism is 1, jobs run one at a time, in the order they were started.
func New(maxParallelism int) *Pool {
	p := &Pool{maxParallelism: maxParallelism}
	if maxParallelism == 0 {
		p.maxParallelism = runtime.NumCPU()
	}
	p.cond = sync.Cond{L: &p.mu}
	return p
}

// IsUnlimited returns whether parallelism is unlimited.
func (p *Pool) IsUnlimited() bool {
	return p.maxParallelism < 0
}

// MaxParallelism returns the limit of jobs running at the same time, or -1 if unlimited.
func (p *Pool) MaxParallelism() int {
	if p.maxParallelism < 0 {
		return -1
	}
	return p.maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (p *Pool) lockedIsFull() bool {
	if p.maxParallelism < 0 {
		return false
	}
	return p.numRunning >= p.maxParallelism
}

// Go waits until a worker is available and runs job in a separate goroutine.
//
// With parallelism 1 the job runs inline, and Go returns when it is finished.
func (p *Pool) Go(job func()) {
	p.mu.Lock()
	p.numPending++
	if p.maxParallelism == 1 {
		p.mu.Unlock()
		job()
		p.done()
		return
	}
	defer p.mu.Unlock()
	for p.lockedIsFull() {
		p.cond.Wait()
	}
	p.numRunning++
	go func() {
		defer p.done()
		job()
	}()
}

// done marks a job as finished.
func (p *Pool) done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.maxParallelism != 1 {
		p.numRunning--
	}
	p.numPending--
	if p.numPending < 0 {
		panic(errors.Errorf("workerspool: negative number of pending jobs"))
	}
	p.cond.Broadcast()
}

// Wait blocks until all jobs started with Go have finished.
func (p *Pool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.numPending > 0 {
		p.cond.Wait()
	}
}
