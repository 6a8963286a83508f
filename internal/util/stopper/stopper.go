// Copyright 2024 The OracleCDC Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package stopper provides a single cooperative-shutdown primitive that
// every long-running goroutine in this repository is started from. It
// generalizes the pattern used by the teacher's internal/util/stopper
// package (see ctx.Go / ctx.Stopping in stdpool/my.go and resolver.go):
// a context.Context plus an error-collecting WaitGroup plus a
// "stopping" channel that is closed slightly before the context itself
// is canceled, so that goroutines can distinguish "please wind down"
// from "the process is already gone".
package stopper

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Context decorates a context.Context with goroutine tracking and a
// two-phase shutdown signal. The zero value is not usable; construct
// one with WithContext.
type Context struct {
	context.Context

	cancel func()

	mu struct {
		sync.Mutex
		err     error
		stopped bool
	}

	stopping chan struct{}
	wg       sync.WaitGroup
	once     sync.Once
}

// WithContext returns a new Context that will be canceled when the
// parent is canceled or when Stop is called.
func WithContext(parent context.Context) *Context {
	inner, cancel := context.WithCancel(parent)
	ret := &Context{
		Context:  inner,
		cancel:   cancel,
		stopping: make(chan struct{}),
	}
	return ret
}

// Go launches fn in its own goroutine, tracked by this Context. If fn
// returns a non-nil error, the Context is stopped and the error is
// recorded; Wait will return the first such error.
func (c *Context) Go(fn func() error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := fn(); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Warn("goroutine exited with error")
			c.mu.Lock()
			if c.mu.err == nil {
				c.mu.err = err
			}
			c.mu.Unlock()
			c.Stop(0)
		}
	}()
}

// Stopping returns a channel that is closed when shutdown has been
// requested. When Stop is given a positive grace period, the
// underlying context is not yet canceled when this fires, so callers
// can flush in-flight work before blocking I/O starts failing; with a
// zero grace period the context is canceled right after this closes.
func (c *Context) Stopping() <-chan struct{} {
	return c.stopping
}

// Stop requests a graceful shutdown: Stopping() is closed immediately,
// and the underlying context is canceled after gracePeriod (or
// immediately, if gracePeriod is zero). Stop may be called from any
// goroutine, any number of times.
func (c *Context) Stop(gracePeriod time.Duration) {
	c.once.Do(func() {
		close(c.stopping)
	})
	if gracePeriod <= 0 {
		c.cancel()
		return
	}
	go func() {
		t := time.NewTimer(gracePeriod)
		defer t.Stop()
		select {
		case <-t.C:
		case <-c.Context.Done():
		}
		c.cancel()
	}()
}

// Wait blocks until every goroutine started with Go has returned, and
// returns the first non-nil, non-cancellation error reported by any of
// them.
func (c *Context) Wait() error {
	c.wg.Wait()
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.err
}
