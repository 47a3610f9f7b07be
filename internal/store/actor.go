// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/casparianflow/flow/pkg/log"
	"github.com/casparianflow/flow/pkg/metrics"
)

// actorRequest is one unit of work submitted to an actor's request
// channel. op runs on the actor's dedicated goroutine with exclusive
// access to the connection it closes over.
type actorRequest struct {
	op      func() (any, error)
	respond chan actorResponse
}

type actorResponse struct {
	val any
	err error
}

// actor serializes all access to one writable connection on a single
// goroutine: requests queue on a bounded channel (capacity ~1024 — a
// full channel is writer backpressure) and are processed FIFO. Readers
// of a read-only backend bypass the actor entirely, since there is no
// write race to serialize against.
type actor struct {
	reqCh  chan actorRequest
	closed chan struct{}
	once   sync.Once
	kind   Kind
}

const actorQueueCapacity = 1024

func newActor(kind Kind) *actor {
	a := &actor{
		reqCh:  make(chan actorRequest, actorQueueCapacity),
		closed: make(chan struct{}),
		kind:   kind,
	}
	go a.run()
	return a
}

func (a *actor) run() {
	defer close(a.closed)
	for req := range a.reqCh {
		val, err := a.safeCall(req.op)
		// A dropped response channel (caller stopped waiting, e.g. on
		// context cancellation) must not block the actor loop.
		select {
		case req.respond <- actorResponse{val, err}:
		default:
			go func() { req.respond <- actorResponse{val, err} }()
		}
	}
}

func (a *actor) safeCall(op func() (any, error)) (val any, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveActorLatency(a.kind.String(), time.Since(start).Seconds())
		if r := recover(); r != nil {
			log.Errorf("store: actor operation panicked: %v", r)
			err = ErrActorClosed
		}
	}()
	return op()
}

// submit enqueues op and waits for its result, or for the actor to have
// shut down in the meantime.
func (a *actor) submit(ctx context.Context, op func() (any, error)) (val any, err error) {
	// Sending on reqCh after close() has closed it panics; report that
	// as ErrActorClosed like any other submit after close.
	defer func() {
		if r := recover(); r != nil {
			val, err = nil, ErrActorClosed
		}
	}()
	respond := make(chan actorResponse, 1)
	select {
	case a.reqCh <- actorRequest{op: op, respond: respond}:
	case <-a.closed:
		return nil, ErrActorClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-respond:
		return resp.val, resp.err
	case <-a.closed:
		return nil, ErrActorClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// close stops accepting new requests. In-flight requests already queued
// still run; anything submitted after returns ErrActorClosed.
func (a *actor) close() {
	a.once.Do(func() { close(a.reqCh) })
	<-a.closed
}
