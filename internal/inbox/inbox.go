// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package inbox implements the Result Inbox (C7): a map from
// (fingerprint, sequence_id) to a bounded FIFO of drafts, bounded
// overall by an LRU of fingerprints.
//
// The LRU is built directly on the teacher's utils/linked.Hashmap,
// which preserves insertion order and exposes OldestEntry/NewestEntry;
// "touching" a fingerprint on access is a Delete+Put, which re-inserts
// it at the back (most-recently-used position).
package inbox

import (
	"sync"
	"time"

	"github.com/luxfi/speculative-mesh/utils/linked"
)

// Draft is one drafter's candidate sequence for a (fingerprint,
// sequence_id) auction key.
type Draft struct {
	PeerID               string
	DraftTokens          []string
	LatencyMS            float64
	IsVerificationAnswer bool
}

const (
	// DefaultQueueCapacity is D, the default per-key FIFO capacity.
	DefaultQueueCapacity = 32
	// DefaultFingerprintCapacity is F, the default LRU size.
	DefaultFingerprintCapacity = 1024
)

type boundedQueue struct {
	items    []Draft
	capacity int
	dropped  uint64
	notify   chan struct{}
}

func newBoundedQueue(capacity int) *boundedQueue {
	return &boundedQueue{capacity: capacity, notify: make(chan struct{}, 1)}
}

func (q *boundedQueue) push(d Draft) {
	if len(q.items) >= q.capacity {
		q.dropped++
		return
	}
	q.items = append(q.items, d)
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *boundedQueue) pop() (Draft, bool) {
	if len(q.items) == 0 {
		return Draft{}, false
	}
	d := q.items[0]
	q.items = q.items[1:]
	return d, true
}

// Inbox is the per-verifier-process result inbox shared across all
// in-flight requests.
type Inbox struct {
	mu                  sync.Mutex
	queueCapacity       int
	fingerprintCapacity int
	fingerprints        *linked.Hashmap[string, map[uint32]*boundedQueue]
}

// New constructs an Inbox with the given per-key FIFO capacity and
// fingerprint LRU capacity.
func New(queueCapacity, fingerprintCapacity int) *Inbox {
	return &Inbox{
		queueCapacity:       queueCapacity,
		fingerprintCapacity: fingerprintCapacity,
		fingerprints:        linked.NewHashmap[string, map[uint32]*boundedQueue](),
	}
}

// touchLocked inserts or re-inserts fingerprint at the MRU (back)
// position. linked.Hashmap.Put updates an existing key's value in
// place without moving it, so a true touch requires an explicit
// Delete before the Put.
func (ib *Inbox) touchLocked(fingerprint string, queues map[uint32]*boundedQueue) {
	ib.fingerprints.Delete(fingerprint)
	ib.fingerprints.Put(fingerprint, queues)
}

// Push enqueues a draft for (fingerprint, sequenceID), creating the
// fingerprint's queue set if necessary and evicting the single
// least-recently-touched fingerprint if the LRU is now over capacity.
// If the target queue is already full, the draft is dropped and the
// per-key dropped counter is incremented.
func (ib *Inbox) Push(fingerprint string, sequenceID uint32, d Draft) {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	queues, ok := ib.fingerprints.Get(fingerprint)
	if !ok {
		queues = make(map[uint32]*boundedQueue)
	}
	ib.touchLocked(fingerprint, queues)

	q, ok := queues[sequenceID]
	if !ok {
		q = newBoundedQueue(ib.queueCapacity)
		queues[sequenceID] = q
	}
	q.push(d)

	if ib.fingerprints.Len() > ib.fingerprintCapacity {
		if oldestKey, _, ok := ib.fingerprints.OldestEntry(); ok {
			ib.fingerprints.Delete(oldestKey)
		}
	}
}

// PopUntil returns the first queued draft for (fingerprint,
// sequenceID), waiting up to deadline for one to arrive if the queue is
// currently empty.
func (ib *Inbox) PopUntil(fingerprint string, sequenceID uint32, deadline time.Time) (Draft, bool) {
	for {
		ib.mu.Lock()
		queues, ok := ib.fingerprints.Get(fingerprint)
		if !ok {
			queues = make(map[uint32]*boundedQueue)
		}
		ib.touchLocked(fingerprint, queues)
		q, ok := queues[sequenceID]
		if !ok {
			q = newBoundedQueue(ib.queueCapacity)
			queues[sequenceID] = q
		}
		if d, ok := q.pop(); ok {
			ib.mu.Unlock()
			return d, true
		}
		notify := q.notify
		ib.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Draft{}, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-notify:
			timer.Stop()
		case <-timer.C:
			return Draft{}, false
		}
	}
}

// Drop frees every per-sequence queue belonging to fingerprint. Called
// by the Auction Driver once a request terminates (accept or abort).
func (ib *Inbox) Drop(fingerprint string) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	ib.fingerprints.Delete(fingerprint)
}

// DroppedCount returns the total number of drafts dropped across all
// live queues for fingerprint, for diagnostics.
func (ib *Inbox) DroppedCount(fingerprint string) uint64 {
	ib.mu.Lock()
	defer ib.mu.Unlock()

	queues, ok := ib.fingerprints.Get(fingerprint)
	if !ok {
		return 0
	}
	var total uint64
	for _, q := range queues {
		total += q.dropped
	}
	return total
}

// Len reports the number of fingerprints currently tracked, for tests
// and metrics.
func (ib *Inbox) Len() int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.fingerprints.Len()
}
