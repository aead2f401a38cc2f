// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry implements the Peer Registry (C5): connected-peer
// bookkeeping, handshake-failure tracking, and a background stale sweep.
//
// The operation shape (on_connect/on_handshake_ok/on_handshake_fail/
// on_activity/list_verified/prune) generalizes the teacher's
// uptime.Manager (Connect/Disconnect/IsConnected) and validators.Connector
// from a validator-uptime tracker to a handshake/verified-peer tracker.
package registry

import (
	"sync"
	"time"

	"github.com/luxfi/ids"
)

// maxHandshakeFailures is the number of consecutive handshake failures
// that demote a peer to unverified (spec §4.5).
const maxHandshakeFailures = 3

// Peer is one entry of the registry.
type Peer struct {
	PeerID            ids.NodeID
	Addresses         []string
	ConnectedAt       time.Time
	LastSeenAt        time.Time
	Verified          bool
	HandshakeFailures int
}

// Registry tracks connected peers. A peer appears at most once; a
// re-announce of an already-known id updates its record in place.
type Registry struct {
	mu    sync.Mutex
	peers map[ids.NodeID]*Peer

	staleAfter time.Duration
}

// New constructs an empty Registry. staleAfter is T_stale (spec default
// 5 min); peers with no activity for that long are eligible for Prune.
func New(staleAfter time.Duration) *Registry {
	return &Registry{
		peers:      make(map[ids.NodeID]*Peer),
		staleAfter: staleAfter,
	}
}

// OnConnect records a new connection, or updates addresses in place if
// the peer id is already known.
func (r *Registry) OnConnect(peerID ids.NodeID, addr string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[peerID]
	if !ok {
		p = &Peer{PeerID: peerID, ConnectedAt: now}
		r.peers[peerID] = p
	}
	p.Addresses = appendUnique(p.Addresses, addr)
	p.LastSeenAt = now
}

// OnHandshakeOK marks a peer verified and clears its failure count.
func (r *Registry) OnHandshakeOK(peerID ids.NodeID, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.getOrCreateLocked(peerID, now)
	p.Verified = true
	p.HandshakeFailures = 0
	p.LastSeenAt = now
}

// OnHandshakeFail records a failed handshake round-trip. After
// maxHandshakeFailures consecutive failures the peer becomes unverified
// and eligible for eviction by the next Prune.
func (r *Registry) OnHandshakeFail(peerID ids.NodeID, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.getOrCreateLocked(peerID, now)
	p.HandshakeFailures++
	if p.HandshakeFailures >= maxHandshakeFailures {
		p.Verified = false
	}
}

// OnActivity refreshes a peer's last-seen time, keeping it out of the
// next stale sweep.
func (r *Registry) OnActivity(peerID ids.NodeID, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.getOrCreateLocked(peerID, now)
	p.LastSeenAt = now
}

// ListVerified returns a snapshot of every verified peer.
func (r *Registry) ListVerified() []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Peer, 0, len(r.peers))
	for _, p := range r.peers {
		if p.Verified {
			out = append(out, *p)
		}
	}
	return out
}

// Get returns a snapshot of one peer's record.
func (r *Registry) Get(peerID ids.NodeID) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[peerID]
	if !ok {
		return Peer{}, false
	}
	return *p, true
}

// Prune removes every peer whose last activity is older than staleAfter
// relative to now, and every peer that has reached maxHandshakeFailures
// consecutive handshake failures, returning the number of peers removed.
func (r *Registry) Prune(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, p := range r.peers {
		if now.Sub(p.LastSeenAt) >= r.staleAfter || p.HandshakeFailures >= maxHandshakeFailures {
			delete(r.peers, id)
			removed++
		}
	}
	return removed
}

func (r *Registry) getOrCreateLocked(peerID ids.NodeID, now time.Time) *Peer {
	p, ok := r.peers[peerID]
	if !ok {
		p = &Peer{PeerID: peerID, ConnectedAt: now, LastSeenAt: now}
		r.peers[peerID] = p
	}
	return p
}

func appendUnique(addrs []string, addr string) []string {
	if addr == "" {
		return addrs
	}
	for _, a := range addrs {
		if a == addr {
			return addrs
		}
	}
	return append(addrs, addr)
}

// RunSweeper runs Prune every sweepInterval until stop is closed; it
// returns once stopped, so callers run it in its own goroutine (spec
// §4.5 default sweepInterval is T_sweep, 30s).
func RunSweeper(r *Registry, sweepInterval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			r.Prune(now)
		}
	}
}
