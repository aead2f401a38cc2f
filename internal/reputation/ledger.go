// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package reputation implements the Reputation Ledger (C4): per-peer
// attempt/correct counters, automatic time-boxed bans, and a persisted
// store consulted on every verification-prompt grading and auction
// pre-screen.
//
// The auto-ban policy generalizes the teacher's networking/benchlist
// manager (accumulate failures, bench once a threshold and a minimum
// failing duration are both satisfied) to an accuracy ratio instead of a
// raw failure count, per spec §4.4.
package reputation

import (
	"sync"
	"time"

	"github.com/luxfi/ids"

	safemath "github.com/luxfi/speculative-mesh/utils/math"
)

// Record is the persisted reputation counters for one peer.
type Record struct {
	PeerID    ids.NodeID `json:"peerId"`
	Attempts  uint64     `json:"attempts"`
	Correct   uint64     `json:"correct"`
	FirstSeen time.Time  `json:"firstSeen"`
	LastSeen  time.Time  `json:"lastSeen"`
}

// Accuracy is correct / max(1, attempts).
func (r Record) Accuracy() float64 {
	if r.Attempts == 0 {
		return 1
	}
	return float64(r.Correct) / float64(r.Attempts)
}

// Ban is the persisted ban record for one peer.
type Ban struct {
	PeerID         ids.NodeID    `json:"peerId"`
	BannedAt       time.Time     `json:"bannedAt"`
	Duration       time.Duration `json:"duration"`
	Reason         string        `json:"reason"`
	FailedAttempts uint64        `json:"failedAttempts"`
}

// Active reports whether the ban has not yet expired at now.
func (b Ban) Active(now time.Time) bool {
	return now.Before(b.BannedAt.Add(b.Duration))
}

// Policy is the auto-ban threshold: a peer is banned once it has
// accumulated at least MinAttempts verification attempts and its
// accuracy has fallen below Threshold.
type Policy struct {
	MinAttempts uint64
	Threshold   float64
	BanDuration time.Duration
}

// Ledger is the only authority for ban status; all readers go through
// IsBanned.
type Ledger struct {
	mu      sync.Mutex
	records map[ids.NodeID]*Record
	bans    map[ids.NodeID]*Ban
	policy  Policy
	store   Store
}

// New constructs a Ledger, loading any existing records from store and
// sweeping expired bans immediately (spec §4.4: "On startup, all ban
// records with expired duration are swept").
func New(policy Policy, store Store) (*Ledger, error) {
	if store == nil {
		store = NewMemStore()
	}
	records, bans, err := store.Load()
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		records: records,
		bans:    bans,
		policy:  policy,
		store:   store,
	}
	l.sweepLocked(time.Now())
	return l, nil
}

// OnVerificationResult records one verification-prompt grading and
// applies the auto-ban policy. attempts is monotonic; correct only
// increases when correct is true.
func (l *Ledger) OnVerificationResult(peerID ids.NodeID, correct bool, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.records[peerID]
	if !ok {
		r = &Record{PeerID: peerID, FirstSeen: now}
		l.records[peerID] = r
	}
	r.Attempts = saturatingIncrement(r.Attempts)
	if correct {
		r.Correct = saturatingIncrement(r.Correct)
	}
	r.LastSeen = now

	if err := l.store.SaveReputation(*r); err != nil {
		return err
	}

	if r.Attempts >= l.policy.MinAttempts && r.Accuracy() < l.policy.Threshold {
		return l.banLocked(peerID, "accuracy below threshold", now)
	}
	return nil
}

// IsBanned lazily expires the peer's ban record and reports whether it
// is still active.
func (l *Ledger) IsBanned(peerID ids.NodeID, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.bans[peerID]
	if !ok {
		return false
	}
	if !b.Active(now) {
		delete(l.bans, peerID)
		_ = l.store.DeleteBan(peerID)
		return false
	}
	return true
}

// Ban issues (or refreshes) a time-boxed ban for peerID. Re-banning an
// already-banned peer refreshes the timestamp and increments
// FailedAttempts, per spec §4.4.
func (l *Ledger) Ban(peerID ids.NodeID, reason string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.banLocked(peerID, reason, now)
}

func (l *Ledger) banLocked(peerID ids.NodeID, reason string, now time.Time) error {
	b, ok := l.bans[peerID]
	if !ok {
		b = &Ban{PeerID: peerID, Duration: l.policy.BanDuration}
		l.bans[peerID] = b
	}
	b.BannedAt = now
	b.Duration = l.policy.BanDuration
	b.Reason = reason
	b.FailedAttempts = saturatingIncrement(b.FailedAttempts)
	return l.store.SaveBan(*b)
}

// saturatingIncrement adds one, clamping at the uint64 max instead of
// wrapping to zero -- these counters are read as a ratio, and a wrap
// would make a long-lived peer look instantly untrustworthy.
func saturatingIncrement(v uint64) uint64 {
	next, err := safemath.Add64(v, 1)
	if err != nil {
		return v
	}
	return next
}

// Unban clears only the ban record; attempts/correct counters are left
// untouched (resolved Open Question #3 in SPEC_FULL.md).
func (l *Ledger) Unban(peerID ids.NodeID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.bans, peerID)
	return l.store.DeleteBan(peerID)
}

// Reset clears a peer's reputation counters entirely (used when an
// operator wants to give a peer a clean slate without waiting for a ban
// to expire).
func (l *Ledger) Reset(peerID ids.NodeID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.records, peerID)
	return l.store.DeleteReputation(peerID)
}

// Snapshot returns a copy of every reputation record, for operator
// tooling and tests.
func (l *Ledger) Snapshot() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Record, 0, len(l.records))
	for _, r := range l.records {
		out = append(out, *r)
	}
	return out
}

// sweepLocked removes every ban whose duration has already elapsed.
func (l *Ledger) sweepLocked(now time.Time) {
	for peerID, b := range l.bans {
		if !b.Active(now) {
			delete(l.bans, peerID)
			_ = l.store.DeleteBan(peerID)
		}
	}
}
