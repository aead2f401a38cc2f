// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package colocation implements the Co-location Probe (C12): a cheap
// RTT check used to decide whether this host should refuse drafting
// because a verifier is already local to it.
package colocation

import (
	"context"
	"net"
	"time"
)

// Prober reports whether a local verifier endpoint is reachable within
// a latency budget.
type Prober interface {
	IsColocated(ctx context.Context) bool
}

// TCPProber probes a verifier endpoint by dialing it and measuring RTT
// against threshold. On any dial failure it returns false (spec §4.12:
// "on uncertainty, default to not co-located").
type TCPProber struct {
	addr      string
	threshold time.Duration
	dialer    net.Dialer
}

// NewTCPProber constructs a TCPProber against addr (e.g.
// "127.0.0.1:5555") with the given RTT threshold (spec default 2ms).
func NewTCPProber(addr string, threshold time.Duration) *TCPProber {
	return &TCPProber{addr: addr, threshold: threshold}
}

// IsColocated dials addr and returns true iff the connection completes
// within threshold.
func (p *TCPProber) IsColocated(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.threshold)
	defer cancel()

	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", p.addr)
	if err != nil {
		return false
	}
	defer conn.Close()

	return time.Since(start) <= p.threshold
}

// Never is a Prober that always reports "not co-located", used by
// nodes that have no local verifier endpoint to probe (drafter-only
// deployments).
type Never struct{}

func (Never) IsColocated(context.Context) bool { return false }
