// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package meshmetrics wires the testable properties of §8 into
// Prometheus collectors. It never starts a scrape server itself -- the
// caller owns the prometheus.Registerer, matching the teacher's
// Metrics.Register boundary.
package meshmetrics

import "github.com/prometheus/client_golang/prometheus"

// Mesh holds every collector an auction driver and speculative loop
// touch during a request's lifetime.
type Mesh struct {
	AuctionRounds      prometheus.Counter
	AuctionStalls      prometheus.Counter
	DraftsAccepted     prometheus.Counter
	DraftsCorrected    prometheus.Counter
	DraftsRejected     prometheus.Counter
	VerificationChecks prometheus.Counter
	BansIssued         prometheus.Counter
	PeersConnected     prometheus.Gauge
	CooldownActive     prometheus.Gauge
}

// NewMesh constructs and registers the mesh's collectors against reg.
func NewMesh(reg prometheus.Registerer) (*Mesh, error) {
	m := &Mesh{
		AuctionRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_auction_rounds_total",
			Help: "Number of auction rounds broadcast by the auction driver.",
		}),
		AuctionStalls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_auction_stalls_total",
			Help: "Number of auction rounds that collected no draft before deadline.",
		}),
		DraftsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_drafts_accepted_tokens_total",
			Help: "Number of draft tokens accepted verbatim by the verifier.",
		}),
		DraftsCorrected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_drafts_corrected_total",
			Help: "Number of draft rounds where the verifier supplied a correction token.",
		}),
		DraftsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_drafts_rejected_total",
			Help: "Number of drafts discarded before verification (banned peer, self-id).",
		}),
		VerificationChecks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_verification_checks_total",
			Help: "Number of verification-prompt gradings performed.",
		}),
		BansIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mesh_bans_issued_total",
			Help: "Number of bans issued by the reputation ledger.",
		}),
		PeersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mesh_peers_connected",
			Help: "Number of verified peers currently in the registry.",
		}),
		CooldownActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mesh_cooldown_active",
			Help: "1 if any request is currently in a stall cooldown, else 0.",
		}),
	}

	collectors := []prometheus.Collector{
		m.AuctionRounds, m.AuctionStalls, m.DraftsAccepted, m.DraftsCorrected,
		m.DraftsRejected, m.VerificationChecks, m.BansIssued, m.PeersConnected,
		m.CooldownActive,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewNoOp returns a Mesh backed by unregistered collectors, safe to
// use in tests that don't care about metrics output.
func NewNoOp() *Mesh {
	m, _ := NewMesh(prometheus.NewRegistry())
	return m
}
