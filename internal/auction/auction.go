// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package auction implements the Auction Driver (C8): one instance per
// active request, broadcasting WorkRequests and collecting drafts from
// the Result Inbox.
package auction

import (
	"math/rand"
	"strings"
	"time"

	"github.com/luxfi/speculative-mesh/internal/catalog"
	"github.com/luxfi/speculative-mesh/internal/inbox"
	"github.com/luxfi/speculative-mesh/internal/meshmetrics"
	"github.com/luxfi/speculative-mesh/internal/wire"
)

// Publisher is the minimal transport surface the driver needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Driver runs the broadcast/collect cycle for one request.
type Driver struct {
	fingerprint string
	transport   Publisher
	inbox       *inbox.Inbox
	signer      *wire.Signer
	catalog     *catalog.Catalog
	metrics     *meshmetrics.Mesh

	injectionRate float64
	rng           *rand.Rand
}

// New constructs a Driver for one request, identified by fingerprint.
func New(fingerprint string, transport Publisher, ib *inbox.Inbox, signer *wire.Signer, cat *catalog.Catalog, metrics *meshmetrics.Mesh, injectionRate float64, rngSeed int64) *Driver {
	if metrics == nil {
		metrics = meshmetrics.NewNoOp()
	}
	return &Driver{
		fingerprint:   fingerprint,
		transport:     transport,
		inbox:         ib,
		signer:        signer,
		catalog:       cat,
		metrics:       metrics,
		injectionRate: injectionRate,
		rng:           rand.New(rand.NewSource(rngSeed)),
	}
}

// Broadcast publishes a WorkRequest for sequenceID on the work topic.
// With probability injectionRate, the real contextWindow is replaced
// with a prompt drawn from the catalog instead (resolved Open Question
// #4): drafters classify whatever prompt_context they receive, and the
// verifier's own local extension is unaffected by this substitution.
func (d *Driver) Broadcast(sequenceID uint32, contextWindow []string, minTokens uint8) error {
	promptContext := strings.Join(contextWindow, " ")

	if d.catalog != nil && d.injectionRate > 0 && d.rng.Float64() < d.injectionRate {
		if text, ok := d.catalog.RandomPromptText(d.rng.Int()); ok {
			promptContext = text
		}
	}

	req := wire.WorkRequest{
		RequestID:     d.fingerprint,
		SequenceID:    sequenceID,
		PromptContext: promptContext,
		MinTokens:     minTokens,
	}
	data, err := wire.EncodeWorkRequest(d.signer, req)
	if err != nil {
		return err
	}
	if err := d.transport.Publish(wire.TopicWork, data); err != nil {
		return err
	}
	d.metrics.AuctionRounds.Inc()
	return nil
}

// Collect waits up to deadline for a draft matching sequenceID to
// arrive in the inbox.
func (d *Driver) Collect(sequenceID uint32, deadline time.Time) (inbox.Draft, bool) {
	draft, ok := d.inbox.PopUntil(d.fingerprint, sequenceID, deadline)
	if !ok {
		d.metrics.AuctionStalls.Inc()
	}
	return draft, ok
}

// Drop releases every per-sequence queue for this request's fingerprint.
func (d *Driver) Drop() {
	d.inbox.Drop(d.fingerprint)
}
