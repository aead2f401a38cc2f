// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package drafterworker implements the Drafter Worker (C10): the
// peer-side handler for incoming WorkRequests, bridging the
// Co-location Probe, the Verification-Prompt Catalog, and the Drafter
// Model Adapter into a single WorkResult publication.
package drafterworker

import (
	"context"
	"strings"
	"time"

	"github.com/luxfi/log"

	"github.com/luxfi/speculative-mesh/internal/catalog"
	"github.com/luxfi/speculative-mesh/internal/colocation"
	"github.com/luxfi/speculative-mesh/internal/draftermodel"
	"github.com/luxfi/speculative-mesh/internal/meshlog"
	"github.com/luxfi/speculative-mesh/internal/meshmetrics"
	"github.com/luxfi/speculative-mesh/internal/registry"
	"github.com/luxfi/speculative-mesh/internal/wire"
)

// Publisher is the minimal transport surface the worker needs.
type Publisher interface {
	Publish(topic string, payload []byte) error
}

// Worker handles WorkRequests received on the work topic.
type Worker struct {
	ctx context.Context

	signer    *wire.Signer
	model     draftermodel.Model
	catalog   *catalog.Catalog
	prober    colocation.Prober
	publisher Publisher
	metrics   *meshmetrics.Mesh
	log       log.Logger
	registry  *registry.Registry

	draftTimeout time.Duration
}

// New constructs a Worker. draftTimeout bounds how long the local
// model is given to produce draft tokens for one request. reg may be
// nil, in which case incoming requests are handled without updating
// any peer registry (e.g. in tests).
func New(ctx context.Context, signer *wire.Signer, model draftermodel.Model, cat *catalog.Catalog, prober colocation.Prober, publisher Publisher, metrics *meshmetrics.Mesh, logger log.Logger, reg *registry.Registry, draftTimeout time.Duration) *Worker {
	if metrics == nil {
		metrics = meshmetrics.NewNoOp()
	}
	if logger == nil {
		logger = meshlog.NewNoOp()
	}
	if prober == nil {
		prober = colocation.Never{}
	}
	return &Worker{
		ctx:          ctx,
		signer:       signer,
		model:        model,
		catalog:      cat,
		prober:       prober,
		publisher:    publisher,
		metrics:      metrics,
		log:          meshlog.New(logger, "drafterworker"),
		registry:     reg,
		draftTimeout: draftTimeout,
	}
}

// HandleWorkRequest is the transport.Handler registered against the
// work topic. It is silent on any failure or recusal -- nothing is
// published -- except for verification prompts, which always publish
// (spec §4.10's silent-on-failure rule).
func (w *Worker) HandleWorkRequest(_ string, payload []byte) {
	req, err := wire.DecodeWorkRequest(payload)
	if err != nil {
		w.log.Debug("dropped malformed work request", "err", err)
		return
	}

	if w.registry != nil {
		if peerID, err := wire.PeerNodeID(req.PublisherID); err == nil {
			w.registry.OnActivity(peerID, time.Now())
		}
	}

	if w.prober.IsColocated(w.ctx) {
		return
	}

	start := time.Now()
	prompt, isVerification := w.catalog.Classify(req.PromptContext)

	var tokens []string
	if isVerification {
		tokens = strings.Fields(prompt.CanonicalAnswer())
	} else {
		deadline := start.Add(w.draftTimeout)
		draftTokens, err := w.model.Draft(w.ctx, req.PromptContext, int(req.MinTokens), deadline)
		if err != nil || len(draftTokens) == 0 {
			return
		}
		tokens = draftTokens
	}

	result := wire.WorkResult{
		RequestID:            req.RequestID,
		SequenceID:           req.SequenceID,
		DraftTokens:          tokens,
		LatencyMS:            float64(time.Since(start).Milliseconds()),
		IsVerificationAnswer: isVerification,
	}
	data, err := wire.EncodeWorkResult(w.signer, result)
	if err != nil {
		w.log.Warn("failed to encode work result", "err", err)
		return
	}
	if err := w.publisher.Publish(wire.TopicWorkResult, data); err != nil {
		w.log.Warn("failed to publish work result", "err", err)
	}
}
