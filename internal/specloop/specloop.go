// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package specloop implements the Speculative Loop (C9): the outer
// state machine that interleaves local verifier extension with remote
// drafts, decides accept/correct, and streams tokens to the façade.
//
// The round-based select{} shape -- suspend on a collection deadline,
// otherwise keep extending -- generalizes the teacher's core/wave.Tick,
// which runs one timer-bounded vote-collection round per consensus
// poll; here the "vote" is a drafted token sequence instead of a
// preference.
package specloop

import (
	"context"
	"strings"
	"time"

	"github.com/luxfi/ids"

	"github.com/luxfi/speculative-mesh/internal/auction"
	"github.com/luxfi/speculative-mesh/internal/catalog"
	"github.com/luxfi/speculative-mesh/internal/facade"
	"github.com/luxfi/speculative-mesh/internal/inbox"
	"github.com/luxfi/speculative-mesh/internal/meshmetrics"
	"github.com/luxfi/speculative-mesh/internal/verifiermodel"
	"github.com/luxfi/speculative-mesh/internal/wire"
	"github.com/luxfi/speculative-mesh/set"
)

// Config holds the loop's tunable timings and caps (spec §4.9, §5).
type Config struct {
	TAuction      time.Duration
	TCollect      time.Duration
	TCooldown     time.Duration
	TRequest      time.Duration
	NStall        int
	ContextWindow int
}

// DefaultConfig returns the spec's stated defaults.
func DefaultConfig() Config {
	return Config{
		TAuction:      50 * time.Millisecond,
		TCollect:      40 * time.Millisecond,
		TCooldown:     2 * time.Second,
		TRequest:      120 * time.Second,
		NStall:        20,
		ContextWindow: 100,
	}
}

// Banner is the subset of the Reputation Ledger the loop needs for
// pre-screening and verification-prompt grading results.
type Banner interface {
	IsBanned(peerID ids.NodeID, now time.Time) bool
	OnVerificationResult(peerID ids.NodeID, correct bool, now time.Time) error
}

// Loop runs one completion's state machine to Terminal.
type Loop struct {
	model      verifiermodel.Model
	driver     *auction.Driver
	catalog    *catalog.Catalog
	ledger     Banner
	metrics    *meshmetrics.Mesh
	facade     *facade.Facade
	selfPeerID string
	cfg        Config
	stopTokens set.Set[string]
}

// New constructs a Loop for one request. driver must already be bound
// to this request's fingerprint (see internal/auction.New).
func New(model verifiermodel.Model, driver *auction.Driver, cat *catalog.Catalog, ledger Banner, metrics *meshmetrics.Mesh, f *facade.Facade, selfPeerID string, cfg Config) *Loop {
	if metrics == nil {
		metrics = meshmetrics.NewNoOp()
	}
	return &Loop{
		model:      model,
		driver:     driver,
		catalog:    cat,
		ledger:     ledger,
		metrics:    metrics,
		facade:     f,
		selfPeerID: selfPeerID,
		cfg:        cfg,
		stopTokens: set.Of(model.StopTokens()...),
	}
}

// Run drives the state machine to completion, always calling
// l.facade.Finish exactly once before returning.
func (l *Loop) Run(ctx context.Context) {
	job := l.facade.Job()
	reason, err := l.run(ctx, job)
	l.driver.Drop()
	l.facade.Finish(facade.Result{Reason: reason, Err: err})
}

type runState struct {
	context           []string
	emittedCount      int
	lastAuctionAt     time.Time
	sequenceID        uint32
	consecutiveStalls int
	cooldownUntil     time.Time
}

func (l *Loop) run(ctx context.Context, job facade.Job) (facade.Reason, error) {
	requestDeadline := time.Now().Add(l.cfg.TRequest)

	st := &runState{
		context: promptTokens(l.model, job.PromptMessages),
	}
	lastUserMessage := lastUserText(job.PromptMessages)

	for {
		if time.Now().After(requestDeadline) {
			return facade.ReasonTimeout, nil
		}
		select {
		case <-l.facade.Cancelled():
			return facade.ReasonCancelled, nil
		default:
		}

		// Step 1: Extending.
		next, err := l.model.Extend(ctx, st.context, 1)
		if err != nil {
			return facade.ReasonVerifierFatal, err
		}
		if len(next) == 0 {
			return facade.ReasonStop, nil
		}
		token := next[0]
		st.context = append(st.context, token)
		st.emittedCount++
		if !l.facade.Send(token) {
			return facade.ReasonCancelled, nil
		}
		if l.stopTokens.Contains(token) {
			return facade.ReasonStop, nil
		}
		if st.emittedCount >= job.MaxTokens {
			return facade.ReasonLength, nil
		}

		// Step 2: throttled auction gate.
		now := time.Now()
		cooling := now.Before(st.cooldownUntil)
		if cooling {
			l.metrics.CooldownActive.Set(1)
			continue
		}
		l.metrics.CooldownActive.Set(0)
		if !st.lastAuctionAt.IsZero() && now.Sub(st.lastAuctionAt) < l.cfg.TAuction {
			continue
		}
		st.lastAuctionAt = now

		terminal, reason, err := l.auctionRound(ctx, st, lastUserMessage, job)
		if terminal {
			return reason, err
		}
	}
}

// auctionRound runs steps 3-8 of one iteration. It returns terminal=true
// when the request must stop.
func (l *Loop) auctionRound(ctx context.Context, st *runState, lastUserMessage string, job facade.Job) (bool, facade.Reason, error) {
	// Step 3: Auctioning.
	sequenceID := st.sequenceID
	st.sequenceID++

	window := st.context
	if len(window) > l.cfg.ContextWindow {
		window = window[len(window)-l.cfg.ContextWindow:]
	}
	if err := l.driver.Broadcast(sequenceID, window, 1); err != nil {
		return true, facade.ReasonVerifierFatal, err
	}
	deadline := time.Now().Add(l.cfg.TCollect)

	// Step 4: Collecting.
	draft, ok := l.driver.Collect(sequenceID, deadline)
	if !ok {
		st.consecutiveStalls++
		if st.consecutiveStalls >= l.cfg.NStall {
			st.cooldownUntil = time.Now().Add(l.cfg.TCooldown)
			l.metrics.CooldownActive.Set(1)
		}
		return false, 0, nil
	}
	st.consecutiveStalls = 0

	// Step 5: Pre-screen.
	peerID, err := wire.PeerNodeID(draft.PeerID)
	if err == nil {
		if draft.PeerID == l.selfPeerID || l.ledger.IsBanned(peerID, time.Now()) {
			l.metrics.DraftsRejected.Inc()
			return false, 0, nil
		}
	}

	if lastUserMessage != "" {
		if prompt, isVerification := l.catalog.Classify(lastUserMessage); isVerification {
			return l.verificationPath(st, peerID, err == nil, prompt, draft)
		}
	}

	return l.normalPath(ctx, st, draft, job)
}

// verificationPath is step 6: the draft is graded as a whole text reply
// and never committed to the user-visible context.
func (l *Loop) verificationPath(st *runState, peerID ids.NodeID, havePeerID bool, prompt catalog.Prompt, draft inbox.Draft) (bool, facade.Reason, error) {
	reply := strings.Join(draft.DraftTokens, " ")
	correct := prompt.Grade(reply)
	l.metrics.VerificationChecks.Inc()
	if havePeerID {
		_ = l.ledger.OnVerificationResult(peerID, correct, time.Now())
	}
	return false, 0, nil
}

// normalPath is step 7: accept a verified prefix, optionally append one
// correction token, and discard the rest.
func (l *Loop) normalPath(ctx context.Context, st *runState, draft inbox.Draft, job facade.Job) (bool, facade.Reason, error) {
	accepted, correction, hasCorrection, err := l.model.VerifyPrefix(ctx, st.context, draft.DraftTokens)
	if err != nil {
		return true, facade.ReasonVerifierFatal, err
	}

	for _, tok := range accepted {
		st.context = append(st.context, tok)
		st.emittedCount++
		l.metrics.DraftsAccepted.Inc()
		if !l.facade.Send(tok) {
			return true, facade.ReasonCancelled, nil
		}
		if l.stopTokens.Contains(tok) {
			return true, facade.ReasonStop, nil
		}
		if st.emittedCount >= job.MaxTokens {
			return true, facade.ReasonLength, nil
		}
	}

	if hasCorrection {
		st.context = append(st.context, correction)
		st.emittedCount++
		l.metrics.DraftsCorrected.Inc()
		if !l.facade.Send(correction) {
			return true, facade.ReasonCancelled, nil
		}
		if l.stopTokens.Contains(correction) {
			return true, facade.ReasonStop, nil
		}
		if st.emittedCount >= job.MaxTokens {
			return true, facade.ReasonLength, nil
		}
	}
	return false, 0, nil
}

func promptTokens(model verifiermodel.Model, messages []facade.Message) []string {
	var out []string
	for _, m := range messages {
		out = append(out, model.Tokenise(m.Text)...)
	}
	return out
}

func lastUserText(messages []facade.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Text
		}
	}
	return ""
}
