// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package verifiermodel implements the Verifier Model Adapter (C1): the
// boundary between the Speculative Loop and whatever heavyweight model
// actually runs tokenisation, local extension, and draft verification.
package verifiermodel

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"strings"
)

// ErrModelFailure is returned by Extend/VerifyPrefix when the
// underlying model call itself fails, distinct from "no match" (spec
// §4.1: "distinguishable from 'no match'").
var ErrModelFailure = errors.New("verifiermodel: model call failed")

// Model is the verifier's contract: tokenise raw text, deterministically
// extend a context by one or more tokens, and verify a drafted
// continuation against what the model itself would have produced.
type Model interface {
	Tokenise(text string) []string
	Extend(ctx context.Context, context []string, n int) ([]string, error)
	VerifyPrefix(ctx context.Context, context, draftTokens []string) (acceptedPrefix []string, correction string, hasCorrection bool, err error)
	StopTokens() []string
	IDFor(token string) int
}

// FuzzyTopK controls how many of the verifier's top candidates at each
// position count as a match (spec §4.1; default 1 = strict argmax).
type FuzzyTopK int

// DeterministicModel is a small, fully reproducible stand-in for a real
// heavyweight model: every position's "argmax" token is a pure function
// of the context hash and position, which is sufficient to exercise
// every invariant in spec.md §8 (prefix acceptance, correction,
// termination) without loading real weights.
type DeterministicModel struct {
	fuzzyTopK  int
	maxTokens  int
	stopTokens []string
	vocabulary []string
}

// NewDeterministicModel constructs a DeterministicModel. fuzzyTopK must
// be >= 1; vocabulary is the closed token set extension draws from.
func NewDeterministicModel(fuzzyTopK int, vocabulary []string, stopTokens []string) *DeterministicModel {
	if fuzzyTopK < 1 {
		fuzzyTopK = 1
	}
	if len(vocabulary) == 0 {
		vocabulary = defaultVocabulary
	}
	return &DeterministicModel{
		fuzzyTopK:  fuzzyTopK,
		vocabulary: vocabulary,
		stopTokens: stopTokens,
	}
}

var defaultVocabulary = strings.Fields(
	"the a an of to in is are was were be been being " +
		"have has had do does did will would could should " +
		"mesh draft verify token context prompt answer number " +
		"end stop done finished result value because since",
)

// Tokenise splits on whitespace; a production adapter would wrap a real
// tokeniser, but whitespace splitting is sufficient to exercise the
// Speculative Loop's contract against this text-level API.
func (m *DeterministicModel) Tokenise(text string) []string {
	return strings.Fields(text)
}

// Extend deterministically derives the next n tokens, each from a hash
// of the context extended by the tokens chosen before it, so that
// repeated calls with the same context always produce the same
// continuation (spec §4.1: "deterministic given context") and an
// n-token call yields the same tokens as n one-token calls.
func (m *DeterministicModel) Extend(_ context.Context, ctx []string, n int) ([]string, error) {
	out := make([]string, 0, n)
	extended := append([]string(nil), ctx...)
	for i := 0; i < n; i++ {
		tok := m.argmaxAt(extended, len(ctx)+i)
		out = append(out, tok)
		extended = append(extended, tok)
	}
	return out, nil
}

// VerifyPrefix walks draftTokens from position 0, accepting each token
// that matches the verifier's own choice (within the fuzzy top-k
// envelope) at that position, and stops at the first mismatch.
func (m *DeterministicModel) VerifyPrefix(_ context.Context, ctx, draftTokens []string) ([]string, string, bool, error) {
	accepted := make([]string, 0, len(draftTokens))
	extended := append(append([]string(nil), ctx...), []string{}...)

	for i, tok := range draftTokens {
		candidates := m.topKAt(extended, len(ctx)+i)
		if contains(candidates, tok) {
			accepted = append(accepted, tok)
			extended = append(extended, tok)
			continue
		}
		correction := candidates[0]
		return accepted, correction, true, nil
	}
	return accepted, "", false, nil
}

func (m *DeterministicModel) StopTokens() []string {
	return m.stopTokens
}

// IDFor returns a stable small integer for token, used only for
// equality checks by callers that prefer comparing ids over strings.
func (m *DeterministicModel) IDFor(token string) int {
	h := sha256.Sum256([]byte(token))
	return int(binary.BigEndian.Uint32(h[:4]))
}

// argmaxAt returns the single best token at position considering only
// the context hash and position, i.e. the rank-0 candidate of topKAt.
func (m *DeterministicModel) argmaxAt(ctx []string, position int) string {
	return m.topKAt(ctx, position)[0]
}

// topKAt returns m.fuzzyTopK distinct vocabulary entries, ranked by a
// stable hash of (context, position), with rank 0 being the model's
// preferred ("argmax") token at that position.
func (m *DeterministicModel) topKAt(ctx []string, position int) []string {
	h := sha256.New()
	for _, tok := range ctx {
		h.Write([]byte(tok))
		h.Write([]byte{0})
	}
	var posBuf [8]byte
	binary.BigEndian.PutUint64(posBuf[:], uint64(position))
	h.Write(posBuf[:])
	digest := h.Sum(nil)

	k := m.fuzzyTopK
	if k > len(m.vocabulary) {
		k = len(m.vocabulary)
	}
	out := make([]string, 0, k)
	seen := make(map[int]bool, k)
	for i := 0; i < k; i++ {
		idx := int(binary.BigEndian.Uint32(digest[(i*4)%(len(digest)-4):])) % len(m.vocabulary)
		for seen[idx] {
			idx = (idx + 1) % len(m.vocabulary)
		}
		seen[idx] = true
		out = append(out, m.vocabulary[idx])
	}
	return out
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
