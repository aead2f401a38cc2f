// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package draftermodel implements the Drafter Model Adapter (C2): the
// lightweight, best-effort model a drafter peer runs to speculate
// tokens on the verifier's behalf.
package draftermodel

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"time"
)

// Model is a drafter's contract: best-effort, bounded-latency
// speculation over a prompt context window.
type Model interface {
	Draft(ctx context.Context, promptContext string, k int, deadline time.Time) ([]string, error)
}

// DeterministicModel derives draft tokens from a hash of the prompt
// context, mirroring the shape (not the weights) of a real lightweight
// model: fast, best-effort, and bounded by deadline.
type DeterministicModel struct {
	vocabulary []string
}

// NewDeterministicModel constructs a DeterministicModel over vocabulary,
// or a small built-in vocabulary if none is given.
func NewDeterministicModel(vocabulary []string) *DeterministicModel {
	if len(vocabulary) == 0 {
		vocabulary = strings.Fields(
			"the a an of to in is are was were be been being " +
				"have has had do does did will would could should " +
				"mesh draft verify token context prompt answer number",
		)
	}
	return &DeterministicModel{vocabulary: vocabulary}
}

// Draft returns up to k tokens derived from promptContext. It respects
// deadline by checking it between tokens rather than mid-token, which is
// sufficient since token production here is not actually CPU-bound; a
// real adapter would check the context/deadline inside its own decode
// loop the same way.
func (m *DeterministicModel) Draft(ctx context.Context, promptContext string, k int, deadline time.Time) ([]string, error) {
	out := make([]string, 0, k)
	for i := 0; i < k; i++ {
		select {
		case <-ctx.Done():
			return out, nil
		default:
		}
		if time.Now().After(deadline) {
			return out, nil
		}
		out = append(out, m.tokenAt(promptContext, i))
	}
	return out, nil
}

func (m *DeterministicModel) tokenAt(promptContext string, position int) string {
	h := sha256.New()
	h.Write([]byte(promptContext))
	var posBuf [8]byte
	binary.BigEndian.PutUint64(posBuf[:], uint64(position))
	h.Write(posBuf[:])
	digest := h.Sum(nil)
	idx := int(binary.BigEndian.Uint32(digest[:4])) % len(m.vocabulary)
	return m.vocabulary[idx]
}
