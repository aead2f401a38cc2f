// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package verifiermodel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtendIsDeterministicGivenSameContext(t *testing.T) {
	require := require.New(t)
	m := NewDeterministicModel(1, nil, []string{"end"})

	ctx := []string{"the", "mesh"}
	a, err := m.Extend(context.Background(), ctx, 3)
	require.NoError(err)
	b, err := m.Extend(context.Background(), ctx, 3)
	require.NoError(err)
	require.Equal(a, b)
}

func TestVerifyPrefixAcceptsMatchingDraft(t *testing.T) {
	require := require.New(t)
	m := NewDeterministicModel(1, nil, []string{"end"})

	ctx := []string{"the", "mesh"}
	draft, err := m.Extend(context.Background(), ctx, 3)
	require.NoError(err)

	accepted, _, hasCorrection, err := m.VerifyPrefix(context.Background(), ctx, draft)
	require.NoError(err)
	require.False(hasCorrection)
	require.Equal(draft, accepted)
}

func TestVerifyPrefixCorrectsAtFirstMismatch(t *testing.T) {
	require := require.New(t)
	m := NewDeterministicModel(1, nil, []string{"end"})

	ctx := []string{"the", "mesh"}
	draft, err := m.Extend(context.Background(), ctx, 3)
	require.NoError(err)

	tampered := append([]string(nil), draft...)
	tampered[1] = "zzz-not-in-vocabulary-zzz"

	accepted, correction, hasCorrection, err := m.VerifyPrefix(context.Background(), ctx, tampered)
	require.NoError(err)
	require.True(hasCorrection)
	require.Equal(draft[:1], accepted)
	require.Equal(draft[1], correction)
}

func TestFuzzyTopKWidensAcceptance(t *testing.T) {
	require := require.New(t)
	strict := NewDeterministicModel(1, nil, nil)
	fuzzy := NewDeterministicModel(5, nil, nil)

	ctx := []string{"context"}
	strictCandidates := strict.topKAt(ctx, 0)
	fuzzyCandidates := fuzzy.topKAt(ctx, 0)
	require.Len(strictCandidates, 1)
	require.GreaterOrEqual(len(fuzzyCandidates), len(strictCandidates))
}

func TestTokeniseSplitsOnWhitespace(t *testing.T) {
	require := require.New(t)
	m := NewDeterministicModel(1, nil, nil)
	require.Equal([]string{"hello", "world"}, m.Tokenise("hello   world"))
}

func TestIDForIsStableAcrossCalls(t *testing.T) {
	require := require.New(t)
	m := NewDeterministicModel(1, nil, nil)
	require.Equal(m.IDFor("mesh"), m.IDFor("mesh"))
}
