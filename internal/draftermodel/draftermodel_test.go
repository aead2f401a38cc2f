// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package draftermodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDraftReturnsUpToKTokens(t *testing.T) {
	require := require.New(t)
	m := NewDeterministicModel(nil)

	tokens, err := m.Draft(context.Background(), "hello world", 5, time.Now().Add(time.Second))
	require.NoError(err)
	require.Len(tokens, 5)
}

func TestDraftIsDeterministicGivenSameContext(t *testing.T) {
	require := require.New(t)
	m := NewDeterministicModel(nil)

	a, err := m.Draft(context.Background(), "same context", 3, time.Now().Add(time.Second))
	require.NoError(err)
	b, err := m.Draft(context.Background(), "same context", 3, time.Now().Add(time.Second))
	require.NoError(err)
	require.Equal(a, b)
}

func TestDraftStopsAtDeadline(t *testing.T) {
	require := require.New(t)
	m := NewDeterministicModel(nil)

	tokens, err := m.Draft(context.Background(), "x", 100, time.Now().Add(-time.Second))
	require.NoError(err)
	require.Empty(tokens)
}

func TestDraftRespectsCancellation(t *testing.T) {
	require := require.New(t)
	m := NewDeterministicModel(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tokens, err := m.Draft(ctx, "x", 5, time.Now().Add(time.Second))
	require.NoError(err)
	require.Empty(tokens)
}
