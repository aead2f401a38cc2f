// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package transport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnqueueDropsOldestOnByteBudgetOverflow(t *testing.T) {
	require := require.New(t)

	ps := &peerSender{queue: make(chan []byte, 4096)}

	first := make([]byte, OutboundQueueBytes-1)
	second := make([]byte, 2)

	enqueue(ps, first)
	require.Equal(len(first), ps.queued)

	enqueue(ps, second)

	// first must have been dropped to make room for second.
	require.Equal(len(second), ps.queued)
	got := <-ps.queue
	require.Equal(second, got)
}

func TestEnqueueKeepsBothWhenUnderBudget(t *testing.T) {
	require := require.New(t)

	ps := &peerSender{queue: make(chan []byte, 4096)}

	a := []byte("hello")
	b := []byte("world")
	enqueue(ps, a)
	enqueue(ps, b)

	require.Equal(len(a)+len(b), ps.queued)
	require.Equal(a, <-ps.queue)
	require.Equal(b, <-ps.queue)
}
