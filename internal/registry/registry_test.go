// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"testing"
	"time"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func TestOnConnectCreatesThenUpdatesInPlace(t *testing.T) {
	require := require.New(t)
	r := New(5 * time.Minute)
	peer := ids.GenerateTestNodeID()
	now := time.Now()

	r.OnConnect(peer, "10.0.0.1:9000", now)
	r.OnConnect(peer, "10.0.0.2:9000", now.Add(time.Second))

	p, ok := r.Get(peer)
	require.True(ok)
	require.Equal([]string{"10.0.0.1:9000", "10.0.0.2:9000"}, p.Addresses)
}

func TestHandshakeOKMarksVerifiedAndClearsFailures(t *testing.T) {
	require := require.New(t)
	r := New(5 * time.Minute)
	peer := ids.GenerateTestNodeID()
	now := time.Now()

	r.OnHandshakeFail(peer, now)
	r.OnHandshakeOK(peer, now)

	p, ok := r.Get(peer)
	require.True(ok)
	require.True(p.Verified)
	require.Equal(0, p.HandshakeFailures)
}

func TestThreeConsecutiveFailuresUnverify(t *testing.T) {
	require := require.New(t)
	r := New(5 * time.Minute)
	peer := ids.GenerateTestNodeID()
	now := time.Now()

	r.OnHandshakeOK(peer, now)
	r.OnHandshakeFail(peer, now)
	r.OnHandshakeFail(peer, now)
	p, _ := r.Get(peer)
	require.True(p.Verified)

	r.OnHandshakeFail(peer, now)
	p, _ = r.Get(peer)
	require.False(p.Verified)
}

func TestListVerifiedOnlyIncludesVerifiedPeers(t *testing.T) {
	require := require.New(t)
	r := New(5 * time.Minute)
	verified := ids.GenerateTestNodeID()
	unverified := ids.GenerateTestNodeID()
	now := time.Now()

	r.OnHandshakeOK(verified, now)
	r.OnConnect(unverified, "addr", now)

	list := r.ListVerified()
	require.Len(list, 1)
	require.Equal(verified, list[0].PeerID)
}

func TestPruneRemovesStalePeers(t *testing.T) {
	require := require.New(t)
	r := New(5 * time.Minute)
	stale := ids.GenerateTestNodeID()
	fresh := ids.GenerateTestNodeID()
	now := time.Now()

	r.OnConnect(stale, "addr", now.Add(-10*time.Minute))
	r.OnConnect(fresh, "addr", now)

	removed := r.Prune(now)
	require.Equal(1, removed)

	_, ok := r.Get(stale)
	require.False(ok)
	_, ok = r.Get(fresh)
	require.True(ok)
}

func TestOnActivityRefreshesLastSeen(t *testing.T) {
	require := require.New(t)
	r := New(5 * time.Minute)
	peer := ids.GenerateTestNodeID()
	now := time.Now()

	r.OnConnect(peer, "addr", now)
	r.OnActivity(peer, now.Add(time.Minute))

	p, _ := r.Get(peer)
	require.Equal(now.Add(time.Minute), p.LastSeenAt)
}
