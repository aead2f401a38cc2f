// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/speculative-mesh/internal/catalog"
	"github.com/luxfi/speculative-mesh/internal/inbox"
	"github.com/luxfi/speculative-mesh/internal/wire"
)

type fakePublisher struct {
	topic   string
	payload []byte
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.topic = topic
	f.payload = payload
	return nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Entry{
		{Prompt: "what is 2+2?", Expected: "4", Mode: catalog.Numeric},
	})
}

func TestBroadcastPublishesOnWorkTopic(t *testing.T) {
	require := require.New(t)
	signer, err := wire.NewSigner()
	require.NoError(err)

	pub := &fakePublisher{}
	ib := inbox.New(inbox.DefaultQueueCapacity, inbox.DefaultFingerprintCapacity)
	d := New("req-1", pub, ib, signer, testCatalog(), nil, 0, 1)

	require.NoError(d.Broadcast(0, []string{"hello", "world"}, 5))
	require.Equal(wire.TopicWork, pub.topic)

	got, err := wire.DecodeWorkRequest(pub.payload)
	require.NoError(err)
	require.Equal("hello world", got.PromptContext)
}

func TestBroadcastNeverInjectsWhenRateZero(t *testing.T) {
	require := require.New(t)
	signer, err := wire.NewSigner()
	require.NoError(err)

	pub := &fakePublisher{}
	ib := inbox.New(inbox.DefaultQueueCapacity, inbox.DefaultFingerprintCapacity)
	d := New("req-1", pub, ib, signer, testCatalog(), nil, 0, 1)

	for i := 0; i < 20; i++ {
		require.NoError(d.Broadcast(uint32(i), []string{"real", "context"}, 5))
		got, err := wire.DecodeWorkRequest(pub.payload)
		require.NoError(err)
		require.Equal("real context", got.PromptContext)
	}
}

func TestBroadcastAlwaysInjectsWhenRateOne(t *testing.T) {
	require := require.New(t)
	signer, err := wire.NewSigner()
	require.NoError(err)

	pub := &fakePublisher{}
	ib := inbox.New(inbox.DefaultQueueCapacity, inbox.DefaultFingerprintCapacity)
	d := New("req-1", pub, ib, signer, testCatalog(), nil, 1, 1)

	require.NoError(d.Broadcast(0, []string{"real", "context"}, 5))
	got, err := wire.DecodeWorkRequest(pub.payload)
	require.NoError(err)
	require.Equal("what is 2+2?", got.PromptContext)
}

func TestCollectReturnsPushedDraft(t *testing.T) {
	require := require.New(t)
	signer, err := wire.NewSigner()
	require.NoError(err)

	ib := inbox.New(inbox.DefaultQueueCapacity, inbox.DefaultFingerprintCapacity)
	d := New("req-1", &fakePublisher{}, ib, signer, nil, nil, 0, 1)

	ib.Push("req-1", 0, inbox.Draft{PeerID: "peer-a"})
	draft, ok := d.Collect(0, time.Now().Add(time.Second))
	require.True(ok)
	require.Equal("peer-a", draft.PeerID)
}

func TestCollectStallsWithoutDraft(t *testing.T) {
	require := require.New(t)
	signer, err := wire.NewSigner()
	require.NoError(err)

	ib := inbox.New(inbox.DefaultQueueCapacity, inbox.DefaultFingerprintCapacity)
	d := New("req-1", &fakePublisher{}, ib, signer, nil, nil, 0, 1)

	_, ok := d.Collect(0, time.Now().Add(10*time.Millisecond))
	require.False(ok)
}

func TestDropFreesInboxFingerprint(t *testing.T) {
	require := require.New(t)
	signer, err := wire.NewSigner()
	require.NoError(err)

	ib := inbox.New(inbox.DefaultQueueCapacity, inbox.DefaultFingerprintCapacity)
	d := New("req-1", &fakePublisher{}, ib, signer, nil, nil, 0, 1)

	ib.Push("req-1", 0, inbox.Draft{PeerID: "peer-a"})
	d.Drop()
	require.Equal(0, ib.Len())
}
