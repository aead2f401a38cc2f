// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package drafterworker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/speculative-mesh/internal/catalog"
	"github.com/luxfi/speculative-mesh/internal/colocation"
	"github.com/luxfi/speculative-mesh/internal/draftermodel"
	"github.com/luxfi/speculative-mesh/internal/wire"
)

type fakePublisher struct {
	topic   string
	payload []byte
	calls   int
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.topic = topic
	f.payload = payload
	f.calls++
	return nil
}

func testCatalog() *catalog.Catalog {
	return catalog.New([]catalog.Entry{
		{Prompt: "what is 2+2?", Expected: "4", Mode: catalog.Numeric},
	})
}

func newRequest(t *testing.T, promptContext string, minTokens uint8) []byte {
	t.Helper()
	signer, err := wire.NewSigner()
	require.NoError(t, err)
	data, err := wire.EncodeWorkRequest(signer, wire.WorkRequest{
		RequestID:     "req-1",
		SequenceID:    3,
		PromptContext: promptContext,
		MinTokens:     minTokens,
	})
	require.NoError(t, err)
	return data
}

func TestHandleWorkRequestPublishesDraft(t *testing.T) {
	require := require.New(t)
	signer, err := wire.NewSigner()
	require.NoError(err)

	pub := &fakePublisher{}
	w := New(context.Background(), signer, draftermodel.NewDeterministicModel(nil), testCatalog(), colocation.Never{}, pub, nil, nil, nil, time.Second)

	w.HandleWorkRequest("peer-x", newRequest(t, "ordinary context text", 3))

	require.Equal(1, pub.calls)
	got, err := wire.DecodeWorkResult(pub.payload)
	require.NoError(err)
	require.False(got.IsVerificationAnswer)
	require.NotEmpty(got.DraftTokens)
}

func TestHandleWorkRequestAnswersVerificationPromptFromCatalog(t *testing.T) {
	require := require.New(t)
	signer, err := wire.NewSigner()
	require.NoError(err)

	pub := &fakePublisher{}
	w := New(context.Background(), signer, draftermodel.NewDeterministicModel(nil), testCatalog(), colocation.Never{}, pub, nil, nil, nil, time.Second)

	w.HandleWorkRequest("peer-x", newRequest(t, "what is 2+2?", 3))

	require.Equal(1, pub.calls)
	got, err := wire.DecodeWorkResult(pub.payload)
	require.NoError(err)
	require.True(got.IsVerificationAnswer)
	require.Equal([]string{"4"}, got.DraftTokens)
}

func TestHandleWorkRequestRecusesWhenColocated(t *testing.T) {
	require := require.New(t)
	signer, err := wire.NewSigner()
	require.NoError(err)

	pub := &fakePublisher{}
	w := New(context.Background(), signer, draftermodel.NewDeterministicModel(nil), testCatalog(), alwaysColocated{}, pub, nil, nil, nil, time.Second)

	w.HandleWorkRequest("peer-x", newRequest(t, "ordinary context text", 3))

	require.Equal(0, pub.calls)
}

type alwaysColocated struct{}

func (alwaysColocated) IsColocated(context.Context) bool { return true }

type failingModel struct{}

func (failingModel) Draft(context.Context, string, int, time.Time) ([]string, error) {
	return nil, nil
}

func TestHandleWorkRequestSilentOnEmptyDraft(t *testing.T) {
	require := require.New(t)
	signer, err := wire.NewSigner()
	require.NoError(err)

	pub := &fakePublisher{}
	w := New(context.Background(), signer, failingModel{}, testCatalog(), colocation.Never{}, pub, nil, nil, nil, time.Second)

	w.HandleWorkRequest("peer-x", newRequest(t, "ordinary context text", 3))

	require.Equal(0, pub.calls)
}
