// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWorkRequestRoundTrip(t *testing.T) {
	require := require.New(t)

	signer, err := NewSigner()
	require.NoError(err)

	req := WorkRequest{
		RequestID:     "req-1",
		SequenceID:    7,
		PromptContext: "hello world",
		MinTokens:     3,
	}

	data, err := EncodeWorkRequest(signer, req)
	require.NoError(err)
	require.LessOrEqual(len(data), MaxMessageBytes)

	got, err := DecodeWorkRequest(data)
	require.NoError(err)
	require.Equal(req.RequestID, got.RequestID)
	require.Equal(req.SequenceID, got.SequenceID)
	require.Equal(req.PromptContext, got.PromptContext)
	require.Equal(req.MinTokens, got.MinTokens)
	require.Equal(encodeID(signer.PublicKeyBytes()), got.PublisherID)
}

func TestWorkResultRoundTrip(t *testing.T) {
	require := require.New(t)

	signer, err := NewSigner()
	require.NoError(err)

	res := WorkResult{
		RequestID:   "req-1",
		SequenceID:  7,
		DraftTokens: []string{"The", "moon", "is"},
		LatencyMS:   12.5,
	}

	data, err := EncodeWorkResult(signer, res)
	require.NoError(err)

	got, err := DecodeWorkResult(data)
	require.NoError(err)
	require.Equal(res.DraftTokens, got.DraftTokens)
	require.Equal(encodeID(signer.PublicKeyBytes()), got.PeerID)
}

func TestDecodeRejectsTamperedSignature(t *testing.T) {
	require := require.New(t)

	signer, err := NewSigner()
	require.NoError(err)

	data, err := EncodeWorkRequest(signer, WorkRequest{
		RequestID: "req-1", PromptContext: "x", MinTokens: 1,
	})
	require.NoError(err)

	tampered := append([]byte(nil), data...)
	tampered[len(tampered)-1] ^= 0xFF

	_, err = DecodeWorkRequest(tampered)
	require.Error(err)
	require.True(errors.Is(err, ErrUnauthenticated) || strings.Contains(err.Error(), "unpacker"))
}

func TestEncodeRejectsOverSizedPromptContext(t *testing.T) {
	require := require.New(t)

	signer, err := NewSigner()
	require.NoError(err)

	_, err = EncodeWorkRequest(signer, WorkRequest{
		RequestID:     "req-1",
		PromptContext: strings.Repeat("x", MaxPromptContextBytes+1),
		MinTokens:     1,
	})
	require.ErrorIs(err, ErrOverSized)
}

func TestEncodeRejectsBadMinTokens(t *testing.T) {
	tests := []struct {
		name      string
		minTokens uint8
		wantErr   bool
	}{
		{name: "zero", minTokens: 0, wantErr: true},
		{name: "max ok", minTokens: 32, wantErr: false},
		{name: "one ok", minTokens: 1, wantErr: false},
	}

	signer, err := NewSigner()
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			_, err := EncodeWorkRequest(signer, WorkRequest{
				RequestID: "req-1", PromptContext: "x", MinTokens: tt.minTokens,
			})
			if tt.wantErr {
				require.Error(err)
			} else {
				require.NoError(err)
			}
		})
	}
}
