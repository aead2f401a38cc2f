// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package colocation

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsColocatedTrueWhenEndpointReachable(t *testing.T) {
	require := require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	p := NewTCPProber(ln.Addr().String(), 500*time.Millisecond)
	require.True(p.IsColocated(context.Background()))
}

func TestIsColocatedFalseWhenUnreachable(t *testing.T) {
	require := require.New(t)
	p := NewTCPProber("127.0.0.1:1", 50*time.Millisecond)
	require.False(p.IsColocated(context.Background()))
}

func TestNeverProberAlwaysFalse(t *testing.T) {
	require := require.New(t)
	require.False(Never{}.IsColocated(context.Background()))
}
