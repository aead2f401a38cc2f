// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package handshake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPingPongRoundTrip(t *testing.T) {
	require := require.New(t)

	addr := "tcp://127.0.0.1:17556"
	srv, err := Listen(addr)
	require.NoError(err)
	defer srv.Close()

	time.Sleep(50 * time.Millisecond)

	rtt, err := Ping(addr, "client-1", time.Second)
	require.NoError(err)
	require.GreaterOrEqual(rtt, time.Duration(0))
}

func TestPingTimesOutAgainstDeadServer(t *testing.T) {
	require := require.New(t)

	_, err := Ping("tcp://127.0.0.1:17557", "client-2", 100*time.Millisecond)
	require.Error(err)
}
