// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPushThenPopUntilReturnsImmediately(t *testing.T) {
	require := require.New(t)
	ib := New(DefaultQueueCapacity, DefaultFingerprintCapacity)

	ib.Push("req-1", 0, Draft{PeerID: "peer-a", DraftTokens: []string{"hi"}})

	d, ok := ib.PopUntil("req-1", 0, time.Now().Add(time.Second))
	require.True(ok)
	require.Equal("peer-a", d.PeerID)
}

func TestPopUntilTimesOutWhenEmpty(t *testing.T) {
	require := require.New(t)
	ib := New(DefaultQueueCapacity, DefaultFingerprintCapacity)

	start := time.Now()
	_, ok := ib.PopUntil("req-1", 0, start.Add(20*time.Millisecond))
	require.False(ok)
	require.WithinDuration(start.Add(20*time.Millisecond), time.Now(), 50*time.Millisecond)
}

func TestPopUntilWakesOnLateArrival(t *testing.T) {
	require := require.New(t)
	ib := New(DefaultQueueCapacity, DefaultFingerprintCapacity)

	go func() {
		time.Sleep(10 * time.Millisecond)
		ib.Push("req-1", 0, Draft{PeerID: "peer-a"})
	}()

	d, ok := ib.PopUntil("req-1", 0, time.Now().Add(time.Second))
	require.True(ok)
	require.Equal("peer-a", d.PeerID)
}

func TestFIFOOrderWithinOneKey(t *testing.T) {
	require := require.New(t)
	ib := New(DefaultQueueCapacity, DefaultFingerprintCapacity)

	ib.Push("req-1", 0, Draft{PeerID: "first"})
	ib.Push("req-1", 0, Draft{PeerID: "second"})

	d1, _ := ib.PopUntil("req-1", 0, time.Now().Add(time.Second))
	d2, _ := ib.PopUntil("req-1", 0, time.Now().Add(time.Second))
	require.Equal("first", d1.PeerID)
	require.Equal("second", d2.PeerID)
}

func TestQueueCapacityDropsOverflow(t *testing.T) {
	require := require.New(t)
	ib := New(2, DefaultFingerprintCapacity)

	ib.Push("req-1", 0, Draft{PeerID: "a"})
	ib.Push("req-1", 0, Draft{PeerID: "b"})
	ib.Push("req-1", 0, Draft{PeerID: "c"}) // dropped

	require.Equal(uint64(1), ib.DroppedCount("req-1"))
}

func TestFingerprintLRUEvictsOldest(t *testing.T) {
	require := require.New(t)
	ib := New(DefaultQueueCapacity, 2)

	ib.Push("req-1", 0, Draft{PeerID: "a"})
	ib.Push("req-2", 0, Draft{PeerID: "b"})
	ib.Push("req-3", 0, Draft{PeerID: "c"}) // evicts req-1

	require.Equal(2, ib.Len())
	_, ok := ib.PopUntil("req-1", 0, time.Now())
	require.False(ok)
}

func TestDropFreesFingerprint(t *testing.T) {
	require := require.New(t)
	ib := New(DefaultQueueCapacity, DefaultFingerprintCapacity)

	ib.Push("req-1", 0, Draft{PeerID: "a"})
	ib.Drop("req-1")
	require.Equal(0, ib.Len())
}
