// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package mesh

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloseRunsHooksInReverseOrder(t *testing.T) {
	require := require.New(t)

	var order []string
	n := New()
	n.Register("a", func() error { order = append(order, "a"); return nil })
	n.Register("b", func() error { order = append(order, "b"); return nil })
	n.Register("c", func() error { order = append(order, "c"); return nil })

	require.NoError(n.Close())
	require.Equal([]string{"c", "b", "a"}, order)
}

func TestCloseAggregatesAllErrors(t *testing.T) {
	require := require.New(t)

	errA := errors.New("a failed")
	errC := errors.New("c failed")

	n := New()
	n.Register("a", func() error { return errA })
	n.Register("b", func() error { return nil })
	n.Register("c", func() error { return errC })

	err := n.Close()
	require.Error(err)
	require.Contains(err.Error(), "a failed")
	require.Contains(err.Error(), "c failed")
}

func TestCloseOnEmptyNodeIsNil(t *testing.T) {
	require.NoError(t, New().Close())
}
