// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mesh aggregates the background components one node process
// owns (transport, handshake server, peer sweeper) so main can shut
// them all down through a single call and see every failure, not just
// the first.
package mesh

import (
	"sync"

	"github.com/luxfi/speculative-mesh/utils/wrappers"
)

// component is one named shutdown hook.
type component struct {
	name  string
	close func() error
}

// Node collects shutdown hooks registered over its lifetime and runs
// them all on Close, in reverse registration order (mirroring the
// teacher's own last-started-first-stopped convention).
type Node struct {
	mu         sync.Mutex
	components []component
}

// New returns an empty Node.
func New() *Node {
	return &Node{}
}

// Register adds a shutdown hook under name, run by Close.
func (n *Node) Register(name string, close func() error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.components = append(n.components, component{name: name, close: close})
}

// Close runs every registered hook, continuing past individual
// failures, and returns their combined error (nil if all succeeded).
func (n *Node) Close() error {
	n.mu.Lock()
	components := append([]component(nil), n.components...)
	n.mu.Unlock()

	var errs wrappers.Errs
	for i := len(components) - 1; i >= 0; i-- {
		errs.Add(components[i].close())
	}
	return errs.Err()
}
