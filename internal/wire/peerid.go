// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package wire

import (
	"crypto/sha256"
	"fmt"

	"github.com/luxfi/ids"
)

// PeerNodeID derives a mesh-level ids.NodeID from a wire peer/publisher
// id string -- the hex-encoded BLS public key embedded in every signed
// WorkRequest/WorkResult record (see encodeID). The embedded id itself
// must stay the raw public key, since decode's signature check recovers
// it to verify the record -- so peer identity for the registry and
// reputation ledger is a truncated hash of it instead, the 20-byte
// short-id form ids.NodeID expects (ids.NodeIDFromString does not parse
// a bare hex pubkey: its canonical form is "NodeID-" plus a CB58 encoding
// of a 20-byte hash).
func PeerNodeID(peerID string) (ids.NodeID, error) {
	pk, err := decodeID(peerID)
	if err != nil {
		return ids.NodeID{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	sum := sha256.Sum256(pk)
	nodeID, err := ids.ToNodeID(sum[:20])
	if err != nil {
		return ids.NodeID{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nodeID, nil
}
