// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package transport implements the Pub/Sub Transport (C6): two logical
// topics (work, work-result) broadcast to every connected peer with a
// per-peer outbound bound, plus a point-to-point SendTo. The handshake
// channel lives in internal/handshake, not here.
//
// Plain PUB/SUB (as in utils/networking/zmq4/transport.go) gives every
// subscriber the same firehose with no per-peer backpressure hook, and
// spec §4.6 needs one ("per-peer outbound bound, default 2 MiB queued;
// overflow drops oldest"). So this generalizes the teacher's ROUTER/
// DEALER direct-message path (cmd/consensus/zmq.go, utils/networking/
// zmq4/transport.go's router/dealer pair) into a fan-out broadcast: one
// DEALER per connected peer, each fed by its own bounded queue.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/luxfi/zmq4"

	"github.com/luxfi/speculative-mesh/internal/meshlog"
	"github.com/luxfi/speculative-mesh/internal/meshmetrics"
	"github.com/luxfi/speculative-mesh/internal/wire"
	"github.com/luxfi/log"
)

// OutboundQueueBytes is the per-peer backpressure bound of spec §4.6.
const OutboundQueueBytes = 2 * 1024 * 1024

// Handler processes one inbound message on a topic.
type Handler func(peerID string, payload []byte)

// envelope is the small JSON wrapper carrying a topic alongside an
// already wire-framed (signed) payload.
type envelope struct {
	Topic   string `json:"topic"`
	Payload []byte `json:"payload"`
}

// Transport is one node's broadcast fabric: it listens for inbound
// DEALER connections on a ROUTER socket, and maintains one outbound
// DEALER per peer it has been told to connect to.
type Transport struct {
	ctx    context.Context
	cancel context.CancelFunc
	nodeID string
	log    log.Logger
	metrics *meshmetrics.Mesh

	router zmq4.Socket

	mu    sync.RWMutex
	peers map[string]*peerSender

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	wg sync.WaitGroup
}

type peerSender struct {
	dealer  zmq4.Socket
	queue   chan []byte
	queued  int
	mu      sync.Mutex
	stop    chan struct{}
}

// New constructs a Transport bound to nodeID. Call Listen to bind the
// inbound router socket and Connect for each known peer.
func New(ctx context.Context, nodeID string, logger log.Logger, metrics *meshmetrics.Mesh) *Transport {
	tctx, cancel := context.WithCancel(ctx)
	if logger == nil {
		logger = meshlog.NewNoOp()
	}
	if metrics == nil {
		metrics = meshmetrics.NewNoOp()
	}
	return &Transport{
		ctx:      tctx,
		cancel:   cancel,
		nodeID:   nodeID,
		log:      meshlog.New(logger, "transport"),
		metrics:  metrics,
		peers:    make(map[string]*peerSender),
		handlers: make(map[string]Handler),
	}
}

// Listen binds the inbound router socket at addr (e.g. "tcp://0.0.0.0:5555").
func (t *Transport) Listen(addr string) error {
	t.router = zmq4.NewRouter(t.ctx, zmq4.WithID(zmq4.SocketIdentity(t.nodeID)))
	if err := t.router.Listen(addr); err != nil {
		return fmt.Errorf("transport: bind router: %w", err)
	}
	t.wg.Add(1)
	go t.routerLoop()
	return nil
}

// OnMessage registers the handler invoked for every message received on
// topic. The transport does not authenticate payloads; handlers verify
// them through the wire decoders.
func (t *Transport) OnMessage(topic string, h Handler) {
	t.handlersMu.Lock()
	defer t.handlersMu.Unlock()
	t.handlers[topic] = h
}

// Connect opens an outbound DEALER to peerID at addr and starts its
// bounded send loop. Calling Connect again for an already-connected
// peer replaces the connection.
func (t *Transport) Connect(peerID, addr string) error {
	dealer := zmq4.NewDealer(t.ctx, zmq4.WithID(zmq4.SocketIdentity(t.nodeID)))
	if err := dealer.Dial(addr); err != nil {
		return fmt.Errorf("transport: dial %s: %w", peerID, err)
	}

	ps := &peerSender{
		dealer: dealer,
		queue:  make(chan []byte, 4096),
		stop:   make(chan struct{}),
	}

	t.mu.Lock()
	if old, ok := t.peers[peerID]; ok {
		close(old.stop)
		old.dealer.Close()
	}
	t.peers[peerID] = ps
	t.mu.Unlock()

	t.wg.Add(1)
	go t.senderLoop(peerID, ps)
	return nil
}

// Disconnect closes the outbound connection to peerID, if any.
func (t *Transport) Disconnect(peerID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ps, ok := t.peers[peerID]; ok {
		close(ps.stop)
		ps.dealer.Close()
		delete(t.peers, peerID)
	}
}

// Publish broadcasts an already wire-encoded record on topic to every
// connected peer. Per-peer, the oldest queued message is dropped when
// the outbound queue is full (spec §4.6 backpressure).
func (t *Transport) Publish(topic string, payload []byte) error {
	if len(payload) > wire.MaxMessageBytes {
		return fmt.Errorf("transport: payload %d bytes exceeds cap %d", len(payload), wire.MaxMessageBytes)
	}
	env, err := json.Marshal(envelope{Topic: topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("transport: marshal envelope: %w", err)
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	for peerID, ps := range t.peers {
		enqueue(ps, env)
		_ = peerID
	}
	return nil
}

// SendTo delivers an already wire-encoded record on topic to exactly
// one connected peer, for callers where broadcast is unnecessary.
func (t *Transport) SendTo(peerID, topic string, payload []byte) error {
	env, err := json.Marshal(envelope{Topic: topic, Payload: payload})
	if err != nil {
		return fmt.Errorf("transport: marshal envelope: %w", err)
	}

	t.mu.RLock()
	ps, ok := t.peers[peerID]
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("transport: no connection to peer %s", peerID)
	}
	enqueue(ps, env)
	return nil
}

// enqueue appends msg to ps's bounded queue, dropping the oldest queued
// message first if the byte budget would be exceeded.
func enqueue(ps *peerSender, msg []byte) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	for ps.queued+len(msg) > OutboundQueueBytes {
		select {
		case old := <-ps.queue:
			ps.queued -= len(old)
		default:
			return // nothing left to drop but still over budget; refuse
		}
	}

	select {
	case ps.queue <- msg:
		ps.queued += len(msg)
	default:
		// queue channel capacity exhausted independent of byte budget
		select {
		case old := <-ps.queue:
			ps.queued -= len(old)
			ps.queue <- msg
			ps.queued += len(msg)
		default:
		}
	}
}

func (t *Transport) senderLoop(peerID string, ps *peerSender) {
	defer t.wg.Done()
	for {
		select {
		case <-ps.stop:
			return
		case <-t.ctx.Done():
			return
		case msg := <-ps.queue:
			ps.mu.Lock()
			ps.queued -= len(msg)
			ps.mu.Unlock()
			if err := ps.dealer.Send(zmq4.NewMsg(msg)); err != nil {
				t.log.Warn("send failed", "peer", peerID, "err", err)
			}
		}
	}
}

func (t *Transport) routerLoop() {
	defer t.wg.Done()
	for {
		select {
		case <-t.ctx.Done():
			return
		default:
			msg, err := t.router.Recv()
			if err != nil {
				continue
			}
			if len(msg.Frames) < 2 {
				continue
			}
			identity := string(msg.Frames[0])
			body := msg.Frames[len(msg.Frames)-1]

			var env envelope
			if err := json.Unmarshal(body, &env); err != nil {
				continue
			}

			t.handlersMu.RLock()
			h, ok := t.handlers[env.Topic]
			t.handlersMu.RUnlock()
			if ok {
				h(identity, env.Payload)
			}
		}
	}
}

// Close tears down every socket and stops all background loops.
func (t *Transport) Close() {
	t.cancel()

	t.mu.Lock()
	for _, ps := range t.peers {
		close(ps.stop)
		ps.dealer.Close()
	}
	t.peers = make(map[string]*peerSender)
	t.mu.Unlock()

	if t.router != nil {
		t.router.Close()
	}
	t.wg.Wait()
}
