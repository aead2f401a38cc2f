// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package handshake implements the Peer Lifecycle & Handshake protocol
// of spec §4.11: a PING/PONG request/response exchange on a dedicated
// protocol id, separate from the work/work-result pub/sub topics.
//
// Grounded directly on cmd/consensus/zmq.go's ROUTER/DEALER pattern
// (pebbe/zmq4, SetRcvtimeo + RecvMessage/SendMessage, SetIdentity),
// which is the teacher's own request/response ZMQ usage as opposed to
// the broadcast PUB/SUB of utils/networking/zmq4/transport.go.
package handshake

import (
	"encoding/json"
	"fmt"
	"time"

	zmq "github.com/pebbe/zmq4"
)

const (
	kindPing = "PING"
	kindPong = "PONG"
)

// Request is the PING request body.
type Request struct {
	Kind     string `json:"kind"`
	SentAtMs int64  `json:"sent_at_ms"`
}

// Response is the PONG response body.
type Response struct {
	Kind        string `json:"kind"`
	Echo        int64  `json:"echo"`
	RepliedAtMs int64  `json:"replied_at_ms"`
}

// Server answers PING requests on a ROUTER socket bound at addr.
type Server struct {
	socket *zmq.Socket
	stop   chan struct{}
	done   chan struct{}
}

// Listen binds a Server at addr (e.g. "tcp://0.0.0.0:5556") and begins
// answering PING requests in a background goroutine.
func Listen(addr string) (*Server, error) {
	socket, err := zmq.NewSocket(zmq.ROUTER)
	if err != nil {
		return nil, fmt.Errorf("handshake: new router: %w", err)
	}
	if err := socket.Bind(addr); err != nil {
		socket.Close()
		return nil, fmt.Errorf("handshake: bind %s: %w", addr, err)
	}

	s := &Server{socket: socket, stop: make(chan struct{}), done: make(chan struct{})}
	go s.serve()
	return s, nil
}

func (s *Server) serve() {
	defer close(s.done)
	_ = s.socket.SetRcvtimeo(200 * time.Millisecond)

	for {
		select {
		case <-s.stop:
			return
		default:
		}

		msg, err := s.socket.RecvMessage(0)
		if err != nil {
			continue
		}
		if len(msg) < 2 {
			continue
		}
		identity, body := msg[0], msg[len(msg)-1]

		var req Request
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			continue
		}
		if req.Kind != kindPing {
			continue
		}

		resp := Response{Kind: kindPong, Echo: req.SentAtMs, RepliedAtMs: nowMs()}
		data, err := json.Marshal(resp)
		if err != nil {
			continue
		}
		_, _ = s.socket.SendMessage(identity, data)
	}
}

// Close stops the server and releases its socket.
func (s *Server) Close() {
	close(s.stop)
	<-s.done
	s.socket.Close()
}

// Ping dials addr, sends a single PING, and returns the measured RTT.
// timeout bounds the whole round trip (spec default T_handshake, 5s).
func Ping(addr string, identity string, timeout time.Duration) (time.Duration, error) {
	socket, err := zmq.NewSocket(zmq.DEALER)
	if err != nil {
		return 0, fmt.Errorf("handshake: new dealer: %w", err)
	}
	defer socket.Close()

	if err := socket.SetIdentity(identity); err != nil {
		return 0, fmt.Errorf("handshake: set identity: %w", err)
	}
	if err := socket.Connect(addr); err != nil {
		return 0, fmt.Errorf("handshake: connect %s: %w", addr, err)
	}
	if err := socket.SetRcvtimeo(timeout); err != nil {
		return 0, fmt.Errorf("handshake: set timeout: %w", err)
	}

	sentAt := nowMs()
	req := Request{Kind: kindPing, SentAtMs: sentAt}
	data, err := json.Marshal(req)
	if err != nil {
		return 0, fmt.Errorf("handshake: marshal ping: %w", err)
	}
	if _, err := socket.SendMessage(data); err != nil {
		return 0, fmt.Errorf("handshake: send ping: %w", err)
	}

	reply, err := socket.RecvMessage(0)
	if err != nil {
		return 0, fmt.Errorf("handshake: no pong: %w", err)
	}
	if len(reply) == 0 {
		return 0, fmt.Errorf("handshake: empty pong")
	}

	var resp Response
	if err := json.Unmarshal([]byte(reply[len(reply)-1]), &resp); err != nil {
		return 0, fmt.Errorf("handshake: bad pong: %w", err)
	}
	if resp.Kind != kindPong || resp.Echo != sentAt {
		return 0, fmt.Errorf("handshake: mismatched pong")
	}

	return time.Duration(nowMs()-sentAt) * time.Millisecond, nil
}

func nowMs() int64 {
	return time.Now().UnixMilli()
}
