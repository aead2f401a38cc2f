// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package facade implements the Request Façade Adapter (C11): the thin
// boundary object between an external caller and the Speculative Loop.
// It accepts a completion job, yields tokens over a bounded channel,
// and reports terminal status exactly once.
package facade

import "sync"

// Message is one prompt turn.
type Message struct {
	Role string
	Text string
}

// Job is everything the Speculative Loop needs to start a completion.
type Job struct {
	PromptMessages []Message
	MaxTokens      int
	StopTokens     []string
}

// Reason names why a request reached its Terminal state (spec §4.9,
// §7's error taxonomy).
type Reason int

const (
	ReasonStop Reason = iota
	ReasonLength
	ReasonCancelled
	ReasonVerifierFatal
	ReasonTimeout
)

func (r Reason) String() string {
	switch r {
	case ReasonStop:
		return "stop"
	case ReasonLength:
		return "length"
	case ReasonCancelled:
		return "cancelled"
	case ReasonVerifierFatal:
		return "verifier_fatal"
	case ReasonTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Result is the terminal report delivered exactly once on Done().
type Result struct {
	Reason Reason
	Err    error
}

// Facade is the bounded-channel boundary between one completion job and
// its caller. The loop task owns Send/Finish; the caller owns
// Tokens/Done/Cancel.
type Facade struct {
	job Job

	tokens chan string
	done   chan Result

	cancelCh   chan struct{}
	cancelOnce sync.Once
	doneOnce   sync.Once
}

// New constructs a Facade for job with the given token-sink buffer size.
func New(job Job, bufferSize int) *Facade {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Facade{
		job:      job,
		tokens:   make(chan string, bufferSize),
		done:     make(chan Result, 1),
		cancelCh: make(chan struct{}),
	}
}

// Job returns the completion job this façade was constructed for.
func (f *Facade) Job() Job { return f.job }

// Tokens is the caller-facing token stream; it closes when the loop
// finishes, signalling end-of-stream.
func (f *Facade) Tokens() <-chan string { return f.tokens }

// Done delivers the terminal Result exactly once, after Tokens closes.
func (f *Facade) Done() <-chan Result { return f.done }

// Cancelled is closed when the caller calls Cancel; the loop observes
// it at its suspension points (spec §5).
func (f *Facade) Cancelled() <-chan struct{} { return f.cancelCh }

// Cancel requests cancellation. Idempotent.
func (f *Facade) Cancel() {
	f.cancelOnce.Do(func() { close(f.cancelCh) })
}

// Send delivers one token to the caller, blocking if the caller is slow
// (the back-pressure spec §5 requires) and returning false if the
// request was cancelled first.
func (f *Facade) Send(token string) bool {
	select {
	case f.tokens <- token:
		return true
	case <-f.cancelCh:
		return false
	}
}

// Finish closes the token stream and delivers the terminal result. Only
// the loop task calls this, and only once.
func (f *Facade) Finish(result Result) {
	f.doneOnce.Do(func() {
		close(f.tokens)
		f.done <- result
		close(f.done)
	})
}
