// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package meshlog wraps github.com/luxfi/log with the fields every mesh
// task attaches to its lines: request fingerprint, peer id, component.
package meshlog

import (
	"context"
	"log/slog"

	"github.com/luxfi/log"
	"go.uber.org/zap"
)

// New wraps an existing luxfi/log.Logger, tagging it with the component
// name so every line it emits is attributable to C1..C12.
func New(base log.Logger, component string) log.Logger {
	return base.With("component", component)
}

// WithRequest attaches a request fingerprint to a logger for the
// duration of one Speculative Loop run.
func WithRequest(l log.Logger, fingerprint string) log.Logger {
	return l.With("fingerprint", fingerprint)
}

// WithPeer attaches a peer id to a logger for the duration of one
// auction interaction.
func WithPeer(l log.Logger, peerID string) log.Logger {
	return l.With("peer", peerID)
}

// NewNoOp returns a logger that discards everything, for unit tests and
// benchmarks that don't want log noise.
func NewNoOp() log.Logger {
	return noOp{}
}

// noOp implements log.Logger, mirroring the no-op shape the teacher
// carries for tests that construct consensus objects without a logging
// backend wired in.
type noOp struct{}

func (noOp) With(ctx ...interface{}) log.Logger       { return noOp{} }
func (noOp) New(ctx ...interface{}) log.Logger        { return noOp{} }
func (noOp) Log(level slog.Level, msg string, ctx ...interface{}) {}
func (noOp) Trace(msg string, ctx ...interface{})     {}
func (noOp) Debug(msg string, ctx ...interface{})     {}
func (noOp) Info(msg string, ctx ...interface{})      {}
func (noOp) Warn(msg string, ctx ...interface{})      {}
func (noOp) Error(msg string, ctx ...interface{})     {}
func (noOp) Crit(msg string, ctx ...interface{})      {}
func (noOp) WriteLog(level slog.Level, msg string, attrs ...any) {}
func (noOp) Enabled(ctx context.Context, level slog.Level) bool { return false }
func (noOp) Handler() slog.Handler                     { return nil }
func (noOp) Fatal(msg string, fields ...zap.Field)     {}
func (noOp) Verbo(msg string, fields ...zap.Field)     {}
func (n noOp) WithFields(fields ...zap.Field) log.Logger  { return n }
func (n noOp) WithOptions(opts ...zap.Option) log.Logger  { return n }
func (noOp) SetLevel(level slog.Level)                 {}
func (noOp) GetLevel() slog.Level                      { return slog.Level(0) }
func (noOp) EnabledLevel(lvl slog.Level) bool          { return false }
func (noOp) StopOnPanic()                              {}
func (noOp) RecoverAndPanic(f func())                  { f() }
func (noOp) RecoverAndExit(f, exit func())             { f() }
func (noOp) Stop()                                     {}
func (noOp) Write(p []byte) (n int, err error)         { return len(p), nil }
