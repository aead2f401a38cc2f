// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import "fmt"

// Builder provides a fluent interface for constructing a mesh Config,
// starting from a deployment preset and applying validated overrides.
type Builder struct {
	config Config
	err    error
}

// NewBuilder creates a builder seeded with the package defaults.
func NewBuilder() *Builder {
	return &Builder{config: Default}
}

// FromProfile seeds the builder from a named deployment preset.
func (b *Builder) FromProfile(p Profile) *Builder {
	if b.err != nil {
		return b
	}
	b.config = ForProfile(p)
	return b
}

// WithMaxTokensPerRequest sets the hard per-completion token cap.
func (b *Builder) WithMaxTokensPerRequest(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n < 1 {
		b.err = fmt.Errorf("maxTokensPerRequest must be at least 1, got %d", n)
		return b
	}
	b.config.MaxTokensPerRequest = n
	return b
}

// WithAuctionTiming sets the auction interval and collection budget, both
// in milliseconds. collectMS must not exceed intervalMS.
func (b *Builder) WithAuctionTiming(intervalMS, collectMS int) *Builder {
	if b.err != nil {
		return b
	}
	if intervalMS < 1 {
		b.err = fmt.Errorf("auctionIntervalMs must be at least 1, got %d", intervalMS)
		return b
	}
	if collectMS < 1 || collectMS > intervalMS {
		b.err = fmt.Errorf("auctionCollectMs must be in [1, %d], got %d", intervalMS, collectMS)
		return b
	}
	b.config.AuctionIntervalMS = intervalMS
	b.config.AuctionCollectMS = collectMS
	return b
}

// WithDraftSizing sets the context window length and requested draft
// length. A draftK outside [1, 32] or a windowTokens below 1 sets the
// builder's error instead of being applied. DraftK is stored in Config
// only: the speculative loop does not read it, and every auction round
// requests a single token per draft.
func (b *Builder) WithDraftSizing(windowTokens, draftK int) *Builder {
	if b.err != nil {
		return b
	}
	if windowTokens < 1 {
		b.err = fmt.Errorf("draftContextWindowTokens must be at least 1, got %d", windowTokens)
		return b
	}
	if draftK < 1 || draftK > 32 {
		b.err = fmt.Errorf("draftK must be in [1, 32], got %d", draftK)
		return b
	}
	b.config.DraftContextWindowTokens = windowTokens
	b.config.DraftK = draftK
	return b
}

// WithFuzzyTopK sets the verifier's acceptance envelope. 1 is strict.
func (b *Builder) WithFuzzyTopK(k int) *Builder {
	if b.err != nil {
		return b
	}
	if k < 1 {
		b.err = fmt.Errorf("fuzzyTopK must be at least 1, got %d", k)
		return b
	}
	b.config.FuzzyTopK = k
	return b
}

// WithVerificationInjectionRate sets the probability, in [0,1], that an
// auction round substitutes a catalog prompt for the real context.
func (b *Builder) WithVerificationInjectionRate(rate float64) *Builder {
	if b.err != nil {
		return b
	}
	if rate < 0 || rate > 1 {
		b.err = fmt.Errorf("verificationInjectionRate must be in [0, 1], got %f", rate)
		return b
	}
	b.config.VerificationInjectionRate = rate
	return b
}

// WithReputationPolicy sets the auto-ban thresholds.
func (b *Builder) WithReputationPolicy(minAttempts int, threshold float64) *Builder {
	if b.err != nil {
		return b
	}
	if minAttempts < 1 {
		b.err = fmt.Errorf("reputationMinAttempts must be at least 1, got %d", minAttempts)
		return b
	}
	if threshold < 0 || threshold > 1 {
		b.err = fmt.Errorf("reputationThreshold must be in [0, 1], got %f", threshold)
		return b
	}
	b.config.ReputationMinAttempts = minAttempts
	b.config.ReputationThreshold = threshold
	return b
}

// WithPeerLifecycle sets the stale/sweep windows for the peer registry.
func (b *Builder) WithPeerLifecycle(staleSeconds, sweepSeconds int) *Builder {
	if b.err != nil {
		return b
	}
	if staleSeconds < 1 || sweepSeconds < 1 {
		b.err = fmt.Errorf("peer lifecycle windows must be positive, got stale=%d sweep=%d", staleSeconds, sweepSeconds)
		return b
	}
	b.config.PeerStaleSeconds = staleSeconds
	b.config.PeerSweepSeconds = sweepSeconds
	return b
}

// Build validates and returns the final configuration.
func (b *Builder) Build() (Config, error) {
	if b.err != nil {
		return Config{}, b.err
	}
	if err := b.config.Validate(); err != nil {
		return Config{}, err
	}
	return b.config, nil
}

// Validate checks cross-field invariants the fluent setters don't cover
// (e.g. when a Config is loaded directly from JSON rather than built).
func (c Config) Validate() error {
	if c.MaxTokensPerRequest < 1 {
		return fmt.Errorf("maxTokensPerRequest must be at least 1")
	}
	if c.AuctionCollectMS > c.AuctionIntervalMS {
		return fmt.Errorf("auctionCollectMs (%d) must not exceed auctionIntervalMs (%d)", c.AuctionCollectMS, c.AuctionIntervalMS)
	}
	if c.DraftK < 1 || c.DraftK > 32 {
		return fmt.Errorf("draftK must be in [1, 32], got %d", c.DraftK)
	}
	if c.FuzzyTopK < 1 {
		return fmt.Errorf("fuzzyTopK must be at least 1, got %d", c.FuzzyTopK)
	}
	if c.VerificationInjectionRate < 0 || c.VerificationInjectionRate > 1 {
		return fmt.Errorf("verificationInjectionRate must be in [0, 1]")
	}
	if c.ReputationThreshold < 0 || c.ReputationThreshold > 1 {
		return fmt.Errorf("reputationThreshold must be in [0, 1]")
	}
	if c.ReputationMinAttempts < 1 {
		return fmt.Errorf("reputationMinAttempts must be at least 1")
	}
	return nil
}
