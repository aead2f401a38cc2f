// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the tunables of the speculative mesh: auction
// timing, draft sizing, Sybil-resistance thresholds, and peer lifecycle
// windows.
package config

import "time"

// Profile names a deployment preset, mirroring how network type selects
// a consensus preset in the teacher build.
type Profile string

const (
	Dev        Profile = "dev"
	Staging    Profile = "staging"
	Production Profile = "production"
)

// Config holds every tunable named in the external interface table.
type Config struct {
	MaxTokensPerRequest int `json:"maxTokensPerRequest"`

	AuctionIntervalMS int `json:"auctionIntervalMs"`
	AuctionCollectMS  int `json:"auctionCollectMs"`

	DraftContextWindowTokens int `json:"draftContextWindowTokens"`
	DraftK                   int `json:"draftK"`
	FuzzyTopK                int `json:"fuzzyTopK"`

	VerificationInjectionRate float64 `json:"verificationInjectionRate"`

	ReputationMinAttempts int     `json:"reputationMinAttempts"`
	ReputationThreshold   float64 `json:"reputationThreshold"`
	BanDurationSeconds    int     `json:"banDurationSeconds"`

	PeerStaleSeconds int `json:"peerStaleSeconds"`
	PeerSweepSeconds int `json:"peerSweepSeconds"`

	HandshakeTimeoutMS     int `json:"handshakeTimeoutMs"`
	ReconnectIntervalSeconds int `json:"reconnectIntervalSeconds"`

	ColocationProbeMS int `json:"colocationProbeMs"`

	InboxCapacityPerKey        int `json:"inboxCapacityPerKey"`
	InboxFingerprintCapacity   int `json:"inboxFingerprintCapacity"`

	RequestWallBudgetSeconds int `json:"requestWallBudgetSeconds"`

	StallRoundsBeforeCooldown int `json:"stallRoundsBeforeCooldown"`
	CooldownSeconds           int `json:"cooldownSeconds"`
}

// AuctionInterval is AuctionIntervalMS as a time.Duration.
func (c Config) AuctionInterval() time.Duration {
	return time.Duration(c.AuctionIntervalMS) * time.Millisecond
}

// AuctionCollect is AuctionCollectMS as a time.Duration.
func (c Config) AuctionCollect() time.Duration {
	return time.Duration(c.AuctionCollectMS) * time.Millisecond
}

// BanDuration is BanDurationSeconds as a time.Duration.
func (c Config) BanDuration() time.Duration {
	return time.Duration(c.BanDurationSeconds) * time.Second
}

// PeerStale is PeerStaleSeconds as a time.Duration.
func (c Config) PeerStale() time.Duration {
	return time.Duration(c.PeerStaleSeconds) * time.Second
}

// PeerSweep is PeerSweepSeconds as a time.Duration.
func (c Config) PeerSweep() time.Duration {
	return time.Duration(c.PeerSweepSeconds) * time.Second
}

// HandshakeTimeout is HandshakeTimeoutMS as a time.Duration.
func (c Config) HandshakeTimeout() time.Duration {
	return time.Duration(c.HandshakeTimeoutMS) * time.Millisecond
}

// ReconnectInterval is ReconnectIntervalSeconds as a time.Duration.
func (c Config) ReconnectInterval() time.Duration {
	return time.Duration(c.ReconnectIntervalSeconds) * time.Second
}

// ColocationProbe is ColocationProbeMS as a time.Duration.
func (c Config) ColocationProbe() time.Duration {
	return time.Duration(c.ColocationProbeMS) * time.Millisecond
}

// RequestWallBudget is RequestWallBudgetSeconds as a time.Duration.
func (c Config) RequestWallBudget() time.Duration {
	return time.Duration(c.RequestWallBudgetSeconds) * time.Second
}

// Cooldown is CooldownSeconds as a time.Duration.
func (c Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// Default holds every default value named in the external interface table.
var Default = Config{
	MaxTokensPerRequest: 512,

	AuctionIntervalMS: 50,
	AuctionCollectMS:  40,

	DraftContextWindowTokens: 100,
	DraftK:                   5,
	FuzzyTopK:                1,

	VerificationInjectionRate: 0.05,

	ReputationMinAttempts: 3,
	ReputationThreshold:   0.70,
	BanDurationSeconds:    86400,

	PeerStaleSeconds: 300,
	PeerSweepSeconds: 30,

	HandshakeTimeoutMS:       5000,
	ReconnectIntervalSeconds: 15,

	ColocationProbeMS: 2,

	InboxCapacityPerKey:      32,
	InboxFingerprintCapacity: 1024,

	RequestWallBudgetSeconds: 120,

	StallRoundsBeforeCooldown: 20,
	CooldownSeconds:           2,
}

// presets by deployment profile. Dev loosens timing for interactive
// debugging; Staging and Production both keep the spec defaults.
var (
	DevConfig = func() Config {
		c := Default
		c.AuctionIntervalMS = 200
		c.AuctionCollectMS = 150
		c.HandshakeTimeoutMS = 15000
		c.PeerSweepSeconds = 5
		return c
	}()

	StagingConfig = Default

	ProductionConfig = Default
)

// ForProfile returns a copy of the preset config for the named profile.
func ForProfile(p Profile) Config {
	switch p {
	case Dev:
		return DevConfig
	case Staging:
		return StagingConfig
	case Production:
		return ProductionConfig
	default:
		return Default
	}
}
