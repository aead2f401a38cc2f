// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

var (
	runtimeConfig    Config
	runtimeMu        sync.RWMutex
	runtimeOverrides map[string]interface{}
	initialized      bool
)

// InitializeRuntime sets the runtime configuration from a deployment
// profile. Individual fields can be retuned afterwards with
// OverrideRuntime; the coordinator and drafter binaries read
// GetRuntime() once at startup, so components they have already built
// keep the values they were built with.
func InitializeRuntime(profile Profile) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	runtimeConfig = ForProfile(profile)
	runtimeOverrides = make(map[string]interface{})
	initialized = true
}

// GetRuntime returns the current runtime configuration. If the runtime
// was never initialized it falls back to the package defaults.
func GetRuntime() Config {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()

	if !initialized {
		return Default
	}
	return runtimeConfig
}

// OverrideRuntime applies field-level updates to the runtime
// configuration, validating the result before committing it.
func OverrideRuntime(updates map[string]interface{}) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !initialized {
		runtimeConfig = Default
		runtimeOverrides = make(map[string]interface{})
		initialized = true
	}

	next := runtimeConfig
	for key, value := range updates {
		if err := applyOverride(&next, key, value); err != nil {
			return err
		}
	}

	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid runtime override: %w", err)
	}
	runtimeConfig = next
	for key, value := range updates {
		runtimeOverrides[key] = value
	}
	return nil
}

func applyOverride(c *Config, key string, value interface{}) error {
	switch key {
	case "maxTokensPerRequest":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("maxTokensPerRequest: expected int, got %T", value)
		}
		c.MaxTokensPerRequest = v
	case "auctionIntervalMs":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("auctionIntervalMs: expected int, got %T", value)
		}
		c.AuctionIntervalMS = v
	case "auctionCollectMs":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("auctionCollectMs: expected int, got %T", value)
		}
		c.AuctionCollectMS = v
	case "draftContextWindowTokens":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("draftContextWindowTokens: expected int, got %T", value)
		}
		c.DraftContextWindowTokens = v
	case "draftK":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("draftK: expected int, got %T", value)
		}
		c.DraftK = v
	case "fuzzyTopK":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("fuzzyTopK: expected int, got %T", value)
		}
		c.FuzzyTopK = v
	case "verificationInjectionRate":
		v, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("verificationInjectionRate: expected float, got %T", value)
		}
		c.VerificationInjectionRate = v
	case "reputationMinAttempts":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("reputationMinAttempts: expected int, got %T", value)
		}
		c.ReputationMinAttempts = v
	case "reputationThreshold":
		v, ok := toFloat(value)
		if !ok {
			return fmt.Errorf("reputationThreshold: expected float, got %T", value)
		}
		c.ReputationThreshold = v
	case "banDurationSeconds":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("banDurationSeconds: expected int, got %T", value)
		}
		c.BanDurationSeconds = v
	case "peerStaleSeconds":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("peerStaleSeconds: expected int, got %T", value)
		}
		c.PeerStaleSeconds = v
	case "peerSweepSeconds":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("peerSweepSeconds: expected int, got %T", value)
		}
		c.PeerSweepSeconds = v
	case "stallRoundsBeforeCooldown":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("stallRoundsBeforeCooldown: expected int, got %T", value)
		}
		c.StallRoundsBeforeCooldown = v
	case "cooldownSeconds":
		v, ok := toInt(value)
		if !ok {
			return fmt.Errorf("cooldownSeconds: expected int, got %T", value)
		}
		c.CooldownSeconds = v
	default:
		return fmt.Errorf("unknown runtime parameter: %s", key)
	}
	return nil
}

// LoadRuntimeFromFile loads a Config from a JSON file and installs it as
// the runtime configuration.
func LoadRuntimeFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config file: %w", err)
	}

	runtimeMu.Lock()
	runtimeConfig = c
	runtimeOverrides = make(map[string]interface{})
	initialized = true
	runtimeMu.Unlock()
	return nil
}

// SaveRuntimeToFile writes the current runtime configuration, along with
// the overrides applied so far, to path.
func SaveRuntimeToFile(path string) error {
	runtimeMu.RLock()
	c := runtimeConfig
	overrides := make(map[string]interface{}, len(runtimeOverrides))
	for k, v := range runtimeOverrides {
		overrides[k] = v
	}
	runtimeMu.RUnlock()

	out := struct {
		Config    Config                 `json:"config"`
		Overrides map[string]interface{} `json:"overrides,omitempty"`
		Generated time.Time              `json:"generated"`
	}{
		Config:    c,
		Overrides: overrides,
		Generated: time.Now(),
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// GetRuntimeOverrides returns a copy of the overrides applied since the
// runtime was last (re)initialized.
func GetRuntimeOverrides() map[string]interface{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()

	overrides := make(map[string]interface{}, len(runtimeOverrides))
	for k, v := range runtimeOverrides {
		overrides[k] = v
	}
	return overrides
}

func toInt(v interface{}) (int, bool) {
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	default:
		return 0, false
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	default:
		return 0, false
	}
}
