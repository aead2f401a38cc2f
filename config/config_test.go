// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	require := require.New(t)

	c, err := NewBuilder().Build()
	require.NoError(err)
	require.Equal(Default, c)
}

func TestBuilderValidation(t *testing.T) {
	tests := []struct {
		name    string
		build   func(*Builder) *Builder
		wantErr bool
	}{
		{
			name:    "valid auction timing",
			build:   func(b *Builder) *Builder { return b.WithAuctionTiming(100, 80) },
			wantErr: false,
		},
		{
			name:    "collect exceeds interval",
			build:   func(b *Builder) *Builder { return b.WithAuctionTiming(50, 60) },
			wantErr: true,
		},
		{
			name:    "draftK out of range",
			build:   func(b *Builder) *Builder { return b.WithDraftSizing(100, 64) },
			wantErr: true,
		},
		{
			name:    "injection rate out of range",
			build:   func(b *Builder) *Builder { return b.WithVerificationInjectionRate(1.5) },
			wantErr: true,
		},
		{
			name:    "reputation threshold out of range",
			build:   func(b *Builder) *Builder { return b.WithReputationPolicy(3, -0.1) },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			_, err := tt.build(NewBuilder()).Build()
			if tt.wantErr {
				require.Error(err)
			} else {
				require.NoError(err)
			}
		})
	}
}

func TestForProfile(t *testing.T) {
	require := require.New(t)

	require.Equal(Default, ForProfile(Production))
	require.NotEqual(Default.AuctionIntervalMS, ForProfile(Dev).AuctionIntervalMS)
	require.Equal(Default, ForProfile(Profile("bogus")))
}

func TestRuntimeOverride(t *testing.T) {
	require := require.New(t)

	InitializeRuntime(Production)
	require.NoError(OverrideRuntime(map[string]interface{}{
		"draftK":              8.0,
		"reputationThreshold": 0.8,
	}))

	got := GetRuntime()
	require.Equal(8, got.DraftK)
	require.InDelta(0.8, got.ReputationThreshold, 1e-9)

	overrides := GetRuntimeOverrides()
	require.Len(overrides, 2)

	require.Error(OverrideRuntime(map[string]interface{}{"notAField": 1}))
}

func TestDurationHelpers(t *testing.T) {
	require := require.New(t)

	c := Default
	require.Equal(int64(50), c.AuctionInterval().Milliseconds())
	require.InDelta(86400, c.BanDuration().Seconds(), 1e-9)
}
