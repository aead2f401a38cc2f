// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testCatalog() *Catalog {
	return New([]Entry{
		{Prompt: "what is 2+2?", Expected: "4", Mode: Numeric},
		{Prompt: "capital of france", Expected: "paris", Mode: Contains},
		{Prompt: "say exactly OK", Expected: "ok", Mode: Exact},
	})
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		message string
		found   bool
	}{
		{name: "numeric hit", message: "What is 2+2?", found: true},
		{name: "case-insensitive hit", message: "WHAT IS 2+2?", found: true},
		{name: "no hit", message: "tell me a joke", found: false},
	}

	c := testCatalog()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)
			_, ok := c.Classify(tt.message)
			require.Equal(tt.found, ok)
		})
	}
}

func TestGradeNumeric(t *testing.T) {
	require := require.New(t)
	c := testCatalog()
	p, ok := c.Classify("What is 2+2?")
	require.True(ok)

	require.True(p.Grade("4"))
	require.True(p.Grade("  the answer is 4.0  "))
	require.False(p.Grade("5"))
}

func TestGradeContains(t *testing.T) {
	require := require.New(t)
	c := testCatalog()
	p, ok := c.Classify("What is the capital of france?")
	require.True(ok)

	require.True(p.Grade("Paris is the capital."))
	require.False(p.Grade("London is the capital."))
}

func TestGradeExact(t *testing.T) {
	require := require.New(t)
	c := testCatalog()
	p, ok := c.Classify("say exactly OK")
	require.True(ok)

	require.True(p.Grade("ok"))
	require.True(p.Grade(" OK "))
	require.False(p.Grade("ok sure"))
}

func TestCanonicalAnswer(t *testing.T) {
	require := require.New(t)
	c := testCatalog()

	p, _ := c.Classify("What is 2+2?")
	require.Equal("4", p.CanonicalAnswer())

	p, _ = c.Classify("capital of france")
	require.Contains(p.CanonicalAnswer(), "paris")
}
