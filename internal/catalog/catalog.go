// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package catalog implements the Verification-Prompt Catalog (C3): a
// fixed, build-time set of pre-solved prompts used to grade drafters.
package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

// MatchMode names how a drafter's reply is compared to the expected
// answer.
type MatchMode int

const (
	Exact MatchMode = iota
	Contains
	Numeric
)

// Prompt is one entry: a trigger pattern, the expected answer, and the
// match mode used to grade a reply.
type Prompt struct {
	Pattern  *regexp.Regexp
	Expected string
	Mode     MatchMode
}

// Catalog is the fixed, immutable set compiled into both verifier and
// drafter builds. Version skew between builds is tolerated by design
// (see spec §4.3): an old drafter simply fails to recognise a new entry.
type Catalog struct {
	prompts []Prompt
	texts   []string
}

// New compiles a catalog from prompt/expected/mode triples. Every prompt
// is quoted literally (regexp.QuoteMeta) and matched case-insensitively
// as a substring; regex metacharacters in a prompt are not interpreted.
func New(entries []Entry) *Catalog {
	c := &Catalog{prompts: make([]Prompt, 0, len(entries)), texts: make([]string, 0, len(entries))}
	for _, e := range entries {
		pattern := regexp.MustCompile("(?i)" + regexp.QuoteMeta(e.Prompt))
		c.prompts = append(c.prompts, Prompt{
			Pattern:  pattern,
			Expected: e.Expected,
			Mode:     e.Mode,
		})
		c.texts = append(c.texts, e.Prompt)
	}
	return c
}

// RandomPromptText returns the raw trigger text of one catalog entry,
// chosen by index (the caller supplies randomness so the catalog itself
// stays free of a *rand.Rand dependency). Used by the Auction Driver's
// verification-prompt injection (spec §1, resolved Open Question #4).
func (c *Catalog) RandomPromptText(index int) (string, bool) {
	if len(c.texts) == 0 {
		return "", false
	}
	return c.texts[index%len(c.texts)], true
}

// Entry is the catalog's source form, one pre-solved prompt.
type Entry struct {
	Prompt   string
	Expected string
	Mode     MatchMode
}

// Classify returns the catalog entry matching the last user message, if
// any. Matching is on the raw prompt text the user typed, which makes a
// "natural hit" on an ordinary user turn possible by design -- resolved
// Open Question #2 in SPEC_FULL.md: the caller grades it regardless.
func (c *Catalog) Classify(lastUserMessage string) (Prompt, bool) {
	for _, p := range c.prompts {
		if p.Pattern.MatchString(lastUserMessage) {
			return p, true
		}
	}
	return Prompt{}, false
}

// Grade reports whether reply satisfies p's expected answer under its
// match mode, after trimming and case-folding the reply as §4.3 requires.
func (p Prompt) Grade(reply string) bool {
	normalized := strings.ToLower(strings.TrimSpace(reply))
	expected := strings.ToLower(strings.TrimSpace(p.Expected))

	switch p.Mode {
	case Exact:
		return normalized == expected
	case Contains:
		return strings.Contains(normalized, expected)
	case Numeric:
		want, err := strconv.ParseFloat(expected, 64)
		if err != nil {
			return false
		}
		got, ok := firstNumericLiteral(normalized)
		return ok && got == want
	default:
		return false
	}
}

var numericLiteral = regexp.MustCompile(`-?\d+(\.\d+)?`)

func firstNumericLiteral(s string) (float64, bool) {
	match := numericLiteral.FindString(s)
	if match == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(match, 64)
	return v, err == nil
}

// CanonicalAnswer returns the textual reply a drafter would publish for
// this prompt (§4.10 step 3): the expected answer as-is for exact/numeric
// modes, or, for contains mode, the expected substring embedded in a
// short sentence so it still "contains" the expected text after grading.
func (p Prompt) CanonicalAnswer() string {
	switch p.Mode {
	case Contains:
		return "The answer is " + p.Expected + "."
	default:
		return p.Expected
	}
}
