// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fuzzy picks "did you mean" suggestions for misspelled names.
package fuzzy

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// A Scorer rates how similar two strings are, from 0 (nothing in
// common) to 1 (identical).
type Scorer interface {
	Similarity(a, b string) float64
}

// Levenshtein scores by edit distance relative to the longer string.
type Levenshtein struct{}

func (Levenshtein) Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(longest)
}

// Acceptance thresholds, tried in order.
const (
	MinScore      = 0.6  // relative similarity accepted outright
	LongNeedle    = 6    // needles longer than this get LongMinScore
	LongMinScore  = 0.45 // looser similarity for long needles
	ShortNeedle   = 3    // needles this short use the overlap rule
	MaxLengthDiff = 2    // for the shared-character rule
)

// Matcher chooses suggestions with a Scorer.
type Matcher struct {
	Scorer Scorer
}

// Default uses Levenshtein similarity.
var Default = &Matcher{Scorer: Levenshtein{}}

// Suggest returns the closest candidate to needle using Default.
func Suggest(needle string, candidates []string) (string, bool) {
	return Default.Suggest(needle, candidates)
}

type scored struct {
	name  string
	score float64
}

// Suggest returns the candidate most likely meant by needle.
//
// A candidate is accepted by the first rule it satisfies, checked for
// all candidates before moving to the next rule:
//
//  1. similarity >= MinScore
//  2. case-insensitive prefix of one another
//  3. shares at least min(len(needle), 3) characters and the lengths
//     differ by at most MaxLengthDiff
//  4. either contains the other
//  5. needle of at most ShortNeedle characters sharing all but one of
//     its characters with the candidate
//  6. needle longer than LongNeedle with similarity >= LongMinScore
//
// Among candidates accepted by the same rule the most similar wins,
// earlier candidates winning ties.
func (m *Matcher) Suggest(needle string, candidates []string) (string, bool) {
	if needle == "" {
		return "", false
	}
	var cands []scored
	for _, c := range candidates {
		if c == needle || c == "" {
			continue
		}
		cands = append(cands, scored{name: c, score: m.Scorer.Similarity(needle, c)})
	}
	lneedle := strings.ToLower(needle)
	nlen := utf8.RuneCountInString(needle)

	rules := []func(c scored) bool{
		func(c scored) bool { return c.score >= MinScore },
		func(c scored) bool {
			lc := strings.ToLower(c.name)
			return strings.HasPrefix(lc, lneedle) || strings.HasPrefix(lneedle, lc)
		},
		func(c scored) bool {
			want := nlen
			if want > 3 {
				want = 3
			}
			diff := nlen - utf8.RuneCountInString(c.name)
			if diff < 0 {
				diff = -diff
			}
			return SharedChars(needle, c.name) >= want && diff <= MaxLengthDiff
		},
		func(c scored) bool {
			lc := strings.ToLower(c.name)
			return strings.Contains(lc, lneedle) || strings.Contains(lneedle, lc)
		},
		func(c scored) bool {
			if nlen > ShortNeedle {
				return false
			}
			want := nlen - 1
			if want < 1 {
				want = 1
			}
			return SharedChars(needle, c.name) >= want
		},
		func(c scored) bool {
			return nlen > LongNeedle && c.score >= LongMinScore
		},
	}
	for _, accept := range rules {
		best, ok := scored{}, false
		for _, c := range cands {
			if !accept(c) {
				continue
			}
			if !ok || c.score > best.score {
				best, ok = c, true
			}
		}
		if ok {
			return best.name, true
		}
	}
	return "", false
}

// SharedChars counts the characters a and b have in common, ignoring
// case and counting repeated characters as often as both contain them.
func SharedChars(a, b string) int {
	counts := make(map[rune]int)
	for _, r := range strings.ToLower(a) {
		counts[r]++
	}
	n := 0
	for _, r := range strings.ToLower(b) {
		if counts[r] > 0 {
			counts[r]--
			n++
		}
	}
	return n
}
