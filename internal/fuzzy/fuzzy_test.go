// Copyright 2018 The Neugram Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package fuzzy

import "testing"

var suggestTests = []struct {
	needle     string
	candidates []string
	want       string // "" means no suggestion
}{
	{"resutl", []string{"x", "result", "f"}, "result"},
	{"cnt", []string{"count", "total"}, "count"},
	{"Res", []string{"other", "resource_limit"}, "resource_limit"},
	{"lenght", []string{"length", "width"}, "length"},
	{"abcd", []string{"dcbaxy"}, "dcbaxy"},
	{"idx", []string{"x"}, "x"},
	{"ab", []string{"ba"}, "ba"},
	{"qz", []string{"zebra"}, "zebra"},
	{"accumulatorvalue", []string{"accumulated"}, "accumulated"},
	{"zzz", []string{"count", "total"}, ""},
	{"x", []string{"x"}, ""},
	{"", []string{"a"}, ""},
}

func TestSuggest(t *testing.T) {
	for _, test := range suggestTests {
		got, ok := Suggest(test.needle, test.candidates)
		if test.want == "" {
			if ok {
				t.Errorf("Suggest(%q, %v) = %q, want none", test.needle, test.candidates, got)
			}
			continue
		}
		if !ok || got != test.want {
			t.Errorf("Suggest(%q, %v) = %q, %v, want %q", test.needle, test.candidates, got, ok, test.want)
		}
	}
}

func TestPrefersHighestScore(t *testing.T) {
	got, ok := Suggest("valeu", []string{"values", "value"})
	if !ok || got != "value" {
		t.Errorf("Suggest(valeu) = %q, want value", got)
	}
}

type constScorer float64

func (c constScorer) Similarity(a, b string) float64 { return float64(c) }

func TestScorerIsPluggable(t *testing.T) {
	m := &Matcher{Scorer: constScorer(1)}
	if got, ok := m.Suggest("q", []string{"anything"}); !ok || got != "anything" {
		t.Errorf("Suggest with constant scorer = %q, %v", got, ok)
	}
}

func TestSharedChars(t *testing.T) {
	if n := SharedChars("aab", "Abba"); n != 3 {
		t.Errorf("SharedChars = %d, want 3", n)
	}
}
