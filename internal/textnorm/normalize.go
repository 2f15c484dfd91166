// Package textnorm cleans and tokenizes resume and job description text.
package textnorm

import (
	"regexp"
	"strings"
)

var alphaRun = regexp.MustCompile(`[a-zA-Z]+`)

// Normalize collapses whitespace runs to single spaces, trims, and lowercases.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// Tokenize returns the maximal runs of ASCII letters in text, lowercased.
// Digits and punctuation separate tokens and are never part of one.
func Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}
	tokens := alphaRun.FindAllString(strings.ToLower(text), -1)
	if tokens == nil {
		return []string{}
	}
	return tokens
}

// Words splits normalized text on whitespace.
func Words(text string) []string {
	return strings.Fields(Normalize(text))
}

// Unique returns the distinct tokens in first-seen order.
func Unique(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Set returns tokens as a membership set.
func Set(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
