// Package analysis holds the pure creative-analysis decision logic:
// hook validation against transcripts and the speech-presence filter.
package analysis

import (
	"fmt"
	"strings"

	"heystak-spider/internal/domain/model"
)

const (
	startRegionWords   = 15
	literalMatchWords  = 25
	similarityAccept   = 0.6
	sentenceMinWords   = 5
	sentenceMaxWords   = 25
	fallbackHookWords  = 12
	fallbackSentScore  = 0.7
	fallbackWordsScore = 0.5
)

// ValidateHook decides whether candidate actually reflects the opening of
// transcript. A rejected candidate is discarded and replaced by a
// deterministic fallback taken from the transcript itself.
func ValidateHook(candidate, transcript string) model.HookValidation {
	transcript = normalize(transcript)
	candidate = normalize(candidate)

	if transcript == "" {
		return model.HookValidation{Source: model.HookSourceNone, Reason: "empty transcript"}
	}

	words := strings.Fields(transcript)
	startRegion := strings.Join(firstN(words, startRegionWords), " ")

	if candidate != "" {
		opening := strings.ToLower(strings.Join(firstN(words, literalMatchWords), " "))
		if strings.Contains(opening, strings.ToLower(candidate)) {
			return model.HookValidation{
				Hook:   candidate,
				Source: model.HookSourceGPT,
				Score:  1.0,
				Reason: "candidate is a literal substring of the transcript opening",
			}
		}
		sim := diceSimilarity(strings.ToLower(candidate), strings.ToLower(startRegion))
		if sim >= similarityAccept {
			return model.HookValidation{
				Hook:   candidate,
				Source: model.HookSourceGPT,
				Score:  sim,
				Reason: fmt.Sprintf("candidate matches transcript opening (similarity %.2f)", sim),
			}
		}
	}

	if sent := firstSentence(transcript); sent != "" {
		if n := len(strings.Fields(sent)); n >= sentenceMinWords && n <= sentenceMaxWords {
			return model.HookValidation{
				Hook:   sent,
				Source: model.HookSourceFirstSentence,
				Score:  fallbackSentScore,
				Reason: "fell back to the transcript's first sentence",
			}
		}
	}

	if fallback := strings.Join(firstN(words, fallbackHookWords), " "); fallback != "" {
		return model.HookValidation{
			Hook:   fallback,
			Source: model.HookSourceFirstWords,
			Score:  fallbackWordsScore,
			Reason: fmt.Sprintf("fell back to the transcript's first %d words", fallbackHookWords),
		}
	}

	return model.HookValidation{Source: model.HookSourceNone, Reason: "transcript has no usable opening"}
}

// normalize trims and collapses internal whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstN(words []string, n int) []string {
	if len(words) < n {
		return words
	}
	return words[:n]
}

// firstSentence returns the shortest leading run ending in '.', '!' or '?'
// followed by whitespace or end-of-string, or "" if none is found.
func firstSentence(s string) string {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			if i+1 == len(s) || s[i+1] == ' ' || s[i+1] == '\t' || s[i+1] == '\n' {
				return strings.TrimSpace(s[:i+1])
			}
		}
	}
	return ""
}

// diceSimilarity is the Dice coefficient over character-bigram multisets.
// Strings shorter than two characters score 0 unless exactly equal.
func diceSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if len(a) < 2 || len(b) < 2 {
		return 0
	}
	na := bigrams(a)
	nb := bigrams(b)
	var inter, totalA, totalB int
	for bg, ca := range na {
		totalA += ca
		if cb := nb[bg]; cb > 0 {
			if ca < cb {
				inter += ca
			} else {
				inter += cb
			}
		}
	}
	for _, cb := range nb {
		totalB += cb
	}
	if totalA+totalB == 0 {
		return 0
	}
	return 2 * float64(inter) / float64(totalA+totalB)
}

func bigrams(s string) map[string]int {
	out := make(map[string]int, len(s))
	for i := 0; i+2 <= len(s); i++ {
		out[s[i:i+2]]++
	}
	return out
}
