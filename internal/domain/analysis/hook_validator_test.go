package analysis

import (
	"strings"
	"testing"

	"heystak-spider/internal/domain/model"
)

const sampleTranscript = "Stop scrolling right now because this deal ends tonight and you will regret missing out on it. " +
	"We built the most comfortable running shoe on the market and we want you to try it risk free for thirty days."

func TestValidateHookLiteralSubstring(t *testing.T) {
	got := ValidateHook("Stop scrolling right now", sampleTranscript)
	if got.Source != model.HookSourceGPT {
		t.Fatalf("source = %q, want %q", got.Source, model.HookSourceGPT)
	}
	if got.Score != 1.0 {
		t.Fatalf("score = %v, want 1.0", got.Score)
	}
	if got.Hook != "Stop scrolling right now" {
		t.Fatalf("hook = %q", got.Hook)
	}
}

func TestValidateHookLiteralMatchIsCaseInsensitive(t *testing.T) {
	got := ValidateHook("STOP SCROLLING RIGHT NOW", sampleTranscript)
	if got.Source != model.HookSourceGPT || got.Score != 1.0 {
		t.Fatalf("got source=%q score=%v, want gpt/1.0", got.Source, got.Score)
	}
}

func TestValidateHookSimilarityAccepted(t *testing.T) {
	// Slightly reworded opening: not a substring, but bigram-similar to
	// the start region.
	candidate := "Stop scrolling right now because this deal ends tonite and you will regret"
	got := ValidateHook(candidate, sampleTranscript)
	if got.Source != model.HookSourceGPT {
		t.Fatalf("source = %q, want %q (score %v)", got.Source, model.HookSourceGPT, got.Score)
	}
	if got.Score < 0.6 || got.Score >= 1.0 {
		t.Fatalf("score = %v, want in [0.6, 1.0)", got.Score)
	}
}

func TestValidateHookRejectedFallsBackToFirstSentence(t *testing.T) {
	got := ValidateHook("totally unrelated marketing blurb", sampleTranscript)
	if got.Source != model.HookSourceFirstSentence {
		t.Fatalf("source = %q, want %q", got.Source, model.HookSourceFirstSentence)
	}
	if got.Score != 0.7 {
		t.Fatalf("score = %v, want 0.7", got.Score)
	}
	if !strings.HasPrefix(got.Hook, "Stop scrolling right now") || !strings.HasSuffix(got.Hook, ".") {
		t.Fatalf("hook = %q, want the transcript's first sentence", got.Hook)
	}
}

func TestValidateHookEmptyCandidateUsesFallbacks(t *testing.T) {
	got := ValidateHook("", sampleTranscript)
	if got.Source != model.HookSourceFirstSentence {
		t.Fatalf("source = %q, want %q", got.Source, model.HookSourceFirstSentence)
	}
}

func TestValidateHookFirstSentenceTooLongUsesWordFallback(t *testing.T) {
	// A single run-on sentence over 25 words cannot serve as the hook.
	transcript := strings.Repeat("word ", 30) + "end."
	got := ValidateHook("nope", transcript)
	if got.Source != model.HookSourceFirstWords {
		t.Fatalf("source = %q, want %q", got.Source, model.HookSourceFirstWords)
	}
	if got.Score != 0.5 {
		t.Fatalf("score = %v, want 0.5", got.Score)
	}
	if n := len(strings.Fields(got.Hook)); n != 12 {
		t.Fatalf("fallback hook has %d words, want 12", n)
	}
}

func TestValidateHookFirstSentenceTooShortUsesWordFallback(t *testing.T) {
	transcript := "Buy now. This offer will not come back again so act fast before midnight tonight"
	got := ValidateHook("unrelated", transcript)
	if got.Source != model.HookSourceFirstWords {
		t.Fatalf("source = %q, want %q", got.Source, model.HookSourceFirstWords)
	}
}

func TestValidateHookNoPunctuationUsesWordFallback(t *testing.T) {
	transcript := "one two three four five six seven eight nine ten eleven twelve thirteen fourteen"
	got := ValidateHook("something else entirely", transcript)
	if got.Source != model.HookSourceFirstWords {
		t.Fatalf("source = %q, want %q", got.Source, model.HookSourceFirstWords)
	}
	if got.Hook != "one two three four five six seven eight nine ten eleven twelve" {
		t.Fatalf("hook = %q", got.Hook)
	}
}

func TestValidateHookEmptyTranscript(t *testing.T) {
	for _, transcript := range []string{"", "   \n\t "} {
		got := ValidateHook("anything", transcript)
		if got.Source != model.HookSourceNone {
			t.Fatalf("transcript %q: source = %q, want %q", transcript, got.Source, model.HookSourceNone)
		}
		if got.Hook != "" || got.Score != 0 {
			t.Fatalf("transcript %q: got hook=%q score=%v, want empty", transcript, got.Hook, got.Score)
		}
	}
}

func TestValidateHookNormalizesWhitespace(t *testing.T) {
	got := ValidateHook("Stop   scrolling\nright now", sampleTranscript)
	if got.Source != model.HookSourceGPT || got.Score != 1.0 {
		t.Fatalf("got source=%q score=%v, want gpt/1.0", got.Source, got.Score)
	}
}

func TestDiceSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "night", "night", 1},
		{"disjoint", "abcd", "wxyz", 0},
		{"empty both", "", "", 1},
		{"one empty", "", "abc", 0},
		{"single char", "a", "b", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := diceSimilarity(tt.a, tt.b); got != tt.want {
				t.Fatalf("diceSimilarity(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestDiceSimilarityIsSymmetric(t *testing.T) {
	a, b := "stop scrolling right now", "stop scrolling now"
	if diceSimilarity(a, b) != diceSimilarity(b, a) {
		t.Fatal("similarity is not symmetric")
	}
}

func TestDiceSimilarityRepeatedBigrams(t *testing.T) {
	// Multiset semantics: "aaaa" has three "aa" bigrams, "aa" has one.
	got := diceSimilarity("aaaa", "aa")
	want := 2 * 1.0 / (3 + 1)
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFirstSentence(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello there. Next part.", "Hello there."},
		{"Is it you? Maybe.", "Is it you?"},
		{"Wow! Amazing.", "Wow!"},
		{"no terminator here", ""},
		{"Version 2.5 is out. Really.", "Version 2.5 is out."},
		{"Ends exactly here.", "Ends exactly here."},
	}
	for _, tt := range tests {
		if got := firstSentence(tt.in); got != tt.want {
			t.Errorf("firstSentence(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
