package analysis

import (
	"strings"
	"unicode"

	"heystak-spider/internal/domain/model"
)

const (
	meanNoSpeechCeiling   = 0.5
	segmentNoSpeechCutoff = 0.7
	minTranscriptChars    = 100
	minTranscriptWords    = 15
	uniqueWordRatioFloor  = 0.5
	maxDigitChars         = 5
)

// garbagePhrases are low-value boilerplate lines that mark a transcript as
// engagement bait rather than ad copy worth analyzing.
var garbagePhrases = []string{
	"don't forget to subscribe",
	"subscribe to my channel",
	"subscribe and follow",
	"follow for more",
	"like and subscribe",
	"link in bio",
	"smash that like button",
	"thanks for watching",
	"turn on notifications",
}

// CheckSpeech decides whether a transcription represents genuine spoken
// content worth feeding to hook/persona generation, versus music, ambient
// noise or garbage. Gates are applied in order; the first failure wins.
func CheckSpeech(t model.Transcription) model.SpeechDecision {
	if len(t.Segments) == 0 {
		return model.SpeechDecision{Reason: model.SpeechReasonNoSegments}
	}

	var sum float64
	for _, seg := range t.Segments {
		sum += seg.NoSpeechProb
	}
	if sum/float64(len(t.Segments)) > meanNoSpeechCeiling {
		return model.SpeechDecision{Reason: model.SpeechReasonLowConfidence}
	}

	var kept []string
	for _, seg := range t.Segments {
		if seg.NoSpeechProb < segmentNoSpeechCutoff {
			kept = append(kept, strings.TrimSpace(seg.Text))
		}
	}
	if len(kept) == 0 {
		return model.SpeechDecision{Reason: model.SpeechReasonLowConfidence}
	}

	text := strings.TrimSpace(strings.Join(kept, " "))
	words := strings.Fields(text)
	if len(text) < minTranscriptChars || len(words) < minTranscriptWords {
		return model.SpeechDecision{Reason: model.SpeechReasonTooShort, Text: text}
	}

	lower := strings.ToLower(text)
	for _, phrase := range garbagePhrases {
		if strings.Contains(lower, phrase) {
			return model.SpeechDecision{Reason: model.SpeechReasonGarbagePhrase, Text: text}
		}
	}

	if len(words) > 5 {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[strings.ToLower(w)] = struct{}{}
		}
		if float64(len(unique))/float64(len(words)) < uniqueWordRatioFloor {
			return model.SpeechDecision{Reason: model.SpeechReasonSongLyrics, Text: text}
		}
	}

	if looksNumeric(text) {
		return model.SpeechDecision{Reason: model.SpeechReasonGibberish, Text: text}
	}

	return model.SpeechDecision{OK: true, Text: text}
}

// looksNumeric flags transcripts that open with a digit run or carry more
// than maxDigitChars digit characters in total.
func looksNumeric(text string) bool {
	i := 0
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if i > 0 && i < len(text) && unicode.IsSpace(rune(text[i])) {
		return true
	}
	digits := 0
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits++
			if digits > maxDigitChars {
				return true
			}
		}
	}
	return false
}
