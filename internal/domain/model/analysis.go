package model

// AnalysisMode selects which creative surfaces the analyzer looks at.
type AnalysisMode string

const (
	AnalysisModeText  AnalysisMode = "text"
	AnalysisModeImage AnalysisMode = "image"
	AnalysisModeVideo AnalysisMode = "video"
)

// HookSource tags where a validated hook came from.
type HookSource string

const (
	HookSourceGPT           HookSource = "gpt"
	HookSourceFirstSentence HookSource = "first_sentence"
	HookSourceFirstWords    HookSource = "first_n_words"
	HookSourceNone          HookSource = "none"
)

// HookValidation is the outcome of checking a proposed hook against the
// transcript it was derived from. Hook is empty when Source is "none".
type HookValidation struct {
	Hook   string     `json:"hook,omitempty"`
	Source HookSource `json:"source"`
	Score  float64    `json:"score"`
	Reason string     `json:"reason"`
}

// SpeechReason explains why a transcription was rejected as unusable.
type SpeechReason string

const (
	SpeechReasonNoSegments    SpeechReason = "no_segments"
	SpeechReasonLowConfidence SpeechReason = "low_confidence"
	SpeechReasonTooShort      SpeechReason = "too_short"
	SpeechReasonGarbagePhrase SpeechReason = "garbage_phrase"
	SpeechReasonSongLyrics    SpeechReason = "song_lyrics"
	SpeechReasonGibberish     SpeechReason = "gibberish"
)

// SpeechDecision is the speech-presence verdict for one transcription.
// Text holds the transcript rebuilt from the retained segments.
type SpeechDecision struct {
	OK     bool         `json:"ok"`
	Reason SpeechReason `json:"reason,omitempty"`
	Text   string       `json:"text,omitempty"`
}

// TranscriptSegment is one time slice of a transcription with the
// model's confidence that it contains no speech.
type TranscriptSegment struct {
	Text         string  `json:"text"`
	Start        float64 `json:"start"`
	End          float64 `json:"end"`
	NoSpeechProb float64 `json:"no_speech_prob"`
}

// Transcription is the raw output of the speech-to-text provider.
type Transcription struct {
	Text     string              `json:"text"`
	Segments []TranscriptSegment `json:"segments"`
}

// AdAnalysis is the typed creative-analysis payload folded into an ad.
// Optional fields are empty when the corresponding step did not run.
type AdAnalysis struct {
	Mode       AnalysisMode `json:"mode"`
	Hook       string       `json:"hook,omitempty"`
	HookSource HookSource   `json:"hook_source,omitempty"`
	HookScore  float64      `json:"hook_score,omitempty"`
	Persona    string       `json:"persona,omitempty"`
	Headline   string       `json:"headline,omitempty"`
	Transcript string       `json:"transcript,omitempty"`

	// Set when a video transcript was rejected by the speech filter.
	SpeechRejected bool         `json:"speech_rejected,omitempty"`
	RejectReason   SpeechReason `json:"reject_reason,omitempty"`
}
