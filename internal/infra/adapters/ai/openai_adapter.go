package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"heystak-spider/internal/domain/analysis"
	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/adapter"
	"heystak-spider/internal/infra/metrics"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog"
)

// Compile-time assurance this adapter satisfies the ports
var (
	_ adapter.Analyzer    = (*OpenAIAdapter)(nil)
	_ adapter.Transcriber = (*OpenAIAdapter)(nil)
)

const (
	// Transcripts are clipped to this many tokens before prompting.
	maxTranscriptTokens = 3000
	// Media larger than this is not downloaded for transcription.
	maxMediaBytes = 25 << 20
)

// OpenAIAdapter implements creative analysis and transcription over the
// Chat Completions and Audio Transcriptions APIs.
type OpenAIAdapter struct {
	apiKey       string
	base         string // e.g., https://api.openai.com/v1
	model        string
	whisperModel string
	client       *http.Client
	enc          *tiktoken.Tiktoken
	log          *zerolog.Logger
}

func NewOpenAIAdapter(apiKey, model, whisperModel string, log *zerolog.Logger) (*OpenAIAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key empty")
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	if whisperModel == "" {
		whisperModel = "whisper-1"
	}
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("tiktoken: %w", err)
	}
	return &OpenAIAdapter{
		apiKey:       apiKey,
		base:         "https://api.openai.com/v1",
		model:        model,
		whisperModel: whisperModel,
		client:       &http.Client{Timeout: 120 * time.Second},
		enc:          enc,
		log:          log,
	}, nil
}

func (o *OpenAIAdapter) AnalyzeAd(ctx context.Context, item *model.AdItem, mode model.AnalysisMode) (*model.AdAnalysis, error) {
	switch mode {
	case model.AnalysisModeVideo:
		return o.analyzeVideo(ctx, item)
	case model.AnalysisModeImage:
		return o.analyzeImage(ctx, item)
	default:
		return o.analyzeText(ctx, item)
	}
}

func (o *OpenAIAdapter) analyzeText(ctx context.Context, item *model.AdItem) (*model.AdAnalysis, error) {
	if strings.TrimSpace(item.Body) == "" {
		return nil, nil
	}
	prompt := fmt.Sprintf(
		"You analyze ad copy. Given the ad text below, reply with JSON only: "+
			`{"hook": "...", "persona": "...", "headline": "..."}. `+
			"hook is the opening attention-grabbing line, persona describes the target customer, "+
			"headline is a short title.\n\nAd text:\n%s", item.Body)

	reply, err := o.chat(ctx, []chatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, err
	}
	fields := parseCreativeJSON(reply)
	return &model.AdAnalysis{
		Mode:     model.AnalysisModeText,
		Hook:     fields.Hook,
		Persona:  fields.Persona,
		Headline: fields.Headline,
	}, nil
}

func (o *OpenAIAdapter) analyzeImage(ctx context.Context, item *model.AdItem) (*model.AdAnalysis, error) {
	if !item.HasImage() {
		return o.analyzeText(ctx, item)
	}
	headline, err := o.imageHeadline(ctx, item.ImageURLs[0])
	if err != nil {
		return nil, err
	}
	return &model.AdAnalysis{Mode: model.AnalysisModeImage, Headline: headline}, nil
}

// analyzeVideo transcribes the creative, gates it through the speech
// filter, and validates the model-proposed hook against the transcript.
// Rejected transcripts may still yield a headline from a still image.
func (o *OpenAIAdapter) analyzeVideo(ctx context.Context, item *model.AdItem) (*model.AdAnalysis, error) {
	if !item.HasVideo() {
		return o.analyzeText(ctx, item)
	}
	tr, err := o.Transcribe(ctx, item.VideoURLs[0])
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	decision := analysis.CheckSpeech(*tr)
	if !decision.OK {
		metrics.IncSpeechReject(string(decision.Reason))
		out := &model.AdAnalysis{
			Mode:           model.AnalysisModeVideo,
			SpeechRejected: true,
			RejectReason:   decision.Reason,
		}
		if item.HasImage() {
			if headline, err := o.imageHeadline(ctx, item.ImageURLs[0]); err == nil {
				out.Headline = headline
			} else {
				o.log.Warn().Err(err).Str("ad", item.AdArchiveID).Msg("image headline fallback failed")
			}
		}
		return out, nil
	}

	transcript := o.clipTokens(decision.Text)
	prompt := fmt.Sprintf(
		"You analyze video ad transcripts. Reply with JSON only: "+
			`{"hook": "...", "persona": "...", "headline": "..."}. `+
			"hook must be the transcript's opening line verbatim.\n\nTranscript:\n%s", transcript)

	reply, err := o.chat(ctx, []chatMessage{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, err
	}
	fields := parseCreativeJSON(reply)

	hv := analysis.ValidateHook(fields.Hook, transcript)
	return &model.AdAnalysis{
		Mode:       model.AnalysisModeVideo,
		Hook:       hv.Hook,
		HookSource: hv.Source,
		HookScore:  hv.Score,
		Persona:    fields.Persona,
		Headline:   fields.Headline,
		Transcript: transcript,
	}, nil
}

// Transcribe downloads the media and runs it through the transcription
// endpoint with verbose_json so segment no-speech probabilities come back.
func (o *OpenAIAdapter) Transcribe(ctx context.Context, mediaURL string) (*model.Transcription, error) {
	media, err := o.download(ctx, mediaURL)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "media.mp4")
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(media); err != nil {
		return nil, err
	}
	_ = mw.WriteField("model", o.whisperModel)
	_ = mw.WriteField("response_format", "verbose_json")
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/audio/transcriptions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("transcription http %d: %s", resp.StatusCode, string(body))
	}

	var payload struct {
		Text     string `json:"text"`
		Segments []struct {
			Text         string  `json:"text"`
			Start        float64 `json:"start"`
			End          float64 `json:"end"`
			NoSpeechProb float64 `json:"no_speech_prob"`
		} `json:"segments"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}

	out := &model.Transcription{Text: payload.Text}
	for _, s := range payload.Segments {
		out.Segments = append(out.Segments, model.TranscriptSegment{
			Text:         s.Text,
			Start:        s.Start,
			End:          s.End,
			NoSpeechProb: s.NoSpeechProb,
		})
	}
	return out, nil
}

func (o *OpenAIAdapter) imageHeadline(ctx context.Context, imageURL string) (string, error) {
	content := []map[string]interface{}{
		{"type": "text", "text": "Write a short punchy headline for this ad image. Reply with the headline only."},
		{"type": "image_url", "image_url": map[string]string{"url": imageURL}},
	}
	reqBody := map[string]interface{}{
		"model":    o.model,
		"messages": []map[string]interface{}{{"role": "user", "content": content}},
	}
	reply, err := o.chatRaw(ctx, reqBody)
	if err != nil {
		return "", err
	}
	return strings.Trim(strings.TrimSpace(reply), `"`), nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (o *OpenAIAdapter) chat(ctx context.Context, messages []chatMessage) (string, error) {
	reqBody := struct {
		Model    string        `json:"model"`
		Messages []chatMessage `json:"messages"`
	}{Model: o.model, Messages: messages}
	return o.chatRaw(ctx, reqBody)
}

func (o *OpenAIAdapter) chatRaw(ctx context.Context, reqBody interface{}) (string, error) {
	b, _ := json.Marshal(reqBody)
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, o.base+"/chat/completions", bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	for _, c := range payload.Choices {
		if c.Message.Content != "" {
			return c.Message.Content, nil
		}
	}
	return "", errors.New("no choice content")
}

func (o *OpenAIAdapter) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media fetch http %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxMediaBytes {
		return nil, errors.New("media exceeds transcription size limit")
	}
	return data, nil
}

// clipTokens bounds the transcript fed into prompts.
func (o *OpenAIAdapter) clipTokens(text string) string {
	tokens := o.enc.Encode(text, nil, nil)
	if len(tokens) <= maxTranscriptTokens {
		return text
	}
	return o.enc.Decode(tokens[:maxTranscriptTokens])
}

// creativeFields is the JSON shape the prompts ask for.
type creativeFields struct {
	Hook     string `json:"hook"`
	Persona  string `json:"persona"`
	Headline string `json:"headline"`
}

// parseCreativeJSON tolerates replies that wrap the JSON in prose or
// code fences.
func parseCreativeJSON(reply string) creativeFields {
	var out creativeFields
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return out
	}
	_ = json.Unmarshal([]byte(reply[start:end+1]), &out)
	return out
}
