package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"heystak-spider/internal/domain/model"
	"heystak-spider/internal/domain/ports/adapter"
)

var _ adapter.Analyzer = (*GeminiAdapter)(nil)

// GeminiAdapter analyzes ad copy through the official SDK. It has no
// transcription support, so video creatives are analyzed from their text
// surface only.
type GeminiAdapter struct {
	client       *genai.Client
	defaultModel string
	maxOut       int
}

func NewGeminiAdapter(ctx context.Context, apiKey, baseURL, defaultModel string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: baseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	if defaultModel == "" {
		defaultModel = "gemini-2.0-flash"
	}
	return &GeminiAdapter{client: c, defaultModel: defaultModel, maxOut: 512}, nil
}

func (g *GeminiAdapter) AnalyzeAd(ctx context.Context, item *model.AdItem, mode model.AnalysisMode) (*model.AdAnalysis, error) {
	if strings.TrimSpace(item.Body) == "" {
		return nil, nil
	}
	prompt := fmt.Sprintf(
		"You analyze ad copy. Given the ad text below, reply with JSON only: "+
			`{"hook": "...", "persona": "...", "headline": "..."}. `+
			"hook is the opening attention-grabbing line, persona describes the target customer, "+
			"headline is a short title.\n\nAd text:\n%s", item.Body)

	chat, err := g.client.Chats.Create(
		ctx,
		g.defaultModel,
		&genai.GenerateContentConfig{
			MaxOutputTokens: int32(g.maxOut),
		},
		nil,
	)
	if err != nil {
		return nil, err
	}
	resp, err := chat.SendMessage(ctx, genai.Part{Text: prompt})
	if err != nil {
		return nil, err
	}

	text := ""
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil && len(resp.Candidates[0].Content.Parts) > 0 {
		if t := resp.Candidates[0].Content.Parts[0].Text; t != "" {
			text = t
		}
	}
	if text == "" {
		return nil, errors.New("gemini: empty response")
	}

	fields := parseCreativeJSON(text)
	return &model.AdAnalysis{
		Mode:     model.AnalysisModeText,
		Hook:     fields.Hook,
		Persona:  fields.Persona,
		Headline: fields.Headline,
	}, nil
}
