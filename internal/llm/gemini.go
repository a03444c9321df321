package llm

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

const (
	// DefaultContentModel produces the structured study replies.
	DefaultContentModel = "gemini-3-pro-preview"
	// DefaultImageModel produces illustrations.
	DefaultImageModel = "gemini-2.5-flash-image"
	// DefaultSpeechModel produces speech.
	DefaultSpeechModel = "gemini-2.5-flash-preview-tts"
)

// GeminiConfig configures the Gemini backend. Empty model names use the defaults.
type GeminiConfig struct {
	APIKey       string
	BaseURL      string
	ContentModel string
	ImageModel   string
	SpeechModel  string
	HTTPClient   *http.Client
}

// Gemini is a Backend on the Gemini API.
type Gemini struct {
	client       *genai.Client
	contentModel string
	imageModel   string
	speechModel  string
}

// NewGemini creates a Gemini backend.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g := &Gemini{
		client:       client,
		contentModel: cfg.ContentModel,
		imageModel:   cfg.ImageModel,
		speechModel:  cfg.SpeechModel,
	}
	if g.contentModel == "" {
		g.contentModel = DefaultContentModel
	}
	if g.imageModel == "" {
		g.imageModel = DefaultImageModel
	}
	if g.speechModel == "" {
		g.speechModel = DefaultSpeechModel
	}
	return g, nil
}

// GenerateStructured implements Backend.
func (g *Gemini) GenerateStructured(ctx context.Context, req StructuredRequest) (string, error) {
	parts := make([]*genai.Part, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.InlineData != nil {
			parts = append(parts, genai.NewPartFromBytes(p.InlineData.Data, p.InlineData.MIMEType))
			continue
		}
		parts = append(parts, genai.NewPartFromText(p.Text))
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.contentModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
			Temperature:       genai.Ptr(req.Temperature),
			ResponseMIMEType:  "application/json",
			ResponseSchema:    responseSchema(req.Feature),
		},
	)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}

// GenerateImage implements Backend.
func (g *Gemini) GenerateImage(ctx context.Context, prompt, aspectRatio string) (*InlineData, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.imageModel,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ImageConfig: &genai.ImageConfig{AspectRatio: aspectRatio},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}
	return firstInlineData(resp), nil
}

// GenerateAudio implements Backend.
func (g *Gemini) GenerateAudio(ctx context.Context, text, voice string) (*InlineData, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.speechModel,
		genai.Text(text),
		&genai.GenerateContentConfig{
			ResponseModalities: []string{string(genai.ModalityAudio)},
			SpeechConfig: &genai.SpeechConfig{
				VoiceConfig: &genai.VoiceConfig{
					PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: voice},
				},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("generate audio: %w", err)
	}
	return firstInlineData(resp), nil
}

func firstInlineData(resp *genai.GenerateContentResponse) *InlineData {
	if resp == nil || len(resp.Candidates) == 0 {
		return nil
	}
	c := resp.Candidates[0]
	if c.Content == nil {
		return nil
	}
	for _, p := range c.Content.Parts {
		if p != nil && p.InlineData != nil {
			return &InlineData{MIMEType: p.InlineData.MIMEType, Data: p.InlineData.Data}
		}
	}
	return nil
}
