package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/kirtisharma-sudo/echolearn-ai/internal/llm/prompts"
	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
)

const (
	// DefaultVoice is the prebuilt voice used for speech.
	DefaultVoice = "Kore"
	// ImageAspectRatio is requested for every illustration.
	ImageAspectRatio = "4:3"

	instrumentationName = "github.com/kirtisharma-sudo/echolearn-ai/internal/llm"
)

var speechMarkup = strings.NewReplacer("#", "", "*", "", "`", "")

// Client turns study requests into backend calls and validates the replies.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	backend Backend
	voice   string
	logger  *slog.Logger

	tracer      trace.Tracer
	submissions metric.Int64Counter
	images      metric.Int64Counter
}

// Option configures a Client.
type Option func(*Client)

// WithVoice sets the prebuilt voice for speech synthesis.
func WithVoice(voice string) Option {
	return func(c *Client) {
		if voice != "" {
			c.voice = voice
		}
	}
}

// WithLogger sets the client's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New creates a client on backend and loads the prompt templates.
func New(backend Backend, opts ...Option) (*Client, error) {
	if err := prompts.Load(prompts.Templates); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	c := &Client{
		backend: backend,
		voice:   DefaultVoice,
		logger:  slog.Default(),
		tracer:  otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(slog.String("component", "llm"))

	meter := otel.Meter(instrumentationName)
	var err error
	if c.submissions, err = meter.Int64Counter("echolearn.submissions",
		metric.WithDescription("Study submissions by feature and outcome")); err != nil {
		c.submissions = noop.Int64Counter{}
	}
	if c.images, err = meter.Int64Counter("echolearn.images",
		metric.WithDescription("Illustration requests by outcome")); err != nil {
		c.images = noop.Int64Counter{}
	}
	return c, nil
}

// Temperature returns the sampling temperature for a feature and mode.
func Temperature(f model.Feature, m model.Mode) float32 {
	switch {
	case f == model.FeatureMoodBooster:
		return 1.0
	case m == model.ModeFun:
		return 0.8
	default:
		return 0.3
	}
}

// Submit sends one study request and returns the validated response. When the reply
// asks for an illustration, a second call is made; its failure only leaves ImageURI empty.
func (c *Client) Submit(ctx context.Context, req model.StudyRequest) (*model.StudyResponse, error) {
	ctx, span := c.tracer.Start(ctx, "llm.Submit", trace.WithAttributes(
		attribute.String("echolearn.feature", string(req.Feature)),
		attribute.String("echolearn.mode", string(req.Mode)),
		attribute.String("echolearn.language", string(req.Language)),
		attribute.Bool("echolearn.has_audio", req.HasAudio()),
	))
	defer span.End()

	resp, err := c.submit(ctx, req)
	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrInvalidRequest):
		outcome = "invalid"
	case errors.Is(err, ErrEmptyResponse):
		outcome = "empty"
	case errors.Is(err, ErrMalformedResponse):
		outcome = "malformed"
	default:
		outcome = "error"
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	c.submissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("feature", string(req.Feature)),
		attribute.String("outcome", outcome),
	))
	return resp, err
}

func (c *Client) submit(ctx context.Context, req model.StudyRequest) (*model.StudyResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	instruction, err := prompts.BuildInstruction(req)
	if err != nil {
		return nil, fmt.Errorf("build instruction: %w", err)
	}
	system, err := prompts.BuildSystemInstruction(req)
	if err != nil {
		return nil, fmt.Errorf("build system instruction: %w", err)
	}

	parts := make([]Part, 0, 3)
	if req.HasAudio() {
		parts = append(parts, Part{InlineData: &InlineData{MIMEType: req.AudioMIMEType(), Data: req.Audio.Data}})
	}
	parts = append(parts, Part{Text: instruction})
	if req.HasAudio() {
		parts = append(parts, Part{Text: prompts.AudioNote})
	}

	raw, err := c.backend.GenerateStructured(ctx, StructuredRequest{
		Parts:             parts,
		SystemInstruction: system,
		Feature:           req.Feature,
		Temperature:       Temperature(req.Feature, req.Mode),
	})
	if err != nil {
		return nil, fmt.Errorf("generate %s: %w", req.Feature, err)
	}
	c.logger.Debug("LLM response", slog.String("feature", string(req.Feature)), slog.String("raw", raw))

	if strings.TrimSpace(raw) == "" {
		return nil, ErrEmptyResponse
	}
	resp, err := parseResponse(raw, req.Feature)
	if err != nil {
		c.logger.Warn("rejected LLM response", slog.String("feature", string(req.Feature)), slog.String("error", err.Error()))
		return nil, err
	}

	if resp.ImagePrompt != "" {
		resp.ImageURI = c.illustrate(ctx, resp.ImagePrompt)
	}
	return resp, nil
}

// illustrate returns a data URI for prompt, or "" if the image could not be generated.
func (c *Client) illustrate(ctx context.Context, prompt string) string {
	ctx, span := c.tracer.Start(ctx, "llm.GenerateImage")
	defer span.End()

	img, err := c.backend.GenerateImage(ctx, prompt, ImageAspectRatio)
	if err == nil && (img == nil || len(img.Data) == 0) {
		err = errors.New("reply has no inline image")
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrImageGenerationFailed, err)
		c.logger.Warn("image generation failed", slog.String("error", err.Error()))
		span.RecordError(err)
		c.images.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		return ""
	}

	mimeType := img.MIMEType
	if mimeType == "" {
		mimeType = "image/png"
	}
	c.images.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// CleanSpeechText removes the markdown markers (#, * and backticks) that would be read aloud.
func CleanSpeechText(text string) string {
	return speechMarkup.Replace(text)
}

// SynthesizeSpeech returns base64 raw PCM (24 kHz, mono, s16le) of text spoken in the
// configured voice.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string) (string, error) {
	ctx, span := c.tracer.Start(ctx, "llm.SynthesizeSpeech")
	defer span.End()

	clean := CleanSpeechText(text)
	if strings.TrimSpace(clean) == "" {
		return "", fmt.Errorf("%w: nothing to speak", ErrInvalidRequest)
	}

	audio, err := c.backend.GenerateAudio(ctx, clean, c.voice)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("synthesize speech: %w", err)
	}
	if audio == nil || len(audio.Data) == 0 {
		span.RecordError(ErrNoAudioGenerated)
		return "", ErrNoAudioGenerated
	}
	return base64.StdEncoding.EncodeToString(audio.Data), nil
}
