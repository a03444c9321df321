package llm

import (
	"context"

	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
)

// InlineData is binary content exchanged with the backend, already base64-decoded.
type InlineData struct {
	MIMEType string
	Data     []byte
}

// Part is one element of a multimodal prompt: text or inline data.
type Part struct {
	Text       string
	InlineData *InlineData
}

// StructuredRequest asks the backend for a JSON reply constrained to the feature's schema.
type StructuredRequest struct {
	Parts             []Part
	SystemInstruction string
	Feature           model.Feature
	Temperature       float32
}

// Shape returns the response shape the reply must follow.
func (r StructuredRequest) Shape() model.Shape { return r.Feature.Shape() }

// Backend is the generative service the orchestrator talks to.
type Backend interface {
	// GenerateStructured returns the raw JSON text of the reply.
	GenerateStructured(ctx context.Context, req StructuredRequest) (string, error)
	// GenerateImage returns the first inline image of the reply, or nil if there is none.
	GenerateImage(ctx context.Context, prompt, aspectRatio string) (*InlineData, error)
	// GenerateAudio returns raw 24 kHz mono s16le PCM spoken by voice, or nil if there is none.
	GenerateAudio(ctx context.Context, text, voice string) (*InlineData, error)
}
