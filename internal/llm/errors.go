package llm

import (
	"errors"

	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
)

var (
	// ErrInvalidRequest reports a submission rejected before any network call.
	ErrInvalidRequest = model.ErrInvalidRequest
	// ErrEmptyResponse reports a backend reply with no text.
	ErrEmptyResponse = errors.New("no response received")
	// ErrMalformedResponse reports a reply that is not valid JSON for the requested shape.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNoAudioGenerated reports a speech reply without audio data.
	ErrNoAudioGenerated = errors.New("no audio generated")
	// ErrImageGenerationFailed is logged when the illustration call fails. It never
	// reaches callers of Submit.
	ErrImageGenerationFailed = errors.New("image generation failed")
)
