package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest reports a study request that cannot be submitted.
var ErrInvalidRequest = errors.New("invalid request")

// DefaultAudioMIMEType is assumed when the capture collaborator does not name a format.
const DefaultAudioMIMEType = "audio/webm"

// AudioInput is an opaque recording captured by the UI.
type AudioInput struct {
	MIMEType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

// StudyRequest is one submission from the UI.
type StudyRequest struct {
	Feature      Feature     `json:"feature"`
	Mode         Mode        `json:"mode"`
	Language     Language    `json:"language"`
	Text         string      `json:"text"`
	Audio        *AudioInput `json:"audio,omitempty"`
	FocusMinutes int         `json:"focusMinutes"`
}

// HasAudio reports whether the request carries a non-empty recording.
func (r StudyRequest) HasAudio() bool {
	return r.Audio != nil && len(r.Audio.Data) > 0
}

// AudioMIMEType returns the recording's MIME type, falling back to DefaultAudioMIMEType.
func (r StudyRequest) AudioMIMEType() string {
	if r.Audio == nil || strings.TrimSpace(r.Audio.MIMEType) == "" {
		return DefaultAudioMIMEType
	}
	return r.Audio.MIMEType
}

// Validate checks the request before it is sent anywhere.
func (r StudyRequest) Validate() error {
	if !r.Feature.Valid() {
		return fmt.Errorf("%w: unknown feature %q", ErrInvalidRequest, r.Feature)
	}
	if !r.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, r.Mode)
	}
	if !r.Language.Valid() {
		return fmt.Errorf("%w: unknown language %q", ErrInvalidRequest, r.Language)
	}
	if strings.TrimSpace(r.Text) == "" && !r.HasAudio() {
		return fmt.Errorf("%w: text or audio input is required", ErrInvalidRequest)
	}
	if r.FocusMinutes < 0 {
		return fmt.Errorf("%w: focus minutes must not be negative", ErrInvalidRequest)
	}
	return nil
}

// QuizItem is one multiple-choice question.
type QuizItem struct {
	Question    string   `json:"question"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Hint        string   `json:"hint"`
	Explanation string   `json:"explanation"`
}

// Flashcard is a front/back revision card.
type Flashcard struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// EchoSpeakData is the coaching feedback for an EchoSpeak attempt.
type EchoSpeakData struct {
	AccuracyScore float64  `json:"accuracyScore"`
	Transcription string   `json:"transcription"`
	Mistakes      []string `json:"mistakes"`
	Feedback      string   `json:"feedback"`
	TutorResponse string   `json:"tutorResponse"`
}

// StudyResponse is the validated result of a submission. Exactly one of the
// payload fields is populated, chosen by Type's shape.
type StudyResponse struct {
	Title           string         `json:"title"`
	Type            Feature        `json:"type"`
	MarkdownContent string         `json:"markdownContent,omitempty"`
	QuizData        []QuizItem     `json:"quizData,omitempty"`
	FlashcardData   []Flashcard    `json:"flashcardData,omitempty"`
	EchoSpeakData   *EchoSpeakData `json:"echoSpeakData,omitempty"`
	ImagePrompt     string         `json:"imagePrompt,omitempty"`
	ImageURI        string         `json:"imageUri,omitempty"`
}

// Shape returns the payload family of the response.
func (r *StudyResponse) Shape() Shape {
	return r.Type.Shape()
}

// SpeakableText returns the text the UI reads aloud for this response.
func (r *StudyResponse) SpeakableText() string {
	switch r.Shape() {
	case ShapeEchoSpeak:
		if r.EchoSpeakData != nil {
			return r.EchoSpeakData.TutorResponse
		}
	case ShapeFlashcards:
		if len(r.FlashcardData) > 0 {
			return r.FlashcardData[0].Front
		}
	case ShapeQuiz:
		return r.Title
	case ShapeContent:
		return r.MarkdownContent
	}
	return ""
}
