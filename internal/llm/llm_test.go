package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/kirtisharma-sudo/echolearn-ai/internal/llm/prompts"
	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
)

type fakeBackend struct {
	mu sync.Mutex

	structured    string
	structuredErr error
	image         *InlineData
	imageErr      error
	audio         *InlineData
	audioErr      error

	requests     []StructuredRequest
	imagePrompts []string
	imageRatios  []string
	audioTexts   []string
	audioVoices  []string
}

func (f *fakeBackend) GenerateStructured(_ context.Context, req StructuredRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.structured, f.structuredErr
}

func (f *fakeBackend) GenerateImage(_ context.Context, prompt, aspectRatio string) (*InlineData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.imagePrompts = append(f.imagePrompts, prompt)
	f.imageRatios = append(f.imageRatios, aspectRatio)
	return f.image, f.imageErr
}

func (f *fakeBackend) GenerateAudio(_ context.Context, text, voice string) (*InlineData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audioTexts = append(f.audioTexts, text)
	f.audioVoices = append(f.audioVoices, voice)
	return f.audio, f.audioErr
}

func newTestClient(t *testing.T, b Backend, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	c, err := New(b, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func textRequest(f model.Feature, text string) model.StudyRequest {
	return model.StudyRequest{Feature: f, Mode: model.ModeTutor, Language: model.LanguageEnglish, Text: text}
}

const quizReply = `{
  "title": "Photosynthesis Quiz",
  "type": "QUIZ",
  "quizData": [
    {"question": "Q1", "options": ["a","b","c","d"], "answer": "a", "hint": "h", "explanation": "e"},
    {"question": "Q2", "options": ["a","b","c","d"], "answer": "b", "hint": "h", "explanation": "e"},
    {"question": "Q3", "options": ["a","b","c","d"], "answer": "c", "hint": "h", "explanation": "e"},
    {"question": "Q4", "options": ["a","b","c","d","e"], "answer": "e", "hint": "h", "explanation": "e"},
    {"question": "Q5", "options": ["w","x","y","z"], "answer": "z", "hint": "h", "explanation": "e"}
  ]
}`

const echoReply = `{
  "title": "Your French greeting",
  "type": "ECHOSPEAK",
  "echoSpeakData": {
    "accuracyScore": 82,
    "transcription": "Bonjour, je suis etudiant",
    "mistakes": ["Missing accent on étudiant"],
    "feedback": "**Great** start!",
    "tutorResponse": "Bonjour ! Très bien 🎉"
  }
}`

func TestTemperature(t *testing.T) {
	tests := []struct {
		feature model.Feature
		mode    model.Mode
		want    float32
	}{
		{model.FeatureMoodBooster, model.ModeTutor, 1.0},
		{model.FeatureMoodBooster, model.ModeFun, 1.0},
		{model.FeatureExplain, model.ModeFun, 0.8},
		{model.FeatureQuiz, model.ModeFun, 0.8},
		{model.FeatureExplain, model.ModeTutor, 0.3},
		{model.FeatureNotes, model.ModeExam, 0.3},
		{model.FeatureEchoSpeak, model.ModeFriend, 0.3},
	}
	for _, tt := range tests {
		if got := Temperature(tt.feature, tt.mode); got != tt.want {
			t.Errorf("Temperature(%s, %s) = %v, want %v", tt.feature, tt.mode, got, tt.want)
		}
	}
}

func TestSubmitRejectsEmptyInput(t *testing.T) {
	b := &fakeBackend{}
	c := newTestClient(t, b)

	_, err := c.Submit(context.Background(), textRequest(model.FeatureExplain, "   "))
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("Submit() error = %v, want ErrInvalidRequest", err)
	}
	if len(b.requests) != 0 {
		t.Errorf("backend called %d times, want 0", len(b.requests))
	}
}

func TestSubmitQuiz(t *testing.T) {
	b := &fakeBackend{structured: quizReply}
	c := newTestClient(t, b)

	resp, err := c.Submit(context.Background(), textRequest(model.FeatureQuiz, "Photosynthesis"))
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Type != model.FeatureQuiz || resp.Shape() != model.ShapeQuiz {
		t.Errorf("type = %s shape = %s, want QUIZ/quiz", resp.Type, resp.Shape())
	}
	if len(resp.QuizData) != 5 {
		t.Fatalf("len(QuizData) = %d, want 5", len(resp.QuizData))
	}
	for i, q := range resp.QuizData {
		found := false
		for _, o := range q.Options {
			if o == q.Answer {
				found = true
			}
		}
		if !found {
			t.Errorf("item %d: answer %q not among options %v", i, q.Answer, q.Options)
		}
	}

	req := b.requests[0]
	if req.Feature != model.FeatureQuiz || req.Shape() != model.ShapeQuiz {
		t.Errorf("request feature = %s, shape = %s", req.Feature, req.Shape())
	}
	if req.Temperature != 0.3 {
		t.Errorf("temperature = %v, want 0.3", req.Temperature)
	}
	if len(req.Parts) != 1 || !strings.Contains(req.Parts[0].Text, `"Photosynthesis"`) {
		t.Errorf("parts = %+v, want a single instruction quoting the input", req.Parts)
	}
	if !strings.Contains(req.SystemInstruction, "Current mode: TUTOR.") {
		t.Errorf("system instruction missing mode: %q", req.SystemInstruction)
	}
	if len(b.imagePrompts) != 0 {
		t.Errorf("image requested for quiz without image prompt")
	}
}

func TestSubmitEchoSpeakWithAudio(t *testing.T) {
	b := &fakeBackend{structured: echoReply}
	c := newTestClient(t, b)

	req := model.StudyRequest{
		Feature:  model.FeatureEchoSpeak,
		Mode:     model.ModeFriend,
		Language: model.LanguageFrench,
		Audio:    &model.AudioInput{Data: []byte("opus-bytes")},
	}
	resp, err := c.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.EchoSpeakData == nil {
		t.Fatal("EchoSpeakData is nil")
	}
	if resp.EchoSpeakData.AccuracyScore != 82 {
		t.Errorf("AccuracyScore = %v, want 82", resp.EchoSpeakData.AccuracyScore)
	}
	if strings.TrimSpace(resp.EchoSpeakData.TutorResponse) == "" {
		t.Error("TutorResponse is empty")
	}

	parts := b.requests[0].Parts
	if len(parts) != 3 {
		t.Fatalf("len(parts) = %d, want 3 (audio, instruction, note)", len(parts))
	}
	if parts[0].InlineData == nil || parts[0].InlineData.MIMEType != model.DefaultAudioMIMEType {
		t.Errorf("first part = %+v, want audio with default MIME type", parts[0])
	}
	if parts[2].Text != prompts.AudioNote {
		t.Errorf("last part = %q, want the audio note", parts[2].Text)
	}
}

func TestSubmitEmptyReply(t *testing.T) {
	b := &fakeBackend{structured: "  \n "}
	c := newTestClient(t, b)

	_, err := c.Submit(context.Background(), textRequest(model.FeatureNotes, "Cells"))
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("Submit() error = %v, want ErrEmptyResponse", err)
	}
	if len(b.imagePrompts) != 0 {
		t.Errorf("image call made after empty reply")
	}
}

func TestSubmitMalformedReply(t *testing.T) {
	tests := map[string]string{
		"not json":      "Sure! Here are your notes",
		"wrong type":    `{"title":"t","type":"QUIZ","markdownContent":"x"}`,
		"missing body":  `{"title":"t","type":"NOTES"}`,
		"blank body":    `{"title":"t","type":"NOTES","markdownContent":"  "}`,
		"missing title": `{"type":"NOTES","markdownContent":"x"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			b := &fakeBackend{structured: raw}
			c := newTestClient(t, b)
			_, err := c.Submit(context.Background(), textRequest(model.FeatureNotes, "Cells"))
			if !errors.Is(err, ErrMalformedResponse) {
				t.Errorf("Submit() error = %v, want ErrMalformedResponse", err)
			}
		})
	}
}

func TestSubmitBackendError(t *testing.T) {
	boom := errors.New("connection reset")
	b := &fakeBackend{structuredErr: boom}
	c := newTestClient(t, b)

	_, err := c.Submit(context.Background(), textRequest(model.FeatureExplain, "Gravity"))
	if !errors.Is(err, boom) {
		t.Fatalf("Submit() error = %v, want wrapped transport error", err)
	}
	if len(b.requests) != 1 {
		t.Errorf("backend called %d times, want exactly 1 (no retry)", len(b.requests))
	}
}

func TestSubmitIllustration(t *testing.T) {
	const reply = `{"title":"Photosynthesis","type":"EXPLAIN","markdownContent":"## Summary","imagePrompt":"A leaf absorbing sunlight"}`

	t.Run("success", func(t *testing.T) {
		b := &fakeBackend{structured: reply, image: &InlineData{MIMEType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}}}
		c := newTestClient(t, b)
		resp, err := c.Submit(context.Background(), textRequest(model.FeatureExplain, "Photosynthesis"))
		if err != nil {
			t.Fatalf("Submit: %v", err)
		}
		want := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})
		if resp.ImageURI != want {
			t.Errorf("ImageURI = %q, want %q", resp.ImageURI, want)
		}
		if len(b.imagePrompts) != 1 || b.imagePrompts[0] != "A leaf absorbing sunlight" || b.imageRatios[0] != "4:3" {
			t.Errorf("image calls = %v %v", b.imagePrompts, b.imageRatios)
		}
	})

	failures := map[string]*fakeBackend{
		"error":      {structured: reply, imageErr: errors.New("quota exceeded")},
		"no image":   {structured: reply},
		"empty data": {structured: reply, image: &InlineData{MIMEType: "image/png"}},
	}
	for name, b := range failures {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, b)
			resp, err := c.Submit(context.Background(), textRequest(model.FeatureExplain, "Photosynthesis"))
			if err != nil {
				t.Fatalf("Submit() = %v, image failure must not fail the submission", err)
			}
			if resp.ImageURI != "" {
				t.Errorf("ImageURI = %q, want empty", resp.ImageURI)
			}
			if resp.Type != model.FeatureExplain || resp.Title != "Photosynthesis" || resp.MarkdownContent != "## Summary" {
				t.Errorf("response altered by image failure: %+v", resp)
			}
		})
	}
}

func TestSynthesizeSpeech(t *testing.T) {
	pcm := []byte{0, 0, 1, 0, 255, 255}
	b := &fakeBackend{audio: &InlineData{MIMEType: "audio/L16;codec=pcm;rate=24000", Data: pcm}}
	c := newTestClient(t, b)

	got, err := c.SynthesizeSpeech(context.Background(), "**Bold** text")
	if err != nil {
		t.Fatalf("SynthesizeSpeech: %v", err)
	}
	if got != base64.StdEncoding.EncodeToString(pcm) {
		t.Errorf("SynthesizeSpeech() = %q, want base64 of the PCM", got)
	}
	if b.audioTexts[0] != "Bold text" {
		t.Errorf("backend received %q, want %q", b.audioTexts[0], "Bold text")
	}
	if b.audioVoices[0] != DefaultVoice {
		t.Errorf("voice = %q, want %q", b.audioVoices[0], DefaultVoice)
	}
}

func TestSynthesizeSpeechErrors(t *testing.T) {
	c := newTestClient(t, &fakeBackend{})
	if _, err := c.SynthesizeSpeech(context.Background(), "## **`"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("markup-only text: error = %v, want ErrInvalidRequest", err)
	}
	if _, err := c.SynthesizeSpeech(context.Background(), "hello"); !errors.Is(err, ErrNoAudioGenerated) {
		t.Errorf("no audio: error = %v, want ErrNoAudioGenerated", err)
	}

	c = newTestClient(t, &fakeBackend{audio: &InlineData{}}, WithVoice("Puck"))
	if _, err := c.SynthesizeSpeech(context.Background(), "hello"); !errors.Is(err, ErrNoAudioGenerated) {
		t.Errorf("empty audio: error = %v, want ErrNoAudioGenerated", err)
	}
}

func TestCleanSpeechText(t *testing.T) {
	tests := map[string]string{
		"**Bold** text":   "Bold text",
		"# Title\n`code`": " Title\ncode",
		"plain":           "plain",
		"a * b = c":       "a  b = c",
	}
	for in, want := range tests {
		if got := CleanSpeechText(in); got != want {
			t.Errorf("CleanSpeechText(%q) = %q, want %q", in, got, want)
		}
	}
}
