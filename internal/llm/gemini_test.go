package llm

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
)

type recordedCall struct {
	path string
	body string
}

// geminiStub serves canned generateContent replies keyed by model name.
type geminiStub struct {
	mu      sync.Mutex
	calls   []recordedCall
	replies map[string]string
}

func (s *geminiStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.calls = append(s.calls, recordedCall{path: r.URL.Path, body: string(body)})
	s.mu.Unlock()

	for name, reply := range s.replies {
		if strings.Contains(r.URL.Path, "/models/"+name+":generateContent") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, reply)
			return
		}
	}
	http.Error(w, `{"error":{"code":404,"message":"model not found","status":"NOT_FOUND"}}`, http.StatusNotFound)
}

func (s *geminiStub) lastCall(t *testing.T) recordedCall {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.calls) == 0 {
		t.Fatal("no request reached the stub")
	}
	return s.calls[len(s.calls)-1]
}

func newStubGemini(t *testing.T, replies map[string]string) (*Gemini, *geminiStub) {
	t.Helper()
	stub := &geminiStub{replies: replies}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	g, err := NewGemini(context.Background(), GeminiConfig{
		APIKey:     "test-key",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewGemini: %v", err)
	}
	return g, stub
}

func textReply(text string) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"text":` + jsonString(text) + `}]}}]}`
}

func inlineReply(mimeType string, data []byte) string {
	return `{"candidates":[{"content":{"role":"model","parts":[{"inlineData":{"mimeType":"` + mimeType +
		`","data":"` + base64.StdEncoding.EncodeToString(data) + `"}}]}}]}`
}

func jsonString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}

func TestGeminiGenerateStructured(t *testing.T) {
	const payload = `{"title":"t","type":"NOTES","markdownContent":"- a"}`
	g, stub := newStubGemini(t, map[string]string{DefaultContentModel: textReply(payload)})

	got, err := g.GenerateStructured(context.Background(), StructuredRequest{
		Parts: []Part{
			{InlineData: &InlineData{MIMEType: "audio/webm", Data: []byte("rec")}},
			{Text: "Create study notes for: \"cells\""},
		},
		SystemInstruction: "You are EchoLearn",
		Feature:           model.FeatureNotes,
		Temperature:       0.3,
	})
	if err != nil {
		t.Fatalf("GenerateStructured: %v", err)
	}
	if got != payload {
		t.Errorf("GenerateStructured() = %q, want %q", got, payload)
	}

	call := stub.lastCall(t)
	for _, want := range []string{"application/json", "You are EchoLearn", "audio/webm", "markdownContent", `"NOTES"`} {
		if !strings.Contains(call.body, want) {
			t.Errorf("request body missing %q: %s", want, call.body)
		}
	}
}

func TestGeminiGenerateImage(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	g, stub := newStubGemini(t, map[string]string{DefaultImageModel: inlineReply("image/png", png)})

	img, err := g.GenerateImage(context.Background(), "a leaf", "4:3")
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if img == nil || img.MIMEType != "image/png" || string(img.Data) != string(png) {
		t.Fatalf("GenerateImage() = %+v", img)
	}
	if body := stub.lastCall(t).body; !strings.Contains(body, "4:3") {
		t.Errorf("request body missing aspect ratio: %s", body)
	}
}

func TestGeminiGenerateAudio(t *testing.T) {
	pcm := []byte{1, 0, 2, 0}
	g, stub := newStubGemini(t, map[string]string{DefaultSpeechModel: inlineReply("audio/L16;codec=pcm;rate=24000", pcm)})

	audio, err := g.GenerateAudio(context.Background(), "hello", "Kore")
	if err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}
	if audio == nil || string(audio.Data) != string(pcm) {
		t.Fatalf("GenerateAudio() = %+v", audio)
	}
	body := stub.lastCall(t).body
	for _, want := range []string{"Kore", "AUDIO"} {
		if !strings.Contains(body, want) {
			t.Errorf("request body missing %q: %s", want, body)
		}
	}
}

func TestGeminiNoInlineData(t *testing.T) {
	g, _ := newStubGemini(t, map[string]string{DefaultSpeechModel: textReply("I cannot speak")})

	audio, err := g.GenerateAudio(context.Background(), "hello", "Kore")
	if err != nil {
		t.Fatalf("GenerateAudio: %v", err)
	}
	if audio != nil {
		t.Errorf("GenerateAudio() = %+v, want nil", audio)
	}
}

func TestGeminiTransportError(t *testing.T) {
	g, _ := newStubGemini(t, map[string]string{})
	if _, err := g.GenerateStructured(context.Background(), StructuredRequest{
		Parts:   []Part{{Text: "x"}},
		Feature: model.FeatureExplain,
	}); err == nil {
		t.Error("GenerateStructured() succeeded against a failing server")
	}
}
