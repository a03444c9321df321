package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
)

// Raw reply types use pointers so a missing field can be told apart from an empty one.

type rawResponse struct {
	Title           *string        `json:"title"`
	Type            *string        `json:"type"`
	MarkdownContent *string        `json:"markdownContent"`
	QuizData        *[]rawQuizItem `json:"quizData"`
	FlashcardData   *[]rawCard     `json:"flashcardData"`
	EchoSpeakData   *rawEchoSpeak  `json:"echoSpeakData"`
	ImagePrompt     string         `json:"imagePrompt"`
}

type rawQuizItem struct {
	Question    *string  `json:"question"`
	Options     []string `json:"options"`
	Answer      *string  `json:"answer"`
	Hint        *string  `json:"hint"`
	Explanation *string  `json:"explanation"`
}

type rawCard struct {
	Front *string `json:"front"`
	Back  *string `json:"back"`
}

type rawEchoSpeak struct {
	AccuracyScore *float64  `json:"accuracyScore"`
	Transcription *string   `json:"transcription"`
	Mistakes      *[]string `json:"mistakes"`
	Feedback      *string   `json:"feedback"`
	TutorResponse *string   `json:"tutorResponse"`
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrMalformedResponse}, args...)...)
}

// parseResponse decodes and structurally validates a reply for the requested feature.
// The backend's schema is advisory; anything that does not fit the shape is rejected.
func parseResponse(raw string, feature model.Feature) (*model.StudyResponse, error) {
	var r rawResponse
	if err := json.Unmarshal([]byte(trimCodeFence(raw)), &r); err != nil {
		return nil, malformed("decode: %v", err)
	}

	if r.Title == nil {
		return nil, malformed("missing title")
	}
	if r.Type == nil {
		return nil, malformed("missing type")
	}
	if !strings.EqualFold(strings.TrimSpace(*r.Type), string(feature)) {
		return nil, malformed("type %q does not match requested feature %s", *r.Type, feature)
	}

	resp := &model.StudyResponse{
		Title: strings.TrimSpace(*r.Title),
		Type:  feature,
	}

	switch feature.Shape() {
	case model.ShapeContent:
		if r.MarkdownContent == nil || strings.TrimSpace(*r.MarkdownContent) == "" {
			return nil, malformed("missing markdownContent")
		}
		resp.MarkdownContent = *r.MarkdownContent
		resp.ImagePrompt = strings.TrimSpace(r.ImagePrompt)

	case model.ShapeQuiz:
		items, err := validateQuiz(r.QuizData)
		if err != nil {
			return nil, err
		}
		resp.QuizData = items

	case model.ShapeFlashcards:
		cards, err := validateFlashcards(r.FlashcardData)
		if err != nil {
			return nil, err
		}
		resp.FlashcardData = cards

	case model.ShapeEchoSpeak:
		data, err := validateEchoSpeak(r.EchoSpeakData)
		if err != nil {
			return nil, err
		}
		resp.EchoSpeakData = data
		resp.ImagePrompt = strings.TrimSpace(r.ImagePrompt)
	}

	return resp, nil
}

func validateQuiz(raw *[]rawQuizItem) ([]model.QuizItem, error) {
	if raw == nil || len(*raw) == 0 {
		return nil, malformed("missing quizData")
	}
	items := make([]model.QuizItem, 0, len(*raw))
	for i, q := range *raw {
		if q.Question == nil || strings.TrimSpace(*q.Question) == "" {
			return nil, malformed("quiz item %d: missing question", i)
		}
		if q.Answer == nil || q.Hint == nil || q.Explanation == nil {
			return nil, malformed("quiz item %d: missing answer, hint or explanation", i)
		}
		if len(q.Options) < 4 {
			return nil, malformed("quiz item %d: %d options, want at least 4", i, len(q.Options))
		}
		seen := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			if seen[o] {
				return nil, malformed("quiz item %d: duplicate option %q", i, o)
			}
			seen[o] = true
		}
		if !seen[*q.Answer] {
			return nil, malformed("quiz item %d: answer %q is not one of the options", i, *q.Answer)
		}
		items = append(items, model.QuizItem{
			Question:    *q.Question,
			Options:     q.Options,
			Answer:      *q.Answer,
			Hint:        *q.Hint,
			Explanation: *q.Explanation,
		})
	}
	return items, nil
}

func validateFlashcards(raw *[]rawCard) ([]model.Flashcard, error) {
	if raw == nil || len(*raw) == 0 {
		return nil, malformed("missing flashcardData")
	}
	cards := make([]model.Flashcard, 0, len(*raw))
	for i, c := range *raw {
		if c.Front == nil || c.Back == nil || strings.TrimSpace(*c.Front) == "" || strings.TrimSpace(*c.Back) == "" {
			return nil, malformed("flashcard %d: front and back are required", i)
		}
		cards = append(cards, model.Flashcard{Front: *c.Front, Back: *c.Back})
	}
	return cards, nil
}

func validateEchoSpeak(raw *rawEchoSpeak) (*model.EchoSpeakData, error) {
	if raw == nil {
		return nil, malformed("missing echoSpeakData")
	}
	if raw.AccuracyScore == nil || raw.Transcription == nil || raw.Mistakes == nil || raw.Feedback == nil || raw.TutorResponse == nil {
		return nil, malformed("echoSpeakData is incomplete")
	}
	if s := *raw.AccuracyScore; s < 0 || s > 100 {
		return nil, malformed("accuracyScore %v outside 0-100", s)
	}
	if strings.TrimSpace(*raw.TutorResponse) == "" {
		return nil, malformed("empty tutorResponse")
	}
	return &model.EchoSpeakData{
		AccuracyScore: *raw.AccuracyScore,
		Transcription: *raw.Transcription,
		Mistakes:      *raw.Mistakes,
		Feedback:      *raw.Feedback,
		TutorResponse: *raw.TutorResponse,
	}, nil
}

// trimCodeFence removes a ```json fence some models wrap around JSON replies.
func trimCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}
