package llm

import (
	"google.golang.org/genai"

	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
)

func str(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func strList(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: str(""), Description: description}
}

// responseSchema returns the output schema for a feature. The type enum is pinned
// to the requested feature so the reply's tag can be checked against it.
func responseSchema(f model.Feature) *genai.Schema {
	typeTag := &genai.Schema{Type: genai.TypeString, Enum: []string{string(f)}}

	switch f.Shape() {
	case model.ShapeQuiz:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title": str(""),
				"type":  typeTag,
				"quizData": {
					Type:     genai.TypeArray,
					MinItems: genai.Ptr[int64](1),
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"question": str(""),
							"options": {
								Type:        genai.TypeArray,
								Items:       str(""),
								MinItems:    genai.Ptr[int64](4),
								Description: "At least 4 distinct options",
							},
							"answer":      str("Exactly one of the options, copied verbatim"),
							"hint":        str(""),
							"explanation": str(""),
						},
						Required:         []string{"question", "options", "answer", "hint", "explanation"},
						PropertyOrdering: []string{"question", "options", "answer", "hint", "explanation"},
					},
				},
			},
			Required:         []string{"title", "type", "quizData"},
			PropertyOrdering: []string{"title", "type", "quizData"},
		}

	case model.ShapeFlashcards:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title": str(""),
				"type":  typeTag,
				"flashcardData": {
					Type:     genai.TypeArray,
					MinItems: genai.Ptr[int64](1),
					Items: &genai.Schema{
						Type: genai.TypeObject,
						Properties: map[string]*genai.Schema{
							"front": str("The term, question, or concept on the front"),
							"back":  str("The definition, answer, or explanation on the back"),
						},
						Required:         []string{"front", "back"},
						PropertyOrdering: []string{"front", "back"},
					},
				},
			},
			Required:         []string{"title", "type", "flashcardData"},
			PropertyOrdering: []string{"title", "type", "flashcardData"},
		}

	case model.ShapeEchoSpeak:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title": str(""),
				"type":  typeTag,
				"echoSpeakData": {
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"accuracyScore": {
							Type:        genai.TypeNumber,
							Minimum:     genai.Ptr[float64](0),
							Maximum:     genai.Ptr[float64](100),
							Description: "0-100 score of accuracy",
						},
						"transcription": str("What the user said or typed"),
						"mistakes":      strList("Factual errors, grammar or pronunciation issues, or missing key points"),
						"feedback":      str("Markdown feedback with corrections and tips"),
						"tutorResponse": str("A conversational, encouraging reply from the tutor, spoken directly to the user"),
					},
					Required:         []string{"accuracyScore", "transcription", "mistakes", "feedback", "tutorResponse"},
					PropertyOrdering: []string{"accuracyScore", "transcription", "mistakes", "feedback", "tutorResponse"},
				},
				"imagePrompt": str("An image that would help the user improve, such as mouth shape for a sound or a diagram of the concept"),
			},
			Required:         []string{"title", "type", "echoSpeakData"},
			PropertyOrdering: []string{"title", "type", "echoSpeakData", "imagePrompt"},
		}

	default:
		return &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"title":           str(""),
				"type":            typeTag,
				"markdownContent": str("The formatted content using Markdown (headers, bullets, bold, math symbols)"),
				"imagePrompt":     str("A detailed prompt for an educational illustration of this content. Leave empty if not needed"),
			},
			Required:         []string{"title", "type", "markdownContent"},
			PropertyOrdering: []string{"title", "type", "markdownContent", "imagePrompt"},
		}
	}
}
