package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
)

// Templates holds the built-in prompt templates.
//
//go:embed templates/*.tmpl
var Templates embed.FS

const (
	maxInputRunes = 10000

	// AudioNote follows the instruction whenever the input is a recording.
	AudioNote = "The user input is audio. Transcribe it, detect the language, and then perform the requested task in that language."

	audioPlaceholder = "[See the attached recording]"
)

var (
	userInputRegex          = regexp.MustCompile(`(?i)</?\s*user-input\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

var (
	loadOnce         sync.Once
	loadErr          error
	systemTemplate   *template.Template
	featureTemplates map[model.Feature]*template.Template
)

// SystemData holds template data for the system instruction.
type SystemData struct {
	Mode         string
	Language     model.Language
	Feature      model.Feature
	FocusMinutes int
}

// InstructionData holds template data for a feature instruction.
type InstructionData struct {
	Input        string
	FocusMinutes int
	HasAudio     bool
}

func templateFile(f model.Feature) string {
	return "templates/" + strings.ToLower(string(f)) + ".tmpl"
}

// Load parses the system and feature templates from fsys.
// It uses sync.Once so templates are parsed only once per process.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		sys, err := parseFile(fsys, "templates/system.tmpl")
		if err != nil {
			loadErr = err
			return
		}
		tmpls := make(map[model.Feature]*template.Template, len(model.Features))
		for _, f := range model.Features {
			t, err := parseFile(fsys, templateFile(f))
			if err != nil {
				loadErr = err
				return
			}
			tmpls[f] = t
		}
		systemTemplate = sys
		featureTemplates = tmpls
	})
	return loadErr
}

func parseFile(fsys fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt file %s: %w", name, err)
	}
	t, err := template.New(name).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return t, nil
}

// BuildSystemInstruction renders the system instruction for a request.
func BuildSystemInstruction(req model.StudyRequest) (string, error) {
	if systemTemplate == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	data := SystemData{
		Mode:         strings.ToUpper(string(req.Mode)),
		Language:     req.Language,
		Feature:      req.Feature,
		FocusMinutes: req.FocusMinutes,
	}
	var buf bytes.Buffer
	if err := systemTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// BuildInstruction renders the feature instruction with the user's input interpolated.
func BuildInstruction(req model.StudyRequest) (string, error) {
	if featureTemplates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("templates not initialized: call Load first")
	}
	tmpl, ok := featureTemplates[req.Feature]
	if !ok {
		return "", errors.New("no prompt template for feature: " + string(req.Feature))
	}

	data := InstructionData{
		Input:        sanitizeInput(req.Text, req.HasAudio()),
		FocusMinutes: req.FocusMinutes,
		HasAudio:     req.HasAudio(),
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func sanitizeInput(input string, hasAudio bool) string {
	input = userInputRegex.ReplaceAllString(input, "")
	input = systemInstructionsRegex.ReplaceAllString(input, "")
	input = strings.TrimSpace(input)

	if input == "" {
		if hasAudio {
			return audioPlaceholder
		}
		return "[No input provided]"
	}

	if utf8.RuneCountInString(input) > maxInputRunes {
		runes := []rune(input)
		input = string(runes[:maxInputRunes]) + "\n\n[Input truncated due to length]"
	}
	return input
}
