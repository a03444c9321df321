package model

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Feature identifies one of the study tools a request can target.
type Feature string

const (
	// FeatureExplain explains a topic in simple language.
	FeatureExplain Feature = "EXPLAIN"
	// FeatureNotes produces bullet-point notes.
	FeatureNotes Feature = "NOTES"
	// FeatureQuiz produces a multiple-choice quiz.
	FeatureQuiz Feature = "QUIZ"
	// FeatureSolver solves a problem step by step.
	FeatureSolver Feature = "SOLVER"
	// FeatureEchoSpeak coaches the user on a spoken or written attempt.
	FeatureEchoSpeak Feature = "ECHOSPEAK"
	// FeatureFlashcards produces front/back revision cards.
	FeatureFlashcards Feature = "FLASHCARDS"
	// FeatureDoubtSolver answers a specific doubt.
	FeatureDoubtSolver Feature = "DOUBT_SOLVER"
	// FeatureMoodBooster produces a motivational break with a micro-lesson.
	FeatureMoodBooster Feature = "MOOD_BOOSTER"
)

// Features lists every feature in presentation order.
var Features = []Feature{
	FeatureExplain,
	FeatureNotes,
	FeatureQuiz,
	FeatureSolver,
	FeatureEchoSpeak,
	FeatureFlashcards,
	FeatureDoubtSolver,
	FeatureMoodBooster,
}

// Shape is the structural family of a response payload.
type Shape string

const (
	// ShapeContent carries a markdown body.
	ShapeContent Shape = "content"
	// ShapeQuiz carries quiz items.
	ShapeQuiz Shape = "quiz"
	// ShapeFlashcards carries flashcards.
	ShapeFlashcards Shape = "flashcards"
	// ShapeEchoSpeak carries oral-coaching feedback.
	ShapeEchoSpeak Shape = "echospeak"
)

var featureShapes = map[Feature]Shape{
	FeatureExplain:     ShapeContent,
	FeatureNotes:       ShapeContent,
	FeatureQuiz:        ShapeQuiz,
	FeatureSolver:      ShapeContent,
	FeatureEchoSpeak:   ShapeEchoSpeak,
	FeatureFlashcards:  ShapeFlashcards,
	FeatureDoubtSolver: ShapeContent,
	FeatureMoodBooster: ShapeContent,
}

func init() {
	if len(featureShapes) != len(Features) {
		panic("model: feature shape table is out of sync with Features")
	}
	for _, f := range Features {
		if _, ok := featureShapes[f]; !ok {
			panic("model: no response shape for feature " + string(f))
		}
	}
}

// Shape returns the response shape the feature produces.
func (f Feature) Shape() Shape {
	return featureShapes[f]
}

// Valid reports whether f is a known feature.
func (f Feature) Valid() bool {
	_, ok := featureShapes[f]
	return ok
}

// ParseFeature resolves a feature name case-insensitively. Dashes are accepted
// in place of underscores, so "doubt-solver" parses as DOUBT_SOLVER.
func ParseFeature(s string) (Feature, error) {
	f := Feature(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown feature %q", ErrInvalidRequest, s)
	}
	return f, nil
}

// Mode sets the persona and tone of the tutor.
type Mode string

const (
	ModeTutor  Mode = "Tutor"
	ModeFriend Mode = "Friend"
	ModeExam   Mode = "Exam"
	ModeFun    Mode = "Fun"
)

// Modes lists every mode.
var Modes = []Mode{ModeTutor, ModeFriend, ModeExam, ModeFun}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	for _, k := range Modes {
		if m == k {
			return true
		}
	}
	return false
}

// ParseMode resolves a mode name case-insensitively.
func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if strings.EqualFold(strings.TrimSpace(s), string(m)) {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, s)
}

// Language is a target language the UI offers.
type Language string

const (
	LanguageEnglish  Language = "English"
	LanguageSpanish  Language = "Spanish"
	LanguageFrench   Language = "French"
	LanguageHindi    Language = "Hindi"
	LanguageGerman   Language = "German"
	LanguageChinese  Language = "Chinese"
	LanguageJapanese Language = "Japanese"
)

var languageTags = map[Language]language.Tag{
	LanguageEnglish:  language.English,
	LanguageSpanish:  language.Spanish,
	LanguageFrench:   language.French,
	LanguageHindi:    language.Hindi,
	LanguageGerman:   language.German,
	LanguageChinese:  language.Chinese,
	LanguageJapanese: language.Japanese,
}

// Languages lists every language in presentation order.
var Languages = []Language{
	LanguageEnglish,
	LanguageSpanish,
	LanguageFrench,
	LanguageHindi,
	LanguageGerman,
	LanguageChinese,
	LanguageJapanese,
}

// Valid reports whether l is a known language.
func (l Language) Valid() bool {
	_, ok := languageTags[l]
	return ok
}

// Tag returns the BCP 47 tag for l, or language.Und if l is unknown.
func (l Language) Tag() language.Tag {
	if t, ok := languageTags[l]; ok {
		return t
	}
	return language.Und
}

// ParseLanguage accepts either a language name ("Spanish") or a BCP 47 tag ("es", "zh-CN").
func ParseLanguage(s string) (Language, error) {
	s = strings.TrimSpace(s)
	for _, l := range Languages {
		if strings.EqualFold(s, string(l)) {
			return l, nil
		}
	}
	if tag, err := language.Parse(s); err == nil {
		base, _ := tag.Base()
		for _, l := range Languages {
			if b, _ := l.Tag().Base(); b == base {
				return l, nil
			}
		}
	}
	return "", fmt.Errorf("%w: unknown language %q", ErrInvalidRequest, s)
}
