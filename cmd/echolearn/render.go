package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	appI18n "github.com/kirtisharma-sudo/echolearn-ai/internal/i18n"
	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
)

// render prints a study response for the terminal.
func render(ctx context.Context, w io.Writer, req model.StudyRequest, resp *model.StudyResponse) {
	fmt.Fprintf(w, "%s: %s\n", appI18n.T(ctx, appI18n.MsgAppTitle), resp.Title)
	if req.Feature == model.FeatureMoodBooster && req.FocusMinutes > 0 {
		fmt.Fprintf(w, "(%s)\n", appI18n.Tp(ctx, appI18n.MsgFocusMinutes, req.FocusMinutes))
	}
	fmt.Fprintln(w)

	switch resp.Shape() {
	case model.ShapeContent:
		fmt.Fprintln(w, strings.TrimSpace(resp.MarkdownContent))
	case model.ShapeQuiz:
		for i, q := range resp.QuizData {
			fmt.Fprintf(w, "%d. %s\n", i+1, q.Question)
			for j, opt := range q.Options {
				fmt.Fprintf(w, "   %c) %s\n", 'a'+rune(j), opt)
			}
			if q.Hint != "" {
				fmt.Fprintf(w, "   %s: %s\n", appI18n.T(ctx, appI18n.MsgHintLabel), q.Hint)
			}
			fmt.Fprintf(w, "   %s: %s\n", appI18n.T(ctx, appI18n.MsgAnswerLabel), q.Answer)
			if q.Explanation != "" {
				fmt.Fprintf(w, "   %s\n", q.Explanation)
			}
			fmt.Fprintln(w)
		}
	case model.ShapeFlashcards:
		for i, c := range resp.FlashcardData {
			fmt.Fprintf(w, "[%d] %s\n    %s\n", i+1, c.Front, c.Back)
		}
	case model.ShapeEchoSpeak:
		d := resp.EchoSpeakData
		if d == nil {
			break
		}
		fmt.Fprintf(w, "%s: %.0f%%\n", appI18n.T(ctx, appI18n.MsgAccuracyLabel), d.AccuracyScore)
		if d.Transcription != "" {
			fmt.Fprintf(w, "%s: %s\n", appI18n.T(ctx, appI18n.MsgHeardLabel), d.Transcription)
		}
		for _, m := range d.Mistakes {
			fmt.Fprintf(w, "  - %s\n", m)
		}
		if d.Feedback != "" {
			fmt.Fprintf(w, "\n%s\n", d.Feedback)
		}
		if d.TutorResponse != "" {
			fmt.Fprintf(w, "\n%s\n", d.TutorResponse)
		}
	}

	if resp.ImageURI != "" {
		mime, _, _ := strings.Cut(strings.TrimPrefix(resp.ImageURI, "data:"), ";")
		fmt.Fprintf(w, "\n[%s: %s, %d bytes encoded]\n",
			appI18n.Td(ctx, appI18n.MsgImageCaption, map[string]any{"Title": resp.Title}),
			mime, len(resp.ImageURI))
	}
}
