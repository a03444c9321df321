package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kirtisharma-sudo/echolearn-ai/internal/audio"
	appI18n "github.com/kirtisharma-sudo/echolearn-ai/internal/i18n"
	"github.com/kirtisharma-sudo/echolearn-ai/internal/llm"
	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
)

const defaultMaxBodyBytes = 25 << 20

// Orchestrator runs study submissions and speech synthesis.
type Orchestrator interface {
	Submit(ctx context.Context, req model.StudyRequest) (*model.StudyResponse, error)
	SynthesizeSpeech(ctx context.Context, text string) (string, error)
}

// Player is the exclusive playback session on the server's audio device.
type Player interface {
	Play(payload string, onEnded func())
	Stop()
	Status() audio.Status
}

// Config holds handler settings.
type Config struct {
	DefaultMode     model.Mode
	DefaultLanguage model.Language
	MaxBodyBytes    int64
	// Metrics, when set, is served at /metrics.
	Metrics http.Handler
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	llm    Orchestrator
	player Player
	config Config
}

// New creates a new Handler.
func New(o Orchestrator, p Player, cfg Config) *Handler {
	if cfg.DefaultMode == "" {
		cfg.DefaultMode = model.ModeTutor
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = model.LanguageEnglish
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{llm: o, player: p, config: cfg}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	if h.config.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.config.Metrics)
	}
	r.Route("/api", func(r chi.Router) {
		r.Get("/options", h.handleOptions)
		r.Post("/study", h.handleStudy)
		r.Post("/speech", h.handleSpeech)
		r.Get("/playback", h.handlePlaybackState)
		r.Post("/playback", h.handlePlay)
		r.Delete("/playback", h.handleStop)
	})
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: message, Code: code})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	return dec.Decode(v)
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type featureOption struct {
	ID    model.Feature `json:"id"`
	Shape model.Shape   `json:"shape"`
}

func (h *Handler) handleOptions(w http.ResponseWriter, _ *http.Request) {
	features := make([]featureOption, 0, len(model.Features))
	for _, f := range model.Features {
		features = append(features, featureOption{ID: f, Shape: f.Shape()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"features":        features,
		"modes":           model.Modes,
		"languages":       model.Languages,
		"defaultMode":     h.config.DefaultMode,
		"defaultLanguage": h.config.DefaultLanguage,
	})
}

type studyRequest struct {
	Feature      string            `json:"feature"`
	Mode         string            `json:"mode"`
	Language     string            `json:"language"`
	Text         string            `json:"text"`
	Audio        *model.AudioInput `json:"audio"`
	FocusMinutes int               `json:"focusMinutes"`
}

func (h *Handler) toStudyRequest(in studyRequest) (model.StudyRequest, error) {
	req := model.StudyRequest{
		Mode:         h.config.DefaultMode,
		Language:     h.config.DefaultLanguage,
		Text:         in.Text,
		Audio:        in.Audio,
		FocusMinutes: in.FocusMinutes,
	}
	var err error
	if req.Feature, err = model.ParseFeature(in.Feature); err != nil {
		return req, err
	}
	if strings.TrimSpace(in.Mode) != "" {
		if req.Mode, err = model.ParseMode(in.Mode); err != nil {
			return req, err
		}
	}
	if strings.TrimSpace(in.Language) != "" {
		if req.Language, err = model.ParseLanguage(in.Language); err != nil {
			return req, err
		}
	}
	return req, nil
}

func (h *Handler) handleStudy(w http.ResponseWriter, r *http.Request) {
	var in studyRequest
	if err := h.decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request",
			appI18n.Td(r.Context(), appI18n.MsgInvalidRequest, map[string]any{"Reason": err.Error()}))
		return
	}

	req, err := h.toStudyRequest(in)
	ctx := appI18n.ForLanguage(r.Context(), req.Language)
	if err == nil {
		err = req.Validate()
	}
	if err != nil {
		h.writeInvalid(w, ctx, req, err)
		return
	}

	resp, err := h.llm.Submit(r.Context(), req)
	if err != nil {
		if errors.Is(err, llm.ErrInvalidRequest) {
			h.writeInvalid(w, ctx, req, err)
			return
		}
		slog.Error("study submission failed", "feature", req.Feature, "error", err)
		writeError(w, http.StatusBadGateway, submissionCode(err), appI18n.T(ctx, appI18n.MsgSubmissionFailed))
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeInvalid(w http.ResponseWriter, ctx context.Context, req model.StudyRequest, err error) {
	msg := appI18n.Td(ctx, appI18n.MsgInvalidRequest, map[string]any{"Reason": err.Error()})
	if req.Feature.Valid() && strings.TrimSpace(req.Text) == "" && !req.HasAudio() {
		msg = appI18n.T(ctx, appI18n.MsgInputRequired)
	}
	writeError(w, http.StatusBadRequest, "invalid_request", msg)
}

func submissionCode(err error) string {
	switch {
	case errors.Is(err, llm.ErrEmptyResponse):
		return "empty_response"
	case errors.Is(err, llm.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "backend_error"
	}
}

type speechRequest struct {
	Text string `json:"text"`
}

type speechResponse struct {
	Audio      string `json:"audio"`
	SampleRate int    `json:"sampleRate"`
	Channels   int    `json:"channels"`
	Encoding   string `json:"encoding"`
}

func (h *Handler) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var in speechRequest
	if err := h.decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request",
			appI18n.Td(r.Context(), appI18n.MsgInvalidRequest, map[string]any{"Reason": err.Error()}))
		return
	}

	pcm, err := h.llm.SynthesizeSpeech(r.Context(), in.Text)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, speechResponse{
			Audio:      pcm,
			SampleRate: audio.SampleRate,
			Channels:   audio.Channels,
			Encoding:   audio.Encoding,
		})
	case errors.Is(err, llm.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", appI18n.T(r.Context(), appI18n.MsgInputRequired))
	case errors.Is(err, llm.ErrNoAudioGenerated):
		slog.Warn("speech synthesis returned no audio")
		writeError(w, http.StatusBadGateway, "no_audio", appI18n.T(r.Context(), appI18n.MsgSpeechUnavailable))
	default:
		slog.Error("speech synthesis failed", "error", err)
		writeError(w, http.StatusBadGateway, "backend_error", appI18n.T(r.Context(), appI18n.MsgSpeechUnavailable))
	}
}

type playRequest struct {
	Audio string `json:"audio"`
}

func (h *Handler) handlePlay(w http.ResponseWriter, r *http.Request) {
	var in playRequest
	if err := h.decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request",
			appI18n.Td(r.Context(), appI18n.MsgInvalidRequest, map[string]any{"Reason": err.Error()}))
		return
	}
	if _, err := audio.DecodeBase64PCM(in.Audio, audio.SampleRate, audio.Channels); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_audio", appI18n.T(r.Context(), appI18n.MsgPlaybackInvalid))
		return
	}

	h.player.Play(in.Audio, func() {
		slog.Debug("server playback finished")
	})
	writeJSON(w, http.StatusAccepted, h.player.Status())
}

func (h *Handler) handleStop(w http.ResponseWriter, _ *http.Request) {
	h.player.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handlePlaybackState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.player.Status())
}
