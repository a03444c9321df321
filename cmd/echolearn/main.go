package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/kirtisharma-sudo/echolearn-ai/internal/audio"
	"github.com/kirtisharma-sudo/echolearn-ai/internal/handler"
	appI18n "github.com/kirtisharma-sudo/echolearn-ai/internal/i18n"
	"github.com/kirtisharma-sudo/echolearn-ai/internal/llm"
	"github.com/kirtisharma-sudo/echolearn-ai/internal/model"
	"github.com/kirtisharma-sudo/echolearn-ai/internal/telemetry"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "echolearn",
		Short: "Multimodal study companion powered by Gemini",
	}

	serve := serveCmd()
	root.AddCommand(serve, askCmd(), speakCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `echolearn --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addGeminiFlags(f *pflag.FlagSet) {
	f.String("gemini-api-key", "", "Gemini API key (or set ECHOLEARN_GEMINI_API_KEY / GEMINI_API_KEY)")
	f.String("gemini-base-url", "", "Override the Gemini API base URL")
	f.String("content-model", llm.DefaultContentModel, "Model for structured study replies")
	f.String("image-model", llm.DefaultImageModel, "Model for illustrations")
	f.String("tts-model", llm.DefaultSpeechModel, "Model for speech synthesis")
	f.String("voice", llm.DefaultVoice, "Prebuilt voice for speech")
	f.Duration("request-timeout", 2*time.Minute, "Timeout for a single backend call")
}

func addPlayerFlags(f *pflag.FlagSet) {
	f.String("player-command", audio.DefaultPlayerCommand, "Command that plays s16le PCM from stdin")
	f.Bool("no-speaker", false, "Discard audio instead of playing it")
}

func addCommonFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	f.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces (host:port)")
	f.Bool("otlp-insecure", false, "Disable TLS for the OTLP exporter")
	f.Bool("trace-stdout", false, "Print traces to stderr")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API for the study UI",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "Default language for notices (en, es, fr, hi, de, zh, ja)")
	f.StringP("mode", "m", string(model.ModeTutor), "Default study mode (Tutor, Friend, Exam, Fun)")
	f.String("language", string(model.LanguageEnglish), "Default target language")
	addGeminiFlags(f)
	addPlayerFlags(f)
	addCommonFlags(f)
	return cmd
}

func askCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask [text]",
		Short: "Run one study feature and print the result",
		Args:  cobra.ArbitraryArgs,
		RunE:  runAsk,
	}
	f := cmd.Flags()
	f.StringP("feature", "f", string(model.FeatureExplain), "Feature: explain, notes, quiz, solver, echospeak, flashcards, doubt-solver, mood-booster")
	f.StringP("mode", "m", string(model.ModeTutor), "Study mode (Tutor, Friend, Exam, Fun)")
	f.StringP("lang", "l", string(model.LanguageEnglish), "Target language (name or tag)")
	f.StringP("text", "t", "", "Input text (defaults to the positional arguments)")
	f.String("audio", "", "Path to a recorded audio file")
	f.String("audio-mime", "", "MIME type of --audio (default audio/webm)")
	f.Int("minutes", 0, "Minutes studied so far (mood booster)")
	f.Bool("json", false, "Print the raw response JSON")
	f.Bool("speak", false, "Read the response aloud")
	addGeminiFlags(f)
	addPlayerFlags(f)
	addCommonFlags(f)
	return cmd
}

func speakCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speak <text>",
		Short: "Synthesize speech and play it",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runSpeak,
	}
	f := cmd.Flags()
	f.StringP("out", "o", "", "Write raw s16le PCM to this file instead of playing it")
	addGeminiFlags(f)
	addPlayerFlags(f)
	addCommonFlags(f)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ECHOLEARN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("echolearn")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/echolearn")
	v.AddConfigPath("/etc/echolearn")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func setupTelemetry(ctx context.Context, v *viper.Viper) (*telemetry.Telemetry, error) {
	return telemetry.Setup(ctx, telemetry.Config{
		ServiceName:  "echolearn",
		OTLPEndpoint: v.GetString("otlp-endpoint"),
		OTLPInsecure: v.GetBool("otlp-insecure"),
		TraceStdout:  v.GetBool("trace-stdout"),
	}, slog.Default())
}

func newClient(ctx context.Context, v *viper.Viper) (*llm.Client, error) {
	apiKey := v.GetString("gemini-api-key")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required: set --gemini-api-key or GEMINI_API_KEY")
	}
	backend, err := llm.NewGemini(ctx, llm.GeminiConfig{
		APIKey:       apiKey,
		BaseURL:      v.GetString("gemini-base-url"),
		ContentModel: v.GetString("content-model"),
		ImageModel:   v.GetString("image-model"),
		SpeechModel:  v.GetString("tts-model"),
		HTTPClient:   &http.Client{Timeout: v.GetDuration("request-timeout")},
	})
	if err != nil {
		return nil, err
	}
	return llm.New(backend, llm.WithVoice(v.GetString("voice")), llm.WithLogger(slog.Default()))
}

func newEngine(v *viper.Viper) (*audio.Engine, error) {
	var device audio.Device = audio.DiscardDevice{}
	if !v.GetBool("no-speaker") {
		d, err := audio.NewCommandDevice(v.GetString("player-command"), slog.Default())
		if err != nil {
			return nil, err
		}
		device = d
	}
	return audio.NewEngine(device, audio.WithLogger(slog.Default())), nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize i18n.
	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	mode, err := model.ParseMode(v.GetString("mode"))
	if err != nil {
		return err
	}
	language, err := model.ParseLanguage(v.GetString("language"))
	if err != nil {
		return err
	}

	tel, err := setupTelemetry(ctx, v)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "error", err)
		}
	}()

	client, err := newClient(ctx, v)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	engine, err := newEngine(v)
	if err != nil {
		return fmt.Errorf("create playback engine: %w", err)
	}
	defer engine.Stop()

	h := handler.New(client, engine, handler.Config{
		DefaultMode:     mode,
		DefaultLanguage: language,
		Metrics:         tel.MetricsHandler(),
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))
	h.Routes(r)

	addr := v.GetString("addr")
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	slog.Info("starting server",
		"addr", addr,
		"content_model", v.GetString("content-model"),
		"lang", lang,
		"mode", mode,
		"language", language,
		"speaker", !v.GetBool("no-speaker"),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func buildRequest(v *viper.Viper, args []string) (model.StudyRequest, error) {
	var req model.StudyRequest
	var err error
	if req.Feature, err = model.ParseFeature(v.GetString("feature")); err != nil {
		return req, err
	}
	if req.Mode, err = model.ParseMode(v.GetString("mode")); err != nil {
		return req, err
	}
	if req.Language, err = model.ParseLanguage(v.GetString("lang")); err != nil {
		return req, err
	}
	req.Text = v.GetString("text")
	if req.Text == "" {
		req.Text = strings.Join(args, " ")
	}
	req.FocusMinutes = v.GetInt("minutes")

	if path := v.GetString("audio"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return req, fmt.Errorf("read audio: %w", err)
		}
		req.Audio = &model.AudioInput{MIMEType: v.GetString("audio-mime"), Data: data}
	}
	return req, req.Validate()
}

func runAsk(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := appI18n.Init("en"); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	req, err := buildRequest(v, args)
	if err != nil {
		return err
	}

	tel, err := setupTelemetry(ctx, v)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	client, err := newClient(ctx, v)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}

	msgCtx := appI18n.ForLanguage(ctx, req.Language)
	resp, err := client.Submit(ctx, req)
	if err != nil {
		fmt.Fprintln(os.Stderr, appI18n.T(msgCtx, appI18n.MsgSubmissionFailed))
		return err
	}

	out := cmd.OutOrStdout()
	if v.GetBool("json") {
		data, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal JSON: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(data))
	} else {
		render(msgCtx, out, req, resp)
	}

	if !v.GetBool("speak") {
		return nil
	}
	text := resp.SpeakableText()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return speakAndWait(ctx, v, client, text)
}

func runSpeak(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := setupTelemetry(ctx, v)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	client, err := newClient(ctx, v)
	if err != nil {
		return fmt.Errorf("create LLM client: %w", err)
	}
	text := strings.Join(args, " ")

	if out := v.GetString("out"); out != "" {
		payload, err := client.SynthesizeSpeech(ctx, text)
		if err != nil {
			return err
		}
		pcm, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return fmt.Errorf("decode speech: %w", err)
		}
		if err := os.WriteFile(out, pcm, 0o644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		slog.Info("wrote speech", "path", out, "bytes", len(pcm), "sample_rate", audio.SampleRate, "encoding", audio.Encoding)
		return nil
	}
	return speakAndWait(ctx, v, client, text)
}

// speakAndWait synthesizes text, plays it and blocks until playback ends or ctx is cancelled.
func speakAndWait(ctx context.Context, v *viper.Viper, client *llm.Client, text string) error {
	payload, err := client.SynthesizeSpeech(ctx, text)
	if err != nil {
		return err
	}
	engine, err := newEngine(v)
	if err != nil {
		return fmt.Errorf("create playback engine: %w", err)
	}

	done := make(chan struct{})
	engine.Play(payload, func() { close(done) })
	select {
	case <-done:
	case <-ctx.Done():
		engine.Stop()
	}
	return nil
}
