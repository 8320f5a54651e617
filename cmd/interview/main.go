// Command interview is the terminal interview client.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/voxhire/interview-client/internal/config"
	"github.com/voxhire/interview-client/internal/dotenv"
	"github.com/voxhire/interview-client/internal/tui"
	"github.com/voxhire/interview-client/pkg/media"
	"github.com/voxhire/interview-client/pkg/session"
	"github.com/voxhire/interview-client/pkg/transcribe"
	"github.com/voxhire/interview-client/pkg/upload"
)

func run(stderr io.Writer) int {
	configPath := flag.String("config", "voxhire.yaml", "path to the config file")
	logPath := flag.String("log", "", "write debug logs to this file")
	flag.Parse()

	if err := dotenv.Load(".env"); err != nil {
		fmt.Fprintf(stderr, "interview: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "interview: %v\n", err)
		return 1
	}

	// The TUI owns the terminal, so logs go to a file or nowhere.
	logSink := io.Discard
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(stderr, "interview: %v\n", err)
			return 1
		}
		defer f.Close()
		logSink = f
	}
	logger := slog.New(slog.NewTextHandler(logSink, nil))

	orc, cleanup, err := buildOrchestrator(cfg, logger)
	if err != nil {
		fmt.Fprintf(stderr, "interview: %v\n", err)
		return 1
	}
	defer cleanup()

	uploader := upload.NewClient(cfg.Server.URL)

	p := tea.NewProgram(tui.New(orc, uploader), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(stderr, "interview: %v\n", err)
		return 1
	}
	orc.End()
	return 0
}

func buildOrchestrator(cfg config.Config, logger *slog.Logger) (*session.Orchestrator, func(), error) {
	pipe := media.NewPipeline(&media.TestPatternDevice{}, media.WithLogger(logger))
	screen := media.NewScreenShare(&media.TestPatternDevice{}, media.WithScreenShareLogger(logger))

	cleanup := func() {}
	var trans *transcribe.Session
	if cfg.STT.APIKey != "" {
		mic, err := media.NewMicrophone()
		if err != nil {
			// No microphone is a degraded session, not a fatal one.
			logger.Warn("microphone unavailable, answer turns disabled", "error", err)
		} else {
			cleanup = func() { _ = mic.Close() }
			transcriber := transcribe.NewHTTPTranscriber(cfg.STT.URL, cfg.STT.APIKey,
				transcribe.WithModel(cfg.STT.Model),
				transcribe.WithLanguage(cfg.STT.Language),
				transcribe.WithSampleRate(mic.SampleRate()),
			)
			trans = transcribe.NewSession(mic, transcriber, transcribe.WithLogger(logger))
		}
	}

	orc, err := session.New(session.Config{
		ServerURL:      cfg.Server.URL,
		FrameInterval:  cfg.Session.FrameInterval.Std(),
		AlertWindow:    cfg.Session.AlertWindow,
		AlertTTL:       cfg.Session.AlertTTL.Std(),
		ReactionTTL:    cfg.Session.ReactionTTL.Std(),
		ConnectTimeout: cfg.Session.ConnectTimeout.Std(),
	}, session.Dependencies{
		Media:         pipe,
		Screen:        screen,
		Transcription: trans,
		Logger:        logger,
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return orc, cleanup, nil
}

func main() {
	os.Exit(run(os.Stderr))
}
