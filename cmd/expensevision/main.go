package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/zombor/expensevision/internal/classifier"
	"github.com/zombor/expensevision/internal/receipt"
	"github.com/zombor/expensevision/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("expensevision")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		modelPath       = fs.StringLong("model", "models/expense_classifier.db", "Classifier model path (.json for a plain JSON file, anything else for BoltDB)")
		storagePath     = fs.StringLong("storage", "./uploads", "Temporary upload directory")
		providerName    = fs.StringLong("provider", scanning.ProviderAuto, "Receipt provider: auto, veryfi, gemini, ollama or tesseract")
		veryfiClientID  = fs.StringLong("veryfi-client-id", "", "Veryfi client ID (or set VERYFI_CLIENT_ID env var)")
		veryfiUsername  = fs.StringLong("veryfi-username", "", "Veryfi username (or set VERYFI_USERNAME env var)")
		veryfiAPIKey    = fs.StringLong("veryfi-api-key", "", "Veryfi API key (or set VERYFI_API_KEY env var)")
		veryfiURL       = fs.StringLong("veryfi-url", scanning.DefaultVeryfiURL, "Veryfi documents endpoint")
		geminiKey       = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel     = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		ollamaURL       = fs.StringLong("ollama-url", "", "Ollama API base URL, e.g. http://localhost:11434")
		ollamaModel     = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, llava-phi3, bakllava, qwen2-vl)")
		tesseractPath   = fs.StringLong("tesseract-path", "tesseract", "Tesseract executable")
		authUser        = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass        = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		logLevel        = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat       = fs.StringLong("log-format", "text", "Log format: text or json")
		showVersion     = fs.BoolLong("version", "Show version information")
		shutdownTimeout = 10 * time.Second
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSEVISION"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	slog.SetDefault(newLogger(*logLevel, *logFormat))

	// Initialize classifier
	slog.Info("Loading classifier model...", "path", *modelPath)
	store, err := classifier.OpenStore(*modelPath)
	if err != nil {
		slog.Error("Failed to open classifier store", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	keywords := classifier.New(store, slog.Default())
	slog.Info("Classifier ready", "categories", len(keywords.Categories()))

	// Initialize provider; running without one is allowed
	provider, err := scanning.Select(context.Background(), scanning.Config{
		Provider: *providerName,
		Veryfi: scanning.VeryfiCredentials{
			ClientID: envFallback(*veryfiClientID, "VERYFI_CLIENT_ID"),
			Username: envFallback(*veryfiUsername, "VERYFI_USERNAME"),
			APIKey:   envFallback(*veryfiAPIKey, "VERYFI_API_KEY"),
		},
		VeryfiURL:     *veryfiURL,
		GeminiKey:     envFallback(*geminiKey, "GEMINI_API_KEY"),
		GeminiModel:   *geminiModel,
		OllamaURL:     *ollamaURL,
		OllamaModel:   *ollamaModel,
		TesseractPath: *tesseractPath,
	})
	switch {
	case errors.Is(err, scanning.ErrNoProviderAvailable):
		slog.Warn("Receipt scanning unavailable", "reason", err)
	case err != nil:
		slog.Error("Failed to initialize receipt provider", "error", err)
		os.Exit(1)
	default:
		slog.Info("Receipt scanning enabled", "provider", provider.Name())
		defer provider.Close()
	}

	// Initialize storage
	uploads, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	pipeline := receipt.NewPipeline(provider, keywords)
	service := receipt.NewService(pipeline, keywords, uploads, receipt.NewMetrics(registry))
	server := receipt.NewServer(service, receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}, registry)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("Shutdown error", "error", err)
	}
}

func envFallback(value, envVar string) string {
	if value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv(envVar))
}

func newLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
