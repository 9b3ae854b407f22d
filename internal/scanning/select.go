package scanning

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Backend names accepted by Config.Provider
const (
	ProviderAuto      = "auto"
	ProviderVeryfi    = "veryfi"
	ProviderGemini    = "gemini"
	ProviderOllama    = "ollama"
	ProviderTesseract = "tesseract"
)

// Config describes every backend that may be enabled at startup
type Config struct {
	// Provider forces a backend; empty or "auto" picks the first available
	Provider string

	Veryfi    VeryfiCredentials
	VeryfiURL string

	GeminiKey   string
	GeminiModel string

	OllamaURL   string
	OllamaModel string

	TesseractPath string
}

// Select picks the single active provider. In auto mode the order is
// Veryfi, Gemini, Ollama, then Tesseract if its version probe succeeds.
// ErrNoProviderAvailable is returned when none qualifies.
func Select(ctx context.Context, cfg Config) (Provider, error) {
	switch mode := strings.ToLower(strings.TrimSpace(cfg.Provider)); mode {
	case "", ProviderAuto:
		return selectAuto(ctx, cfg)
	case ProviderVeryfi:
		if !cfg.Veryfi.Complete() {
			return nil, fmt.Errorf("veryfi requires client id, username and api key: %w", ErrNoProviderAvailable)
		}
		return provider(NewVeryfi(cfg.Veryfi, cfg.VeryfiURL))
	case ProviderGemini:
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("gemini requires an api key: %w", ErrNoProviderAvailable)
		}
		return provider(NewGemini(cfg.GeminiKey, cfg.GeminiModel))
	case ProviderOllama:
		return provider(NewOllama(cfg.OllamaURL, cfg.OllamaModel))
	case ProviderTesseract:
		version, err := ProbeTesseract(ctx, cfg.TesseractPath)
		if err != nil {
			return nil, fmt.Errorf("%v: %w", err, ErrNoProviderAvailable)
		}
		slog.Info("Tesseract available", "version", version)
		return NewTesseract(cfg.TesseractPath), nil
	default:
		return nil, fmt.Errorf("unknown provider %q (valid: auto, veryfi, gemini, ollama, tesseract)", mode)
	}
}

func selectAuto(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.Veryfi.Complete() {
		return provider(NewVeryfi(cfg.Veryfi, cfg.VeryfiURL))
	}
	if cfg.GeminiKey != "" {
		return provider(NewGemini(cfg.GeminiKey, cfg.GeminiModel))
	}
	if cfg.OllamaURL != "" {
		return provider(NewOllama(cfg.OllamaURL, cfg.OllamaModel))
	}
	version, err := ProbeTesseract(ctx, cfg.TesseractPath)
	if err != nil {
		slog.Debug("Tesseract probe failed", "error", err)
		return nil, ErrNoProviderAvailable
	}
	slog.Info("Tesseract available", "version", version)
	return NewTesseract(cfg.TesseractPath), nil
}

// provider keeps a failed constructor from leaking a typed nil Provider
func provider(p Provider, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
