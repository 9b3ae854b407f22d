package scanning

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const (
	tesseractTimeout      = 60 * time.Second
	tesseractProbeTimeout = 5 * time.Second
)

// Tesseract implements the Provider interface by running the tesseract CLI
type Tesseract struct {
	binary string
}

// NewTesseract creates a new Tesseract Provider instance
func NewTesseract(binary string) *Tesseract {
	if binary == "" {
		binary = "tesseract"
	}
	return &Tesseract{binary: binary}
}

// ProbeTesseract runs the engine's version check and returns its first line
func ProbeTesseract(ctx context.Context, binary string) (string, error) {
	if binary == "" {
		binary = "tesseract"
	}
	ctx, cancel := context.WithTimeout(ctx, tesseractProbeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, binary, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("running %s --version: %w", binary, err)
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

// Name returns "tesseract"
func (t *Tesseract) Name() string { return "tesseract" }

// Extract runs OCR over the image and returns the recognized text. The
// caller's temporary file is read directly when tesseract understands its
// format; anything else is converted to PNG and piped through stdin.
func (t *Tesseract) Extract(ctx context.Context, img Image) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, tesseractTimeout)
	defer cancel()

	input := img.Path
	var stdin []byte
	if input == "" || !tesseractReadable(normalizeMimeType(img.Data, img.ContentType)) {
		pngData, _, err := toPNG(img.Data, img.ContentType)
		if err != nil {
			return Result{}, err
		}
		input, stdin = "stdin", pngData
	}

	cmd := exec.CommandContext(ctx, t.binary, input, "stdout")
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Result{}, unavailable(t.Name(), fmt.Errorf("tesseract is not installed: %w", err))
		}
		return Result{}, &ProviderUnavailableError{
			Provider: t.Name(),
			Body:     firstLines(stderr.String(), 5),
			Err:      fmt.Errorf("running tesseract: %w", err),
		}
	}

	return RawText(stdout.String()), nil
}

// Close is a no-op; every Extract runs its own process
func (t *Tesseract) Close() error {
	return nil
}

func tesseractReadable(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/tiff", "image/bmp", "image/gif", "image/webp":
		return true
	}
	return false
}

func firstLines(s string, n int) string {
	var lines []string
	scanner := bufio.NewScanner(strings.NewReader(s))
	for scanner.Scan() && len(lines) < n {
		lines = append(lines, scanner.Text())
	}
	return strings.Join(lines, "\n")
}
