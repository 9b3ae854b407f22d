package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Ollama can be slow, especially for vision models
const ollamaTimeout = 120 * time.Second

// Ollama implements the Provider interface using a self-hosted Ollama
// vision model (llava, qwen2-vl, bakllava, llava-phi3)
type Ollama struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllama creates a new Ollama Provider instance
func NewOllama(baseURL string, modelName string) (*Ollama, error) {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if modelName == "" {
		modelName = "llava"
	}

	return &Ollama{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   modelName,
		client:  &http.Client{Timeout: ollamaTimeout},
	}, nil
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   string          `json:"format,omitempty"`
}

type ollamaMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Name returns "ollama"
func (o *Ollama) Name() string { return "ollama" }

// Extract asks the Ollama model to read the receipt and answer with
// structured fields
func (o *Ollama) Extract(ctx context.Context, img Image) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, ollamaTimeout)
	defer cancel()

	pngData, _, err := toPNG(img.Data, img.ContentType)
	if err != nil {
		return Result{}, err
	}

	jsonData, err := json.Marshal(ollamaChatRequest{
		Model:  o.model,
		Stream: false,
		Format: "json",
		Messages: []ollamaMessage{
			{
				Role:    "system",
				Content: "You are an expert at reading and extracting information from receipts. You must carefully read all text in images and extract accurate information.",
			},
			{
				Role:    "user",
				Content: receiptScanPrompt,
				Images:  []string{base64.StdEncoding.EncodeToString(pngData)},
			},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return Result{}, unavailable(o.Name(), fmt.Errorf("calling ollama API: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Result{}, &ProviderUnavailableError{
			Provider:   o.Name(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Result{}, unavailable(o.Name(), fmt.Errorf("decoding response: %w", err))
	}

	fields, err := decodeLLMResponse(chatResp.Message.Content)
	if err != nil {
		return Result{}, &ProviderUnavailableError{
			Provider: o.Name(),
			Body:     chatResp.Message.Content,
			Err:      fmt.Errorf("parsing receipt data: %w", err),
		}
	}

	return StructuredFields(fields), nil
}

// Close is a no-op for the HTTP client
func (o *Ollama) Close() error {
	return nil
}
