package scanning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultVeryfiURL is Veryfi's document processing endpoint
const DefaultVeryfiURL = "https://api.veryfi.com/api/v8/partner/documents"

const veryfiTimeout = 30 * time.Second

// VeryfiCredentials holds the three values Veryfi needs; all must be set
type VeryfiCredentials struct {
	ClientID string
	Username string
	APIKey   string
}

// Complete reports whether every credential is present
func (c VeryfiCredentials) Complete() bool {
	return c.ClientID != "" && c.Username != "" && c.APIKey != ""
}

// Veryfi implements the Provider interface using the Veryfi receipt API
type Veryfi struct {
	creds    VeryfiCredentials
	endpoint string
	client   *http.Client
}

// NewVeryfi creates a new Veryfi Provider instance
func NewVeryfi(creds VeryfiCredentials, endpoint string) (*Veryfi, error) {
	if !creds.Complete() {
		return nil, errors.New("veryfi client id, username and api key are required")
	}
	if endpoint == "" {
		endpoint = DefaultVeryfiURL
	}

	return &Veryfi{
		creds:    creds,
		endpoint: endpoint,
		client:   &http.Client{Timeout: veryfiTimeout},
	}, nil
}

type veryfiRequest struct {
	FileData     string `json:"file_data"`
	FileName     string `json:"file_name"`
	DocumentType string `json:"document_type"`
}

// Name returns "veryfi"
func (v *Veryfi) Name() string { return "veryfi" }

// Extract uploads the image and returns Veryfi's document as structured fields
func (v *Veryfi) Extract(ctx context.Context, img Image) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, veryfiTimeout)
	defer cancel()

	filename := img.Filename
	if filename == "" {
		filename = "receipt.jpg"
	}
	jsonData, err := json.Marshal(veryfiRequest{
		FileData:     base64.StdEncoding.EncodeToString(img.Data),
		FileName:     filename,
		DocumentType: "receipt",
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return Result{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("CLIENT-ID", v.creds.ClientID)
	req.Header.Set("AUTHORIZATION", fmt.Sprintf("apikey %s:%s", v.creds.Username, v.creds.APIKey))

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, unavailable(v.Name(), fmt.Errorf("calling veryfi API: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, unavailable(v.Name(), fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &ProviderUnavailableError{
			Provider:   v.Name(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	fields, err := decodeFields(body)
	if err != nil {
		return Result{}, &ProviderUnavailableError{
			Provider:   v.Name(),
			StatusCode: resp.StatusCode,
			Body:       string(body),
			Err:        fmt.Errorf("decoding response: %w", err),
		}
	}

	return StructuredFields(fields), nil
}

// Close is a no-op for the HTTP client
func (v *Veryfi) Close() error {
	return nil
}

// decodeFields decodes a JSON object keeping numbers as json.Number so that
// amounts reach the normalizer without float rounding
func decodeFields(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("response is not a JSON object")
	}
	return fields, nil
}
