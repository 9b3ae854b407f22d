package receipt

import (
	"context"
	"fmt"

	"github.com/zombor/expensevision/internal/scanning"
)

// Predictor suggests a spending category for free text
type Predictor interface {
	Predict(description, vendor string) string
}

// ProcessingError wraps any failure of the active provider
type ProcessingError struct {
	Provider string
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("receipt processing failed (%s): %v", e.Provider, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Pipeline turns a receipt image into a ParsedReceipt
type Pipeline struct {
	provider  scanning.Provider
	predictor Predictor
}

// NewPipeline creates a new Pipeline. A nil provider is allowed and makes
// every Process call fail with scanning.ErrNoProviderAvailable.
func NewPipeline(provider scanning.Provider, predictor Predictor) *Pipeline {
	return &Pipeline{
		provider:  provider,
		predictor: predictor,
	}
}

// Available reports whether a provider is configured
func (p *Pipeline) Available() bool {
	return p.provider != nil
}

// ProviderName returns the active provider's name, or "" when there is none
func (p *Pipeline) ProviderName() string {
	if p.provider == nil {
		return ""
	}
	return p.provider.Name()
}

// Process extracts the receipt, normalizes or heuristically parses the
// result and predicts a category from the vendor when the provider gave none
func (p *Pipeline) Process(ctx context.Context, img scanning.Image) (scanning.ParsedReceipt, error) {
	if p.provider == nil {
		return scanning.ParsedReceipt{}, scanning.ErrNoProviderAvailable
	}

	result, err := p.provider.Extract(ctx, img)
	if err != nil {
		return scanning.ParsedReceipt{}, &ProcessingError{Provider: p.provider.Name(), Err: err}
	}

	var parsed scanning.ParsedReceipt
	switch result.Kind() {
	case scanning.ResultStructured:
		parsed = scanning.Normalize(result.Fields())
	default:
		parsed = scanning.ParseText(result.Text())
	}

	if parsed.PredictedCategory == nil && parsed.Vendor != nil && p.predictor != nil {
		category := p.predictor.Predict(*parsed.Vendor, *parsed.Vendor)
		parsed.PredictedCategory = &category
	}

	return parsed, nil
}
