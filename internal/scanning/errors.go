package scanning

import (
	"errors"
	"fmt"
)

// ErrNoProviderAvailable is returned when no backend is configured or reachable
var ErrNoProviderAvailable = errors.New("receipt scanning unavailable: configure Veryfi credentials, a Gemini key, an Ollama URL or install tesseract")

// ErrProviderUnavailable matches any *ProviderUnavailableError via errors.Is
var ErrProviderUnavailable = errors.New("provider unavailable")

// ProviderUnavailableError reports a failed backend call along with whatever
// the upstream sent back
type ProviderUnavailableError struct {
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProviderUnavailableError) Error() string {
	msg := fmt.Sprintf("%s unavailable", e.Provider)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.StatusCode)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	return msg
}

func (e *ProviderUnavailableError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrProviderUnavailable) match
func (e *ProviderUnavailableError) Is(target error) bool {
	return target == ErrProviderUnavailable
}

func unavailable(provider string, err error) *ProviderUnavailableError {
	return &ProviderUnavailableError{Provider: provider, Err: err}
}
