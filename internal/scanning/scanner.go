package scanning

import "context"

// Image is a single uploaded receipt image
type Image struct {
	Data        []byte
	Filename    string
	ContentType string
	// Path is the caller's temporary copy of Data, if one exists
	Path string
}

// ResultKind tells which variant a Result holds
type ResultKind int

const (
	// ResultRawText is unstructured OCR text
	ResultRawText ResultKind = iota
	// ResultStructured is a backend's native structured response
	ResultStructured
)

// Result is what a Provider returns: either raw text or structured fields
type Result struct {
	kind   ResultKind
	text   string
	fields map[string]any
}

// RawText wraps OCR output that still needs heuristic parsing
func RawText(text string) Result {
	return Result{kind: ResultRawText, text: text}
}

// StructuredFields wraps a backend response that only needs normalizing
func StructuredFields(fields map[string]any) Result {
	return Result{kind: ResultStructured, fields: fields}
}

// Kind returns the variant held by r
func (r Result) Kind() ResultKind { return r.kind }

// Text returns the raw text of a ResultRawText
func (r Result) Text() string { return r.text }

// Fields returns the native response of a ResultStructured
func (r Result) Fields() map[string]any { return r.fields }

// Provider defines the interface for receipt text extraction backends
type Provider interface {
	// Name identifies the backend in logs and metrics
	Name() string
	// Extract turns a receipt image into raw text or structured fields
	Extract(ctx context.Context, img Image) (Result, error)
	// Close releases any resources held by the backend
	Close() error
}
