package receipt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zombor/expensevision/internal/classifier"
	"github.com/zombor/expensevision/internal/scanning"
)

// ErrCategoryRequired is returned when training without a category
var ErrCategoryRequired = errors.New("category is required")

// Classifier is the keyword model behind predictions and training
type Classifier interface {
	Predictor
	Train(description, vendor, category string) classifier.TrainResult
	Categories() []string
	Keywords(category string) []string
}

// IDGenerator generates unique IDs for temporary uploads
type IDGenerator interface {
	Generate() string
}

type uuidGenerator struct{}

func (uuidGenerator) Generate() string {
	return uuid.NewString()
}

// Service handles receipt scanning and category operations
type Service struct {
	pipeline    *Pipeline
	classifier  Classifier
	storage     Storage
	metrics     *Metrics
	idGenerator IDGenerator
}

// NewService creates a new Service with a uuid ID generator
func NewService(pipeline *Pipeline, classifier Classifier, storage Storage, metrics *Metrics) *Service {
	return NewServiceWithDeps(pipeline, classifier, storage, metrics, uuidGenerator{})
}

// NewServiceWithDeps creates a new Service with custom dependencies for testing
func NewServiceWithDeps(pipeline *Pipeline, classifier Classifier, storage Storage, metrics *Metrics, idGen IDGenerator) *Service {
	return &Service{
		pipeline:    pipeline,
		classifier:  classifier,
		storage:     storage,
		metrics:     metrics,
		idGenerator: idGen,
	}
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if unsafeFilenameChars.MatchString(strings.TrimPrefix(ext, ".")) {
		ext = ""
	}
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = repeatedSpaces.ReplaceAllString(base, " ")
	base = strings.TrimSpace(base)

	// Phone cameras produce long names
	if len(base) > 50 {
		base = base[:50]
	}
	if base == "" {
		base = "receipt"
	}

	return base + ext
}

// ScanResult is a parsed receipt along with the provider that produced it
type ScanResult struct {
	Parsed   scanning.ParsedReceipt
	Provider string
}

// Scan stores the upload temporarily, runs it through the pipeline and
// removes the temporary file whatever the outcome
func (s *Service) Scan(ctx context.Context, filename string, data []byte, contentType string) (*ScanResult, error) {
	start := time.Now()
	provider := s.pipeline.ProviderName()

	if !s.pipeline.Available() {
		s.metrics.observeScan(provider, outcomeNoProvider, 0)
		return nil, scanning.ErrNoProviderAvailable
	}

	name := fmt.Sprintf("%s_%s", s.idGenerator.Generate(), sanitizeFilename(filename))
	savedName, err := s.storage.Save(name, data)
	if err != nil {
		s.metrics.observeScan(provider, outcomeError, time.Since(start))
		return nil, fmt.Errorf("saving upload: %w", err)
	}
	defer func() {
		if err := s.storage.Delete(savedName); err != nil {
			slog.Warn("Failed to delete temporary upload", "file", savedName, "error", err)
		}
	}()

	parsed, err := s.pipeline.Process(ctx, scanning.Image{
		Data:        data,
		Filename:    filename,
		ContentType: contentType,
		Path:        s.storage.Path(savedName),
	})
	if err != nil {
		outcome := outcomeError
		if errors.Is(err, scanning.ErrProviderUnavailable) {
			outcome = outcomeUpstreamError
		}
		s.metrics.observeScan(provider, outcome, time.Since(start))
		slog.Error("Failed to scan receipt",
			"filename", filename,
			"content_type", contentType,
			"file_size", len(data),
			"provider", provider,
			"error", err,
		)
		return nil, err
	}

	s.metrics.observeScan(provider, outcomeOK, time.Since(start))
	return &ScanResult{Parsed: parsed, Provider: provider}, nil
}

// ScanAvailable reports whether receipt scanning is configured
func (s *Service) ScanAvailable() bool {
	return s.pipeline.Available()
}

// ProviderName returns the active provider, or "" when scanning is unavailable
func (s *Service) ProviderName() string {
	return s.pipeline.ProviderName()
}

// PredictCategory suggests a category for an expense description and vendor
func (s *Service) PredictCategory(description, vendor string) string {
	category := s.classifier.Predict(description, vendor)
	s.metrics.observePrediction(category)
	return category
}

// TrainCategory teaches the classifier a confirmed category
func (s *Service) TrainCategory(description, vendor, category string) (classifier.TrainResult, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return classifier.TrainResult{}, ErrCategoryRequired
	}
	result := s.classifier.Train(description, vendor, category)
	s.metrics.observeTraining(result.Persisted, category, len(s.classifier.Keywords(category)))
	if !result.Persisted {
		slog.Warn("Classifier update not persisted", "category", category, "added", len(result.Added))
	}
	return result, nil
}

// Categories returns the classifier's categories followed by "Other"
func (s *Service) Categories() []string {
	categories := s.classifier.Categories()
	for _, c := range categories {
		if c == classifier.OtherCategory {
			return categories
		}
	}
	return append(categories, classifier.OtherCategory)
}
