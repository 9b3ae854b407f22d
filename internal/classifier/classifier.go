// Package classifier predicts spending categories from receipt text with an
// additive keyword model that learns from confirmed categories.
package classifier

import (
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/cloudflare/ahocorasick"
)

// minKeywordRunes is the shortest word Train will learn, exclusive
const minKeywordRunes = 3

var errEmptyModel = errors.New("stored classifier model has no keywords")

// snapshot is an immutable view of the model with its compiled matcher
type snapshot struct {
	model    Model
	matcher  *ahocorasick.Matcher
	patterns []string
	// owners[i] lists the category indexes that own patterns[i]
	owners [][]int
}

func newSnapshot(m Model) *snapshot {
	s := &snapshot{model: m}

	index := make(map[string]int)
	for ci, category := range m.Categories {
		for _, kw := range m.Keywords[category] {
			pi, ok := index[kw]
			if !ok {
				pi = len(s.patterns)
				index[kw] = pi
				s.patterns = append(s.patterns, kw)
				s.owners = append(s.owners, nil)
			}
			s.owners[pi] = append(s.owners[pi], ci)
		}
	}

	if len(s.patterns) > 0 {
		s.matcher = ahocorasick.NewStringMatcher(s.patterns)
	}
	return s
}

// scores counts distinct keyword hits per category, indexed like Categories
func (s *snapshot) scores(text string) []int {
	counts := make([]int, len(s.model.Categories))
	if s.matcher == nil {
		return counts
	}
	seen := make(map[int]struct{})
	for _, pi := range s.matcher.MatchThreadSafe([]byte(text)) {
		if _, dup := seen[pi]; dup {
			continue
		}
		seen[pi] = struct{}{}
		for _, ci := range s.owners[pi] {
			counts[ci]++
		}
	}
	return counts
}

// TrainResult reports what a training event changed
type TrainResult struct {
	Category string
	Added    []string
	// Persisted is false when the store rejected the write; the keywords
	// still apply in memory until the process exits
	Persisted bool
}

// Classifier is the process-wide keyword model. Predict reads a published
// snapshot; Train serialises mutate, persist and publish under one lock.
type Classifier struct {
	mu      sync.Mutex
	current atomic.Pointer[snapshot]
	store   Store
	logger  *slog.Logger
}

// New loads the model from store, seeding and saving the defaults when the
// store is empty or unreadable
func New(store Store, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Classifier{store: store, logger: logger}

	model, err := c.load()
	if err != nil {
		if !errors.Is(err, ErrModelNotFound) {
			logger.Warn("Failed to load classifier model, using defaults", "error", err)
		}
		model = DefaultModel()
		c.persist(model)
	}
	c.current.Store(newSnapshot(model))
	return c
}

func (c *Classifier) load() (Model, error) {
	if c.store == nil {
		return Model{}, ErrModelNotFound
	}
	m, err := c.store.Load()
	if err != nil {
		return Model{}, err
	}
	m = m.clean()
	if len(m.Categories) == 0 {
		return Model{}, errEmptyModel
	}
	return m, nil
}

func (c *Classifier) persist(m Model) bool {
	if c.store == nil {
		return false
	}
	if err := c.store.Save(m); err != nil {
		c.logger.Warn("Failed to save classifier model", "error", err)
		return false
	}
	return true
}

// Predict returns the category whose keywords appear most often in the
// description and vendor. Ties go to the category listed first; no hits
// yields OtherCategory.
func (c *Classifier) Predict(description, vendor string) string {
	snap := c.current.Load()
	text := strings.ToLower(description + " " + vendor)

	best, bestScore := -1, 0
	for i, score := range snap.scores(text) {
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if best < 0 {
		return OtherCategory
	}
	return snap.model.Categories[best]
}

// Train adds every unseen word longer than three characters from the
// description and vendor to category's keywords, then saves the model.
// Keywords are never removed.
func (c *Classifier) Train(description, vendor, category string) TrainResult {
	category = strings.TrimSpace(category)
	result := TrainResult{Category: category, Persisted: true}
	if category == "" {
		return result
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.current.Load().model
	known := make(map[string]struct{}, len(current.Keywords[category]))
	for _, kw := range current.Keywords[category] {
		known[kw] = struct{}{}
	}

	for _, word := range strings.Fields(strings.ToLower(description + " " + vendor)) {
		if utf8.RuneCountInString(word) <= minKeywordRunes {
			continue
		}
		if _, ok := known[word]; ok {
			continue
		}
		known[word] = struct{}{}
		result.Added = append(result.Added, word)
	}
	if len(result.Added) == 0 {
		return result
	}

	next := current.clone()
	if _, ok := next.Keywords[category]; !ok {
		next.Categories = append(next.Categories, category)
	}
	next.Keywords[category] = append(next.Keywords[category], result.Added...)

	result.Persisted = c.persist(next)
	c.current.Store(newSnapshot(next))

	c.logger.Debug("Trained classifier", "category", category, "added", len(result.Added), "persisted", result.Persisted)
	return result
}

// Categories returns the known categories in tie-break order
func (c *Classifier) Categories() []string {
	return slices.Clone(c.current.Load().model.Categories)
}

// Keywords returns the keywords learned for category
func (c *Classifier) Keywords(category string) []string {
	return slices.Clone(c.current.Load().model.Keywords[category])
}

// Snapshot returns a copy of the current model
func (c *Classifier) Snapshot() Model {
	return c.current.Load().model.clone()
}
