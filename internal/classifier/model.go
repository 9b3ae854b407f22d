package classifier

import (
	"slices"
	"sort"
	"strings"
)

// OtherCategory is predicted when no keyword matches
const OtherCategory = "Other"

// Model maps categories to their learned keywords. Categories holds the
// iteration order used to break ties; it is persisted with the keywords.
type Model struct {
	Keywords   map[string][]string `json:"keywords"`
	Categories []string            `json:"categories"`
}

// seedKeywords are the built-in keywords each category starts from
var seedKeywords = []struct {
	category string
	keywords []string
}{
	{"Food & Dining", []string{"restaurant", "cafe", "food", "pizza", "burger", "coffee", "lunch", "dinner", "breakfast", "mcdonald", "starbucks", "subway"}},
	{"Transportation", []string{"uber", "lyft", "taxi", "gas", "fuel", "parking", "metro", "bus", "train", "transit"}},
	{"Shopping", []string{"amazon", "mall", "store", "shop", "retail", "clothing", "fashion", "electronics"}},
	{"Entertainment", []string{"movie", "cinema", "netflix", "spotify", "game", "concert", "theater", "ticket"}},
	{"Bills & Utilities", []string{"electric", "water", "internet", "phone", "utility", "bill", "subscription"}},
	{"Healthcare", []string{"doctor", "hospital", "pharmacy", "medical", "health", "clinic", "medicine"}},
	{"Education", []string{"school", "university", "course", "book", "tuition", "education", "learning"}},
	{"Travel", []string{"hotel", "flight", "airline", "booking", "airbnb", "vacation", "travel"}},
	{"Groceries", []string{"grocery", "supermarket", "walmart", "target", "market", "produce", "vegetables"}},
}

// DefaultModel returns the seed model used when nothing has been stored yet
func DefaultModel() Model {
	m := Model{
		Keywords:   make(map[string][]string, len(seedKeywords)),
		Categories: make([]string, 0, len(seedKeywords)),
	}
	for _, seed := range seedKeywords {
		m.Categories = append(m.Categories, seed.category)
		m.Keywords[seed.category] = slices.Clone(seed.keywords)
	}
	return m
}

// clean lower-cases and dedupes keywords, drops categories left without
// keywords and appends any category missing from the order alphabetically
func (m Model) clean() Model {
	out := Model{
		Keywords:   make(map[string][]string, len(m.Keywords)),
		Categories: make([]string, 0, len(m.Keywords)),
	}
	for category, keywords := range m.Keywords {
		seen := make(map[string]struct{}, len(keywords))
		kept := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			kept = append(kept, kw)
		}
		if len(kept) > 0 {
			out.Keywords[category] = kept
		}
	}

	listed := make(map[string]struct{}, len(m.Categories))
	for _, category := range m.Categories {
		if _, ok := out.Keywords[category]; !ok {
			continue
		}
		if _, dup := listed[category]; dup {
			continue
		}
		listed[category] = struct{}{}
		out.Categories = append(out.Categories, category)
	}

	var missing []string
	for category := range out.Keywords {
		if _, ok := listed[category]; !ok {
			missing = append(missing, category)
		}
	}
	sort.Strings(missing)
	out.Categories = append(out.Categories, missing...)

	return out
}

func (m Model) clone() Model {
	out := Model{
		Keywords:   make(map[string][]string, len(m.Keywords)),
		Categories: slices.Clone(m.Categories),
	}
	for category, keywords := range m.Keywords {
		out.Keywords[category] = slices.Clone(keywords)
	}
	return out
}
