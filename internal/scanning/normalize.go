package scanning

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	maxUnwrapDepth       = 16
	maxDescriptionItems  = 15
	descriptionSeparator = ", "
)

// categoryTranslations maps Veryfi category labels onto the app's categories
var categoryTranslations = map[string]string{
	"food and groceries":         "Groceries",
	"food and grocers":           "Groceries",
	"meals & entertainment":      "Food & Dining",
	"travel":                     "Travel",
	"transportation":             "Transportation",
	"automotive":                 "Transportation",
	"office supplies & software": "Shopping",
	"utilities":                  "Bills & Utilities",
	"healthcare":                 "Healthcare",
	"training & education":       "Education",
}

var isoDateWithSpace = regexp.MustCompile(`^(\d{4}-\d{1,2}-\d{1,2}) `)

// Normalize maps a structured backend response onto a ParsedReceipt.
// Malformed or missing values become absent fields; it never fails.
func Normalize(fields map[string]any) ParsedReceipt {
	var root any = fields

	parsed := ParsedReceipt{
		Amount:            coerceDecimal(firstPresent(lookup(root, "meta", "total"), lookup(root, "total"))),
		Date:              normalizeDate(firstPresent(lookup(root, "meta", "date"), lookup(root, "date"))),
		Vendor:            firstVendor(lookup(root, "meta", "vendor"), lookup(root, "vendor")),
		PredictedCategory: translateCategory(firstPresent(lookup(root, "meta", "default_category"), lookup(root, "default_category"), lookup(root, "category"))),
		Items:             normalizeItems(lookup(root, "line_items")),
	}

	if desc, ok := nonEmptyString(lookup(root, "description")); ok {
		parsed.Description = &desc
	} else {
		parsed.Description = describeItems(parsed.Items)
	}
	if text, ok := stringValue(lookup(root, "ocr_text")); ok {
		parsed.RawText = text
	}

	return parsed
}

// unwrap strips {"value": X} wrappers. A nil anywhere, or wrappers nested
// deeper than maxUnwrapDepth, yields nil.
func unwrap(v any) any {
	for range maxUnwrapDepth {
		m, ok := v.(map[string]any)
		if !ok {
			return v
		}
		inner, ok := m["value"]
		if !ok {
			return v
		}
		if inner == nil {
			return nil
		}
		v = inner
	}
	return nil
}

func lookup(v any, keys ...string) any {
	v = unwrap(v)
	for _, key := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = unwrap(m[key])
	}
	return v
}

func firstPresent(values ...any) any {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func stringValue(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}

func nonEmptyString(v any) (string, bool) {
	s, ok := stringValue(v)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func coerceDecimal(v any) *decimal.Decimal {
	var (
		d   decimal.Decimal
		err error
	)
	switch t := v.(type) {
	case float64:
		d = decimal.NewFromFloat(t)
	case int:
		d = decimal.NewFromInt(int64(t))
	case int64:
		d = decimal.NewFromInt(t)
	case json.Number:
		d, err = decimal.NewFromString(t.String())
	case string:
		d, err = decimal.NewFromString(strings.TrimSpace(t))
	default:
		return nil
	}
	if err != nil {
		return nil
	}
	return &d
}

func normalizeDate(v any) *string {
	s, ok := nonEmptyString(v)
	if !ok {
		return nil
	}
	if i := strings.IndexByte(s, 'T'); i > 0 {
		s = s[:i]
	} else if match := isoDateWithSpace.FindStringSubmatch(s); match != nil {
		s = match[1]
	}
	return &s
}

// firstVendor returns the first candidate that yields a usable name
func firstVendor(candidates ...any) *string {
	for _, v := range candidates {
		if name := normalizeVendor(v); name != nil {
			return name
		}
	}
	return nil
}

// normalizeVendor prefers the cleaned name over the raw one
func normalizeVendor(v any) *string {
	if m, ok := v.(map[string]any); ok {
		if name, ok := nonEmptyString(unwrap(m["name"])); ok {
			return &name
		}
		if raw, ok := nonEmptyString(unwrap(m["raw_name"])); ok {
			return &raw
		}
		return nil
	}
	if name, ok := nonEmptyString(v); ok {
		return &name
	}
	return nil
}

func translateCategory(v any) *string {
	label, ok := nonEmptyString(v)
	if !ok {
		return nil
	}
	if translated, ok := categoryTranslations[strings.ToLower(label)]; ok {
		return &translated
	}
	return &label
}

func normalizeItems(v any) []LineItem {
	raw, ok := v.([]any)
	if !ok {
		return []LineItem{}
	}
	items := make([]LineItem, 0, len(raw))
	for _, entry := range raw {
		entry = unwrap(entry)
		if entry == nil {
			continue
		}
		m, ok := entry.(map[string]any)
		if !ok {
			desc, ok := stringValue(entry)
			if !ok {
				desc = fmt.Sprint(entry)
			}
			items = append(items, LineItem{Description: desc})
			continue
		}
		desc, ok := nonEmptyString(unwrap(m["description"]))
		if !ok {
			desc, _ = nonEmptyString(unwrap(m["text"]))
		}
		items = append(items, LineItem{
			Description: desc,
			Total:       coerceDecimal(firstPresent(unwrap(m["total"]), unwrap(m["price"]))),
		})
	}
	return items
}

// describeItems joins the first item descriptions, noting how many were left out
func describeItems(items []LineItem) *string {
	var names []string
	for _, item := range items {
		if d := strings.TrimSpace(item.Description); d != "" {
			names = append(names, d)
		}
	}
	if len(names) == 0 {
		return nil
	}
	desc := strings.Join(names[:min(len(names), maxDescriptionItems)], descriptionSeparator)
	if omitted := len(names) - maxDescriptionItems; omitted > 0 {
		desc = fmt.Sprintf("%s (+%d more)", desc, omitted)
	}
	return &desc
}
