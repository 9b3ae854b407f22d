package scanning

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	vendorLineWindow      = 5
	descriptionLineWindow = 12
	descriptionMaxLines   = 5
	descriptionMaxRunes   = 500
)

// maxHeuristicAmount is the sanity ceiling for amounts recovered from raw text
var maxHeuristicAmount = decimal.NewFromInt(10000)

// amountPatterns are tried in order against each lower-cased line
var amountPatterns = []*regexp.Regexp{
	regexp.MustCompile(`total[:\s]+[$€£]?(\d+\.?\d*)`),
	regexp.MustCompile(`amount[:\s]+[$€£]?(\d+\.?\d*)`),
	regexp.MustCompile(`[$€£](\d+\.\d{2})`),
	regexp.MustCompile(`(\d+\.\d{2})`),
}

// datePatterns match day-first then year-first dates. The leading guard stops
// the day-first pattern from matching the tail of a year-first date, so
// "2024-03-14" comes back whole rather than as "24-03-14".
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|\D)(\d{1,2}[/-]\d{1,2}[/-]\d{2,4})`),
	regexp.MustCompile(`(?:^|\D)(\d{4}[/-]\d{1,2}[/-]\d{1,2})`),
}

var (
	digitRun        = regexp.MustCompile(`\d{3,}`)
	numericOnlyLine = regexp.MustCompile(`^[\d\s.,$€£¥]*$`)
)

// ParseText extracts amount, date, vendor and description from raw OCR text.
// Each field is looked up independently and left nil when nothing matches.
func ParseText(text string) ParsedReceipt {
	lines := strings.Split(text, "\n")
	nonEmpty := nonEmptyLines(lines)

	return ParsedReceipt{
		Amount:      findAmount(lines),
		Date:        findDate(lines),
		Vendor:      findVendor(nonEmpty),
		Description: findDescription(nonEmpty),
		Items:       []LineItem{},
		RawText:     text,
	}
}

func nonEmptyLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// findAmount returns the first in-range number in reading order. A labelled
// total further down does not override an earlier bare decimal.
func findAmount(lines []string) *decimal.Decimal {
	for _, line := range lines {
		lower := strings.ToLower(line)
		for _, pattern := range amountPatterns {
			match := pattern.FindStringSubmatch(lower)
			if match == nil {
				continue
			}
			amount, err := decimal.NewFromString(match[1])
			if err != nil {
				continue
			}
			if amount.IsPositive() && amount.LessThan(maxHeuristicAmount) {
				return &amount
			}
		}
	}
	return nil
}

func findDate(lines []string) *string {
	for _, line := range lines {
		for _, pattern := range datePatterns {
			if match := pattern.FindStringSubmatch(line); match != nil {
				return stringPtr(match[1])
			}
		}
	}
	return nil
}

func findVendor(lines []string) *string {
	for i, line := range lines {
		if i >= vendorLineWindow {
			break
		}
		if utf8.RuneCountInString(line) > 2 && !digitRun.MatchString(line) {
			return stringPtr(line)
		}
	}
	return nil
}

func findDescription(lines []string) *string {
	var parts []string
	for i, line := range lines {
		if i >= descriptionLineWindow || len(parts) >= descriptionMaxLines {
			break
		}
		if numericOnlyLine.MatchString(line) {
			continue
		}
		parts = append(parts, line)
	}
	if len(parts) == 0 {
		return nil
	}
	return stringPtr(truncateRunes(strings.Join(parts, " "), descriptionMaxRunes))
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
