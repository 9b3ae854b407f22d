package scanning

import (
	"errors"
	"fmt"
	"strings"
)

// receiptScanPrompt is shared by the LLM providers. It asks for the same
// document shape Veryfi returns so every structured backend goes through
// Normalize.
const receiptScanPrompt = `You are analyzing a photographed or scanned purchase receipt. Carefully read all text in the image and extract the following information:

1. **Vendor**: the merchant, store or business name, usually the largest text at the top. Examples: "Starbucks", "Walmart", "Shell".

2. **Date**: the transaction or purchase date, converted to ISO 8601 (YYYY-MM-DD).

3. **Total**: the final total, grand total or amount due, usually at the bottom and labeled "TOTAL", "Amount Due" or similar. Numeric value only (42.75 for $42.75).

4. **Category**: one of "Food & Dining", "Transportation", "Shopping", "Entertainment", "Bills & Utilities", "Healthcare", "Education", "Travel", "Groceries" or "Other".

5. **Line items**: each purchased item with its description and line total.

6. **Text**: the full text of the receipt as you read it, line by line.

Return ONLY valid JSON in this exact format:
{
  "vendor": {"name": "Store Name"},
  "date": "YYYY-MM-DD",
  "total": 0.00,
  "category": "Food & Dining",
  "line_items": [{"description": "Item", "total": 0.00}],
  "ocr_text": "full receipt text"
}

Important:
- The total and item totals must be numbers, not strings
- If you cannot find a field, use null for that field
- Do not include any text before or after the JSON
- Do not use markdown code blocks`

// decodeLLMResponse pulls the JSON object out of a model reply, tolerating
// markdown fences and chatter around it
func decodeLLMResponse(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	startIdx := strings.Index(text, "{")
	if startIdx == -1 {
		return nil, errors.New("no JSON object found in response")
	}
	endIdx := strings.LastIndex(text, "}")
	if endIdx < startIdx {
		return nil, errors.New("invalid JSON object in response")
	}

	fields, err := decodeFields([]byte(text[startIdx : endIdx+1]))
	if err != nil {
		return nil, fmt.Errorf("unmarshaling json: %w", err)
	}
	return fields, nil
}
