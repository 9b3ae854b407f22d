package scanning

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LineItem is a single purchased item listed on a receipt
type LineItem struct {
	Description string
	Total       *decimal.Decimal
}

// ParsedReceipt is the structured expense record extracted from a receipt.
// A nil field means the value was not found.
type ParsedReceipt struct {
	Amount            *decimal.Decimal
	Vendor            *string
	Date              *string
	Description       *string
	Items             []LineItem
	PredictedCategory *string
	RawText           string
}

type lineItemJSON struct {
	Description string       `json:"description"`
	Total       *json.Number `json:"total"`
}

type parsedReceiptJSON struct {
	Amount            *json.Number   `json:"amount"`
	Vendor            *string        `json:"vendor"`
	Date              *string        `json:"date"`
	Description       *string        `json:"description"`
	Items             []lineItemJSON `json:"items"`
	PredictedCategory *string        `json:"predicted_category"`
}

// MarshalJSON writes amounts as JSON numbers and leaves raw_text out; callers
// return the raw text beside the parsed object
func (p ParsedReceipt) MarshalJSON() ([]byte, error) {
	out := parsedReceiptJSON{
		Amount:            decimalNumber(p.Amount),
		Vendor:            p.Vendor,
		Date:              p.Date,
		Description:       p.Description,
		Items:             make([]lineItemJSON, 0, len(p.Items)),
		PredictedCategory: p.PredictedCategory,
	}
	for _, item := range p.Items {
		out.Items = append(out.Items, lineItemJSON{
			Description: item.Description,
			Total:       decimalNumber(item.Total),
		})
	}
	return json.Marshal(out)
}

func decimalNumber(d *decimal.Decimal) *json.Number {
	if d == nil {
		return nil
	}
	n := json.Number(d.String())
	return &n
}

func stringPtr(s string) *string {
	return &s
}
