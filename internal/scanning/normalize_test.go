package scanning

import (
	"encoding/json"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
)

func mustDecode(raw string) map[string]any {
	fields, err := decodeFields([]byte(raw))
	Expect(err).NotTo(HaveOccurred())
	return fields
}

var _ = Describe("Normalize", func() {
	var (
		fields map[string]any
		parsed ParsedReceipt
	)

	JustBeforeEach(func() {
		parsed = Normalize(fields)
	})

	When("the total is a wrapped string", func() {
		BeforeEach(func() {
			fields = mustDecode(`{"meta": {"total": {"value": "19.99"}}}`)
		})

		It("coerces it to a decimal", func() {
			Expect(parsed.Amount).NotTo(BeNil())
			Expect(parsed.Amount.StringFixed(2)).To(Equal("19.99"))
		})

		It("leaves the other fields absent", func() {
			Expect(parsed.Vendor).To(BeNil())
			Expect(parsed.Date).To(BeNil())
			Expect(parsed.Description).To(BeNil())
			Expect(parsed.PredictedCategory).To(BeNil())
			Expect(parsed.Items).To(BeEmpty())
		})
	})

	When("the response is a full Veryfi document", func() {
		BeforeEach(func() {
			fields = mustDecode(`{
				"date": "2024-03-14 09:12:00",
				"total": 23.45,
				"category": "Meals & Entertainment",
				"vendor": {"name": "Blue Bottle", "raw_name": "BLUE BOTTLE COFFEE #12"},
				"line_items": [
					{"description": "Latte", "total": 5.25},
					{"text": "Croissant", "price": "4.10"},
					{"description": "", "text": "Water"},
					null
				],
				"ocr_text": "BLUE BOTTLE\nLatte 5.25"
			}`)
		})

		It("maps the amount", func() {
			Expect(parsed.Amount.StringFixed(2)).To(Equal("23.45"))
		})

		It("cuts the time off the date", func() {
			Expect(parsed.Date).To(HaveValue(Equal("2024-03-14")))
		})

		It("prefers the cleaned vendor name", func() {
			Expect(parsed.Vendor).To(HaveValue(Equal("Blue Bottle")))
		})

		It("translates the category", func() {
			Expect(parsed.PredictedCategory).To(HaveValue(Equal("Food & Dining")))
		})

		It("maps line items and skips nulls", func() {
			Expect(parsed.Items).To(HaveLen(3))
			Expect(parsed.Items[0].Description).To(Equal("Latte"))
			Expect(parsed.Items[0].Total.StringFixed(2)).To(Equal("5.25"))
			Expect(parsed.Items[1].Description).To(Equal("Croissant"))
			Expect(parsed.Items[1].Total.StringFixed(2)).To(Equal("4.10"))
			Expect(parsed.Items[2].Description).To(Equal("Water"))
			Expect(parsed.Items[2].Total).To(BeNil())
		})

		It("builds the description from the items", func() {
			Expect(parsed.Description).To(HaveValue(Equal("Latte, Croissant, Water")))
		})

		It("carries the OCR text", func() {
			Expect(parsed.RawText).To(Equal("BLUE BOTTLE\nLatte 5.25"))
		})
	})

	When("meta and top-level fields both exist", func() {
		BeforeEach(func() {
			fields = mustDecode(`{"meta": {"total": 10, "date": "2024-01-01"}, "total": 99, "date": "2023-12-31"}`)
		})

		It("prefers meta", func() {
			Expect(parsed.Amount.StringFixed(2)).To(Equal("10.00"))
			Expect(parsed.Date).To(HaveValue(Equal("2024-01-01")))
		})
	})

	When("the date has a time but no zero padding", func() {
		BeforeEach(func() {
			fields = mustDecode(`{"date": "2024-3-4T10:00:00"}`)
		})

		It("cuts at the time separator", func() {
			Expect(parsed.Date).To(HaveValue(Equal("2024-3-4")))
		})
	})

	When("meta has an empty vendor", func() {
		BeforeEach(func() {
			fields = mustDecode(`{"meta": {"vendor": {}}, "vendor": {"name": "Top"}}`)
		})

		It("falls back to the top-level vendor", func() {
			Expect(parsed.Vendor).To(HaveValue(Equal("Top")))
		})
	})

	When("only the raw vendor name is present", func() {
		BeforeEach(func() {
			fields = mustDecode(`{"vendor": {"name": "  ", "raw_name": "SHELL OIL 5571"}}`)
		})

		It("falls back to it", func() {
			Expect(parsed.Vendor).To(HaveValue(Equal("SHELL OIL 5571")))
		})
	})

	When("the category is unknown", func() {
		BeforeEach(func() {
			fields = mustDecode(`{"meta": {"default_category": {"value": " Pet Supplies "}}}`)
		})

		It("passes it through trimmed", func() {
			Expect(parsed.PredictedCategory).To(HaveValue(Equal("Pet Supplies")))
		})
	})

	When("the response has a description", func() {
		BeforeEach(func() {
			fields = mustDecode(`{"description": "Team lunch", "line_items": [{"description": "Soup"}]}`)
		})

		It("uses it instead of the items", func() {
			Expect(parsed.Description).To(HaveValue(Equal("Team lunch")))
		})
	})

	When("there are more than fifteen items", func() {
		BeforeEach(func() {
			items := make([]any, 0, 18)
			for i := 1; i <= 18; i++ {
				items = append(items, map[string]any{"description": fmt.Sprintf("Item %d", i)})
			}
			fields = map[string]any{"line_items": items}
		})

		It("lists fifteen and counts the rest", func() {
			Expect(parsed.Description).NotTo(BeNil())
			Expect(*parsed.Description).To(HavePrefix("Item 1, Item 2, "))
			Expect(*parsed.Description).To(HaveSuffix("Item 15 (+3 more)"))
			Expect(parsed.Items).To(HaveLen(18))
		})
	})

	When("items are scalars", func() {
		BeforeEach(func() {
			fields = map[string]any{"line_items": []any{"Gum", json.Number("3"), true}}
		})

		It("uses their string form as the description", func() {
			Expect(parsed.Items).To(Equal([]LineItem{
				{Description: "Gum"},
				{Description: "3"},
				{Description: "true"},
			}))
		})
	})

	When("values are malformed", func() {
		BeforeEach(func() {
			fields = mustDecode(`{"total": "about twenty", "date": 7, "vendor": [], "line_items": "none", "category": {}}`)
		})

		It("drops them without failing", func() {
			Expect(parsed.Amount).To(BeNil())
			Expect(parsed.Date).To(HaveValue(Equal("7")))
			Expect(parsed.Vendor).To(BeNil())
			Expect(parsed.Items).To(BeEmpty())
			Expect(parsed.PredictedCategory).To(BeNil())
		})
	})

	When("wrappers are nested too deeply", func() {
		BeforeEach(func() {
			var total any = "5.00"
			for range maxUnwrapDepth + 4 {
				total = map[string]any{"value": total}
			}
			fields = map[string]any{"total": total}
		})

		It("gives up and leaves the field absent", func() {
			Expect(parsed.Amount).To(BeNil())
		})
	})

	When("the input is empty", func() {
		BeforeEach(func() {
			fields = nil
		})

		It("returns an empty receipt", func() {
			Expect(parsed.Amount).To(BeNil())
			Expect(parsed.Items).NotTo(BeNil())
			Expect(parsed.Items).To(BeEmpty())
		})
	})

	It("gives the same result for wrapped and unwrapped input", func() {
		wrapped := Normalize(mustDecode(`{
			"meta": {
				"total": {"value": "42.10"},
				"date": {"value": "2024-05-01"},
				"vendor": {"value": {"name": {"value": "Acme"}}},
				"default_category": {"value": "travel"}
			},
			"line_items": {"value": [{"value": {"description": {"value": "Ticket"}, "total": {"value": 42.10}}}]}
		}`))
		plain := Normalize(mustDecode(`{
			"meta": {
				"total": "42.10",
				"date": "2024-05-01",
				"vendor": {"name": "Acme"},
				"default_category": "travel"
			},
			"line_items": [{"description": "Ticket", "total": 42.10}]
		}`))

		Expect(wrapped.Amount.Equal(*plain.Amount)).To(BeTrue())
		Expect(wrapped.Date).To(Equal(plain.Date))
		Expect(wrapped.Vendor).To(Equal(plain.Vendor))
		Expect(wrapped.PredictedCategory).To(Equal(plain.PredictedCategory))
		Expect(wrapped.Description).To(Equal(plain.Description))
		Expect(wrapped.Items).To(HaveLen(1))
		Expect(wrapped.Items[0].Description).To(Equal(plain.Items[0].Description))
		Expect(wrapped.Items[0].Total.Equal(*plain.Items[0].Total)).To(BeTrue())
	})
})

var _ = Describe("ParsedReceipt JSON", func() {
	It("writes amounts as numbers and never null items", func() {
		amount := decimal.RequireFromString("4.50")
		vendor := "STARBUCKS"
		data, err := json.Marshal(ParsedReceipt{Amount: &amount, Vendor: &vendor, RawText: "ignored"})
		Expect(err).NotTo(HaveOccurred())
		Expect(data).To(MatchJSON(`{
			"amount": 4.5,
			"vendor": "STARBUCKS",
			"date": null,
			"description": null,
			"items": [],
			"predicted_category": null
		}`))
	})
})
