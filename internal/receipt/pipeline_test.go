package receipt

import (
	"context"
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/zombor/expensevision/internal/classifier"
	"github.com/zombor/expensevision/internal/scanning"
)

var _ = Describe("Pipeline", func() {
	var (
		provider  *mockProvider
		predictor *mockClassifier
		pipeline  *Pipeline
		parsed    scanning.ParsedReceipt
		err       error
	)

	BeforeEach(func() {
		provider = newMockProvider()
		predictor = newMockClassifier()
	})

	JustBeforeEach(func() {
		pipeline = NewPipeline(provider, predictor)
		parsed, err = pipeline.Process(context.Background(), scanning.Image{Data: []byte("image")})
	})

	When("the provider returns raw text", func() {
		It("parses it heuristically", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Vendor).To(HaveValue(Equal("STARBUCKS")))
			Expect(parsed.Date).To(HaveValue(Equal("03/14/2024")))
			Expect(parsed.Amount.StringFixed(2)).To(Equal("4.50"))
		})

		It("predicts the category from the vendor", func() {
			Expect(predictor.predicted).To(Equal([][2]string{{"STARBUCKS", "STARBUCKS"}}))
			Expect(parsed.PredictedCategory).To(HaveValue(Equal("Food & Dining")))
		})
	})

	When("the provider returns structured fields with a category", func() {
		BeforeEach(func() {
			provider.result = scanning.StructuredFields(map[string]any{
				"vendor":   map[string]any{"name": "Delta"},
				"total":    "310.20",
				"category": "Travel",
			})
		})

		It("keeps the provider's category", func() {
			Expect(parsed.PredictedCategory).To(HaveValue(Equal("Travel")))
			Expect(predictor.predicted).To(BeEmpty())
		})
	})

	When("the provider returns structured fields without a category", func() {
		BeforeEach(func() {
			provider.result = scanning.StructuredFields(map[string]any{
				"vendor": map[string]any{"name": "Blue Bottle"},
			})
		})

		It("predicts from the vendor", func() {
			Expect(predictor.predicted).To(Equal([][2]string{{"Blue Bottle", "Blue Bottle"}}))
			Expect(parsed.PredictedCategory).To(HaveValue(Equal("Food & Dining")))
		})
	})

	When("there is no vendor", func() {
		BeforeEach(func() {
			provider.result = scanning.RawText("")
		})

		It("leaves the category absent", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Vendor).To(BeNil())
			Expect(parsed.PredictedCategory).To(BeNil())
			Expect(predictor.predicted).To(BeEmpty())
			Expect(parsed.RawText).To(Equal(""))
		})
	})

	When("the provider fails", func() {
		var upstream error

		BeforeEach(func() {
			upstream = &scanning.ProviderUnavailableError{Provider: "mock", StatusCode: 502}
			provider.extractErr = upstream
		})

		It("wraps the failure in a ProcessingError", func() {
			var processing *ProcessingError
			Expect(errors.As(err, &processing)).To(BeTrue())
			Expect(processing.Provider).To(Equal("mock"))
			Expect(err).To(MatchError(upstream))
			Expect(err).To(MatchError(scanning.ErrProviderUnavailable))
		})
	})

	Describe("without a provider", func() {
		It("fails before reading the image", func() {
			p := NewPipeline(nil, predictor)
			Expect(p.Available()).To(BeFalse())
			Expect(p.ProviderName()).To(BeEmpty())

			_, err := p.Process(context.Background(), scanning.Image{})
			Expect(err).To(MatchError(scanning.ErrNoProviderAvailable))
		})
	})

	Describe("with the keyword classifier", func() {
		It("resolves a coffee shop receipt to Food & Dining", func() {
			keywords := classifier.New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
			p := NewPipeline(newMockProvider(), keywords)

			result, err := p.Process(context.Background(), scanning.Image{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.PredictedCategory).To(HaveValue(Equal("Food & Dining")))
		})
	})
})
