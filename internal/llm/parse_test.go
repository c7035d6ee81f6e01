package llm

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("parseResponse", func() {
	var (
		raw     string
		doc     responseDocument
		dropped []string
		err     error
	)

	JustBeforeEach(func() {
		doc, dropped, err = parseResponse([]byte(raw))
	})

	When("the response is clean JSON", func() {
		BeforeEach(func() {
			raw = `{"header": {"invoice_number": "A-1", "total_amount": 12.5}, "line_items": []}`
		})

		It("should parse the header", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Header.InvoiceNumber).To(Equal("A-1"))
			Expect(*doc.Header.TotalAmount).To(Equal(12.5))
		})
	})

	When("numeric fields arrive as strings", func() {
		BeforeEach(func() {
			raw = `{"header": {"invoice_number": "A-2", "total_amount": "1,234.50"},
				"line_items": [{"item_description": "Thing", "quantity": "3"}]}`
		})

		It("should coerce them to numbers", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(*doc.Header.TotalAmount).To(Equal(1234.50))
			Expect(*doc.LineItems[0].Quantity).To(Equal(3.0))
		})
	})

	When("a numeric field is garbage", func() {
		BeforeEach(func() {
			raw = `{"header": {"invoice_number": "A-3", "total_amount": "around fifty"}, "line_items": []}`
		})

		It("should drop the field instead of failing", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Header.TotalAmount).To(BeNil())
			Expect(dropped).To(ContainElement("header.total_amount"))
		})
	})

	When("the JSON is surrounded by prose", func() {
		BeforeEach(func() {
			raw = `Here is the extracted invoice: {"header": {"invoice_number": "A-4"}, "line_items": []} Hope that helps!`
		})

		It("should extract the object boundaries", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Header.InvoiceNumber).To(Equal("A-4"))
		})
	})

	When("a line item has no description", func() {
		BeforeEach(func() {
			raw = `{"header": {}, "line_items": [{"quantity": 1}]}`
		})

		It("should reject the document", func() {
			Expect(err).To(HaveOccurred())
		})
	})

	When("dates are malformed", func() {
		BeforeEach(func() {
			raw = `{"header": {"invoice_date": "03/01/2026"}, "line_items": []}`
		})

		It("should reject the document", func() {
			Expect(err).To(HaveOccurred())
		})
	})

	When("there is no JSON at all", func() {
		BeforeEach(func() {
			raw = "Sorry, I cannot process this."
		})

		It("should return an error", func() {
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("no JSON object"))
		})
	})
})
