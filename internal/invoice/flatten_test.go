package invoice

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestInvoice(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Invoice Suite")
}

func ptr[T any](v T) *T { return &v }

var _ = Describe("Flatten", func() {
	var (
		inv     Invoice
		records []FlatRecord
	)

	JustBeforeEach(func() {
		records = Flatten(inv)
	})

	When("the invoice has multiple line items", func() {
		BeforeEach(func() {
			inv = Invoice{
				Header: Header{
					InvoiceNumber: "INV-001",
					VendorName:    ptr("Acme Corp"),
					TotalAmount:   ptr(150.0),
					Currency:      ptr("USD"),
				},
				LineItems: []LineItem{
					{Description: "Widget", Quantity: ptr(2.0), UnitPrice: ptr(25.0), LineTotal: ptr(50.0)},
					{Description: "Gadget", Quantity: ptr(1.0), UnitPrice: ptr(100.0), LineTotal: ptr(100.0)},
				},
				FilePath: "in/inv-001.pdf",
			}
		})

		It("should produce one record per line item", func() {
			Expect(records).To(HaveLen(2))
		})

		It("should repeat the header on every record", func() {
			for _, rec := range records {
				Expect(rec.InvoiceNumber).To(Equal("INV-001"))
				Expect(*rec.VendorName).To(Equal("Acme Corp"))
				Expect(*rec.TotalAmount).To(Equal(150.0))
			}
		})

		It("should keep line item order", func() {
			Expect(records[0].ItemDescription).To(Equal("Widget"))
			Expect(records[1].ItemDescription).To(Equal("Gadget"))
		})

		It("should stamp a processing timestamp on every record", func() {
			for _, rec := range records {
				Expect(rec.ProcessingTimestamp).NotTo(BeEmpty())
			}
		})
	})

	When("the invoice has zero line items", func() {
		BeforeEach(func() {
			inv = Invoice{
				Header:   Header{InvoiceNumber: "INV-002"},
				FilePath: "in/inv-002.pdf",
			}
		})

		It("should produce exactly one record", func() {
			Expect(records).To(HaveLen(1))
		})

		It("should use the empty-items sentinel description", func() {
			Expect(records[0].ItemDescription).To(Equal(EmptyLineItemDescription))
		})

		It("should leave the numeric line item fields nil", func() {
			Expect(records[0].Quantity).To(BeNil())
			Expect(records[0].UnitPrice).To(BeNil())
			Expect(records[0].LineTotal).To(BeNil())
		})

		It("should still carry the file path", func() {
			Expect(records[0].FilePath).To(Equal("in/inv-002.pdf"))
		})
	})

	When("the invoice has a single line item", func() {
		BeforeEach(func() {
			inv = Invoice{
				Header:    Header{InvoiceNumber: "INV-003"},
				LineItems: []LineItem{{Description: "Consulting"}},
			}
		})

		It("should produce exactly one record", func() {
			Expect(records).To(HaveLen(1))
		})

		It("should use the real item description", func() {
			Expect(records[0].ItemDescription).To(Equal("Consulting"))
		})
	})
})
