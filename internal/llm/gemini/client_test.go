package gemini

import (
	"fmt"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"invoice-pipeline/internal/llm"
)

func TestGemini(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Gemini Suite")
}

var _ = Describe("classifyError", func() {
	It("treats bad credentials as permanent so the chain advances", func() {
		err := classifyError(fmt.Errorf("generating content: %w",
			&googleapi.Error{Code: 401, Message: "API key not valid"}))
		Expect(llm.Transient(err)).To(BeFalse())
	})

	It("treats invalid requests as permanent", func() {
		err := classifyError(fmt.Errorf("generating content: %w",
			&googleapi.Error{Code: 400, Message: "invalid argument"}))
		Expect(llm.Transient(err)).To(BeFalse())
	})

	It("keeps rate limiting retryable", func() {
		err := classifyError(fmt.Errorf("generating content: %w",
			&googleapi.Error{Code: 429, Message: "quota exceeded"}))
		Expect(llm.Transient(err)).To(BeTrue())
	})

	It("keeps server errors retryable", func() {
		err := classifyError(fmt.Errorf("generating content: %w",
			&googleapi.Error{Code: 503, Message: "backend unavailable"}))
		Expect(llm.Transient(err)).To(BeTrue())
	})

	It("maps grpc auth codes to permanent", func() {
		err := classifyError(status.Error(codes.Unauthenticated, "bad key"))
		Expect(llm.Transient(err)).To(BeFalse())

		err = classifyError(status.Error(codes.InvalidArgument, "bad request"))
		Expect(llm.Transient(err)).To(BeFalse())
	})

	It("leaves grpc quota and availability codes retryable", func() {
		err := classifyError(status.Error(codes.ResourceExhausted, "quota"))
		Expect(llm.Transient(err)).To(BeTrue())

		err = classifyError(status.Error(codes.Unavailable, "down"))
		Expect(llm.Transient(err)).To(BeTrue())
	})

	It("defaults unclassified errors to retryable", func() {
		err := classifyError(fmt.Errorf("connection reset"))
		Expect(llm.Transient(err)).To(BeTrue())
	})
})
