package discovery

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invoice-pipeline/internal/invoice"
)

var _ = Describe("Relocate", func() {
	var (
		inputRoot     string
		processedRoot string
		doc           Document
		outcome       invoice.Outcome
		finalPath     string
		err           error
	)

	BeforeEach(func() {
		inputRoot = GinkgoT().TempDir()
		processedRoot = GinkgoT().TempDir()
		outcome = invoice.OutcomeSucceededAI
	})

	JustBeforeEach(func() {
		finalPath, err = Relocate(doc, outcome, inputRoot, processedRoot, nil)
	})

	When("moving a root-level file", func() {
		BeforeEach(func() {
			touch(filepath.Join(inputRoot, "inv.pdf"))
			doc = Document{Path: filepath.Join(inputRoot, "inv.pdf")}
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("should move the file under the processed root", func() {
			Expect(finalPath).To(Equal(filepath.Join(processedRoot, "inv.pdf")))
			Expect(finalPath).To(BeAnExistingFile())
		})

		It("should remove the source file", func() {
			Expect(doc.Path).NotTo(BeAnExistingFile())
		})
	})

	When("the file lives in a subdirectory", func() {
		BeforeEach(func() {
			touch(filepath.Join(inputRoot, "acme", "inv.pdf"))
			doc = Document{Path: filepath.Join(inputRoot, "acme", "inv.pdf")}
		})

		It("should preserve the relative directory structure", func() {
			Expect(finalPath).To(Equal(filepath.Join(processedRoot, "acme", "inv.pdf")))
			Expect(finalPath).To(BeAnExistingFile())
		})
	})

	When("the destination name already exists", func() {
		BeforeEach(func() {
			touch(filepath.Join(processedRoot, "inv.pdf"))
			touch(filepath.Join(inputRoot, "inv.pdf"))
			doc = Document{Path: filepath.Join(inputRoot, "inv.pdf")}
		})

		It("should pick a suffixed name instead of overwriting", func() {
			Expect(finalPath).To(Equal(filepath.Join(processedRoot, "inv_1.pdf")))
		})

		It("should keep both files on disk", func() {
			Expect(filepath.Join(processedRoot, "inv.pdf")).To(BeAnExistingFile())
			Expect(filepath.Join(processedRoot, "inv_1.pdf")).To(BeAnExistingFile())
		})
	})

	When("two suffixed names are already taken", func() {
		BeforeEach(func() {
			touch(filepath.Join(processedRoot, "inv.pdf"))
			touch(filepath.Join(processedRoot, "inv_1.pdf"))
			touch(filepath.Join(inputRoot, "inv.pdf"))
			doc = Document{Path: filepath.Join(inputRoot, "inv.pdf")}
		})

		It("should keep incrementing until a free name is found", func() {
			Expect(finalPath).To(Equal(filepath.Join(processedRoot, "inv_2.pdf")))
		})
	})

	When("identical names live in different subdirectories", func() {
		BeforeEach(func() {
			touch(filepath.Join(inputRoot, "acme", "inv.pdf"))
			touch(filepath.Join(inputRoot, "globex", "inv.pdf"))
			first := Document{Path: filepath.Join(inputRoot, "acme", "inv.pdf")}
			_, firstErr := Relocate(first, invoice.OutcomeSucceededAI, inputRoot, processedRoot, nil)
			Expect(firstErr).NotTo(HaveOccurred())
			doc = Document{Path: filepath.Join(inputRoot, "globex", "inv.pdf")}
		})

		It("should place both under their own subdirectories without renaming", func() {
			Expect(finalPath).To(Equal(filepath.Join(processedRoot, "globex", "inv.pdf")))
			Expect(filepath.Join(processedRoot, "acme", "inv.pdf")).To(BeAnExistingFile())
		})
	})

	When("the destination cannot be stat-ed at all", func() {
		It("should surface the error instead of looping", func() {
			// A regular file in the path makes stat fail with ENOTDIR,
			// which is not a not-exist condition.
			blocker := filepath.Join(GinkgoT().TempDir(), "blocker")
			touch(blocker)

			_, statErr := resolveCollision(filepath.Join(blocker, "inv.pdf"))
			Expect(statErr).To(HaveOccurred())
			Expect(statErr.Error()).To(ContainSubstring("stat"))
		})
	})

	When("the outcome is failed", func() {
		BeforeEach(func() {
			touch(filepath.Join(inputRoot, "broken.pdf"))
			doc = Document{Path: filepath.Join(inputRoot, "broken.pdf")}
			outcome = invoice.OutcomeFailed
		})

		It("should leave the file in place", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(finalPath).To(Equal(doc.Path))
			Expect(doc.Path).To(BeAnExistingFile())
		})

		It("should not create anything under the processed root", func() {
			entries, readErr := os.ReadDir(processedRoot)
			Expect(readErr).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})
})
