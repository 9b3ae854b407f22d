package scanning

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const fakeTesseractScript = `#!/bin/sh
if [ "$1" = "--version" ]; then
  echo "tesseract 5.3.0"
  echo " leptonica-1.82.0"
  exit 0
fi
if [ "$1" = "stdin" ]; then
  cat > /dev/null
  printf 'STDIN MART\nTotal: $3.10\n'
  exit 0
fi
if [ -f "$1" ]; then
  printf 'FILE MART\nTotal: $7.80\n2024-02-02\n'
  exit 0
fi
echo "Error: cannot read input" >&2
exit 1
`

const brokenTesseractScript = `#!/bin/sh
echo "Error in pixReadStream" >&2
echo "Leptonica Error" >&2
exit 1
`

func writeScript(dir, name, body string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(body), 0755)).To(Succeed())
	return path
}

var _ = Describe("Tesseract", func() {
	var (
		tempDir string
		binary  string
		img     Image
		result  Result
		err     error
	)

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("shell scripts are not executable on windows")
		}
		var mkErr error
		tempDir, mkErr = os.MkdirTemp("", "expensevision-tesseract-*")
		Expect(mkErr).NotTo(HaveOccurred())
		binary = writeScript(tempDir, "tesseract", fakeTesseractScript)
		img = Image{Data: samplePNG(), Filename: "receipt.png", ContentType: "image/png"}
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	JustBeforeEach(func() {
		result, err = NewTesseract(binary).Extract(context.Background(), img)
	})

	When("the caller has a temporary copy in a readable format", func() {
		BeforeEach(func() {
			img.Path = filepath.Join(tempDir, "receipt.png")
			Expect(os.WriteFile(img.Path, img.Data, 0600)).To(Succeed())
		})

		It("reads the file directly", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Kind()).To(Equal(ResultRawText))
			Expect(result.Text()).To(HavePrefix("FILE MART"))
		})

		It("produces text the heuristic parser understands", func() {
			parsed := ParseText(result.Text())
			Expect(parsed.Vendor).To(HaveValue(Equal("FILE MART")))
			Expect(parsed.Amount.StringFixed(2)).To(Equal("7.80"))
			Expect(parsed.Date).To(HaveValue(Equal("2024-02-02")))
		})
	})

	When("there is no temporary copy", func() {
		It("pipes the image through stdin", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Text()).To(HavePrefix("STDIN MART"))
		})
	})

	When("the format needs converting first", func() {
		BeforeEach(func() {
			img.Data = []byte("<svg xmlns=\"http://www.w3.org/2000/svg\"/>")
			img.ContentType = "image/svg+xml"
			img.Path = filepath.Join(tempDir, "receipt.svg")
		})

		It("pipes a converted PNG to tesseract", func() {
			Expect(err).To(HaveOccurred())
			Expect(err).NotTo(MatchError(ErrProviderUnavailable))
		})
	})

	When("tesseract fails", func() {
		BeforeEach(func() {
			binary = writeScript(tempDir, "broken", brokenTesseractScript)
		})

		It("returns a ProviderUnavailableError with stderr", func() {
			Expect(err).To(MatchError(ErrProviderUnavailable))
			Expect(err.Error()).To(ContainSubstring("pixReadStream"))
		})
	})

	When("tesseract is not installed", func() {
		BeforeEach(func() {
			binary = "expensevision-no-such-tesseract"
		})

		It("returns a ProviderUnavailableError", func() {
			Expect(err).To(MatchError(ErrProviderUnavailable))
			Expect(err.Error()).To(ContainSubstring("not installed"))
		})
	})
})

var _ = Describe("ProbeTesseract", func() {
	var tempDir string

	BeforeEach(func() {
		if runtime.GOOS == "windows" {
			Skip("shell scripts are not executable on windows")
		}
		var err error
		tempDir, err = os.MkdirTemp("", "expensevision-probe-*")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		os.RemoveAll(tempDir)
	})

	It("returns the first line of the version output", func() {
		version, err := ProbeTesseract(context.Background(), writeScript(tempDir, "tesseract", fakeTesseractScript))
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal("tesseract 5.3.0"))
	})

	It("fails when the binary is missing", func() {
		_, err := ProbeTesseract(context.Background(), filepath.Join(tempDir, "missing"))
		Expect(err).To(HaveOccurred())
	})
})
