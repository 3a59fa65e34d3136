package document

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
)

// ExtractPages extracts per-page text from a PDF on disk, ordered by physical
// page. Pages with no extractable text are returned with empty Text so page
// numbering stays aligned with the document.
func ExtractPages(path string) ([]Page, error) {
	pdfCtx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, errno.ErrDocumentRead.WithMessage("cannot read %s", filepath.Base(path)).WithCause(err)
	}
	pageCount := pdfCtx.PageCount

	outDir, err := os.MkdirTemp("", "guideline-pdf-")
	if err != nil {
		return nil, errno.ErrDocumentRead.WithCause(err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return nil, errno.ErrDocumentRead.WithMessage("cannot extract content from %s", filepath.Base(path)).WithCause(err)
	}

	pageTexts := make(map[int]string, pageCount)
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return nil, errno.ErrDocumentRead.WithCause(err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		var pageNum int
		name := entry.Name()
		if _, err := fmt.Sscanf(name, "Content_page_%d", &pageNum); err != nil {
			if _, err := fmt.Sscanf(name, "page_%d", &pageNum); err != nil {
				continue
			}
		}
		raw, err := os.ReadFile(filepath.Join(outDir, name))
		if err != nil {
			continue
		}
		pageTexts[pageNum] = decodePageText(raw)
	}

	pages := make([]Page, 0, pageCount)
	for n := 1; n <= pageCount; n++ {
		pages = append(pages, Page{Number: n, Text: pageTexts[n]})
	}
	return pages, nil
}

// showTextRE matches the text-showing operators of a decoded content stream
// in document order: TJ array operands like [(Hel)3(lo)] TJ in group 1, and
// literal-string operands of Tj, ' and " in group 2. pdfcpu hands back raw
// page content, so the operand strings are pulled out here instead of
// embedding stream operators.
var showTextRE = regexp.MustCompile(`\[((?:\\.|[^\]\\])*)\]\s*TJ|\(((?:\\.|[^\\()])*)\)\s*(?:Tj|'|")`)

var stringLiteralRE = regexp.MustCompile(`\(((?:\\.|[^\\()])*)\)`)

// decodePageText recovers the displayed text of one page content stream,
// preserving the order the operators appear in. This covers simply-encoded
// guideline PDFs; hex strings and CID fonts come back empty, which the
// chunker then skips.
func decodePageText(content []byte) string {
	var b strings.Builder
	stream := string(content)

	for _, m := range showTextRE.FindAllStringSubmatch(stream, -1) {
		if strings.HasPrefix(m[0], "[") {
			for _, lit := range stringLiteralRE.FindAllStringSubmatch(m[1], -1) {
				b.WriteString(unescapePDFString(lit[1]))
			}
		} else {
			b.WriteString(unescapePDFString(m[2]))
		}
		b.WriteByte(' ')
	}

	return strings.TrimSpace(b.String())
}

func unescapePDFString(s string) string {
	r := strings.NewReplacer(
		`\(`, "(",
		`\)`, ")",
		`\\`, `\`,
		`\n`, "\n",
		`\r`, "\r",
		`\t`, "\t",
	)
	return r.Replace(s)
}
