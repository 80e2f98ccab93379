package extract

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// pageSource yields the text runs of one page at a time. The concrete
// implementation wraps the pdf reader; tests substitute fakes.
type pageSource interface {
	pageCount() int
	pageWords(n int) ([]string, error)
}

func pdfText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	return pagesText(&pdfSource{reader: reader}), nil
}

// pagesText concatenates every page in ascending order: runs within a page
// joined with single spaces, pages joined with a newline. A page whose text
// layer cannot be read contributes an empty segment instead of aborting.
func pagesText(src pageSource) string {
	count := src.pageCount()
	segments := make([]string, 0, count)
	for n := 1; n <= count; n++ {
		words, err := src.pageWords(n)
		if err != nil {
			segments = append(segments, "")
			continue
		}
		segments = append(segments, joinWords(words))
	}
	return joinPages(segments)
}

func joinWords(words []string) string {
	out := ""
	for _, w := range words {
		if w == "" {
			continue
		}
		if out != "" {
			out += " "
		}
		out += w
	}
	return out
}

func joinPages(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "\n"
		}
		out += s
	}
	return out
}

type pdfSource struct {
	reader *pdf.Reader
}

func (s *pdfSource) pageCount() int {
	return s.reader.NumPage()
}

func (s *pdfSource) pageWords(n int) (words []string, err error) {
	// The pdf library panics on malformed content streams; treat that the
	// same as an unreadable text layer.
	defer func() {
		if r := recover(); r != nil {
			words, err = nil, fmt.Errorf("page %d: %v", n, r)
		}
	}()

	page := s.reader.Page(n)
	if page.V.IsNull() {
		return nil, nil
	}
	content := page.Content()
	words = make([]string, 0, len(content.Text))
	for _, t := range content.Text {
		words = append(words, t.S)
	}
	return words, nil
}
