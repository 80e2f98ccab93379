package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
)

// Extractor turns an uploaded document into a single plain-text blob. PDFs
// are read page by page; other text formats go through the file loader.
type Extractor struct {
	loader *file.FileLoader
}

// New builds an extractor with a text-parser fallback for non-PDF uploads.
func New() (*Extractor, error) {
	parserExt, err := parser.NewExtParser(context.Background(), &parser.ExtParserConfig{
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init parser: %w", err)
	}
	loader, err := file.NewFileLoader(context.Background(), &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      parserExt,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &Extractor{loader: loader}, nil
}

// Text extracts the document's text content. An unreadable document returns
// an error; an unreadable individual page does not.
func (e *Extractor) Text(ctx context.Context, path string) (string, error) {
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		return pdfText(path)
	}
	return e.loaderText(ctx, path)
}

func (e *Extractor) loaderText(ctx context.Context, path string) (string, error) {
	docs, err := e.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", fmt.Errorf("load file: %w", err)
	}
	var builder strings.Builder
	for _, doc := range docs {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(content)
	}
	if builder.Len() == 0 {
		return "", fmt.Errorf("file %s has no readable text content", filepath.Base(path))
	}
	return builder.String(), nil
}
