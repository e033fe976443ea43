package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	gmtext "github.com/yuin/goldmark/text"
)

// maxSectionHeadingLevel: headings at this level or above start a new section
// when splitting markdown.
const maxSectionHeadingLevel = 2

// extractSections pulls the plain text of a content file as a list of
// coherent sections (markdown heading blocks, PDF pages, the whole document
// for flat formats). Sections are chunked afterwards.
func extractSections(filePath string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".md", ".markdown":
		return extractMarkdown(filePath)
	case ".pdf":
		return extractPDF(filePath)
	case ".docx":
		return extractDOCX(filePath)
	case ".txt":
		return extractText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", filepath.Ext(filePath))
	}
}

// extractMarkdown splits a markdown document on top-level headings using the
// goldmark AST, so a chunk never straddles two chapters/sections.
func extractMarkdown(filePath string) ([]string, error) {
	source, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	root := md.Parser().Parse(gmtext.NewReader(source))

	var sections []string
	var current strings.Builder
	flush := func() {
		if text := strings.TrimSpace(current.String()); text != "" {
			sections = append(sections, text)
		}
		current.Reset()
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if heading, ok := node.(*ast.Heading); ok && heading.Level <= maxSectionHeadingLevel {
			flush()
		}
		writeBlockText(&current, node, source)
		current.WriteString("\n\n")
	}
	flush()

	return sections, nil
}

// writeBlockText appends the raw source text of a block node and its block
// descendants. Inline children carry no Lines, so paragraph text is written
// exactly once.
func writeBlockText(b *strings.Builder, node ast.Node, source []byte) {
	if node.Type() == ast.TypeBlock {
		lines := node.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			b.Write(segment.Value(source))
		}
	}
	for child := node.FirstChild(); child != nil; child = child.NextSibling() {
		writeBlockText(b, child, source)
	}
}

func extractPDF(filePath string) ([]string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return nil, err
	}

	var sections []string
	for i := 1; i <= reader.NumPage(); i++ {
		pageText, err := reader.Page(i).GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("reading page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) != "" {
			sections = append(sections, pageText)
		}
	}
	return sections, nil
}

func extractDOCX(filePath string) ([]string, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	var paragraphs []string
	for _, p := range strings.Split(content, "\n") {
		if strings.TrimSpace(p) != "" {
			paragraphs = append(paragraphs, p)
		}
	}
	if len(paragraphs) == 0 {
		return nil, nil
	}
	return []string{strings.Join(paragraphs, "\n")}, nil
}

func extractText(filePath string) ([]string, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []string{string(data)}, nil
}
