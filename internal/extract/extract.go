package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var (
	ErrUnsupportedFormat = errors.New("extract: unsupported document format")
	ErrInvalidPDF        = errors.New("extract: invalid PDF")
)

// Extensions lists the document types the knowledge folder may contain.
var Extensions = []string{".md", ".txt", ".pdf", ".html", ".htm"}

var blankLines = regexp.MustCompile(`\n\s*\n\s*\n`)

// Supported reports whether name has an indexable extension.
func Supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// File returns the plain text of the document at path.
func File(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", path, err)
		}
		return strings.ToValidUTF8(string(data), ""), nil
	case ".pdf":
		return PDF(path)
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		return HTML(f)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
}

// PDF validates the file structure and then returns its page text.
func PDF(path string) (text string, err error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	if verr := api.ValidateFile(path, conf); verr != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidPDF, filepath.Base(path), verr)
	}

	// the text reader panics on some malformed content streams
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: %s: %v", ErrInvalidPDF, filepath.Base(path), r)
		}
	}()

	f, rdr, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf %s: %w", path, err)
	}
	defer f.Close()

	b, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text %s: %w", path, err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, b); err != nil {
		return "", fmt.Errorf("read pdf buffer %s: %w", path, err)
	}
	return buf.String(), nil
}

// HTML returns the visible text of an HTML document.
func HTML(r io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript").Remove()

	var parts []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		parts = append(parts, title)
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	parts = append(parts, body.Text())

	text := strings.Join(parts, "\n\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text), nil
}
