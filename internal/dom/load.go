package dom

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/saintfish/chardet"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// MaxDocumentSize limits HTML input to 10MB.
const MaxDocumentSize = 10 * 1024 * 1024

var (
	ErrEmptyDocument    = errors.New("html content required")
	ErrDocumentTooLarge = fmt.Errorf("html exceeds maximum size of %d bytes", MaxDocumentSize)
)

// Validate checks document size limits.
func Validate(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyDocument
	}
	if len(data) > MaxDocumentSize {
		return ErrDocumentTooLarge
	}
	return nil
}

// DetectCharset returns the encoding name of data. Declared encodings (BOM,
// meta charset) win; valid UTF-8 is taken as is; otherwise chardet guesses.
func DetectCharset(data []byte) string {
	if _, name, certain := charset.DetermineEncoding(data, ""); certain {
		return name
	}
	if utf8.Valid(data) {
		return "utf-8"
	}
	result, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// Parse decodes data to UTF-8 and parses it into a node tree.
func Parse(data []byte) (*html.Node, error) {
	if err := Validate(data); err != nil {
		return nil, err
	}

	utf8Reader, err := charset.NewReaderLabel(DetectCharset(data), bytes.NewReader(data))
	if err != nil {
		return html.Parse(bytes.NewReader(data))
	}
	return html.Parse(utf8Reader)
}

// Load parses data and indexes it as a Document located at rawURL.
func Load(data []byte, rawURL string) (*Document, error) {
	root, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return NewDocument(root, rawURL), nil
}

// LoadString is Load for string input.
func LoadString(s, rawURL string) (*Document, error) {
	return Load([]byte(s), rawURL)
}
