// Package encoding converts template bytes to UTF-8 for formatting and back to the
// original character set on write.
package encoding

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

const (
	sniffLen      = 512
	nullCheckLen  = 1024
	nullThreshold = 0.15
)

// UTF8 is the canonical name returned for content that needs no conversion.
const UTF8 = "utf-8"

var textMIMEPrefixes = []string{
	"text/",
	"application/json",
	"application/xml",
	"application/javascript",
	"application/octet-stream",
	"image/svg+xml",
}

var byteOrderMarks = [][]byte{
	{0xEF, 0xBB, 0xBF},
	{0xFE, 0xFF},
	{0xFF, 0xFE},
}

// Handler detects the encoding of template files and converts between it and UTF-8.
//
// Stability: Public Stable API - implementations can be provided externally.
type Handler interface {
	// DetectAndDecode returns content as UTF-8 together with the IANA name of the
	// source encoding and whether detection was certain.
	DetectAndDecode(content []byte) (utf8Content []byte, encodingName string, certain bool, err error)

	// Encode converts UTF-8 content back to the named encoding.
	Encode(utf8Content []byte, encodingName string) ([]byte, error)

	// IsBinary reports whether content looks like binary data rather than a template.
	IsBinary(content []byte) bool
}

type charsetHandler struct {
	defaultEncoding string
}

// NewCharsetHandler returns a Handler built on golang.org/x/net/html/charset.
// defaultEncoding is used when detection is uncertain and the content is not valid UTF-8.
func NewCharsetHandler(defaultEncoding string) Handler {
	return &charsetHandler{defaultEncoding: strings.TrimSpace(defaultEncoding)}
}

func (h *charsetHandler) DetectAndDecode(content []byte) ([]byte, string, bool, error) {
	enc, name, certain := charset.DetermineEncoding(content, "")

	if !certain {
		// DetermineEncoding guesses windows-1252 for plain ASCII.
		if utf8.Valid(content) {
			return content, UTF8, false, nil
		}
		if h.defaultEncoding != "" && !isUTF8Name(h.defaultEncoding) {
			if e, n := charset.Lookup(h.defaultEncoding); e != nil {
				enc, name, certain = e, n, true
			}
		}
	}

	if enc == nil || isUTF8Name(name) {
		return content, UTF8, certain, nil
	}

	decoded, _, err := transform.Bytes(enc.NewDecoder(), content)
	if err != nil {
		return content, name, certain, fmt.Errorf("decode from %q: %w", name, err)
	}
	return decoded, name, certain, nil
}

func (h *charsetHandler) Encode(content []byte, name string) ([]byte, error) {
	if name == "" || isUTF8Name(name) {
		return content, nil
	}
	enc, canonical := charset.Lookup(name)
	if enc == nil {
		return nil, fmt.Errorf("unknown encoding %q", name)
	}
	encoded, _, err := transform.Bytes(enc.NewEncoder(), content)
	if err != nil {
		return nil, fmt.Errorf("encode to %q: %w", canonical, err)
	}
	return encoded, nil
}

func (h *charsetHandler) IsBinary(content []byte) bool {
	if len(content) == 0 {
		return false
	}
	for _, bom := range byteOrderMarks {
		if bytes.HasPrefix(content, bom) {
			return false
		}
	}

	sniff := content
	if len(sniff) > sniffLen {
		sniff = sniff[:sniffLen]
	}
	if !isTextMIME(http.DetectContentType(sniff)) {
		return true
	}

	check := content
	if len(check) > nullCheckLen {
		check = check[:nullCheckLen]
	}
	nulls := bytes.Count(check, []byte{0})
	return float64(nulls)/float64(len(check)) > nullThreshold
}

func isTextMIME(contentType string) bool {
	mimeType := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for _, prefix := range textMIMEPrefixes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return strings.HasSuffix(mimeType, "+xml") || strings.HasSuffix(mimeType, "+json")
}

func isUTF8Name(name string) bool {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
