// Package language decides whether a discovered file is a Blade template.
package language

import (
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// Language identifiers returned by Detect, lowercased.
const (
	Blade     = "blade"
	PHP       = "php"
	HTML      = "html"
	PlainText = "plaintext"
	Unknown   = "unknown"
)

// Detector identifies the language of a file from its name and content.
//
// Stability: Public Stable API - implementations can be provided externally.
type Detector interface {
	// Detect returns a lowercase language id and an indicative confidence between 0 and 1.
	// Failure to detect is not an error; it yields PlainText or Unknown.
	Detect(content []byte, filePath string) (language string, confidence float64, err error)
}

type enryDetector struct {
	overrides map[string]string
}

// NewEnryDetector returns a Detector backed by go-enry. overrides maps file
// extensions (".blade.php", "tpl") to language ids and wins over detection.
func NewEnryDetector(overrides map[string]string) Detector {
	normalized := make(map[string]string, len(overrides))
	for ext, lang := range overrides {
		ext = strings.ToLower(strings.TrimSpace(ext))
		lang = strings.ToLower(strings.TrimSpace(lang))
		if ext == "" || ext == "." || lang == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[ext] = lang
	}
	return &enryDetector{overrides: normalized}
}

func (d *enryDetector) Detect(content []byte, filePath string) (string, float64, error) {
	base := strings.ToLower(filepath.Base(filePath))

	// Longest suffix wins so ".blade.php" beats ".php".
	var (
		override string
		matched  int
	)
	for ext, lang := range d.overrides {
		if strings.HasSuffix(base, ext) && len(ext) > matched {
			override, matched = lang, len(ext)
		}
	}
	if override != "" {
		return override, 1.0, nil
	}

	if len(content) == 0 {
		return Unknown, 0.0, nil
	}

	if lang := enry.GetLanguage(filepath.Base(filePath), content); lang != "" && lang != "Text" {
		return strings.ToLower(lang), 0.8, nil
	}
	if lang, safe := enry.GetLanguageByExtension(filePath); safe && lang != "" && lang != "Text" {
		return strings.ToLower(lang), 0.5, nil
	}
	return PlainText, 0.0, nil
}

// IsTemplateLanguage reports whether lang is something the Blade pipeline can format.
func IsTemplateLanguage(lang string) bool {
	switch strings.ToLower(lang) {
	case Blade, PHP, HTML, "html+php":
		return true
	}
	return false
}
