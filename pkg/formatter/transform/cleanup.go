package transform

import (
	"regexp"
	"strings"
)

var (
	// Comments come first in the alternation so an echo inside one is never matched
	// on its own.
	echoSpanRegex     = regexp.MustCompile(`(?s)(\{\{--)(.*?)(--\}\})|(\{!!)(.*?)(!!\})|(\{\{)([^-].*?)(\}\})`)
	trailingSemiRegex = regexp.MustCompile(`;[ \t]*(?:\r?\n[ \t]*)?$`)

	escapedEchoRegex   = regexp.MustCompile(`(?s)\{!!(.*?)!!\}`)
	unescapedEchoRegex = regexp.MustCompile(`(?s)\{\{([^-].*?)\}\}`)
)

// Cleanup removes the statement terminator the PHP formatter appends to masked
// expressions. A `;` that ends the body of a `{!! !!}`, `{{-- --}}` or `{{ }}` tag, on
// the closing line or the one before it, is replaced by a single space. Text outside
// those tags is not touched.
func Cleanup(content string) string {
	return echoSpanRegex.ReplaceAllStringFunc(content, func(m string) string {
		sub := echoSpanRegex.FindStringSubmatch(m)
		for i := 1; i < len(sub); i += 3 {
			if sub[i] != "" {
				return sub[i] + trailingSemiRegex.ReplaceAllLiteralString(sub[i+1], " ") + sub[i+2]
			}
		}
		return m
	})
}

// PadEchoes normalises echo tags to exactly one space inside each delimiter.
func PadEchoes(content string) string {
	content = escapedEchoRegex.ReplaceAllStringFunc(content, func(m string) string {
		return "{!! " + strings.TrimSpace(escapedEchoRegex.FindStringSubmatch(m)[1]) + " !!}"
	})
	return unescapedEchoRegex.ReplaceAllStringFunc(content, func(m string) string {
		return "{{ " + strings.TrimSpace(unescapedEchoRegex.FindStringSubmatch(m)[1]) + " }}"
	})
}
