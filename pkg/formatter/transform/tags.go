package transform

import (
	"encoding/hex"
	"regexp"
	"strings"
)

// Sentinel markers. Each masked construct uses its own marker so that unmasking one
// kind never consumes another.
const (
	escapedMarker = "/*escaped*/"
	bladeMarker   = "/*blade*/"
	commentMarker = "/*comment*/"

	phpOpenTag        = "<?php"
	phpEchoTag        = "<?="
	phpCloseTag       = "?>"
	protectedOpenTag  = "/* <?phptag_start */"
	protectedEchoTag  = "/* <?=phptag_start */"
	protectedCloseTag = "/* end_phptag?> */"
)

var (
	// {!! and !!} are replaced one-for-one; the expression between them is left alone.
	escapedOpenRegex  = regexp.MustCompile(`<\?php\s+/\*escaped\*/`)
	escapedCloseRegex = regexp.MustCompile(`/\*escaped\*/\s+\?>`)

	// {{ ... }} may span lines. A body starting with '-' belongs to a comment.
	unescapedRegex       = regexp.MustCompile(`(?s)\{\{([^-].*?)\}\}`)
	maskedUnescapedRegex = regexp.MustCompile(`(?s)<\?php\s+/\*blade\*/\s(.*?)\s/\*blade\*/\s+\?>`)

	commentRegex       = regexp.MustCompile(`(?s)\{\{--(.*?)--\}\}`)
	maskedCommentRegex = regexp.MustCompile(`(?s)<\?php\s*/\*comment\*/\s*\?>(.*?)<\?php\s*/\*comment\*/\s*\?>`)
)

// ProtectPHPTags rewrites genuine PHP open and close tags into inert comments so the
// masking regexes below never see them.
func ProtectPHPTags(content string) string {
	content = strings.ReplaceAll(content, phpOpenTag, protectedOpenTag)
	content = strings.ReplaceAll(content, phpEchoTag, protectedEchoTag)
	return strings.ReplaceAll(content, phpCloseTag, protectedCloseTag)
}

// RestorePHPTags reverses ProtectPHPTags.
func RestorePHPTags(content string) string {
	content = strings.ReplaceAll(content, protectedCloseTag, phpCloseTag)
	content = strings.ReplaceAll(content, protectedEchoTag, phpEchoTag)
	return strings.ReplaceAll(content, protectedOpenTag, phpOpenTag)
}

// MaskComments wraps the body of every {{-- --}} comment between two empty PHP blocks.
// The body is hex encoded, so echo tags, directives and semicolons inside a comment are
// invisible to every later stage and the formatter only sees inline HTML.
func MaskComments(content string) string {
	return commentRegex.ReplaceAllStringFunc(content, func(m string) string {
		body := commentRegex.FindStringSubmatch(m)[1]
		return "<?php " + commentMarker + " ?>" + hex.EncodeToString([]byte(body)) + "<?php " + commentMarker + " ?>"
	})
}

// UnmaskComments restores the {{-- --}} delimiters and the original body of masked
// comments. A region whose body is not valid hex is left as it is.
func UnmaskComments(content string) string {
	return maskedCommentRegex.ReplaceAllStringFunc(content, func(m string) string {
		body, err := hex.DecodeString(maskedCommentRegex.FindStringSubmatch(m)[1])
		if err != nil {
			return m
		}
		return "{{--" + string(body) + "--}}"
	})
}

// MaskEscaped turns {!! expr !!} into a PHP block holding expr as a statement.
func MaskEscaped(content string) string {
	content = strings.ReplaceAll(content, "{!!", "<?php "+escapedMarker)
	return strings.ReplaceAll(content, "!!}", escapedMarker+" ?>")
}

// UnmaskEscaped restores {!! and !!} around masked escaped output. Whitespace the
// formatter placed between the marker and the PHP tag is dropped.
func UnmaskEscaped(content string) string {
	content = escapedOpenRegex.ReplaceAllLiteralString(content, "{!!")
	return escapedCloseRegex.ReplaceAllLiteralString(content, "!!}")
}

// MaskUnescaped turns {{ expr }} into `<?php /*blade*/ expr /*blade*/ ?>`. The captured
// body keeps its own surrounding whitespace, so `{{ $x }}` yields two spaces on each
// side of `$x`.
func MaskUnescaped(content string) string {
	return unescapedRegex.ReplaceAllStringFunc(content, func(m string) string {
		body := unescapedRegex.FindStringSubmatch(m)[1]
		return "<?php " + bladeMarker + " " + body + " " + bladeMarker + " ?>"
	})
}

// UnmaskUnescaped reverses MaskUnescaped. Exactly one whitespace character is taken from
// each side of the body, which makes it the exact inverse of MaskUnescaped.
func UnmaskUnescaped(content string) string {
	return maskedUnescapedRegex.ReplaceAllStringFunc(content, func(m string) string {
		body := maskedUnescapedRegex.FindStringSubmatch(m)[1]
		return "{{" + body + "}}"
	})
}

// MaskTags applies every tag mask in pipeline order: real PHP tags are protected
// first, then comments, escaped and unescaped output.
func MaskTags(content string) string {
	content = ProtectPHPTags(content)
	content = MaskComments(content)
	content = MaskEscaped(content)
	return MaskUnescaped(content)
}

// UnmaskTags is the inverse of MaskTags.
func UnmaskTags(content string) string {
	content = UnmaskUnescaped(content)
	content = UnmaskEscaped(content)
	content = UnmaskComments(content)
	return RestorePHPTags(content)
}
