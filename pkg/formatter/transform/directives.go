package transform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"
)

// EncodableDirectives lists the directives whose arguments are run through the PHP
// formatter. @switch is deliberately absent: its body of @case branches is kept intact
// by the block layer instead.
var EncodableDirectives = []string{
	"if", "unless", "foreach", "for", "while",
	"isset", "empty",
	"can", "cannot", "canany",
	"env", "auth", "guest",
	"section", "hasSection", "sectionMissing",
	"push", "prepend",
	"component", "slot",
	"error",
}

// FormatFunc formats a single piece of PHP source. It is the seam through which the
// directive layer reaches the external formatter.
type FormatFunc func(ctx context.Context, source string) (string, error)

// Directive is one `@name(args)` occurrence located in a template.
type Directive struct {
	Name  string // without the leading '@'
	Args  string
	Raw   string
	Start int // rune offset of '@'
	End   int // rune offset just past the closing ')'
}

var (
	// The lookahead is meant to skip directives inside /* */ comments. It is evaluated
	// at the '@' itself, so in practice it never rejects anything; nested and repeated
	// comments are not handled either.
	directiveRegex = regexp2.MustCompile(
		`(?<![@\w])(?!/\*.*?\*/)@(`+alternation(EncodableDirectives)+`)\s*?\(`,
		regexp2.Multiline,
	)

	encodedDirectiveRegex = regexp.MustCompile(
		`(?s)<\?php\s+(` + alternation(EncodableDirectives) + `)\s*\((.*?)\);*\s*\?>`,
	)
)

// alternation joins names into a regex alternation, longest first so that a name never
// shadows a longer one sharing its prefix (for/foreach, can/canany).
func alternation(names []string) string {
	sorted := append([]string(nil), names...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && len(sorted[j]) > len(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	quoted := make([]string, len(sorted))
	for i, n := range sorted {
		quoted[i] = regexp.QuoteMeta(n)
	}
	return strings.Join(quoted, "|")
}

// FindDirectives returns every encodable directive in content, in source order.
// Directives whose parentheses never balance are skipped.
func FindDirectives(content string) ([]Directive, error) {
	const errCtx = "find directives"

	runes := []rune(content)
	var found []Directive

	m, err := directiveRegex.FindRunesMatch(runes)
	for {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", errCtx, err)
		}
		if m == nil {
			return found, nil
		}

		openParen := m.Index + m.Length - 1
		closeParen := matchParen(runes, openParen)
		next := openParen + 1
		if closeParen >= 0 {
			found = append(found, Directive{
				Name:  m.GroupByNumber(1).String(),
				Args:  string(runes[openParen+1 : closeParen]),
				Raw:   string(runes[m.Index : closeParen+1]),
				Start: m.Index,
				End:   closeParen + 1,
			})
			next = closeParen + 1
		}
		m, err = directiveRegex.FindRunesMatchStartingAt(runes, next)
	}
}

// matchParen returns the index of the ')' closing the '(' at open, or -1. Parentheses
// inside single or double quoted strings are ignored. Every delimiter is ASCII, so a
// byte slice of UTF-8 text scans as safely as a rune slice.
func matchParen[T rune | byte](s []T, open int) int {
	depth := 0
	var quote T
	for i := open; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"':
			quote = c
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// EncodeDirective renders a directive as a standalone PHP statement.
func EncodeDirective(name, args string) string {
	return "<?php " + name + "(" + args + ") ?>"
}

// EncodeDirectives rewrites every `@name(args)` into `<?php name(args) ?>`. Whitespace
// between the name and '(' is not kept, so `@if ($x)` round-trips as `@if($x)`.
func EncodeDirectives(content string) (string, error) {
	return replaceDirectives(content, func(d Directive) (string, error) {
		return EncodeDirective(d.Name, d.Args), nil
	})
}

// DecodeDirectives turns encoded statements back into `@name(args)`. The statement
// terminator and any whitespace the formatter added around the name and arguments are
// dropped.
func DecodeDirectives(content string) string {
	return encodedDirectiveRegex.ReplaceAllStringFunc(content, func(m string) string {
		parts := encodedDirectiveRegex.FindStringSubmatch(m)
		return "@" + strings.TrimSpace(parts[1]) + "(" + strings.TrimSpace(parts[2]) + ")"
	})
}

// FormatDirectives formats the arguments of every encodable directive. Each occurrence
// is encoded on its own, passed to format, and decoded back in place. The first error
// returned by format aborts the whole operation and is returned as is.
//
// When the formatter output cannot be decoded the occurrence is left as it was.
func FormatDirectives(ctx context.Context, content string, format FormatFunc) (string, error) {
	return replaceDirectives(content, func(d Directive) (string, error) {
		out, err := format(ctx, EncodeDirective(d.Name, d.Args))
		if err != nil {
			return "", err
		}
		out = strings.TrimSuffix(strings.TrimSuffix(out, "\n"), "\r")
		if !encodedDirectiveRegex.MatchString(out) {
			return d.Raw, nil
		}
		return DecodeDirectives(out), nil
	})
}

func replaceDirectives(content string, replace func(Directive) (string, error)) (string, error) {
	directives, err := FindDirectives(content)
	if err != nil {
		return "", err
	}
	if len(directives) == 0 {
		return content, nil
	}

	runes := []rune(content)
	var b strings.Builder
	b.Grow(len(content))
	last := 0
	for _, d := range directives {
		repl, err := replace(d)
		if err != nil {
			return "", err
		}
		b.WriteString(string(runes[last:d.Start]))
		b.WriteString(repl)
		last = d.End
	}
	b.WriteString(string(runes[last:]))
	return b.String(), nil
}
