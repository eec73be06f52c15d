package transform

import (
	"html"
	"regexp"
	"strings"
)

// BlockDirective pairs an opening directive with the directive that closes it.
type BlockDirective struct {
	Open  string
	Close string
}

// BlockDirectives are the directives whose bodies are preserved as container elements
// during the markup pass.
var BlockDirectives = []BlockDirective{
	{Open: "@foreach", Close: "@endforeach"},
	{Open: "@forelse", Close: "@endforelse"},
	{Open: "@for", Close: "@endfor"},
	{Open: "@while", Close: "@endwhile"},
	{Open: "@if", Close: "@endif"},
	{Open: "@unless", Close: "@endunless"},
	{Open: "@isset", Close: "@endisset"},
	{Open: "@switch", Close: "@endswitch"},
	{Open: "@can", Close: "@endcan"},
	{Open: "@push", Close: "@endpush"},
	{Open: "@prepend", Close: "@endprepend"},
	{Open: "@env", Close: "@endenv"},
}

const (
	containerTag      = "blade-directive"
	containerOpenTag  = "<" + containerTag
	containerCloseTag = "</" + containerTag + ">"
)

var containerOpenRegex = regexp.MustCompile(
	`^(?s)<blade-directive\s+start="([^"]*)"\s+end="([^"]*)"\s+exp="\^\^(.*?)\^\^"\s*>`,
)

type blockMatcher struct {
	block BlockDirective
	open  *regexp.Regexp
	close *regexp.Regexp
}

var blockMatchers = func() []blockMatcher {
	ms := make([]blockMatcher, len(BlockDirectives))
	for i, b := range BlockDirectives {
		ms[i] = blockMatcher{
			block: b,
			open:  regexp.MustCompile(`(?:^|[^@\w])(` + regexp.QuoteMeta(b.Open) + `)\s*\(`),
			close: regexp.MustCompile(regexp.QuoteMeta(b.Close) + `\b`),
		}
	}
	return ms
}()

// WrapBlocks replaces every block directive, its body and its closer with a
// <blade-directive> element. The element records the opener, the closer and the
// opener's arguments, so markup formatters treat the body as ordinary nested content.
//
// Bodies are matched non-greedily: the first closer after the arguments ends the block.
// A block nested inside another block of the same kind therefore produces undefined
// output.
func WrapBlocks(content string) string {
	for _, m := range blockMatchers {
		content = m.wrap(content)
	}
	return content
}

func (m blockMatcher) wrap(content string) string {
	var b strings.Builder
	raw := []byte(content)
	pos := 0
	for pos < len(content) {
		loc := m.open.FindStringSubmatchIndex(content[pos:])
		if loc == nil {
			break
		}
		start := pos + loc[2]
		openParen := pos + loc[1] - 1
		closeParen := matchParen(raw, openParen)
		if closeParen < 0 {
			b.WriteString(content[pos : openParen+1])
			pos = openParen + 1
			continue
		}
		closeLoc := m.close.FindStringIndex(content[closeParen+1:])
		if closeLoc == nil {
			b.WriteString(content[pos : closeParen+1])
			pos = closeParen + 1
			continue
		}

		args := content[openParen+1 : closeParen]
		body := content[closeParen+1 : closeParen+1+closeLoc[0]]
		end := closeParen + 1 + closeLoc[1]

		b.WriteString(content[pos:start])
		b.WriteString(containerOpenTag)
		b.WriteString(` start="` + m.block.Open + `" end="` + m.block.Close + `" exp="^^` + html.EscapeString(args) + `^^">`)
		b.WriteString(body)
		b.WriteString(containerCloseTag)
		pos = end
	}
	b.WriteString(content[pos:])
	return b.String()
}

// UnwrapBlocks turns <blade-directive> elements back into directive blocks. The body of
// each block is shifted left by one indent level, which undoes the extra level a markup
// formatter gives to the children of an element. Containers are resolved innermost
// first; a container with a malformed opening tag or no closing tag is left as is.
func UnwrapBlocks(content string, opts IndentOptions) string {
	limit := len(content)
	for {
		idx := strings.LastIndex(content[:limit], containerOpenTag)
		if idx < 0 {
			return content
		}

		open := containerOpenRegex.FindStringSubmatch(content[idx:])
		if open == nil {
			limit = idx
			continue
		}
		bodyStart := idx + len(open[0])
		bodyLen := strings.Index(content[bodyStart:], containerCloseTag)
		if bodyLen < 0 {
			limit = idx
			continue
		}
		bodyEnd := bodyStart + bodyLen

		rebuilt := open[1] + "(" + html.UnescapeString(open[3]) + ")" +
			Unindent(content[bodyStart:bodyEnd], 1, opts) +
			open[2]

		content = content[:idx] + rebuilt + content[bodyEnd+len(containerCloseTag):]
		limit = idx
	}
}
