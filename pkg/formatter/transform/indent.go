package transform

import (
	"regexp"
	"strings"
)

// DefaultIndentSize is the indent unit used when IndentOptions.IndentSize is not positive.
const DefaultIndentSize = 4

// IndentOptions configures how Unindent rewrites leading whitespace.
type IndentOptions struct {
	UseTabs    bool `mapstructure:"useTabs"`
	IndentSize int  `mapstructure:"indentSize"`
}

// size returns the effective indent unit.
func (o IndentOptions) size() int {
	if o.IndentSize <= 0 {
		return DefaultIndentSize
	}
	return o.IndentSize
}

func (o IndentOptions) char() string {
	if o.UseTabs {
		return "\t"
	}
	return " "
}

var wordCharRegex = regexp.MustCompile(`\w`)

// Unindent shifts every word-bearing line of content left by level indent units.
//
// The existing leading whitespace of each line is counted character by character
// (a tab counts as one). The new width is that count minus IndentSize*level. When the
// new width would be negative the line is returned untouched; the formatter indented
// it less than expected and there is nothing sensible to remove. Lines containing no
// word character (blank lines, lone punctuation) are never modified.
func Unindent(content string, level int, opts IndentOptions) string {
	lines := strings.Split(content, "\n")
	unit := opts.size()
	indentChar := opts.char()

	for i, line := range lines {
		if !wordCharRegex.MatchString(line) {
			continue
		}
		rest := strings.TrimLeft(line, " \t")
		target := (len(line) - len(rest)) - unit*level
		if target < 0 {
			continue
		}
		lines[i] = strings.Repeat(indentChar, target) + rest
	}
	return strings.Join(lines, "\n")
}

// LeadingWhitespace returns the run of spaces and tabs that starts line.
func LeadingWhitespace(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}
