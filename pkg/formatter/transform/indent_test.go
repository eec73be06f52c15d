package transform_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/stackvity/blade-formatter/pkg/formatter/transform"
)

func TestUnindent(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		level   int
		opts    transform.IndentOptions
		want    string
	}{
		{
			name:    "eight spaces down one level",
			content: "        <p>hello</p>",
			level:   1,
			opts:    transform.IndentOptions{IndentSize: 4},
			want:    "    <p>hello</p>",
		},
		{
			name:    "underflow leaves line untouched",
			content: "  <p>hello</p>",
			level:   1,
			opts:    transform.IndentOptions{IndentSize: 4},
			want:    "  <p>hello</p>",
		},
		{
			name:    "exact unit removes all indentation",
			content: "    {{ $x }}",
			level:   1,
			opts:    transform.IndentOptions{IndentSize: 4},
			want:    "{{ $x }}",
		},
		{
			name:    "lines without word characters are skipped",
			content: "        \n        }}\n        foo",
			level:   1,
			opts:    transform.IndentOptions{IndentSize: 4},
			want:    "        \n        }}\n    foo",
		},
		{
			name:    "tabs are emitted when configured",
			content: "      foo",
			level:   1,
			opts:    transform.IndentOptions{UseTabs: true, IndentSize: 2},
			want:    "\t\t\t\tfoo",
		},
		{
			name:    "zero indent size falls back to default",
			content: "        foo",
			level:   1,
			opts:    transform.IndentOptions{},
			want:    "    foo",
		},
		{
			name:    "two levels",
			content: "          foo\n      bar",
			level:   2,
			opts:    transform.IndentOptions{IndentSize: 2},
			want:    "      foo\n  bar",
		},
		{
			name:    "level zero keeps width and rewrites indent char",
			content: "\t\tfoo",
			level:   0,
			opts:    transform.IndentOptions{IndentSize: 4},
			want:    "  foo",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, transform.Unindent(tc.content, tc.level, tc.opts))
		})
	}
}

func TestUnindent_IndentationLaw(t *testing.T) {
	lines := []string{
		"            deep",
		"        mid",
		"    shallow",
		"none",
		"   odd",
	}
	content := strings.Join(lines, "\n")

	for _, n := range []int{1, 2, 4} {
		for level := 1; level <= 3; level++ {
			got := strings.Split(transform.Unindent(content, level, transform.IndentOptions{IndentSize: n}), "\n")
			for i, line := range lines {
				before := len(transform.LeadingWhitespace(line))
				after := len(transform.LeadingWhitespace(got[i]))
				if before-n*level < 0 {
					assert.Equal(t, line, got[i], "n=%d level=%d line=%d", n, level, i)
					continue
				}
				assert.Equal(t, before-n*level, after, "n=%d level=%d line=%d", n, level, i)
				assert.Equal(t, strings.TrimLeft(line, " "), strings.TrimLeft(got[i], " "))
			}
		}
	}
}
