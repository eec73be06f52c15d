package formatter

import "regexp"

// LineDiff records one line that differs between a template and its formatted form.
type LineDiff struct {
	Path      string `json:"path" yaml:"path"`
	Line      int    `json:"line" yaml:"line"` // 1-based
	Original  string `json:"original" yaml:"original"`
	Formatted string `json:"formatted" yaml:"formatted"`
}

// DiffSink receives the diff records of a changed file. Implementations are called
// from several workers and must serialize their own output.
type DiffSink interface {
	WriteDiffs(diffs []LineDiff) error
}

var lineBreakRegex = regexp.MustCompile(`\r\n|\n|\r`)

// SplitLines splits s on any line ending.
func SplitLines(s string) []string {
	return lineBreakRegex.Split(s, -1)
}

// GenerateDiff compares original and formatted line by line. Lines that are empty in
// the original are not reported, and a formatted text that ends early compares as "".
func GenerateDiff(path string, original, formatted []string) []LineDiff {
	var diffs []LineDiff
	for i, line := range original {
		if line == "" {
			continue
		}
		var got string
		if i < len(formatted) {
			got = formatted[i]
		}
		if line == got {
			continue
		}
		diffs = append(diffs, LineDiff{
			Path:      path,
			Line:      i + 1,
			Original:  line,
			Formatted: got,
		})
	}
	return diffs
}
