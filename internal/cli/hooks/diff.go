package hooks

import (
	"io"
	"strconv"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/valyala/fasttemplate"

	"github.com/stackvity/blade-formatter/pkg/formatter"
)

// DefaultDiffHeader is the header printed above each changed line. Tags: {path}, {line}.
const DefaultDiffHeader = "path: {path}:{line}"

// DiffPrinter is a formatter.DiffSink that prints each changed line as a header
// followed by the original line in red and the formatted line in green.
type DiffPrinter struct {
	mu      sync.Mutex
	w       io.Writer
	header  *fasttemplate.Template
	path    lipgloss.Style
	removed lipgloss.Style
	added   lipgloss.Style
}

// NewDiffPrinter returns a DiffPrinter writing to w. Colors are dropped when w is not a
// terminal. An empty header selects DefaultDiffHeader.
func NewDiffPrinter(w io.Writer, header string) (*DiffPrinter, error) {
	if header == "" {
		header = DefaultDiffHeader
	}
	tpl, err := fasttemplate.NewTemplate(header, "{", "}")
	if err != nil {
		return nil, err
	}
	r := lipgloss.NewRenderer(w)
	return &DiffPrinter{
		w:       w,
		header:  tpl,
		path:    r.NewStyle().Bold(true),
		removed: r.NewStyle().Foreground(lipgloss.Color("1")).TabWidth(lipgloss.NoTabConversion),
		added:   r.NewStyle().Foreground(lipgloss.Color("2")).TabWidth(lipgloss.NoTabConversion),
	}, nil
}

// WriteDiffs prints diffs as one uninterrupted block.
func (p *DiffPrinter) WriteDiffs(diffs []formatter.LineDiff) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, d := range diffs {
		head := p.header.ExecuteString(map[string]any{
			"path": p.path.Render(d.Path),
			"line": strconv.Itoa(d.Line),
		})
		block := head + "\n" +
			p.removed.Render("--"+d.Original) + "\n" +
			p.added.Render("++"+d.Formatted) + "\n"
		if _, err := io.WriteString(p.w, block); err != nil {
			return err
		}
	}
	return nil
}

var _ formatter.DiffSink = (*DiffPrinter)(nil)
