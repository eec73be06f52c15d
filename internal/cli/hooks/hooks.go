package hooks

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stackvity/blade-formatter/pkg/formatter"
)

// FileDiscoveredMsg signals that the walker found a file.
type FileDiscoveredMsg struct{ Path string }

// FileStatusUpdateMsg signals a change in a file's processing status.
type FileStatusUpdateMsg struct {
	Path     string
	Status   formatter.Status
	Message  string
	Duration time.Duration
}

// RunCompleteMsg signals the end of the run.
type RunCompleteMsg struct{ Report formatter.Report }

// TUIProgram is the part of tea.Program the hooks need.
type TUIProgram interface {
	Send(msg tea.Msg)
}

// NoOpTUIProgram discards every message.
type NoOpTUIProgram struct{}

func (n *NoOpTUIProgram) Send(msg tea.Msg) {}

// Legend marks, one per finished file.
const (
	MarkFixed     = "F"
	MarkError     = "E"
	MarkUnchanged = "."
)

// CLIHooks bridges engine events to the terminal: TUI messages, verbose logging, or a
// one-character-per-file progress legend.
type CLIHooks struct {
	logger         *slog.Logger
	tuiEnabled     bool
	verboseEnabled bool
	tuiProgram     TUIProgram

	mu     sync.Mutex // guards legend writes
	legend io.Writer
	styles legendStyles
	marks  int
}

type legendStyles struct {
	fixed     lipgloss.Style
	err       lipgloss.Style
	unchanged lipgloss.Style
	label     lipgloss.Style
}

func newLegendStyles(w io.Writer) legendStyles {
	r := lipgloss.NewRenderer(w)
	return legendStyles{
		fixed:     r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		err:       r.NewStyle().Bold(true).Foreground(lipgloss.Color("1")),
		unchanged: r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		label:     r.NewStyle().Bold(true),
	}
}

// NewCLIHooks creates the hooks. legend receives the F/E/. marks when neither the TUI
// nor verbose logging is active; pass nil to disable it.
func NewCLIHooks(logger *slog.Logger, tuiEnabled, verboseEnabled bool, tuiProg TUIProgram, legend io.Writer) *CLIHooks {
	if tuiProg == nil {
		tuiProg = &NoOpTUIProgram{}
	}
	h := &CLIHooks{
		logger:         logger.With(slog.String("component", "hooks")),
		tuiEnabled:     tuiEnabled,
		verboseEnabled: verboseEnabled,
		tuiProgram:     tuiProg,
	}
	if legend != nil && !tuiEnabled && !verboseEnabled {
		h.legend = legend
		h.styles = newLegendStyles(legend)
	}
	return h
}

func (h *CLIHooks) OnFileDiscovered(path string) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(FileDiscoveredMsg{Path: path})
	} else if h.verboseEnabled {
		h.logger.Debug("File discovered", "path", path)
	}
	return nil
}

// OnFileStatusUpdate is called concurrently by the workers.
func (h *CLIHooks) OnFileStatusUpdate(path string, status formatter.Status, message string, duration time.Duration) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(FileStatusUpdateMsg{
			Path:     path,
			Status:   status,
			Message:  message,
			Duration: duration,
		})
		return nil
	}

	if h.verboseEnabled {
		level := slog.LevelDebug
		msg := "File status updated"
		attrs := []any{slog.String("path", path), slog.String("status", string(status))}
		if duration > 0 {
			attrs = append(attrs, slog.Duration("duration", duration))
		}
		if message != "" {
			key := "message"
			if status == formatter.StatusFailed {
				key = "error"
			}
			attrs = append(attrs, slog.String(key, message))
		}
		switch status {
		case formatter.StatusFormatted, formatter.StatusUnchanged, formatter.StatusCached, formatter.StatusSkipped:
			level = slog.LevelInfo
		case formatter.StatusFailed:
			level = slog.LevelError
			msg = "File formatting failed"
		}
		h.logger.Log(context.Background(), level, msg, attrs...)
		return nil
	}

	if status == formatter.StatusFailed {
		h.logger.Error("File formatting failed", "path", path, "error", message)
	}
	h.writeMark(status)
	return nil
}

func (h *CLIHooks) writeMark(status formatter.Status) {
	if h.legend == nil {
		return
	}
	var mark string
	switch status {
	case formatter.StatusFormatted:
		mark = h.styles.fixed.Render(MarkFixed)
	case formatter.StatusFailed:
		mark = h.styles.err.Render(MarkError)
	case formatter.StatusUnchanged, formatter.StatusCached:
		mark = MarkUnchanged
	default:
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	_, _ = io.WriteString(h.legend, mark)
	h.marks++
}

// OnRunComplete forwards the report to the TUI, or closes the mark line with the legend.
func (h *CLIHooks) OnRunComplete(report formatter.Report) error {
	if h.tuiEnabled {
		h.tuiProgram.Send(RunCompleteMsg{Report: report})
		return nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.legend != nil && h.marks > 0 {
		_, _ = io.WriteString(h.legend, h.renderLegend())
	}
	return nil
}

func (h *CLIHooks) renderLegend() string {
	return "\n\n" +
		h.styles.fixed.Render("Fixed: "+MarkFixed) + "\n" +
		h.styles.err.Render("Errors: "+MarkError) + "\n" +
		h.styles.label.Render("Not Changed: ") + h.styles.unchanged.Render(MarkUnchanged) + "\n"
}
