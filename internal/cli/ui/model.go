package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stackvity/blade-formatter/internal/cli/hooks"
	"github.com/stackvity/blade-formatter/pkg/formatter"
)

const listHeightMargin = 4 // header, footer and their padding

// Phase messages shown in the header.
const (
	phaseInitializing = "Initializing..."
	phaseScanning     = "Scanning..."
	phaseFormatting   = "Formatting..."
	phaseComplete     = "Complete"
)

// Model is the progress view of a formatting run: one list row per template, a
// spinner while work is in flight and a running summary in the footer.
type Model struct {
	list    list.Model
	spinner spinner.Model
	version string

	width       int
	height      int
	initialized bool

	fileItems []listItem
	itemMap   map[string]int // path -> index into fileItems
	summary   Summary

	phaseMessage string
	fatalError   string
	quitting     bool
	done         bool
	// updateScheduled is set while an UpdateListMsg is pending.
	updateScheduled bool
}

type listItem struct {
	path     string
	status   formatter.Status
	message  string
	duration time.Duration
}

// Summary holds the counts displayed in the footer.
type Summary struct {
	TotalFilesScanned int
	FormattedCount    int
	UnchangedCount    int
	CachedCount       int
	SkippedCount      int
	ErrorCount        int
	StartTime         time.Time
}

// NewModel creates the initial model. version is shown in the header.
func NewModel(version string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(ColorStatusProcessing)

	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)
	delegate.ShowDescription = true
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(ColorSelectedFg).
		Background(ColorSelectedBg).
		Bold(true).
		Padding(0, 0, 0, 1)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(ColorSelectedDescFg).
		Background(ColorSelectedBg).
		Padding(0, 0, 0, 1)
	delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.
		Foreground(ColorNormalFg).Padding(0, 0, 0, 1)
	delegate.Styles.NormalDesc = delegate.Styles.NormalDesc.
		Foreground(ColorNormalDescFg).Padding(0, 0, 0, 1)

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowTitle(false)
	l.SetShowFilter(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.SetStatusBarItemName("template", "templates")

	return &Model{
		list:         l,
		spinner:      s,
		version:      version,
		summary:      Summary{StartTime: time.Now()},
		phaseMessage: phaseInitializing,
		itemMap:      make(map[string]int),
	}
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.list.SetSize(m.width, max(m.height-listHeightMargin, 1))
		m.initialized = true

	case tea.KeyMsg:
		if m.quitting {
			return m, nil
		}
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}
		var listCmd tea.Cmd
		m.list, listCmd = m.list.Update(msg)
		cmds = append(cmds, listCmd)

	case spinner.TickMsg:
		if m.quitting || m.done {
			return m, nil
		}
		var spinnerCmd tea.Cmd
		m.spinner, spinnerCmd = m.spinner.Update(msg)
		cmds = append(cmds, spinnerCmd)

	case hooks.FileDiscoveredMsg:
		if _, exists := m.itemMap[msg.Path]; !exists {
			m.addItem(listItem{path: msg.Path, status: formatter.StatusPending})
			cmds = append(cmds, m.scheduleListUpdate())
		}
		if m.phaseMessage == phaseInitializing {
			m.phaseMessage = phaseScanning
		}

	case hooks.FileStatusUpdateMsg:
		idx, ok := m.itemMap[msg.Path]
		if !ok {
			// Status without a discovery message, e.g. an explicit file argument.
			idx = m.addItem(listItem{path: msg.Path, status: formatter.StatusPending})
		}
		item := &m.fileItems[idx]
		if isFinalStatus(msg.Status) && !isFinalStatus(item.status) {
			m.incrementSummaryCount(msg.Status)
		}
		item.status = msg.Status
		item.message = msg.Message
		item.duration = msg.Duration
		cmds = append(cmds, m.scheduleListUpdate())

		if msg.Status == formatter.StatusProcessing && m.phaseMessage != phaseComplete {
			m.phaseMessage = phaseFormatting
		}

	case hooks.RunCompleteMsg:
		m.done = true
		m.phaseMessage = phaseComplete
		s := msg.Report.Summary
		m.summary.TotalFilesScanned = s.TotalFilesScanned
		m.summary.FormattedCount = s.FormattedCount
		m.summary.UnchangedCount = s.UnchangedCount
		m.summary.CachedCount = s.CachedCount
		m.summary.SkippedCount = s.SkippedCount
		m.summary.ErrorCount = s.ErrorCount
		if s.FatalErrorOccurred {
			m.fatalError = "Run halted due to fatal error."
			for _, e := range msg.Report.Errors {
				if e.IsFatal {
					m.fatalError = fmt.Sprintf("Fatal Error: %s (%s)", e.Error, e.Path)
					break
				}
			}
		}
		cmds = append(cmds, m.list.SetItems(m.listItems()), tea.Quit)

	case UpdateListMsg:
		m.updateScheduled = false
		cmds = append(cmds, m.list.SetItems(m.listItems()))
	}

	return m, tea.Batch(cmds...)
}

func (m *Model) View() string {
	if m.quitting {
		return "Exiting...\n"
	}
	if !m.initialized {
		return phaseInitializing
	}

	headerLeft := "Blade Formatter"
	if m.version != "" {
		headerLeft += " v" + m.version
	}
	headerRight := m.phaseMessage
	if m.phaseMessage != phaseComplete && m.phaseMessage != phaseInitializing {
		headerRight = m.spinner.View() + " " + m.phaseMessage
	}
	header := HeaderStyle.Width(m.width).Render(spread(m.width, headerLeft, headerRight))

	elapsed := time.Since(m.summary.StartTime).Round(time.Millisecond)
	summaryText := fmt.Sprintf(
		"Formatted: %d | Unchanged: %d | Cached: %d | Skipped: %d | Failed: %d | Total: %d | Elapsed: %s",
		m.summary.FormattedCount,
		m.summary.UnchangedCount,
		m.summary.CachedCount,
		m.summary.SkippedCount,
		m.summary.ErrorCount,
		m.summary.TotalFilesScanned,
		elapsed,
	)
	footer := FooterStyle.Width(m.width).Render(spread(m.width, summaryText, "q: quit"))

	errorView := ""
	if m.fatalError != "" {
		errorView = StatusStyleFailed.Render(m.fatalError) + "\n"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		m.list.View(),
		errorView,
		footer,
	)
}

// Summary returns the counts collected so far.
func (m *Model) Summary() Summary { return m.summary }

// spread places left and right at the edges of a line of the given width.
func spread(width int, left, right string) string {
	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 2 // style padding
	if gap < 1 {
		gap = 1
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m *Model) addItem(item listItem) int {
	m.fileItems = append(m.fileItems, item)
	idx := len(m.fileItems) - 1
	m.itemMap[item.path] = idx
	m.summary.TotalFilesScanned++
	return idx
}

func (m *Model) listItems() []list.Item {
	items := make([]list.Item, len(m.fileItems))
	for i, item := range m.fileItems {
		items[i] = item
	}
	return items
}

func isFinalStatus(status formatter.Status) bool {
	switch status {
	case formatter.StatusFormatted, formatter.StatusUnchanged, formatter.StatusCached,
		formatter.StatusSkipped, formatter.StatusFailed:
		return true
	}
	return false
}

func (m *Model) incrementSummaryCount(status formatter.Status) {
	switch status {
	case formatter.StatusFormatted:
		m.summary.FormattedCount++
	case formatter.StatusUnchanged:
		m.summary.UnchangedCount++
	case formatter.StatusCached:
		m.summary.CachedCount++
	case formatter.StatusSkipped:
		m.summary.SkippedCount++
	case formatter.StatusFailed:
		m.summary.ErrorCount++
	}
}

func (i listItem) FilterValue() string { return i.path }

func (i listItem) Title() string { return i.path }

// Description renders the status badge followed by the failure message, the skip
// reason or the time it took.
func (i listItem) Description() string {
	statusStyle := StatusStylePending
	statusIcon := " "
	switch i.status {
	case formatter.StatusFormatted:
		statusStyle, statusIcon = StatusStyleFormatted, hooks.MarkFixed
	case formatter.StatusUnchanged:
		statusStyle, statusIcon = StatusStyleUnchanged, hooks.MarkUnchanged
	case formatter.StatusCached:
		statusStyle, statusIcon = StatusStyleCached, "C"
	case formatter.StatusSkipped:
		statusStyle, statusIcon = StatusStyleSkipped, "S"
	case formatter.StatusFailed:
		statusStyle, statusIcon = StatusStyleFailed, hooks.MarkError
	case formatter.StatusProcessing:
		statusStyle, statusIcon = StatusStyleProcessing, "…"
	}

	details := ""
	switch i.status {
	case formatter.StatusFailed:
		details = i.message
	case formatter.StatusSkipped:
		// Skip messages look like "reason: details"; only the reason fits the row.
		reason, _, _ := strings.Cut(i.message, ":")
		details = strings.TrimSpace(reason)
	case formatter.StatusFormatted, formatter.StatusUnchanged, formatter.StatusCached:
		details = formatDuration(i.duration)
	}
	return strings.TrimRight(statusStyle.Render("["+statusIcon+"]")+" "+details, " ")
}

func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return ""
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// UpdateListMsg tells the model to copy its items into the list component.
type UpdateListMsg struct{}

const listUpdateInterval = 50 * time.Millisecond

// scheduleListUpdate coalesces bursts of status messages into one list refresh per
// interval.
func (m *Model) scheduleListUpdate() tea.Cmd {
	if m.updateScheduled {
		return nil
	}
	m.updateScheduled = true
	return tea.Tick(listUpdateInterval, func(time.Time) tea.Msg { return UpdateListMsg{} })
}
