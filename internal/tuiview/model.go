package tuiview

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rowcache/tablecache/internal/backcache"
	"github.com/rowcache/tablecache/internal/frontmodel"
	"github.com/rowcache/tablecache/internal/rowschema"
	"github.com/rowcache/tablecache/internal/windowsnapshot"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	rowStyle    = lipgloss.NewStyle()
	selStyle    = lipgloss.NewStyle().Reverse(true)
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	filterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Model is the bubbletea model for a frontmodel.Model: it renders the
// latest ViewWindowValues snapshot in a scrollable table and translates
// key presses into Set*/IngestDeltas-style calls on the front model.
// Notifications arrive asynchronously via the Adapter wired into the
// front model's Config.View; Update only ever touches front via
// method calls, never the other way around.
type Model struct {
	front   *frontmodel.Model
	adapter *Adapter
	schema  rowschema.Schema

	viewport viewport.Model
	spinner  spinner.Model

	snapshot windowsnapshot.ViewWindowValues
	cursor   int
	version  int64

	busy   bool
	err    error
	status string

	filtering   bool
	filterInput string
	sortColumn  int

	width, height int
	ready         bool
}

func New(front *frontmodel.Model, adapter *Adapter, schema rowschema.Schema) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Model{
		front:   front,
		adapter: adapter,
		schema:  schema,
		spinner: s,
		cursor:  -1,
	}
}

func (m *Model) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		vpHeight := msg.Height - 4
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, vpHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = vpHeight
		}
		m.renderBody()
		return m, nil

	case snapshotMsg:
		m.snapshot = msg.snapshot
		m.version = msg.snapshot.Version
		m.cursor = msg.snapshot.CurrentRow
		m.renderBody()
		return m, nil

	case busyMsg:
		m.busy = msg.busy
		return m, nil

	case terminalErrorMsg:
		m.err = msg.err
		return m, nil

	case queryCompletedMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("query %s failed: %v", msg.requestID, msg.err)
		} else {
			m.status = fmt.Sprintf("query %s returned %d rows", msg.requestID, len(msg.rows))
		}
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("export failed: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("exported to %s", msg.path)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.filtering {
		return m.handleFilterKey(msg)
	}

	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "up", "k":
		m.moveCursor(-1)
	case "down", "j":
		m.moveCursor(1)
	case "/":
		m.filtering = true
		m.filterInput = ""
	case "a":
		m.front.SetAutoScroll(true)
		m.status = "auto-scroll enabled"
	case "A":
		m.front.SetAutoScroll(false)
		m.status = "auto-scroll disabled"
	case "c":
		m.front.ClearTableAsync(false)
		m.status = "clearing table"
	case "s":
		m.sortColumn = (m.sortColumn + 1) % max1(len(m.schema.Fields))
		m.front.SetSort(&backcache.SortSpec{Column: m.sortColumn})
		m.status = fmt.Sprintf("sorting by %s", m.schema.Fields[m.sortColumn].Name)
	case "e":
		const path = "tablecache-export.csv"
		m.status = "exporting to " + path
		m.front.ExportAsync(path, nil, 0, nil, func() bool { return false }, func(err error) {
			m.adapter.Notify(exportDoneMsg{path: path, err: err})
		})
	}
	return m, nil
}

func (m *Model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.front.SetFilter(m.filterInput)
		m.status = fmt.Sprintf("filter set to %q", m.filterInput)
		m.filtering = false
	case tea.KeyEsc:
		m.filtering = false
	case tea.KeyBackspace:
		if len(m.filterInput) > 0 {
			m.filterInput = m.filterInput[:len(m.filterInput)-1]
		}
	case tea.KeyRunes:
		m.filterInput += string(msg.Runes)
	}
	return m, nil
}

func (m *Model) moveCursor(delta int) {
	next := m.cursor + delta
	if next < 0 {
		next = 0
	}
	if m.snapshot.RecordsCount > 0 && next >= m.snapshot.RecordsCount {
		next = m.snapshot.RecordsCount - 1
	}
	m.cursor = next
	window := ensureVisible(m.snapshot.Rows, next, m.viewport.Height)
	m.front.SetSelectionAndRowWindow(
		[]frontmodel.Range{{Top: next, Bottom: next}}, next, m.version,
		window, false,
	)
	m.renderBody()
}

func (m *Model) View() string {
	if !m.ready {
		return "initializing..."
	}
	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *Model) renderHeader() string {
	names := make([]string, len(m.schema.Fields))
	for i, f := range m.schema.Fields {
		names[i] = f.Name
	}
	return headerStyle.Render(strings.Join(names, " | "))
}

func (m *Model) renderFooter() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("terminal error: %v", m.err))
	}
	if m.filtering {
		return filterStyle.Render("filter> " + m.filterInput)
	}
	var spin string
	if m.busy {
		spin = m.spinner.View() + " "
	}
	return footerStyle.Render(fmt.Sprintf("%s%d rows | row %d | %s", spin, m.snapshot.RecordsCount, m.cursor, m.status))
}

func (m *Model) renderBody() {
	if !m.ready {
		return
	}
	var b strings.Builder
	for i := 0; i < m.snapshot.RecordsCount; i++ {
		row, ok := m.snapshot.GetRow(i)
		if !ok {
			b.WriteString(rowStyle.Render(fmt.Sprintf("row %d (not materialized)", i)))
			b.WriteString("\n")
			continue
		}
		line := renderRow(row)
		if i == m.cursor {
			line = selStyle.Render(line)
		} else {
			line = rowStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	m.viewport.SetContent(strings.TrimRight(b.String(), "\n"))
}

func renderRow(row rowschema.Row) string {
	cells := make([]string, len(row))
	for i, c := range row {
		cells[i] = c.String()
	}
	return strings.Join(cells, " | ")
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// ensureVisible returns a row window of viewportHeight rows centered
// so that row stays inside it, clamped to keep Top non-negative.
func ensureVisible(current frontmodel.Range, row int, viewportHeight int) frontmodel.Range {
	if viewportHeight <= 0 {
		viewportHeight = 1
	}
	if current.Contains(row) && current.IsValid() {
		return current
	}
	top := row - viewportHeight/2
	if top < 0 {
		top = 0
	}
	return frontmodel.Range{Top: top, Bottom: top + viewportHeight - 1}
}
