package sink

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/wordwrap"

	"dronevis/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// frameMsg carries a frame and the wall time it was received.
type frameMsg struct {
	frame telemetry.Frame
	at    time.Time
}

// logMsg carries a line for the violation log.
type logMsg struct{ line string }

const (
	maxLogLines     = 500
	highAltitudeAGL = 100.0
)

// TUIWriter renders frames as a live drone table using bubbletea.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. overview
// may be nil.
func NewTUIWriter(overview *Overview) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(overview), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		// quitting the UI stops the whole process, like Ctrl-C would
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// WriteFrame implements FrameWriter.
func (w *TUIWriter) WriteFrame(f telemetry.Frame) error {
	w.program.Send(frameMsg{frame: f, at: time.Now()})
	return nil
}

// WriteViolation implements ViolationWriter.
func (w *TUIWriter) WriteViolation(v ViolationRow) error {
	line := fmt.Sprintf("%s[t=%.1fs]%s %sVIOLATION%s drone=%s agl=%.1f ceiling=%.1f margin=%.1f",
		colorGray, v.Time, colorReset, colorRed, colorReset, v.DroneID, v.AltAGL, v.CeilingAGL, v.Margin)
	w.program.Send(logMsg{line: line})
	return nil
}

// Close shuts down the TUI program and waits for cleanup.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type droneRow struct {
	state    telemetry.DroneState
	lastSeen time.Time
}

type tuiModel struct {
	overview   *Overview
	table      table.Model
	vp         viewport.Model
	drones     map[string]droneRow
	frameTime  float64
	frames     int
	logs       []string
	wrap       bool
	autoscroll bool
	help       bool
	width      int
	height     int
	now        func() time.Time
}

func newTUIModel(overview *Overview) tuiModel {
	cols := []table.Column{
		{Title: "Drone", Width: 14},
		{Title: "Lat", Width: 11},
		{Title: "Lon", Width: 11},
		{Title: "AGL", Width: 7},
		{Title: "MSL", Width: 7},
		{Title: "Hdg", Width: 5},
		{Title: "Spd", Width: 6},
		{Title: "Batt", Width: 5},
		{Title: "Health", Width: 8},
		{Title: "Seen", Width: 14},
	}
	return tuiModel{
		overview:   overview,
		table:      table.New(table.WithColumns(cols), table.WithHeight(1)),
		vp:         viewport.New(0, 0),
		drones:     make(map[string]droneRow),
		autoscroll: true,
		now:        time.Now,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.layout()
		m.refreshLog()
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshLog()
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
		case "?", "h":
			m.help = true
		default:
			if !m.autoscroll {
				var cmd tea.Cmd
				m.vp, cmd = m.vp.Update(msg)
				return m, cmd
			}
		}
	case frameMsg:
		m.frameTime = msg.frame.Time
		m.frames++
		for _, d := range msg.frame.Drones {
			m.drones[d.ID] = droneRow{state: d, lastSeen: msg.at}
		}
		m.refreshTable()
		m.layout()
	case logMsg:
		m.logs = append(m.logs, msg.line)
		if len(m.logs) > maxLogLines {
			m.logs = m.logs[len(m.logs)-maxLogLines:]
		}
		m.refreshLog()
	}
	return m, nil
}

func (m *tuiModel) refreshTable() {
	ids := make([]string, 0, len(m.drones))
	for id := range m.drones {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	now := m.now()
	rows := make([]table.Row, 0, len(ids))
	for _, id := range ids {
		r := m.drones[id]
		d := r.state
		batt := "-"
		if d.Payload != nil {
			batt = fmt.Sprintf("%.0f%%", d.Payload.Battery*100)
		}
		rows = append(rows, table.Row{
			d.ID,
			fmt.Sprintf("%.6f", d.Lat),
			fmt.Sprintf("%.6f", d.Lon),
			fmt.Sprintf("%.1f", d.AltAGL),
			fmt.Sprintf("%.1f", d.AltMSL),
			altitudeIcon(d.Heading, d.AltAGL),
			fmt.Sprintf("%.1f", d.Speed),
			batt,
			string(d.Health),
			humanize.RelTime(r.lastSeen, now, "ago", "from now"),
		})
	}
	m.table.SetRows(rows)
}

func (m *tuiModel) layout() {
	tableHeight := len(m.drones) + 1
	maxTable := m.height / 2
	if maxTable < 2 {
		maxTable = 2
	}
	if tableHeight > maxTable {
		tableHeight = maxTable
	}
	m.table.SetHeight(tableHeight)
	h := m.height - lipgloss.Height(m.renderHeader()) - tableHeight - lipgloss.Height(m.renderBottom()) - 4
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m *tuiModel) refreshLog() {
	content := "no violations"
	if len(m.logs) > 0 {
		lines := make([]string, 0, len(m.logs))
		for _, l := range m.logs {
			if m.wrap && m.vp.Width > 0 {
				l = wordwrap.String(l, m.vp.Width)
			}
			lines = append(lines, l)
		}
		content = strings.Join(lines, "\n")
	}
	m.vp.SetContent(content)
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.width)
	return strings.Join([]string{
		m.renderHeader(),
		divider,
		m.table.View(),
		divider,
		"Violations:",
		m.vp.View(),
		divider,
		m.renderBottom(),
	}, "\n")
}

func (m tuiModel) renderHeader() string {
	title := lipgloss.NewStyle().Bold(true).Render("dronevis replay")
	if m.overview == nil {
		return title
	}
	info := fmt.Sprintf("%s  origin %.6f, %.6f  duration %.1fs  corridors %d",
		m.overview.Scenario, m.overview.Origin.Lat, m.overview.Origin.Lon,
		m.overview.Duration, m.overview.Corridors)
	if m.wrap && m.width > 0 {
		info = wordwrap.String(info, m.width)
	}
	return title + "\n" + info
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderBottom() string {
	state := fmt.Sprintf("%sFRAME%s %st=%.1fs%s %sframes=%d%s %sdrones=%d%s",
		colorBlue, colorReset,
		colorYellow, m.frameTime, colorReset,
		colorGreen, m.frames, colorReset,
		colorMagenta, len(m.drones), colorReset)
	return fmt.Sprintf("%s | Wrap %s | Scroll %s | Help %s", state, indicator(m.wrap), indicator(m.autoscroll), indicator(m.help))
}

func (m tuiModel) renderHelp() string {
	return strings.Join([]string{
		"Key Bindings:",
		" q  quit",
		" w  toggle wrap",
		" s  toggle auto-scroll",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}, "\n")
}

func headingIcon(h float64) string {
	switch {
	case h >= 45 && h < 135:
		return ">"
	case h >= 135 && h < 225:
		return "v"
	case h >= 225 && h < 315:
		return "<"
	default:
		return "^"
	}
}

func altitudeIcon(h, alt float64) string {
	icon := headingIcon(h)
	if alt >= highAltitudeAGL {
		switch icon {
		case "^":
			return "▲"
		case ">":
			return "▶"
		case "v":
			return "▼"
		case "<":
			return "◀"
		}
	}
	return icon
}
