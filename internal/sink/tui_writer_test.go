package sink

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

type fakeProgram struct{ msgs []tea.Msg }

func (f *fakeProgram) Send(msg tea.Msg) { f.msgs = append(f.msgs, msg) }

func TestTUIWriterMessages(t *testing.T) {
	p := &fakeProgram{}
	w := &TUIWriter{program: p}
	if err := w.WriteFrame(sampleFrame(1)); err != nil {
		t.Fatalf("write: %v", err)
	}
	fm, ok := p.msgs[0].(frameMsg)
	if !ok {
		t.Fatalf("expected frameMsg, got %T", p.msgs[0])
	}
	if fm.frame.Time != 1 || fm.at.IsZero() {
		t.Fatalf("unexpected frame message: %+v", fm)
	}
	if err := w.WriteViolation(ViolationRow{DroneID: "d1"}); err != nil {
		t.Fatalf("violation: %v", err)
	}
	lm, ok := p.msgs[1].(logMsg)
	if !ok {
		t.Fatalf("expected logMsg, got %T", p.msgs[1])
	}
	if !strings.Contains(lm.line, "drone=d1") {
		t.Fatalf("unexpected log line %q", lm.line)
	}
}

func TestTUIModelTracksDrones(t *testing.T) {
	m := newTUIModel(&Overview{Scenario: "benz"})
	now := time.Unix(100, 0)
	m.now = func() time.Time { return now }
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	m = mi.(tuiModel)
	mi, _ = m.Update(frameMsg{frame: sampleFrame(4), at: now.Add(-3 * time.Second)})
	m = mi.(tuiModel)

	if m.frames != 1 || m.frameTime != 4 {
		t.Fatalf("frame counters not updated: %d %v", m.frames, m.frameTime)
	}
	rows := m.table.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "d1" || rows[1][0] != "d2" {
		t.Fatalf("rows not sorted by id: %v", rows)
	}
	if rows[0][7] != "50%" || rows[1][7] != "-" {
		t.Fatalf("unexpected battery cells: %q %q", rows[0][7], rows[1][7])
	}
	if rows[0][9] != "3 seconds ago" {
		t.Fatalf("unexpected last seen: %q", rows[0][9])
	}
	if !strings.Contains(m.View(), "benz") {
		t.Fatalf("header missing scenario")
	}
}

func TestWrapToggle(t *testing.T) {
	m := newTUIModel(nil)
	mi, _ := m.Update(tea.WindowSizeMsg{Width: 20, Height: 20})
	m = mi.(tuiModel)
	mi, _ = m.Update(logMsg{line: "one two three four five six"})
	m = mi.(tuiModel)
	lines := strings.Split(m.vp.View(), "\n")
	if len(lines) < 2 || strings.TrimSpace(lines[1]) != "" {
		t.Fatalf("expected single line before wrap")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'w'}})
	m = mi.(tuiModel)
	if !m.wrap {
		t.Fatalf("wrap not toggled")
	}
	lines = strings.Split(m.vp.View(), "\n")
	if strings.TrimSpace(lines[1]) == "" {
		t.Fatalf("expected wrapped content on second line")
	}
}

func TestScrollToggleAndHelp(t *testing.T) {
	m := newTUIModel(nil)
	mi, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'s'}})
	m = mi.(tuiModel)
	if m.autoscroll {
		t.Fatalf("autoscroll not toggled off")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}})
	m = mi.(tuiModel)
	if !m.help || !strings.Contains(m.View(), "Key Bindings") {
		t.Fatalf("help view not shown")
	}
	mi, _ = m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = mi.(tuiModel)
	if m.help {
		t.Fatalf("help not dismissed")
	}
}

func TestAltitudeIcon(t *testing.T) {
	cases := []struct {
		h, alt float64
		want   string
	}{
		{0, 10, "^"},
		{90, 10, ">"},
		{180, 10, "v"},
		{270, 10, "<"},
		{0, 120, "▲"},
		{100, 120, "▶"},
	}
	for _, tc := range cases {
		if got := altitudeIcon(tc.h, tc.alt); got != tc.want {
			t.Fatalf("altitudeIcon(%v, %v) = %s, want %s", tc.h, tc.alt, got, tc.want)
		}
	}
}

func TestTUIModelBoundsLog(t *testing.T) {
	m := newTUIModel(nil)
	for i := 0; i < maxLogLines+10; i++ {
		mi, _ := m.Update(logMsg{line: "x"})
		m = mi.(tuiModel)
	}
	if len(m.logs) != maxLogLines {
		t.Fatalf("expected %d log lines, got %d", maxLogLines, len(m.logs))
	}
}
