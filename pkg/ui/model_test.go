package ui

import (
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/ordering"
	"github.com/vanderheijden86/beadsync/pkg/pulse"
	"github.com/vanderheijden86/beadsync/pkg/reconcile"
	"github.com/vanderheijden86/beadsync/pkg/session"
)

type recordingSubmitter struct {
	events []session.Event
	err    error
}

func (r *recordingSubmitter) TrySubmit(ev session.Event) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func plainTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(io.Discard))
}

func frameOf(t *testing.T, issues []model.Issue, pulses map[string]pulse.Fields) *session.Frame {
	t.Helper()
	r := reconcile.New(model.DefaultBoardConfig(), ordering.Default)
	if _, err := r.Ingest(reconcile.FullUpdate(issues)); err != nil {
		t.Fatal(err)
	}
	snap := r.Snapshot()
	return &session.Frame{Snapshot: snap, Version: snap.Version, Pulses: pulses}
}

func sampleIssues() []model.Issue {
	return []model.Issue{
		{ID: "a", Title: "First open", Status: model.StatusOpen, Priority: 1, CreatedAt: "2026-01-01T00:00:00Z"},
		{ID: "b", Title: "Second open", Status: model.StatusOpen, Priority: 2, CreatedAt: "2026-01-02T00:00:00Z"},
		{ID: "c", Title: "Working on it", Status: model.StatusInProgress, Priority: 0, Assignee: "sam", CreatedAt: "2026-01-03T00:00:00Z"},
	}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "right":
		return tea.KeyMsg{Type: tea.KeyRight}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestModel_ViewBeforeFirstFrame(t *testing.T) {
	m := New(nil, nil, WithTheme(plainTheme()))
	if !strings.Contains(m.View(), "Loading") {
		t.Errorf("View = %q, want loading message", m.View())
	}
}

func TestModel_RendersFrame(t *testing.T) {
	m := New(nil, nil, WithTheme(plainTheme()))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 200, Height: 30})
	m, _ = update(t, m, FrameMsg{Frame: frameOf(t, sampleIssues(), nil)})

	view := m.View()
	for _, want := range []string{"Open (2)", "In Progress (1)", "Closed (0)", "First open", "Working on it", "@sam", "3 issues", "sort: created-asc"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	lines := strings.Split(view, "\n")
	for _, line := range lines[:len(lines)-1] {
		if w := lipgloss.Width(line); w > 200 {
			t.Errorf("line width %d exceeds terminal: %q", w, line)
		}
	}
}

func TestModel_Navigation(t *testing.T) {
	m := New(nil, nil, WithTheme(plainTheme()))
	m, _ = update(t, m, FrameMsg{Frame: frameOf(t, sampleIssues(), nil)})

	if got := m.SelectedIssue(); got == nil || got.ID != "a" {
		t.Fatalf("initial selection = %v, want a", got)
	}
	m, _ = update(t, m, keyMsg("down"))
	if got := m.SelectedIssue(); got == nil || got.ID != "b" {
		t.Fatalf("after down = %v, want b", got)
	}
	m, _ = update(t, m, keyMsg("down"))
	if got := m.SelectedIssue(); got.ID != "b" {
		t.Errorf("selection moved past the last card: %s", got.ID)
	}
	m, _ = update(t, m, keyMsg("right"))
	if m.FocusedColumn() != "in_progress" {
		t.Fatalf("focused = %q, want in_progress", m.FocusedColumn())
	}
	if got := m.SelectedIssue(); got == nil || got.ID != "c" {
		t.Errorf("selection in second column = %v, want c", got)
	}
	m, _ = update(t, m, keyMsg("right"))
	m, _ = update(t, m, keyMsg("right"))
	m, _ = update(t, m, keyMsg("right"))
	if m.FocusedColumn() != "closed" {
		t.Errorf("focused = %q, want closed", m.FocusedColumn())
	}
	if m.SelectedIssue() != nil {
		t.Error("empty column should have no selection")
	}
}

func TestModel_SelectionFollowsIssue(t *testing.T) {
	m := New(nil, nil, WithTheme(plainTheme()))
	m, _ = update(t, m, FrameMsg{Frame: frameOf(t, sampleIssues(), nil)})
	m, _ = update(t, m, keyMsg("down"))

	issues := append(sampleIssues(), model.Issue{ID: "0", Title: "Older", Status: model.StatusOpen, CreatedAt: "2025-12-01T00:00:00Z"})
	m, _ = update(t, m, FrameMsg{Frame: frameOf(t, issues, nil)})
	if got := m.SelectedIssue(); got == nil || got.ID != "b" {
		t.Errorf("selection = %v, want b to stay selected", got)
	}

	// The selected card disappears: the cursor falls back to the first card.
	m, _ = update(t, m, FrameMsg{Frame: frameOf(t, issues[2:], nil)})
	if got := m.SelectedIssue(); got == nil || got.ID != "0" {
		t.Errorf("selection = %v, want 0", got)
	}
}

func TestModel_SortAndRefreshKeys(t *testing.T) {
	sub := &recordingSubmitter{}
	m := New(nil, sub, WithTheme(plainTheme()))
	m, _ = update(t, m, FrameMsg{Frame: frameOf(t, sampleIssues(), nil)})

	m, _ = update(t, m, keyMsg("s"))
	m, _ = update(t, m, keyMsg("r"))
	if len(sub.events) != 2 {
		t.Fatalf("submitted %d events, want 2", len(sub.events))
	}
	if sp, ok := sub.events[0].(session.SetPreset); !ok || sp.Preset != ordering.CreatedDesc {
		t.Errorf("first event = %#v, want SetPreset created-desc", sub.events[0])
	}
	if _, ok := sub.events[1].(session.Refresh); !ok {
		t.Errorf("second event = %#v, want Refresh", sub.events[1])
	}

	sub.err = session.ErrQueueFull
	m, _ = update(t, m, keyMsg("r"))
	if !strings.Contains(m.Status(), session.ErrQueueFull.Error()) {
		t.Errorf("status = %q, want queue full error", m.Status())
	}
}

func TestNextPresetWraps(t *testing.T) {
	presets := ordering.Presets()
	if got := nextPreset(presets[len(presets)-1]); got != presets[0] {
		t.Errorf("nextPreset(last) = %s, want %s", got, presets[0])
	}
	if got := nextPreset("bogus"); got != presets[0] {
		t.Errorf("nextPreset(unknown) = %s, want %s", got, presets[0])
	}
}

func TestModel_PulseFades(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := New(nil, nil, WithTheme(plainTheme()), WithClock(clock.Now))

	pulses := map[string]pulse.Fields{"a": pulse.Fields(0).With(pulse.FieldTitle)}
	m, cmd := update(t, m, FrameMsg{Frame: frameOf(t, sampleIssues(), pulses)})
	if cmd == nil || !m.ticking {
		t.Fatal("pulse should start the fade ticker")
	}
	if !m.Pulsing("a").Has(pulse.FieldTitle) {
		t.Fatal("title should pulse")
	}
	if _, level := m.pulseFor("a"); level != pulseStrong {
		t.Errorf("level = %d, want strong", level)
	}

	clock.Advance(PulseDuration * 3 / 4)
	if _, level := m.pulseFor("a"); level != pulseFaded {
		t.Errorf("level = %d, want faded", level)
	}
	m, cmd = update(t, m, pulseTickMsg(clock.Now()))
	if cmd == nil {
		t.Error("ticker stopped while a pulse is still visible")
	}

	clock.Advance(PulseDuration)
	m, cmd = update(t, m, pulseTickMsg(clock.Now()))
	if cmd != nil || m.ticking {
		t.Error("ticker should stop once every pulse expired")
	}
	if m.Pulsing("a").Any() {
		t.Error("pulse should have expired")
	}
}

func TestModel_PulseDroppedWithCard(t *testing.T) {
	m := New(nil, nil, WithTheme(plainTheme()))
	pulses := map[string]pulse.Fields{"c": pulse.Fields(0).With(pulse.FieldStatus)}
	m, _ = update(t, m, FrameMsg{Frame: frameOf(t, sampleIssues(), pulses)})
	m, _ = update(t, m, FrameMsg{Frame: frameOf(t, sampleIssues()[:2], nil)})
	if _, ok := m.pulses["c"]; ok {
		t.Error("pulse of removed card kept")
	}
}

func TestModel_FrameErrorShownInStatus(t *testing.T) {
	m := New(nil, nil, WithTheme(plainTheme()))
	f := frameOf(t, sampleIssues(), nil)
	f.Err = errors.New("issue 2: missing id")
	m, _ = update(t, m, FrameMsg{Frame: f})
	if !strings.Contains(m.View(), "missing id") {
		t.Error("frame error not rendered")
	}
	m, _ = update(t, m, FrameMsg{Frame: frameOf(t, sampleIssues(), nil)})
	if m.Status() != "" {
		t.Errorf("status = %q, want cleared", m.Status())
	}
}

func TestWaitForFrameCmd(t *testing.T) {
	frames := make(chan *session.Frame, 1)
	f := frameOf(t, sampleIssues(), nil)
	frames <- f
	if msg, ok := WaitForFrameCmd(frames)().(FrameMsg); !ok || msg.Frame != f {
		t.Errorf("got %#v, want FrameMsg", msg)
	}
	close(frames)
	if _, ok := WaitForFrameCmd(frames)().(FramesClosedMsg); !ok {
		t.Error("closed channel should yield FramesClosedMsg")
	}
	if WaitForFrameCmd(nil)() != nil {
		t.Error("nil channel should yield nil")
	}

	m := New(frames, nil)
	_, cmd := update(t, m, FramesClosedMsg{})
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("closed frames should quit the program")
	}
}

func TestModel_QuitKey(t *testing.T) {
	m := New(nil, nil)
	_, cmd := update(t, m, keyMsg("q"))
	if cmd == nil {
		t.Fatal("quit key returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("quit key should quit")
	}
}

func TestKeyMapHelp(t *testing.T) {
	km := DefaultKeyMap()
	if !key.Matches(keyMsg("l"), km.Right) || !key.Matches(keyMsg("h"), km.Left) {
		t.Error("vim bindings missing")
	}
	if len(km.ShortHelp()) == 0 {
		t.Error("short help empty")
	}
}

func TestRenderSnapshot(t *testing.T) {
	theme := plainTheme()
	if got := RenderSnapshot(nil, theme, 80); !strings.Contains(got, "No issues") {
		t.Errorf("empty render = %q", got)
	}
	out := RenderSnapshot(frameOf(t, sampleIssues(), nil).Snapshot, theme, 200)
	if !strings.Contains(out, "Second open") || !strings.Contains(out, "Critical") {
		t.Errorf("render missing cards:\n%s", out)
	}
}

func TestTruncateRunesHelper(t *testing.T) {
	tests := []struct {
		in    string
		width int
	}{
		{"short", 10},
		{"a fairly long issue title", 10},
		{"日本語のタイトルです", 7},
		{"x", 0},
	}
	for _, tt := range tests {
		got := truncateRunesHelper(tt.in, tt.width, "…")
		if w := runewidth.StringWidth(got); w > tt.width {
			t.Errorf("truncate(%q, %d) = %q (width %d)", tt.in, tt.width, got, w)
		}
	}
	if got := truncateRunesHelper("short", 10, "…"); got != "short" {
		t.Errorf("short string changed: %q", got)
	}
}

func TestFormatOldestAge(t *testing.T) {
	day := 24 * time.Hour
	cases := map[time.Duration]string{
		time.Hour: "<1d",
		3 * day:   "3d",
		14 * day:  "2w",
		90 * day:  "3mo",
	}
	for d, want := range cases {
		if got := formatOldestAge(d); got != want {
			t.Errorf("formatOldestAge(%v) = %q, want %q", d, got, want)
		}
	}
}
