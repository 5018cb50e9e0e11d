// Package ui renders session frames as an interactive kanban board.
package ui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/beadsync/pkg/metrics"
	"github.com/vanderheijden86/beadsync/pkg/model"
	"github.com/vanderheijden86/beadsync/pkg/ordering"
	"github.com/vanderheijden86/beadsync/pkg/pulse"
	"github.com/vanderheijden86/beadsync/pkg/reconcile"
	"github.com/vanderheijden86/beadsync/pkg/session"
)

// PulseDuration is how long a changed field stays highlighted. The first
// half renders strong, the second half faded.
const PulseDuration = 1500 * time.Millisecond

const pulseTickInterval = 100 * time.Millisecond

// FrameMsg carries a new frame from the session.
type FrameMsg struct {
	Frame *session.Frame
}

// FramesClosedMsg is sent once the session stops producing frames.
type FramesClosedMsg struct{}

type pulseTickMsg time.Time

// Submitter accepts events originating from the board.
type Submitter interface {
	TrySubmit(ev session.Event) error
}

// WaitForFrameCmd blocks until the next frame arrives.
func WaitForFrameCmd(frames <-chan *session.Frame) tea.Cmd {
	return func() tea.Msg {
		if frames == nil {
			return nil
		}
		f, ok := <-frames
		if !ok {
			return FramesClosedMsg{}
		}
		return FrameMsg{Frame: f}
	}
}

type pulseMark struct {
	fields pulse.Fields
	at     time.Time
}

// Model is the board's bubbletea model.
type Model struct {
	frames <-chan *session.Frame
	submit Submitter
	theme  Theme
	keys   KeyMap
	now    func() time.Time

	frame      *session.Frame
	focused    int
	selectedID string
	pulses     map[string]pulseMark
	ticking    bool

	width  int
	height int
	status string
}

// Option configures a Model.
type Option func(*Model)

// WithTheme overrides the default theme.
func WithTheme(t Theme) Option {
	return func(m *Model) { m.theme = t }
}

// WithKeyMap overrides the default bindings.
func WithKeyMap(k KeyMap) Option {
	return func(m *Model) { m.keys = k }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a board reading frames and sending user events to submit.
// submit may be nil for a read-only board.
func New(frames <-chan *session.Frame, submit Submitter, opts ...Option) Model {
	m := Model{
		frames: frames,
		submit: submit,
		theme:  DefaultTheme(nil),
		keys:   DefaultKeyMap(),
		now:    time.Now,
		pulses: make(map[string]pulseMark),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init starts waiting for frames.
func (m Model) Init() tea.Cmd {
	return WaitForFrameCmd(m.frames)
}

// Update handles frames, pulse ticks, resizes and keys.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case FrameMsg:
		m.applyFrame(msg.Frame)
		cmds := []tea.Cmd{WaitForFrameCmd(m.frames)}
		if len(m.pulses) > 0 && !m.ticking {
			m.ticking = true
			cmds = append(cmds, pulseTick())
		}
		return m, tea.Batch(cmds...)

	case FramesClosedMsg:
		return m, tea.Quit

	case pulseTickMsg:
		m.prunePulses()
		if len(m.pulses) == 0 {
			m.ticking = false
			return m, nil
		}
		return m, pulseTick()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func pulseTick() tea.Cmd {
	return tea.Tick(pulseTickInterval, func(t time.Time) tea.Msg { return pulseTickMsg(t) })
}

func (m *Model) applyFrame(f *session.Frame) {
	if f == nil {
		return
	}
	m.frame = f
	now := m.now()
	for id, fields := range f.Pulses {
		if !fields.Any() {
			continue
		}
		if prev, ok := m.pulses[id]; ok && now.Sub(prev.at) < PulseDuration {
			fields |= prev.fields
		}
		m.pulses[id] = pulseMark{fields: fields, at: now}
	}
	for id := range m.pulses {
		if f.Snapshot.Card(id) == nil {
			delete(m.pulses, id)
		}
	}
	if f.Err != nil {
		m.status = f.Err.Error()
	} else {
		m.status = ""
	}
	m.clampSelection()
}

func (m *Model) prunePulses() {
	now := m.now()
	for id, mark := range m.pulses {
		if now.Sub(mark.at) >= PulseDuration {
			delete(m.pulses, id)
		}
	}
}

func (m Model) pulseFor(id string) (pulse.Fields, pulseLevel) {
	mark, ok := m.pulses[id]
	if !ok {
		return 0, pulseNone
	}
	elapsed := m.now().Sub(mark.at)
	switch {
	case elapsed < PulseDuration/2:
		return mark.fields, pulseStrong
	case elapsed < PulseDuration:
		return mark.fields, pulseFaded
	default:
		return 0, pulseNone
	}
}

// clampSelection keeps the focus on a real column and the selection on a
// card, following the selected issue when it stays in the focused column.
func (m *Model) clampSelection() {
	snap := m.snapshot()
	if snap == nil || len(snap.Columns) == 0 {
		m.focused, m.selectedID = 0, ""
		return
	}
	if m.focused >= len(snap.Columns) {
		m.focused = len(snap.Columns) - 1
	}
	if m.focused < 0 {
		m.focused = 0
	}
	cards := snap.Columns[m.focused].Cards
	if len(cards) == 0 {
		m.selectedID = ""
		return
	}
	if indexOfCard(cards, m.selectedID) < 0 {
		m.selectedID = cards[0].Issue.ID
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Left):
		m.moveColumn(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveColumn(1)
	case key.Matches(msg, m.keys.Up):
		m.moveRow(-1)
	case key.Matches(msg, m.keys.Down):
		m.moveRow(1)
	case key.Matches(msg, m.keys.Top):
		m.moveRow(-1 << 20)
	case key.Matches(msg, m.keys.Bottom):
		m.moveRow(1 << 20)
	case key.Matches(msg, m.keys.Sort):
		m.send(session.SetPreset{Preset: nextPreset(m.Preset())})
	case key.Matches(msg, m.keys.Refresh):
		m.send(session.Refresh{})
	}
	return m, nil
}

func (m *Model) send(ev session.Event) {
	if m.submit == nil {
		return
	}
	if err := m.submit.TrySubmit(ev); err != nil {
		m.status = err.Error()
	}
}

func nextPreset(p ordering.Preset) ordering.Preset {
	presets := ordering.Presets()
	i := slices.Index(presets, p)
	return presets[(i+1)%len(presets)]
}

func (m *Model) moveColumn(delta int) {
	snap := m.snapshot()
	if snap == nil || len(snap.Columns) == 0 {
		return
	}
	row := m.selectedRow()
	m.focused = min(max(m.focused+delta, 0), len(snap.Columns)-1)
	cards := snap.Columns[m.focused].Cards
	if len(cards) == 0 {
		m.selectedID = ""
		return
	}
	m.selectedID = cards[min(max(row, 0), len(cards)-1)].Issue.ID
}

func (m *Model) moveRow(delta int) {
	snap := m.snapshot()
	if snap == nil || len(snap.Columns) == 0 {
		return
	}
	cards := snap.Columns[m.focused].Cards
	if len(cards) == 0 {
		return
	}
	row := min(max(m.selectedRow()+delta, 0), len(cards)-1)
	m.selectedID = cards[row].Issue.ID
}

func (m Model) selectedRow() int {
	snap := m.snapshot()
	if snap == nil || m.focused >= len(snap.Columns) {
		return 0
	}
	return max(indexOfCard(snap.Columns[m.focused].Cards, m.selectedID), 0)
}

func (m Model) snapshot() *reconcile.Snapshot {
	if m.frame == nil {
		return nil
	}
	return m.frame.Snapshot
}

// SelectedIssue returns the issue under the cursor, or nil.
func (m Model) SelectedIssue() *model.Issue {
	if c := m.snapshot().Card(m.selectedID); c != nil {
		return c.Issue
	}
	return nil
}

// FocusedColumn returns the key of the focused column.
func (m Model) FocusedColumn() string {
	snap := m.snapshot()
	if snap == nil || m.focused >= len(snap.Columns) {
		return ""
	}
	return snap.Columns[m.focused].Key
}

// Preset returns the order of the displayed snapshot.
func (m Model) Preset() ordering.Preset {
	if snap := m.snapshot(); snap != nil && snap.Preset != "" {
		return snap.Preset
	}
	return ordering.Default
}

// Pulsing reports the fields currently highlighted for id.
func (m Model) Pulsing(id string) pulse.Fields {
	fields, level := m.pulseFor(id)
	if level == pulseNone {
		return 0
	}
	return fields
}

// Status returns the message shown in the status bar.
func (m Model) Status() string {
	return m.status
}

// View renders the board and the status bar.
func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	if m.frame == nil {
		return m.theme.Muted.Render("Loading issues…")
	}
	board := boardView{
		snapshot:   m.frame.Snapshot,
		theme:      m.theme,
		width:      m.width,
		height:     m.height,
		focused:    m.focused,
		selectedID: m.selectedID,
		now:        m.now(),
		pulse:      m.pulseFor,
	}.render()
	return board + "\n" + m.statusBar()
}

func (m Model) statusBar() string {
	snap := m.frame.Snapshot
	left := fmt.Sprintf("%d issues · sort: %s · v%d", snap.Total, m.Preset(), m.frame.Version)
	if m.status != "" {
		return m.theme.StatusBar.Render(left+" · ") + m.theme.Error.Render(m.status)
	}
	help := make([]string, 0, len(m.keys.ShortHelp()))
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	return m.theme.StatusBar.Render(left + " · " + strings.Join(help, "  "))
}
