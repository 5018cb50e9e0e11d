package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/beadsync/pkg/pulse"
	"github.com/vanderheijden86/beadsync/pkg/reconcile"
)

const (
	minColumnWidth = 18
	defaultWidth   = 120
	// border plus horizontal padding of a column box
	columnChrome = 4
)

// pulseLevel is how strongly a card is highlighted.
type pulseLevel int

const (
	pulseNone pulseLevel = iota
	pulseFaded
	pulseStrong
)

// boardView is everything needed to draw one board.
type boardView struct {
	snapshot   *reconcile.Snapshot
	theme      Theme
	width      int
	height     int // 0 means unlimited rows
	focused    int // -1 when nothing is focused
	selectedID string
	now        time.Time
	pulse      func(id string) (pulse.Fields, pulseLevel)
}

// RenderSnapshot draws a snapshot without selection or pulses. It backs the
// one-shot text output.
func RenderSnapshot(s *reconcile.Snapshot, theme Theme, width int) string {
	return boardView{snapshot: s, theme: theme, width: width, focused: -1, now: time.Now()}.render()
}

func (v boardView) columnWidth() int {
	n := len(v.snapshot.Columns)
	width := v.width
	if width <= 0 {
		width = defaultWidth
	}
	w := width/n - columnChrome
	if w < minColumnWidth {
		w = minColumnWidth
	}
	return w
}

func (v boardView) render() string {
	if v.snapshot.IsEmpty() || len(v.snapshot.Columns) == 0 {
		return v.theme.Muted.Render("No issues")
	}
	w := v.columnWidth()
	boxes := make([]string, 0, len(v.snapshot.Columns))
	for i, col := range v.snapshot.Columns {
		style := v.theme.Column
		if i == v.focused {
			style = v.theme.ColumnFocused
		}
		boxes = append(boxes, style.Width(w+2).Render(v.renderColumn(col, w, i == v.focused)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, boxes...)
}

func (v boardView) renderColumn(col reconcile.Column, width int, focused bool) string {
	var b strings.Builder
	header := v.theme.Header
	if len(col.Cards) > 0 {
		header = header.Foreground(StatusColor(col.Cards[0].Issue.Status))
	}
	b.WriteString(header.Render(padRight(fmt.Sprintf("%s (%d)", col.Label, len(col.Cards)), width)))
	b.WriteByte('\n')
	b.WriteString(v.theme.HeaderStats.Render(padRight(v.statsLine(col.Stats()), width)))

	cards := col.Cards
	start := 0
	if limit := v.cardLimit(); limit > 0 && len(cards) > limit {
		if focused {
			if sel := indexOfCard(cards, v.selectedID); sel >= limit {
				start = sel - limit + 1
			}
		}
		cards = cards[start : start+limit]
	}
	for _, card := range cards {
		b.WriteByte('\n')
		b.WriteString(v.renderCard(card, width, focused && card.Issue.ID == v.selectedID))
	}
	if len(col.Cards) == 0 {
		b.WriteByte('\n')
		b.WriteString(v.theme.Muted.Render(padRight("(empty)", width)))
	}
	return b.String()
}

func (v boardView) cardLimit() int {
	if v.height <= 0 {
		return 0
	}
	// header, stats, borders and the status bar
	limit := v.height - 6
	if limit < 1 {
		limit = 1
	}
	return limit
}

func (v boardView) statsLine(stats reconcile.ColumnStats) string {
	parts := make([]string, 0, 3)
	if stats.P0Count > 0 {
		parts = append(parts, fmt.Sprintf("P0:%d", stats.P0Count))
	}
	if stats.P1Count > 0 {
		parts = append(parts, fmt.Sprintf("P1:%d", stats.P1Count))
	}
	if t, ok := parseTimestamp(stats.Oldest); ok {
		parts = append(parts, "oldest "+formatOldestAge(v.now.Sub(t)))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

// renderCard draws one card line. Pulsing fields are highlighted per
// segment; selection overrides pulses.
func (v boardView) renderCard(card *reconcile.Card, width int, selected bool) string {
	issue := card.Issue
	glyph := card.Icon.Glyph()
	prio := card.PriorityLabel
	assignee := ""
	if issue.Assignee != "" {
		assignee = " @" + issue.Assignee
	}

	fixed := runewidth.StringWidth(glyph) + 1 + runewidth.StringWidth(issue.ID) + 1 + runewidth.StringWidth(prio) + 1
	titleWidth := width - fixed - runewidth.StringWidth(assignee)
	if titleWidth < 4 {
		assignee = ""
		titleWidth = width - fixed
	}
	title := truncateRunesHelper(issue.Title, titleWidth, "…")

	if selected {
		line := fmt.Sprintf("%s %s %s %s%s", glyph, issue.ID, prio, title, assignee)
		return v.theme.CardSelected.Render(padRight(line, width))
	}

	var fields pulse.Fields
	level := pulseNone
	if v.pulse != nil {
		fields, level = v.pulse(issue.ID)
	}
	hl := v.theme.PulseStrong
	if level == pulseFaded {
		hl = v.theme.PulseFaded
	}
	seg := func(s string, f pulse.Field, base lipgloss.Style) string {
		if level != pulseNone && fields.Has(f) {
			return hl.Render(s)
		}
		return base.Render(s)
	}

	base := v.theme.Card
	idStyle := v.theme.Muted
	glyphStyle := base.Foreground(StatusColor(issue.Status))
	prioStyle := base.Foreground(PriorityColor(issue.Priority))

	var b strings.Builder
	if level != pulseNone && (fields.Has(pulse.FieldStatus) || fields.Has(pulse.FieldColumn)) {
		b.WriteString(hl.Render(glyph))
	} else {
		b.WriteString(glyphStyle.Render(glyph))
	}
	b.WriteByte(' ')
	if level != pulseNone && (fields.Has(pulse.FieldLabels) || fields.Has(pulse.FieldUpdated)) {
		b.WriteString(hl.Render(issue.ID))
	} else {
		b.WriteString(idStyle.Render(issue.ID))
	}
	b.WriteByte(' ')
	b.WriteString(seg(prio, pulse.FieldPriority, prioStyle))
	b.WriteByte(' ')
	b.WriteString(seg(title, pulse.FieldTitle, base))
	if assignee != "" {
		b.WriteString(seg(assignee, pulse.FieldAssignee, v.theme.Muted))
	}

	line := b.String()
	if pad := width - lipgloss.Width(line); pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	return line
}

func indexOfCard(cards []*reconcile.Card, id string) int {
	for i, c := range cards {
		if c.Issue.ID == id {
			return i
		}
	}
	return -1
}
