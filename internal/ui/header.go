package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is the banner printed before a script run: what is being run,
// against which device, with which banks.
type Header struct {
	Title   string   // e.g., "Run script"
	Command string   // e.g., "whallera run-script 1 2 3 4 5"
	Params  []Detail // e.g., Interface, Script bank
	Width   int
}

// NewHeader creates a header sized to the terminal
func NewHeader(title, command string, params ...Detail) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth overrides the detected terminal width
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header as a string
func (h *Header) Render() string {
	width := clampWidth(h.Width)

	parts := []string{
		HeaderTitleStyle.Render(strings.ToUpper(h.Title)),
		HeaderCommandStyle.Render("$ " + h.Command),
	}
	if len(h.Params) > 0 {
		parts = append(parts,
			RenderHorizontalDivider(max(width-6, 10), "─"),
			detailTable(h.Params, HeaderParamKeyStyle, HeaderParamValueStyle),
		)
	}

	return boxStyle(PrimaryColor, width).
		Padding(0).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}

// detailTable lays details out as two aligned columns, one row per detail
func detailTable(details []Detail, keyStyle, valueStyle lipgloss.Style) string {
	keyWidth := keyStyle.GetWidth()
	for _, d := range details {
		keyWidth = max(keyWidth, lipgloss.Width(d.Key+":")+keyStyle.GetHorizontalPadding())
	}
	keyStyle = keyStyle.Width(keyWidth)

	rows := make([]string, 0, len(details))
	for _, d := range details {
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top,
			keyStyle.Render(d.Key+":"),
			" ",
			valueStyle.Render(d.Value),
		))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func clampWidth(w int) int {
	if w < MinTerminalWidth {
		return MinTerminalWidth
	}
	if w > MaxContentWidth {
		return MaxContentWidth
	}
	return w
}
