package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/whallera/whallera/internal/protocol"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Detail is one key/value line of a result box
type Detail struct {
	Key   string
	Value string
}

// Result represents a result box (success, failure, or warning)
type Result struct {
	Type            ResultType
	Title           string   // e.g., "Bank 3 written"
	Details         []Detail // Rendered in order
	Error           error    // Failure results only
	Troubleshooting []string // Failure results only
	Width           int

	// status is set by NewStatusResult and colors the Status detail
	status *protocol.Status
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details ...Detail) *Result {
	return &Result{
		Type:    ResultSuccess,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewFailureResult creates a failure result box
func NewFailureResult(title string, err error, troubleshooting []string) *Result {
	return &Result{
		Type:            ResultFailure,
		Title:           title,
		Error:           err,
		Troubleshooting: troubleshooting,
		Width:           GetTerminalWidth(),
	}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details ...Detail) *Result {
	return &Result{
		Type:    ResultWarning,
		Title:   title,
		Details: details,
		Width:   GetTerminalWidth(),
	}
}

// NewStatusResult picks the box type from a device status: OK is a success,
// WAIT a warning, anything else a failure carrying the status description.
func NewStatusResult(title string, status protocol.Status, details ...Detail) *Result {
	details = append([]Detail{{Key: "Status", Value: status.String()}}, details...)
	var r *Result
	switch {
	case status.OK():
		r = NewSuccessResult(title, details...)
	case status.IsTransient():
		r = NewWarningResult(title, details...)
	default:
		r = NewFailureResult(title, fmt.Errorf("%s", status.Description()), nil)
		r.Details = details
	}
	r.status = &status
	return r
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := clampWidth(r.Width)

	marker, label, color := SuccessMarker, "OK", SuccessColor
	switch r.Type {
	case ResultFailure:
		marker, label, color = FailureMarker, "FAILED", ErrorColor
	case ResultWarning:
		marker, label, color = WarningMarker, "WARNING", WarningColor
	}
	title := lipgloss.NewStyle().Foreground(color).Bold(true).
		Render(fmt.Sprintf("%s %s  %s", marker, label, r.Title))

	blocks := []string{title}
	if len(r.Details) > 0 {
		details := r.Details
		if r.status != nil {
			details = append([]Detail(nil), r.Details...)
			details[0].Value = StatusStyle(*r.status).Render(details[0].Value)
		}
		blocks = append(blocks, detailTable(details, ResultKeyStyle, ResultValueStyle))
	}
	if r.Error != nil {
		blocks = append(blocks, ErrorMessageStyle.Render("Error: "+r.Error.Error()))
	}
	if len(r.Troubleshooting) > 0 {
		blocks = append(blocks, r.renderTroubleshooting(width))
	}

	return boxStyle(color, width).Render(strings.Join(blocks, "\n\n"))
}

// renderTroubleshooting renders the hints as a bulleted inner box
func (r *Result) renderTroubleshooting(width int) string {
	lines := []string{TroubleshootingTitleStyle.Render("Troubleshooting:")}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, TroubleshootingItemStyle.Render("• "+tip))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(MutedColor).
		Width(max(width-10, 40)).
		Padding(0, 1).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}
