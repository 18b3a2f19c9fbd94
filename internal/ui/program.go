package ui

import (
	"fmt"
	"io"
	"os"
)

// Printer writes styled output for the CLI. Plain mode drops the boxes and
// prints "key: value" lines, for pipes and scripts.
type Printer struct {
	out   io.Writer
	width int
	plain bool
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer, plain bool) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
		plain: plain,
	}
}

// Plain reports whether styling is disabled
func (p *Printer) Plain() bool {
	return p.plain
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box. Plain mode prints nothing.
func (p *Printer) PrintHeader(h *Header) {
	if p.plain {
		return
	}
	p.Println(h.SetWidth(p.width).Render())
	p.Newline()
}

// PrintResult prints r as a box, or as plain lines
func (p *Printer) PrintResult(r *Result) {
	if p.plain {
		p.printPlain(r)
		return
	}
	p.Println(r.SetWidth(p.width).Render())
}

func (p *Printer) printPlain(r *Result) {
	for _, d := range r.Details {
		_, _ = fmt.Fprintf(p.out, "%s: %s\n", d.Key, d.Value)
	}
	if r.Error != nil {
		_, _ = fmt.Fprintf(p.out, "error: %v\n", r.Error)
	}
	for _, tip := range r.Troubleshooting {
		_, _ = fmt.Fprintf(p.out, "hint: %s\n", tip)
	}
}

// PrintError prints a failure box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.PrintResult(NewFailureResult(title, err, troubleshooting))
}
