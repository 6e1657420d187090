package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

var (
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgHiGreen).SprintFunc()
	red    = color.New(color.FgHiRed).SprintFunc()
	yellow = color.New(color.FgHiYellow).SprintFunc()
	blue   = color.New(color.FgHiBlue).SprintFunc()
)

// Printer is a Sink writing one symbol coded line per finding.
// Info findings are only written in verbose mode.
type Printer struct {
	w       io.Writer
	verbose bool
}

// NewPrinter returns a Printer writing to w.
func NewPrinter(w io.Writer, verbose bool) *Printer {
	return &Printer{w: w, verbose: verbose}
}

// Record prints f with its symbol. Info lines are only printed in verbose mode.
func (p *Printer) Record(f Finding) {
	var symbol string
	switch f.Severity {
	case Pass:
		symbol = green("✓")
	case Fail:
		symbol = red("✗")
	case Warn:
		symbol = yellow("⚠")
	case Info:
		if !p.verbose {
			return
		}
		symbol = blue("ℹ")
	}
	fmt.Fprintf(p.w, "%s %s\n", symbol, f.Message)
}

// Title prints a bold headline surrounded by empty lines.
func (p *Printer) Title(title string) {
	fmt.Fprintf(p.w, "\n%s\n\n", bold("=== "+title+" ==="))
}

// Section prints the header of a single test case.
func (p *Printer) Section(description, image string) {
	fmt.Fprintf(p.w, "\n%s\n", bold("Testing: "+description))
	fmt.Fprintf(p.w, "Image: %s\n", image)
	fmt.Fprintln(p.w, strings.Repeat("-", 60))
}

// Summary renders s as a table.
func (p *Printer) Summary(s Summary) {
	p.Title("Test Summary")

	t := table.NewWriter()
	t.SetOutputMirror(p.w)
	t.AppendHeader(table.Row{"CHECKS", "PASSED", "FAILED", "WARNINGS", "PASS RATE"})

	failed := fmt.Sprintf("%d", s.Failed)
	if s.Failed > 0 {
		failed = red(failed)
	}
	t.AppendRow(table.Row{
		s.Total(),
		green(fmt.Sprintf("%d", s.Passed)),
		failed,
		s.Warnings,
		fmt.Sprintf("%.1f%%", s.PassRate()),
	})

	style := table.StyleLight
	style.Format.Header = text.FormatUpper
	t.SetStyle(style)
	t.Render()
	fmt.Fprintln(p.w)
}
