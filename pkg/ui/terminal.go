package ui

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Banner is printed above verbose command output
const Banner = `
    ┌─────────────────────────────────────────────┐
    │  imgurcomments · account comment history    │
    │  incremental sync · local cache · search    │
    └─────────────────────────────────────────────┘
`

// ANSI sequences for terminal output
const (
	codeCyan    = "\033[36m"
	codeYellow  = "\033[33m"
	codeRed     = "\033[31m"
	codeGreen   = "\033[32m"
	codeMagenta = "\033[35m"
	codeDim     = "\033[2m"
	codeReset   = "\033[0m"
)

// Printer writes status messages for humans. Results go to stdout, so the
// default printer writes to stderr.
type Printer struct {
	w           io.Writer
	color       bool
	interactive bool
	quiet       bool
}

// NewPrinter creates a Printer on w. Colors are enabled when w is a terminal
// and NO_COLOR is unset.
func NewPrinter(w io.Writer) *Printer {
	tty := isTerminal(w)
	return &Printer{
		w:           w,
		color:       tty && os.Getenv("NO_COLOR") == "",
		interactive: tty,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// SetColor overrides color detection
func (p *Printer) SetColor(enabled bool) {
	p.color = enabled
}

// SetQuiet suppresses everything but errors
func (p *Printer) SetQuiet(quiet bool) {
	p.quiet = quiet
}

// Interactive reports whether the printer writes to a terminal
func (p *Printer) Interactive() bool {
	return p.interactive
}

// Writer returns the underlying writer
func (p *Printer) Writer() io.Writer {
	return p.w
}

func (p *Printer) paint(code, text string) string {
	if !p.color {
		return text
	}
	return code + text + codeReset
}

func (p *Printer) Cyan(text string) string    { return p.paint(codeCyan, text) }
func (p *Printer) Yellow(text string) string  { return p.paint(codeYellow, text) }
func (p *Printer) Red(text string) string     { return p.paint(codeRed, text) }
func (p *Printer) Green(text string) string   { return p.paint(codeGreen, text) }
func (p *Printer) Magenta(text string) string { return p.paint(codeMagenta, text) }
func (p *Printer) Dim(text string) string     { return p.paint(codeDim, text) }

// PrintBanner prints the banner
func (p *Printer) PrintBanner() {
	if p.quiet {
		return
	}
	fmt.Fprint(p.w, p.Cyan(Banner))
}

// PrintError prints an error message in red. It is never suppressed.
func (p *Printer) PrintError(msg string, args ...interface{}) {
	fmt.Fprintln(p.w, p.Red(withDetail(msg, args)))
}

// PrintWarning prints a warning message in yellow
func (p *Printer) PrintWarning(msg string, args ...interface{}) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.w, p.Yellow(withDetail(msg, args)))
}

// PrintSuccess prints a success message in green
func (p *Printer) PrintSuccess(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.w, p.Green(msg))
}

// PrintInfo prints a label and its value
func (p *Printer) PrintInfo(label string, value string) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.w, "%s: %s\n", p.Cyan(label), p.Yellow(value))
}

// PrintHighlight prints a highlighted message in magenta
func (p *Printer) PrintHighlight(msg string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.w, p.Magenta(msg))
}

// Printf writes unstyled text
func (p *Printer) Printf(format string, args ...interface{}) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.w, format, args...)
}

func withDetail(msg string, args []interface{}) string {
	if len(args) == 0 {
		return msg
	}
	detail := fmt.Sprintf("%v", args[0])
	if detail == "" {
		return msg
	}
	return msg + ": " + detail
}

var std = NewPrinter(os.Stderr)

// Default returns the stderr printer used by the package level helpers
func Default() *Printer {
	return std
}

// SetQuietMode silences the default printer except for errors
func SetQuietMode(quiet bool) {
	std.SetQuiet(quiet)
}

// SetColorMode overrides color detection for the default printer
func SetColorMode(enabled bool) {
	std.SetColor(enabled)
}

func PrintBanner()                                 { std.PrintBanner() }
func PrintError(msg string, args ...interface{})   { std.PrintError(msg, args...) }
func PrintWarning(msg string, args ...interface{}) { std.PrintWarning(msg, args...) }
func PrintSuccess(msg string)                      { std.PrintSuccess(msg) }
func PrintInfo(label string, value string)         { std.PrintInfo(label, value) }
func PrintHighlight(msg string)                    { std.PrintHighlight(msg) }
