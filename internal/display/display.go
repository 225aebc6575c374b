// Package display provides unified terminal output formatting for the
// agentcore CLI. It visually separates run-orchestration status lines from
// the underlying model's decisions and tool output.
package display

import (
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/term"
)

// Gutter markers for action/analysis output lines.
const (
	GutterAction   = "▸"
	GutterDot      = "·"
	GutterAnalysis = "◆"
)

// Display handles all CLI output with visual hierarchy.
type Display struct {
	theme     *Theme
	termWidth int
	noColor   bool
}

// TokenStats holds token usage info for display.
type TokenStats struct {
	TotalTokens int
	Threshold   int
}

// New creates a new Display instance.
func New() *Display {
	return NewWithOptions(false)
}

// NewWithOptions creates a Display with configuration.
func NewWithOptions(noColor bool) *Display {
	d := &Display{
		termWidth: getTerminalWidth(),
		noColor:   noColor,
	}
	if noColor || !term.IsTerminal(int(os.Stdout.Fd())) {
		d.theme = NoColorTheme()
	} else {
		d.theme = DefaultTheme()
	}
	return d
}

// getTerminalWidth returns the terminal width, defaulting to 80.
func getTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < 40 {
		return 80
	}
	if width > 120 {
		return 120
	}
	return width
}

// Status prints a boxed message for run-orchestration output.
func (d *Display) Status(lines ...string) {
	d.StatusBox("RUN", lines...)
}

// StatusBox prints a boxed message with a custom title.
func (d *Display) StatusBox(title string, lines ...string) {
	if len(lines) == 0 {
		return
	}

	width := d.termWidth - 2
	titleLen := len(title) + 4
	remainingWidth := width - titleLen

	topLine := BoxTopLeft + BoxHorizontal + " " + title + " " + strings.Repeat(BoxHorizontal, remainingWidth) + BoxTopRight
	fmt.Println(d.theme.StatusBorder(topLine))

	for _, line := range lines {
		paddedLine := d.padRight(line, width-2)
		fmt.Println(d.theme.StatusBorder(BoxVertical) + " " + d.theme.StatusText(paddedLine) + " " + d.theme.StatusBorder(BoxVertical))
	}

	bottomLine := BoxBottomLeft + strings.Repeat(BoxHorizontal, width) + BoxBottomRight
	fmt.Println(d.theme.StatusBorder(bottomLine))
}

// StatusLine prints a single-line status message (no box).
func (d *Display) StatusLine(symbol, message string) {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Printf("%s %s %s\n",
		d.theme.StatusBorder(timestamp),
		symbol,
		d.theme.StatusText(message))
}

// Success prints a success message with a green checkmark.
func (d *Display) Success(message string) {
	d.StatusLine(d.theme.Success(SymbolSuccess), message)
}

// Error prints an error message with a red X.
func (d *Display) Error(message string) {
	d.StatusLine(d.theme.Error(SymbolError), message)
}

// Warning prints a warning message with a yellow triangle.
func (d *Display) Warning(message string) {
	d.StatusLine(d.theme.Warning(SymbolWarning), message)
}

// Info prints a labeled info message.
func (d *Display) Info(label, message string) {
	d.StatusLine(d.theme.Info(label+":"), message)
}

// Resume prints a resume/checkpoint message with a cyan arrow.
func (d *Display) Resume(message string) {
	d.StatusLine(d.theme.Info(SymbolResume), message)
}

// ActionStart prints a header when a model decision round begins.
func (d *Display) ActionStart() {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Printf("  %s %s Requesting next action...\n",
		d.theme.Dim(timestamp),
		d.theme.ActionTimestamp(GutterAction))
}

// wrapText wraps text to specified width, returns up to maxLines.
func (d *Display) wrapText(text string, maxWidth int) []string {
	if maxWidth <= 0 {
		maxWidth = 80
	}

	text = strings.TrimSpace(text)
	if len(text) <= maxWidth {
		return []string{text}
	}

	var lines []string
	words := strings.Fields(text)
	var currentLine strings.Builder

	for _, word := range words {
		if currentLine.Len()+len(word)+1 > maxWidth {
			if currentLine.Len() > 0 {
				lines = append(lines, currentLine.String())
				currentLine.Reset()
			}
		}
		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}
	if currentLine.Len() > 0 {
		lines = append(lines, currentLine.String())
	}

	if len(lines) > 5 {
		lines = lines[:5]
		if len(lines[4]) > maxWidth-3 {
			lines[4] = lines[4][:maxWidth-3]
		}
		lines[4] = lines[4] + "..."
	}

	return lines
}

// Action prints one iteration's action/tool output with a left gutter.
func (d *Display) Action(text string, toolCount int) {
	timestamp := time.Now().Format("[15:04:05]")
	gutter := d.theme.ActionTimestamp(GutterAction)

	toolStr := ""
	if toolCount > 0 {
		toolStr = fmt.Sprintf(" %s", d.theme.ActionToolCount(fmt.Sprintf("[%d]", toolCount)))
	}

	lines := d.wrapText(text, d.termWidth-20)

	for i, line := range lines {
		if i == 0 {
			fmt.Printf("  %s %s%s %s\n", gutter, d.theme.Dim(timestamp), toolStr, d.theme.ActionText(line))
		} else {
			fmt.Printf("  %s %s%s\n", d.theme.ActionTimestamp(GutterDot), strings.Repeat(" ", 10), d.theme.ActionText(line))
		}
	}
}

// ActionWithTokens prints action output annotated with context-window stats.
func (d *Display) ActionWithTokens(text string, toolCount int, tokens TokenStats) {
	timestamp := time.Now().Format("[15:04:05]")
	gutter := d.theme.ActionTimestamp(GutterAction)

	toolStr := ""
	if toolCount > 0 {
		toolStr = fmt.Sprintf(" %s", d.theme.ActionToolCount(fmt.Sprintf("[%d]", toolCount)))
	}

	tokenStr := fmt.Sprintf(" %s", d.theme.Dim(fmt.Sprintf("[%dK/%dK]", tokens.TotalTokens/1000, tokens.Threshold/1000)))

	lines := d.wrapText(text, d.termWidth-30)

	for i, line := range lines {
		if i == 0 {
			fmt.Printf("  %s %s%s%s %s\n", gutter, d.theme.Dim(timestamp), toolStr, tokenStr, d.theme.ActionText(line))
		} else {
			fmt.Printf("  %s %s%s\n", d.theme.ActionTimestamp(GutterDot), strings.Repeat(" ", 20), d.theme.ActionText(line))
		}
	}
}

// ActionDone prints a step completion line (indented).
func (d *Display) ActionDone(result string) {
	timestamp := time.Now().Format("[15:04:05]")
	line := fmt.Sprintf("%s%s %s %s",
		IndentAction,
		d.theme.ActionTimestamp(timestamp),
		d.theme.ActionToolCount("[Done]"),
		d.theme.ActionText(result))
	fmt.Println(line)
}

// RunBanner prints the ">>> WORKING ON <<<" banner for a new run/goal.
func (d *Display) RunBanner(goal string) {
	banner := fmt.Sprintf(">>> WORKING ON: %s <<<", goal)
	fmt.Printf("\n%s%s\n\n", IndentAction, d.theme.StatusLabel(banner))
}

// SectionBreak prints a horizontal separator for iteration boundaries.
func (d *Display) SectionBreak() {
	width := d.termWidth
	fmt.Println(d.theme.Separator(strings.Repeat(SectionBreak, width)))
}

// Iteration prints the iteration banner with budget progress.
func (d *Display) Iteration(current, max int, phase string) {
	d.SectionBreak()
	line := fmt.Sprintf("Iteration %d/%d: %s", current, max, d.theme.Info(phase))
	fmt.Println(line)
	d.SectionBreak()
}

// RunHeader prints the run-mode header.
func (d *Display) RunHeader(mode string) {
	fmt.Printf("%s\n\n", d.theme.Bold(fmt.Sprintf("=== agentcore run (%s) ===", mode)))
}

// RunComplete prints the completed-run message.
func (d *Display) RunComplete(summary string) {
	fmt.Printf("\n%s %s\n", d.theme.Success(SymbolSuccess), summary)
}

// RunFailed prints the failed-run message.
func (d *Display) RunFailed(reason string, err error) {
	fmt.Printf("\n%s FAILED: %s\n", d.theme.Error(SymbolError), reason)
	if err != nil {
		fmt.Printf("   Error: %v\n", err)
	}
	fmt.Println("Run 'agentcore status' for details.")
}

// MaxIterations prints the max-iterations-reached message.
func (d *Display) MaxIterations(max int) {
	fmt.Printf("\nReached max iterations (%d). Run 'agentcore resume' to continue.\n", max)
}

// Tokens prints token usage stats as a status line.
func (d *Display) Tokens(total, input, output int) {
	line := fmt.Sprintf("Tokens: %d (in: %d, out: %d)", total, input, output)
	d.StatusLine(d.theme.Dim(""), line)
}

// Duration prints execution duration.
func (d *Display) Duration(dur time.Duration) {
	fmt.Printf("   Duration: %s\n", dur.Round(time.Second))
}

// Theme returns the current theme for external use.
func (d *Display) Theme() *Theme {
	return d.theme
}

// padRight pads a string to the specified width.
func (d *Display) padRight(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Truncate truncates text to max length with ellipsis.
func Truncate(s string, max int) string {
	s = CleanText(s)
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// CleanText removes newlines and collapses spaces.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

// VerificationStart prints a header when the verification runner begins.
func (d *Display) VerificationStart(count int) {
	timestamp := time.Now().Format("[15:04:05]")
	fmt.Printf("\n%s %s %s\n",
		d.theme.Dim(timestamp),
		d.theme.Info(GutterAnalysis),
		d.theme.Info(fmt.Sprintf("Running %d verification command(s)...", count)))
}

// Verification prints one verification check's outcome.
func (d *Display) Verification(text string, ok bool) {
	symbol := d.theme.Success(SymbolSuccess)
	if !ok {
		symbol = d.theme.Error(SymbolError)
	}
	lines := d.wrapText(text, d.termWidth-15)
	for i, line := range lines {
		if i == 0 {
			fmt.Printf("  %s %s\n", symbol, d.theme.StatusText(line))
		} else {
			fmt.Printf("  %s %s\n", d.theme.Dim(GutterDot), d.theme.StatusText(line))
		}
	}
}

// VerificationComplete prints the verification summary.
func (d *Display) VerificationComplete(passed, total int) {
	timestamp := time.Now().Format("[15:04:05]")
	symbol := d.theme.Success(fmt.Sprintf("Verification complete (%d/%d passed)", passed, total))
	if passed < total {
		symbol = d.theme.Error(fmt.Sprintf("Verification complete (%d/%d passed)", passed, total))
	}
	fmt.Printf("%s %s %s\n", d.theme.Dim(timestamp), d.theme.Info(GutterAnalysis), symbol)
}
