package display

import "github.com/fatih/color"

// Box drawing characters
const (
	BoxTopLeft     = "┌"
	BoxTopRight    = "┐"
	BoxBottomLeft  = "└"
	BoxBottomRight = "┘"
	BoxHorizontal  = "─"
	BoxVertical    = "│"
	SectionBreak   = "━"
)

// Status symbols
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolResume  = "↻"
	SymbolPending = "○"
	SymbolPartial = "◐"
)

// IndentAction is the indentation for model/tool output lines.
const IndentAction = "  "

// Theme holds all color functions for consistent styling.
type Theme struct {
	// Run orchestration (prominent)
	StatusBorder func(a ...interface{}) string
	StatusLabel  func(a ...interface{}) string
	StatusText   func(a ...interface{}) string

	// Model decision / tool output (subdued)
	ActionTimestamp func(a ...interface{}) string
	ActionText      func(a ...interface{}) string
	ActionToolCount func(a ...interface{}) string

	// Status indicators
	Success func(a ...interface{}) string
	Error   func(a ...interface{}) string
	Warning func(a ...interface{}) string
	Info    func(a ...interface{}) string

	// Structural elements
	Bold      func(a ...interface{}) string
	Dim       func(a ...interface{}) string
	Separator func(a ...interface{}) string
}

// DefaultTheme creates the default color theme.
func DefaultTheme() *Theme {
	return &Theme{
		// Run orchestration - bright cyan for visibility
		StatusBorder: color.New(color.FgCyan).SprintFunc(),
		StatusLabel:  color.New(color.FgCyan, color.Bold).SprintFunc(),
		StatusText:   color.New(color.FgWhite).SprintFunc(),

		// Model/tool output - dimmer/gray to distinguish from orchestration
		ActionTimestamp: color.New(color.FgHiBlack).SprintFunc(),
		ActionText:      color.New(color.FgWhite).SprintFunc(),
		ActionToolCount: color.New(color.FgHiBlack).SprintFunc(),

		Success: color.New(color.FgGreen).SprintFunc(),
		Error:   color.New(color.FgRed).SprintFunc(),
		Warning: color.New(color.FgYellow).SprintFunc(),
		Info:    color.New(color.FgCyan).SprintFunc(),

		Bold:      color.New(color.Bold).SprintFunc(),
		Dim:       color.New(color.FgHiBlack).SprintFunc(),
		Separator: color.New(color.FgCyan).SprintFunc(),
	}
}

// NoColorTheme creates a theme without colors (for --no-color or non-TTY).
func NoColorTheme() *Theme {
	identity := func(a ...interface{}) string {
		if len(a) == 0 {
			return ""
		}
		s, _ := a[0].(string)
		return s
	}
	return &Theme{
		StatusBorder:    identity,
		StatusLabel:     identity,
		StatusText:      identity,
		ActionTimestamp: identity,
		ActionText:      identity,
		ActionToolCount: identity,
		Success:         identity,
		Error:           identity,
		Warning:         identity,
		Info:            identity,
		Bold:            identity,
		Dim:             identity,
		Separator:       identity,
	}
}
