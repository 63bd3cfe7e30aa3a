package logger

import (
	"fmt"

	"github.com/fatih/color"
)

// colorScheme gives each kind of console line a consistent color: green for
// a clean merge, red for a failure, yellow for a retry or nudge, cyan for
// labels and identifiers.
type colorScheme struct {
	success *color.Color
	fail    *color.Color
	warn    *color.Color
	label   *color.Color
	value   *color.Color
}

func newColorScheme() *colorScheme {
	return &colorScheme{
		success: color.New(color.FgGreen),
		fail:    color.New(color.FgRed),
		warn:    color.New(color.FgYellow),
		label:   color.New(color.FgCyan),
		value:   color.New(color.FgWhite),
	}
}

// formatMetric renders "label: value" with the label colored cyan and the
// value colored white. NewConsoleLogger disables the scheme's colors when its
// writer isn't a TTY.
func formatMetric(label string, value interface{}, scheme *colorScheme) string {
	return fmt.Sprintf("%s: %s", scheme.label.Sprint(label), scheme.value.Sprintf("%v", value))
}
