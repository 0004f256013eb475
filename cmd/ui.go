package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Status line colors
var (
	Brand  = color.New(color.FgHiCyan, color.Bold)
	Subtle = color.New(color.FgHiBlack)
	Warn   = color.New(color.FgYellow)
	Good   = color.New(color.FgGreen)
	Bad    = color.New(color.FgRed)
)

// statusIcon returns a colored check or cross
func statusIcon(ok bool) string {
	if ok {
		return Good.Sprint("✓")
	}
	return Bad.Sprint("✗")
}

// field prints an aligned key/value line
func field(w io.Writer, key string, value any) {
	fmt.Fprintf(w, "  %s  %v\n", Brand.Sprintf("%-10s", key), value)
}
