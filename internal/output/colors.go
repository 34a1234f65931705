package output

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Success-rate bands used to colour report cells.
const (
	GoodSuccessRate = 99.0
	WarnSuccessRate = 90.0
)

// ColorScheme defines the colors used for the text report.
type ColorScheme struct {
	Header *color.Color
	Good   *color.Color
	Warn   *color.Color
	Bad    *color.Color
	Dim    *color.Color
}

// DefaultColorScheme returns the default color scheme with colors forced on.
func DefaultColorScheme() *ColorScheme {
	scheme := &ColorScheme{
		Header: color.New(color.FgCyan, color.Bold),
		Good:   color.New(color.FgGreen, color.Bold),
		Warn:   color.New(color.FgYellow, color.Bold),
		Bad:    color.New(color.FgRed, color.Bold),
		Dim:    color.New(color.FgHiBlack),
	}
	for _, c := range scheme.all() {
		c.EnableColor()
	}
	return scheme
}

// NoColorScheme returns a color scheme with all colors disabled.
func NoColorScheme() *ColorScheme {
	scheme := DefaultColorScheme()
	for _, c := range scheme.all() {
		c.DisableColor()
	}
	return scheme
}

// SchemeFor picks DefaultColorScheme for terminals and NoColorScheme for
// everything else, including when NO_COLOR is set.
func SchemeFor(w io.Writer) *ColorScheme {
	if os.Getenv("NO_COLOR") == "" && isTerminal(w) {
		return DefaultColorScheme()
	}
	return NoColorScheme()
}

// SuccessRate renders a success percentage in the band's color.
func (s *ColorScheme) SuccessRate(pct float64) string {
	text := formatPercent(pct)
	switch {
	case pct >= GoodSuccessRate:
		return s.Good.Sprint(text)
	case pct >= WarnSuccessRate:
		return s.Warn.Sprint(text)
	default:
		return s.Bad.Sprint(text)
	}
}

// Verdict renders a pass/fail mark.
func (s *ColorScheme) Verdict(pass bool) string {
	if pass {
		return s.Good.Sprint("✓")
	}
	return s.Bad.Sprint("✗")
}

func (s *ColorScheme) all() []*color.Color {
	return []*color.Color{s.Header, s.Good, s.Warn, s.Bad, s.Dim}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
