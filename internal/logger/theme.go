package logger

import "github.com/pterm/pterm"

// Theme is the colour palette the styled logger draws on for terminal
// output. Folded into this package (the teacher keeps a top-level
// theme/ package) since the gateway only needs it from here.
type Theme struct {
	Debug *pterm.Style
	Info  *pterm.Style
	Warn  *pterm.Style
	Error *pterm.Style

	Success   *pterm.Style
	Muted     *pterm.Style
	Accent    *pterm.Style
	Pipeline  *pterm.Style
	Virtual   *pterm.Style

	Healthy   pterm.Color
	Degraded  pterm.Color
	Blocked   pterm.Color
}

func defaultTheme() *Theme {
	return &Theme{
		Debug:    pterm.NewStyle(pterm.FgLightBlue),
		Info:     pterm.NewStyle(pterm.FgGreen),
		Warn:     pterm.NewStyle(pterm.FgYellow, pterm.Bold),
		Error:    pterm.NewStyle(pterm.FgRed, pterm.Bold),
		Success:  pterm.NewStyle(pterm.FgGreen, pterm.Bold),
		Muted:    pterm.NewStyle(pterm.FgGray),
		Accent:   pterm.NewStyle(pterm.FgMagenta),
		Pipeline: pterm.NewStyle(pterm.FgCyan, pterm.Bold),
		Virtual:  pterm.NewStyle(pterm.FgLightMagenta),
		Healthy:  pterm.FgGreen,
		Degraded: pterm.FgYellow,
		Blocked:  pterm.FgRed,
	}
}

func lightTheme() *Theme {
	t := defaultTheme()
	t.Debug = pterm.NewStyle(pterm.FgBlue)
	t.Info = pterm.NewStyle(pterm.FgBlack)
	return t
}

// GetTheme resolves a theme name, falling back to the dark/default theme
// for anything unrecognised rather than erroring.
func GetTheme(name string) *Theme {
	switch name {
	case "light":
		return lightTheme()
	default:
		return defaultTheme()
	}
}
