package tui

// Color constants for the timer theme
const (
	ColorBorder = "#3A3F55" // Grey-blue

	// Text Colors
	ColorPrimaryText   = "#E6EAF2" // Titles, task id
	ColorSecondaryText = "#B1B8C7" // Start time, details
	ColorDisabledText  = "#6D7383" // Ended sessions
	ColorHelpText      = "240"     // Dark grey for help text

	// Accent Colors (Purple theme)
	ColorAccentMain   = "#7C3AED"
	ColorAccentBright = "#A78BFA" // Running clock

	// State Colors
	ColorError   = "#EF4444" // Failed requests
	ColorSuccess = "#22C55E" // Saved session
	ColorWarning = "#F59E0B" // Paused and auto-paused clock
)

// stateColor picks the clock color for a session state
func stateColor(state string) string {
	switch state {
	case "running":
		return ColorAccentBright
	case "paused", "auto_paused":
		return ColorWarning
	case "ended":
		return ColorSuccess
	default:
		return ColorDisabledText
	}
}
