package timing

// Disposition urgency windows, most urgent first.
const (
	WindowImmediate   = "Immediate"
	WindowTwoFour     = "2-4 weeks"
	WindowOneThree    = "1-3 months"
	WindowThreeSix    = "3-6 months"
	defaultDisposition = WindowOneThree
)

// dispositionMap maps signal types to disposition urgency windows.
var dispositionMap = map[string]string{
	"bankruptcy_ch7":     WindowImmediate,
	"liquidation":        WindowImmediate,
	"ceasing_operations": WindowImmediate,
	"office_closure":     WindowTwoFour,
	"facility_shutdown":  WindowTwoFour,
	"plant_closing":      WindowOneThree,
	"layoff":             WindowOneThree,
	"bankruptcy_ch11":    WindowOneThree,
	"restructuring":      WindowOneThree,
	"merger":             WindowThreeSix,
	"acquisition":        WindowThreeSix,
	"relocation":         WindowThreeSix,
	// Aliases for non-canonical types in existing data.
	"facility_closure": WindowTwoFour,
	"facility_closing": WindowTwoFour,
	"shutdown":         WindowTwoFour,
}

var urgencyOrder = []string{WindowImmediate, WindowTwoFour, WindowOneThree, WindowThreeSix}

// GetDispositionWindow returns the most urgent disposition window among a
// set of signal types.
func GetDispositionWindow(signalTypes []string) string {
	windows := make(map[string]bool)
	for _, st := range signalTypes {
		if w, ok := dispositionMap[st]; ok {
			windows[w] = true
		}
	}

	if len(windows) == 0 {
		return defaultDisposition
	}

	for _, w := range urgencyOrder {
		if windows[w] {
			return w
		}
	}
	return defaultDisposition
}
