package location

import "fmt"

// Mode selects the sampling strategy.
type Mode string

const (
	ModePolling   Mode = "polling"
	ModeStreaming Mode = "streaming"
	ModeHybrid    Mode = "hybrid"
)

// DefaultMode is used when nothing has been configured.
const DefaultMode = ModeHybrid

// legacy names written by earlier platform builds
var modeAliases = map[string]Mode{
	"locationManager": ModePolling,
	"locationUpdate":  ModeStreaming,
}

// ParseMode returns the Mode named by s. Legacy variant names are accepted
// and normalized.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePolling, ModeStreaming, ModeHybrid:
		return m, nil
	}
	if m, ok := modeAliases[s]; ok {
		return m, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Valid reports whether m names a known strategy.
func (m Mode) Valid() bool {
	switch m {
	case ModePolling, ModeStreaming, ModeHybrid:
		return true
	}
	return false
}

func (m Mode) String() string { return string(m) }
