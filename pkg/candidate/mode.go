package candidate

import "fmt"

// Mode is a capture mode of the camera application.
type Mode string

// Capture modes.
const (
	ModePhoto    Mode = "photo"
	ModeVideo    Mode = "video"
	ModeScan     Mode = "scan"
	ModePortrait Mode = "portrait"
)

// ModeOrder is the fixed order modes are tried in after the hinted one.
var ModeOrder = []Mode{ModePhoto, ModeVideo, ModeScan, ModePortrait}

// DefaultModes are the modes a device supports when it does not say.
var DefaultModes = []Mode{ModePhoto, ModeVideo, ModeScan}

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	for _, m := range ModeOrder {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown capture mode %q", s)
}

// IsVideo reports whether m records video rather than stills.
func (m Mode) IsVideo() bool { return m == ModeVideo }
