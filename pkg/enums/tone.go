package enums

import "fmt"

// Tone is the coaching voice a message schedule is written in.
type Tone string

const (
	ToneSupportive Tone = "supportive"
	ToneDirect     Tone = "direct"
	TonePlayful    Tone = "playful"
)

var validTones = []Tone{
	ToneSupportive,
	ToneDirect,
	TonePlayful,
}

// IsValid checks whether the given tone matches the canonical enum.
func (t Tone) IsValid() bool {
	for _, candidate := range validTones {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTone converts raw strings into Tone.
func ParseTone(value string) (Tone, error) {
	for _, candidate := range validTones {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid tone %q", value)
}
