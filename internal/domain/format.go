package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatClock renders seconds as minutes:seconds, e.g. 247 -> "4:07".
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}

// FormatProgress renders the answered counter the way the quiz header shows it.
func FormatProgress(answered, total int) string {
	return fmt.Sprintf("%d/%d questions answered", answered, total)
}

// MaxDurationMinutes caps a quiz at one day.
const MaxDurationMinutes = 24 * 60

// ParseDurationMinutes validates the duration form field.
func ParseDurationMinutes(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidDuration)
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidDuration, raw)
	}
	if minutes <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDuration, minutes)
	}
	if minutes > MaxDurationMinutes {
		return 0, fmt.Errorf("%w: %d exceeds %d", ErrInvalidDuration, minutes, MaxDurationMinutes)
	}
	return minutes, nil
}
