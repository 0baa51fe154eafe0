package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Clock is a time of day with minute resolution
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses a 24h "HH:MM" string
func ParseClock(s string) (Clock, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, fmt.Errorf("%w %q", ErrMalformedTime, s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return Clock{}, fmt.Errorf("%w %q", ErrMalformedTime, s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return Clock{}, fmt.Errorf("%w %q", ErrMalformedTime, s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("%w %q", ErrMalformedTime, s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// Minutes returns minutes since midnight
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}
