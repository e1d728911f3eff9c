package domain

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	ItemSKUPrefix = "ITEM"
	numberWidth   = 6
)

// FormatNumber renders a sequence value as PREFIX + 6 zero-padded digits.
func FormatNumber(prefix string, seq int64) string {
	return fmt.Sprintf("%s%0*d", prefix, numberWidth, seq)
}

// ParseNumber returns the numeric part of a generated number, or false when
// the value does not carry the prefix followed only by digits.
func ParseNumber(prefix, number string) (int64, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(number), prefix)
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	seq, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}

// NextNumber is the highest existing sequence plus one. Numbers that do not
// parse under the prefix are ignored.
func NextNumber(prefix string, existing []string) string {
	var highest int64
	for _, number := range existing {
		if seq, ok := ParseNumber(prefix, number); ok && seq > highest {
			highest = seq
		}
	}
	return FormatNumber(prefix, highest+1)
}
