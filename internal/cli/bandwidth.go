package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// parseBandwidth parses a byte rate such as "800", "512K", "10M" or "1G".
// Suffixes are binary multiples; a trailing "B" or "/s" is accepted.
func parseBandwidth(s string) (int64, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, "/S")
	v = strings.TrimSuffix(v, "B")
	if v == "" {
		return 0, fmt.Errorf("invalid bandwidth limit: %q", s)
	}

	multiplier := int64(1)
	switch v[len(v)-1] {
	case 'K':
		multiplier = 1 << 10
	case 'M':
		multiplier = 1 << 20
	case 'G':
		multiplier = 1 << 30
	}
	if multiplier > 1 {
		v = v[:len(v)-1]
	}

	n, err := strconv.ParseFloat(v, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid bandwidth limit: %q", s)
	}
	return int64(n * float64(multiplier)), nil
}
