package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseDuration parses flag and file durations, accepting a whole-day suffix
// ("30d", "90d") on top of the units time.ParseDuration understands.
func ParseDuration(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}
