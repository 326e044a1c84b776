package cache

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// phraseRe matches expiry phrases like "1 day", "5 hours" or "90seconds".
var phraseRe = regexp.MustCompile(`^(\d+)\s*(second|minute|hour|day|week)s?$`)

var phraseUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
	"week":   7 * 24 * time.Hour,
}

// ParseExpire resolves an expiry setting into a duration. Go duration
// syntax is accepted first ("24h", "90m"), then the human phrase form
// ("1 day", "5 hours").
func ParseExpire(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, fmt.Errorf("empty expiry value")
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return 0, fmt.Errorf("expiry '%s' is not positive", s)
		}
		return d, nil
	}
	m := phraseRe.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("unrecognized expiry '%s'", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("unrecognized expiry '%s'", s)
	}
	return time.Duration(n) * phraseUnits[m[2]], nil
}
