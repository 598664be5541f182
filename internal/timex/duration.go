// Package timex holds time helpers shared by configuration loading.
package timex

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Day is the length of a calendar day as used by day suffixed durations.
const Day = 24 * time.Hour

// Duration wraps time.Duration for JSON configuration files. It accepts
// Go duration strings ("90s", "15m"), a whole-day form ("1d", "7d") and
// bare integers interpreted as nanoseconds.
type Duration struct {
	time.Duration
}

// ParseDuration parses s like time.ParseDuration and additionally accepts
// a positive integer followed by "d" for whole days.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(n)
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(days) * Day, nil
	}
	return time.ParseDuration(s)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		parsed, err := ParseDuration(value)
		if err != nil {
			return err
		}
		d.Duration = parsed
		return nil
	default:
		return errors.New("invalid duration")
	}
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
