package backend

import (
	"fmt"
	"strconv"
	"time"
)

// timeLayouts are the date string shapes backends have been observed to
// send, tried in order.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime accepts the backend's last_update value, which is either a unix
// timestamp (number, possibly fractional) or a date string.
func ParseTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case float64:
		sec := int64(t)
		nsec := int64((t - float64(sec)) * float64(time.Second))
		return time.Unix(sec, nsec).UTC(), nil
	case string:
		if n, err := strconv.ParseFloat(t, 64); err == nil {
			return ParseTime(n)
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable last_update %q", t)
	default:
		return time.Time{}, fmt.Errorf("unparseable last_update %v", v)
	}
}
