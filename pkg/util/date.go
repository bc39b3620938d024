package util

import (
    "strconv"
    "time"
)

// EpochSentinel is substituted for unparsable or missing upstream timestamps
// so downstream consumers never see a zero time.
var EpochSentinel = time.Unix(0, 0).UTC()

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        // 13-digit values are epoch millis
        if ts > 1_000_000_000_000 {
            return time.UnixMilli(ts), true
        }
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}

// ParseTimeDefault parses time or returns default if empty/invalid.
func ParseTimeDefault(s string, def time.Time) time.Time {
    if t, ok := ParseTime(s); ok {
        return t
    }
    return def
}

// ParseTimeSentinel parses time or returns the epoch sentinel.
func ParseTimeSentinel(s string) time.Time {
    return ParseTimeDefault(s, EpochSentinel)
}

// ParseFloat parses a string float or returns 0.
func ParseFloat(s string) float64 {
    v, err := strconv.ParseFloat(s, 64)
    if err != nil {
        return 0
    }
    return v
}

// No extra helpers here; use strconv where needed.
