package util

import (
    "strconv"
    "testing"
    "time"
)

func TestParseTimeRFC3339(t *testing.T) {
    s := "2024-10-10T10:10:10Z"
    got, ok := ParseTime(s)
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.UTC().Format(time.RFC3339) != s {
        t.Fatalf("unexpected time %v", got)
    }
}

func TestParseTimeUnix(t *testing.T) {
    ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
    got, ok := ParseTime(strconv.FormatInt(ts, 10))
    if !ok {
        t.Fatalf("expected ok")
    }
    if got.Unix() != ts {
        t.Fatalf("unexpected unix %v", got.Unix())
    }
}

func TestParseTimeSentinel(t *testing.T) {
    if got := ParseTimeSentinel("not a date"); !got.Equal(EpochSentinel) {
        t.Fatalf("expected sentinel, got %v", got)
    }
    if got := ParseTimeSentinel(""); !got.Equal(EpochSentinel) {
        t.Fatalf("expected sentinel for empty input, got %v", got)
    }
}

func TestParseFloat(t *testing.T) {
    if got := ParseFloat("0.515"); got != 0.515 {
        t.Fatalf("unexpected %v", got)
    }
    if got := ParseFloat("bad"); got != 0 {
        t.Fatalf("expected 0 fallback, got %v", got)
    }
}
