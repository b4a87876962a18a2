package utils

import "time"

// CompactTimestampLayout renders a timestamp as YYYYMMDDHHmmss.
const CompactTimestampLayout = "20060102150405"

// Clock returns the current time. Services hold one so tests can pin it.
type Clock func() time.Time

// SystemClock returns the current UTC time truncated to seconds, matching DATETIME precision.
func SystemClock() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// FormatCompact formats t in UTC using CompactTimestampLayout.
func FormatCompact(t time.Time) string {
	return t.UTC().Format(CompactTimestampLayout)
}
