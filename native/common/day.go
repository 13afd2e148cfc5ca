package common

import "time"

// DayFormat is the canonical layout for UTC calendar-day bucket keys.
const DayFormat = "2006-01-02"

// DayKey derives the UTC day bucket for the provided unix timestamp. Daily
// quotas and meters reset at the UTC day boundary regardless of the caller's
// locale.
func DayKey(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return time.Unix(ts, 0).UTC().Format(DayFormat)
}
