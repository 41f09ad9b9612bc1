package digest

import "time"

// QuietHoursAfter returns a predicate that is true from cutoffHour (0-23) until
// midnight in loc. A nil loc means UTC.
func QuietHoursAfter(cutoffHour int, loc *time.Location) func(time.Time) bool {
	if loc == nil {
		loc = time.UTC
	}
	return func(now time.Time) bool {
		return now.In(loc).Hour() >= cutoffHour
	}
}
