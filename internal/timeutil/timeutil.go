// Package timeutil centralizes timestamp conversion for provider requests and job parameters.
package timeutil

import (
	"strings"
	"time"
)

// KST is the Korea Standard Time location (UTC+9).
var KST *time.Location

func init() {
	var err error
	KST, err = time.LoadLocation("Asia/Seoul")
	if err != nil {
		// tz database missing in minimal images
		KST = time.FixedZone("KST", 9*60*60)
	}
}

// MinuteLayout is the yyyy-MM-dd'T'HH:mm layout providers such as MarketAux expect.
const MinuteLayout = "2006-01-02T15:04"

// DefaultLookback is applied when a job timestamp cannot be parsed.
const DefaultLookback = 24 * time.Hour

var jobLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	MinuteLayout,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// FormatForProvider renders t in the given location using layout.
func FormatForProvider(t time.Time, loc *time.Location, layout string) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(layout)
}

// FormatUTCMinute renders t as UTC with minute precision.
func FormatUTCMinute(t time.Time) string {
	return FormatForProvider(t, time.UTC, MinuteLayout)
}

// ParseInLocation parses a provider timestamp. Layouts carrying an offset keep it,
// the rest are interpreted in loc.
func ParseInLocation(value string, loc *time.Location, layouts ...string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseJobTimestamp parses the publishTimeAfter job parameter. Timestamps without a zone
// are read as KST. Empty or unparsable input yields now minus DefaultLookback.
func ParseJobTimestamp(value string, now time.Time) time.Time {
	if t, ok := ParseInLocation(value, KST, jobLayouts...); ok {
		return t
	}
	return now.Add(-DefaultLookback)
}
