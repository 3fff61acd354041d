package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// LocalDateLayout is the output layout for dates without a zone.
const LocalDateLayout = "2006-01-02T15:04:05"

var (
	isoDateRe = regexp.MustCompile(
		`\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(Z|[+-]\d{2}:?\d{2})?)?`)

	// 12.3.2024, 12. 3. 2024 10:15, 12.03.2024 v 10:15
	numericDateRe = regexp.MustCompile(
		`(\d{1,2})\.\s*(\d{1,2})\.\s*(\d{4})(?:\D{0,6}?(\d{1,2}):(\d{2}))?`)

	// 12 Mar 2024, 12 March 2024, 12. března 2024, with an optional time
	// after a short separator such as ", at ".
	dayMonthYearRe = regexp.MustCompile(
		`(\d{1,2})\.?\s+(\p{L}+)\.?,?\s+(\d{4})(?:\D{0,8}?(\d{1,2}):(\d{2}))?`)

	// last edited on March 12, 2024, at 10:15
	monthDayYearRe = regexp.MustCompile(
		`(\p{L}+)\.?\s+(\d{1,2}),\s*(\d{4})(?:\D{0,8}?(\d{1,2}):(\d{2}))?`)
)

// monthNames maps English (full and abbreviated) and Czech (nominative and
// genitive) month names to months.
var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January, "leden": time.January, "ledna": time.January,
	"feb": time.February, "february": time.February, "únor": time.February, "února": time.February,
	"mar": time.March, "march": time.March, "březen": time.March, "března": time.March,
	"apr": time.April, "april": time.April, "duben": time.April, "dubna": time.April,
	"may": time.May, "květen": time.May, "května": time.May,
	"jun": time.June, "june": time.June, "červen": time.June, "června": time.June,
	"jul": time.July, "july": time.July, "červenec": time.July, "července": time.July,
	"aug": time.August, "august": time.August, "srpen": time.August, "srpna": time.August,
	"sep": time.September, "sept": time.September, "september": time.September, "září": time.September,
	"oct": time.October, "october": time.October, "říjen": time.October, "října": time.October,
	"nov": time.November, "november": time.November, "listopad": time.November, "listopadu": time.November,
	"dec": time.December, "december": time.December, "prosinec": time.December, "prosince": time.December,
}

// ParseDate finds a publication date in s and formats it. Formats are tried
// in a fixed order: ISO 8601, numeric day.month.year, "day Month year", and
// "Month day, year" (as in "last edited on" footers). Dates carrying a zone
// are returned as RFC 3339, others as LocalDateLayout. It reports false
// when nothing parses.
func ParseDate(s string) (string, bool) {
	s = NormalizeText(s)
	if s == "" {
		return "", false
	}
	if out, ok := parseISO(s); ok {
		return out, true
	}
	if m := numericDateRe.FindStringSubmatch(s); m != nil {
		month, _ := strconv.Atoi(m[2])
		if out, ok := build(m[1], time.Month(month), m[3], m[4], m[5]); ok {
			return out, true
		}
	}
	for _, m := range dayMonthYearRe.FindAllStringSubmatch(s, -1) {
		if month, ok := monthNames[strings.ToLower(m[2])]; ok {
			if out, ok := build(m[1], month, m[3], m[4], m[5]); ok {
				return out, true
			}
		}
	}
	for _, m := range monthDayYearRe.FindAllStringSubmatch(s, -1) {
		if month, ok := monthNames[strings.ToLower(m[1])]; ok {
			if out, ok := build(m[2], month, m[3], m[4], m[5]); ok {
				return out, true
			}
		}
	}
	return "", false
}

// parseISO tries every ISO-shaped substring of s in order, so an invalid
// one such as "2024-13-01" does not hide a later valid date.
func parseISO(s string) (string, bool) {
	for _, loc := range isoDateRe.FindAllStringSubmatchIndex(s, -1) {
		candidate := strings.Replace(s[loc[0]:loc[1]], " ", "T", 1)
		if out, ok := parseISOCandidate(candidate, loc[2] >= 0); ok {
			return out, true
		}
	}
	return "", false
}

func parseISOCandidate(candidate string, zoned bool) (string, bool) {
	if zoned {
		// Offsets without a colon ("+0100") are valid ISO 8601 but not RFC 3339.
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04Z07:00", "2006-01-02T15:04:05.999999999Z0700", "2006-01-02T15:04Z0700"} {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t.Format(time.RFC3339), true
			}
		}
		return "", false
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.Parse(layout, candidate); err == nil {
			return t.Format(LocalDateLayout), true
		}
	}
	return "", false
}

// build validates the parts and formats a zone-less date.
func build(dayStr string, month time.Month, yearStr, hourStr, minStr string) (string, bool) {
	day, err := strconv.Atoi(dayStr)
	if err != nil {
		return "", false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return "", false
	}
	hour, minute := 0, 0
	if hourStr != "" {
		hour, _ = strconv.Atoi(hourStr)
		minute, _ = strconv.Atoi(minStr)
		if hour > 23 || minute > 59 {
			hour, minute = 0, 0
		}
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	// time.Date normalizes 31.2. into March; reject instead.
	if t.Day() != day || t.Month() != month || t.Year() != year {
		return "", false
	}
	return t.Format(LocalDateLayout), true
}
