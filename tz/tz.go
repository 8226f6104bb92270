// Package tz provides timezone resolution and the date-time helpers shared
// by the expression compiler's date/time builtin family and the in-process
// dialect's UDF implementations: IANA zone loading, the upstream
// JavaScript-flavored date-string grammar, and the timeUnit truncation
// rules of §4.3.
package tz

import (
	"strconv"
	"strings"
	"time"

	"github.com/hugr-lab/vizql/errs"
)

// Load resolves a tz-config string: "local" maps to time.Local, "UTC" (or
// empty) maps to time.UTC, anything else is an IANA zone name.
func Load(name string) (*time.Location, error) {
	switch name {
	case "", "UTC":
		return time.UTC, nil
	case "local":
		return time.Local, nil
	default:
		loc, err := time.LoadLocation(name)
		if err != nil {
			return nil, errs.Wrapf(err, "loading timezone %q", name)
		}
		return loc, nil
	}
}

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// ParseDateString parses the upstream date-string grammar of §4.3:
// YYYY-MM-DD[THH:MM:SS[.fff][Z|±HH:MM]], YYYY/MM/DD, YYYY MM DD,
// MM/DD/YYYY (4-digit year detected positionally), and month-name prefixes
// of length >= 3 (case-insensitive). Missing components default as in
// datetime(y,m,...); an absent timezone means defaultTZ, "Z" means UTC.
// Returns the UTC millisecond timestamp.
func ParseDateString(s string, defaultTZ *time.Location) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errs.New(errs.Compilation, "empty date string")
	}

	datePart := s
	timePart := ""
	if idx := strings.IndexByte(s, 'T'); idx >= 0 {
		datePart, timePart = s[:idx], s[idx+1:]
	} else if idx := strings.IndexByte(s, ' '); idx >= 0 && looksLikeTimeOfDay(s[idx+1:]) {
		datePart, timePart = s[:idx], s[idx+1:]
	}

	y, m, d, err := parseDateComponents(datePart)
	if err != nil {
		return 0, err
	}

	h, mi, sec, ms, loc, err := parseTimeComponents(timePart, defaultTZ)
	if err != nil {
		return 0, err
	}

	t := time.Date(y, time.Month(m+1), d, h, mi, sec, ms*int(time.Millisecond), loc)
	return t.UnixMilli(), nil
}

func looksLikeTimeOfDay(s string) bool {
	return strings.Contains(s, ":")
}

func parseDateComponents(s string) (year, month0, day int, err error) {
	// Month-name form: "May 16 2020", "16 May 2020", etc. — detect a
	// >=3-letter alphabetic token.
	fields := splitDateFields(s)
	for i, f := range fields {
		if mi := monthIndexFromPrefix(f); mi >= 0 {
			rest := append(append([]string{}, fields[:i]...), fields[i+1:]...)
			return parseNumericDateWithMonth(mi, rest)
		}
	}

	switch {
	case strings.Contains(s, "-"):
		parts := strings.SplitN(s, "-", 3)
		return parseYMD(parts)
	case strings.Contains(s, "/"):
		parts := strings.Split(s, "/")
		if len(parts) == 3 && len(parts[2]) == 4 {
			// MM/DD/YYYY
			return parseMDY(parts)
		}
		return parseYMD(parts)
	case strings.Contains(s, " "):
		return parseYMD(fields)
	default:
		if len(s) == 4 {
			y, err := strconv.Atoi(s)
			return y, 0, 1, err
		}
	}
	return 0, 0, 0, errs.New(errs.Compilation, "unrecognized date string %q", s)
}

func splitDateFields(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == '-' || r == '/' || r == ' ' || r == ','
	})
}

func monthIndexFromPrefix(tok string) int {
	lower := strings.ToLower(tok)
	if len(lower) < 3 {
		return -1
	}
	for i, name := range monthNames {
		if strings.HasPrefix(name, lower) {
			return i
		}
	}
	return -1
}

func parseNumericDateWithMonth(month0 int, rest []string) (int, int, int, error) {
	var nums []int
	for _, f := range rest {
		n, err := strconv.Atoi(strings.TrimSuffix(f, ","))
		if err == nil {
			nums = append(nums, n)
		}
	}
	day := 1
	year := 1970
	switch len(nums) {
	case 0:
	case 1:
		if nums[0] > 31 {
			year = normalizeYear(nums[0])
		} else {
			day = nums[0]
		}
	default:
		day = nums[0]
		year = normalizeYear(nums[1])
	}
	return year, month0, day, nil
}

func parseYMD(parts []string) (int, int, int, error) {
	if len(parts) < 1 {
		return 0, 0, 0, errs.New(errs.Compilation, "empty date")
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, 0, errs.Wrap(err, "parsing year")
	}
	month0 := 0
	day := 1
	if len(parts) > 1 {
		m, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return 0, 0, 0, errs.Wrap(err, "parsing month")
		}
		month0 = m - 1
	}
	if len(parts) > 2 {
		d, err := strconv.Atoi(strings.TrimSpace(strings.SplitN(parts[2], "T", 2)[0]))
		if err != nil {
			return 0, 0, 0, errs.Wrap(err, "parsing day")
		}
		day = d
	}
	return normalizeYear(y), month0, day, nil
}

func parseMDY(parts []string) (int, int, int, error) {
	m, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, err
	}
	d, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, err
	}
	y, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, err
	}
	return y, m - 1, d, nil
}

// normalizeYear maps two-digit years 0..99 to 1900..1999 per §4.3.
func normalizeYear(y int) int {
	if y >= 0 && y < 100 {
		return 1900 + y
	}
	return y
}

func parseTimeComponents(s string, defaultTZ *time.Location) (h, mi, sec, ms int, loc *time.Location, err error) {
	loc = defaultTZ
	if s == "" {
		return 0, 0, 0, 0, loc, nil
	}

	// Split off timezone suffix.
	tzPart := ""
	body := s
	if strings.HasSuffix(s, "Z") {
		tzPart = "Z"
		body = strings.TrimSuffix(s, "Z")
	} else if idx := strings.LastIndexAny(s, "+-"); idx > 0 {
		tzPart = s[idx:]
		body = s[:idx]
	}

	fields := strings.SplitN(body, ":", 3)
	if len(fields) > 0 && fields[0] != "" {
		h, err = strconv.Atoi(fields[0])
		if err != nil {
			return 0, 0, 0, 0, nil, errs.Wrap(err, "parsing hour")
		}
	}
	if len(fields) > 1 {
		mi, err = strconv.Atoi(fields[1])
		if err != nil {
			return 0, 0, 0, 0, nil, errs.Wrap(err, "parsing minute")
		}
	}
	if len(fields) > 2 {
		secField := fields[2]
		msStr := ""
		if dot := strings.IndexByte(secField, '.'); dot >= 0 {
			msStr = secField[dot+1:]
			secField = secField[:dot]
		}
		sec, err = strconv.Atoi(secField)
		if err != nil {
			return 0, 0, 0, 0, nil, errs.Wrap(err, "parsing second")
		}
		if msStr != "" {
			for len(msStr) < 3 {
				msStr += "0"
			}
			ms, err = strconv.Atoi(msStr[:3])
			if err != nil {
				return 0, 0, 0, 0, nil, errs.Wrap(err, "parsing millisecond")
			}
		}
	}

	switch {
	case tzPart == "Z":
		loc = time.UTC
	case tzPart != "":
		offMinutes, err := parseTZOffset(tzPart)
		if err != nil {
			return 0, 0, 0, 0, nil, err
		}
		loc = time.FixedZone(tzPart, offMinutes*60)
	}

	return h, mi, sec, ms, loc, nil
}

func parseTZOffset(s string) (int, error) {
	sign := 1
	if strings.HasPrefix(s, "-") {
		sign = -1
	}
	s = strings.TrimLeft(s, "+-")
	parts := strings.Split(s, ":")
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, err
	}
	m := 0
	if len(parts) > 1 {
		m, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, err
		}
	}
	return sign * (h*60 + m), nil
}

// BuildTimestamp constructs a UTC millisecond timestamp from JS-convention
// (0-based month, 2-digit year mapping) components in loc, per
// datetime(y,m[,d,h,mm,s,ms]) / utc(...).
func BuildTimestamp(year, month0, day, hour, minute, second, millis int, loc *time.Location) int64 {
	t := time.Date(normalizeYear(year), time.Month(month0+1), day, hour, minute, second, millis*int(time.Millisecond), loc)
	return t.UnixMilli()
}

