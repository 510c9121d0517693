// Package timeutil resolves account timezones and parses the date strings
// returned by the task API.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"singletask/internal/utils"
)

const (
	dateLayout          = "2006-01-02"
	naiveDateTimeLayout = "2006-01-02T15:04:05"
	utcDateTimeLayout   = "2006-01-02T15:04:05Z"
)

// nowFunc is swapped in tests.
var nowFunc = time.Now

// Now returns the current instant in loc.
func Now(loc *time.Location) time.Time {
	return nowFunc().In(loc)
}

// AgeInMinutes returns how far in the past t is, in whole minutes.
// Positive in the past, negative in the future.
func AgeInMinutes(past time.Time, loc *time.Location) int64 {
	return AgeInMinutesAt(past, Now(loc))
}

// AgeInMinutesAt is AgeInMinutes against an explicit current instant.
func AgeInMinutesAt(past, now time.Time) int64 {
	return int64(now.Sub(past) / time.Minute)
}

// ResolveTimezone accepts an IANA name like "America/Los_Angeles" or an
// offset string like "GMT -7:00".
func ResolveTimezone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, utils.ErrParse("parse_timezone", "empty timezone")
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc, nil
	}
	return parseGMTOffset(name)
}

// parseGMTOffset handles the "GMT ±H[:MM]" form. The zone is named after the
// matching Etc/GMT zone, which inverts the sign by POSIX convention.
func parseGMTOffset(gmt string) (*time.Location, error) {
	fields := strings.Fields(gmt)
	if len(fields) != 2 || !strings.EqualFold(fields[0], "GMT") {
		return nil, utils.ErrParse("parse_timezone", fmt.Sprintf("could not get offset from %q", gmt))
	}

	hoursPart, minutesPart, hasMinutes := strings.Cut(fields[1], ":")
	hours, err := strconv.Atoi(hoursPart)
	if err != nil {
		return nil, utils.ErrParse("parse_timezone", fmt.Sprintf("invalid offset hours in %q", gmt))
	}
	minutes := 0
	if hasMinutes {
		minutes, err = strconv.Atoi(minutesPart)
		if err != nil || minutes < 0 || minutes > 59 {
			return nil, utils.ErrParse("parse_timezone", fmt.Sprintf("invalid offset minutes in %q", gmt))
		}
	}
	if hours < -14 || hours > 14 {
		return nil, utils.ErrParse("parse_timezone", fmt.Sprintf("offset out of range in %q", gmt))
	}

	sign := 1
	if hours < 0 || strings.HasPrefix(hoursPart, "-") {
		sign = -1
	}
	abs := hours
	if abs < 0 {
		abs = -abs
	}
	offset := sign * (abs*3600 + minutes*60)

	return time.FixedZone(etcName(sign, abs, minutes), offset), nil
}

func etcName(sign, hours, minutes int) string {
	if hours == 0 && minutes == 0 {
		return "Etc/GMT"
	}
	inverted := "-"
	if sign < 0 {
		inverted = "+"
	}
	if minutes != 0 {
		return fmt.Sprintf("Etc/GMT%s%d:%02d", inverted, hours, minutes)
	}
	return fmt.Sprintf("Etc/GMT%s%d", inverted, hours)
}

// ParseDateTime parses a due value into an instant. Date-only values resolve
// to 23:59 local time on that date so they sort after timed tasks that day.
func ParseDateTime(raw string, loc *time.Location) (time.Time, error) {
	switch len(raw) {
	case len(dateLayout):
		d, err := time.ParseInLocation(dateLayout, raw, loc)
		if err != nil {
			return time.Time{}, utils.ErrParse("parse_datetime", err.Error())
		}
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 0, 0, loc), nil
	case len(naiveDateTimeLayout):
		t, err := time.ParseInLocation(naiveDateTimeLayout, raw, loc)
		if err != nil {
			return time.Time{}, utils.ErrParse("parse_datetime", err.Error())
		}
		return t, nil
	case len(utcDateTimeLayout):
		t, err := time.Parse(utcDateTimeLayout, raw)
		if err != nil {
			return time.Time{}, utils.ErrParse("parse_datetime", err.Error())
		}
		return t, nil
	default:
		// REST datetimes may carry fractional seconds or an offset.
		if len(raw) > len(naiveDateTimeLayout) {
			if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
				return t, nil
			}
		}
		return time.Time{}, utils.ErrParse("parse_datetime", fmt.Sprintf("unexpected length %d for %q", len(raw), raw))
	}
}

// ParseDate returns midnight in loc of the calendar date carried by raw.
func ParseDate(raw string, loc *time.Location) (time.Time, error) {
	t, err := ParseDateTime(raw, loc)
	if err != nil {
		return time.Time{}, err
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}
