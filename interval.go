package main

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// interval bounds message sent times. A zero bound is open.
type interval struct {
	min time.Time
	max time.Time
}

// parseInterval parses "min,max" where either side may be empty. Without a
// comma the value is used for both sides, selecting that whole period.
func parseInterval(str string) (interval, error) {
	minStr, maxStr, found := strings.Cut(str, ",")
	if !found {
		maxStr = minStr
	}
	lo, err := parseIntervalTime(minStr, false)
	if err != nil {
		return interval{}, err
	}
	hi, err := parseIntervalTime(maxStr, true)
	if err != nil {
		return interval{}, err
	}
	if !lo.IsZero() && !hi.IsZero() && lo.After(hi) {
		return interval{}, fmt.Errorf("%s: interval start is after its end", str)
	}
	return interval{min: lo, max: hi}, nil
}

// parseIntervalTime parses yyyy[-mm[-dd[Thh[:mm[:ss]]]]] in local time. For
// the end of an interval it returns the last instant of the stated period.
func parseIntervalTime(str string, end bool) (time.Time, error) {
	if str == "" {
		return time.Time{}, nil
	}

	years, months, days := 0, 0, 0
	var span time.Duration
	switch len(str) {
	case 4:
		years = 1
	case 7:
		months = 1
	case 10:
		days = 1
	case 13:
		span = time.Hour
	case 16:
		span = time.Minute
	case 19:
		span = time.Second
	default:
		return time.Time{}, fmt.Errorf("%s: invalid time", str)
	}

	const layout = "2006-01-02T15:04:05"
	t, err := time.ParseInLocation(layout[:len(str)], str, time.Local)
	if err != nil {
		var perr *time.ParseError
		if errors.As(err, &perr) && perr.Message != "" {
			return time.Time{}, fmt.Errorf("%s%s", str, perr.Message)
		}
		return time.Time{}, fmt.Errorf("%s: invalid time", str)
	}
	if end {
		t = t.AddDate(years, months, days).Add(span).Add(-1)
	}
	return t, nil
}
