// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is a backup schedule kind. Its string value is also the prefix of the
// instance tags that configure it and the value of the snapshot Type tag.
type Type string

const (
	Daily   Type = "DailyBackup"
	Weekly  Type = "WeeklyBackup"
	Monthly Type = "MonthlyBackup"
)

// Types lists every schedule kind in processing order.
var Types = []Type{Daily, Weekly, Monthly}

// EventTimeLayout is the layout of the "time" field of scheduled events.
const EventTimeLayout = "2006-01-02T15:04:05Z"

var (
	ErrUnknownType       = errors.New("unknown backup type")
	ErrInvalidGeneration = errors.New("generation must be a positive integer")
)

// Filter is a single EC2 describe filter. Name is the full filter name, e.g.
// "tag:DailyBackupHour".
type Filter struct {
	Name   string
	Values []string
}

// ParseType validates s as a backup type.
func ParseType(s string) (Type, error) {
	for _, t := range Types {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// HourTag returns the instance tag holding the hour of day.
func (t Type) HourTag() string { return string(t) + "Hour" }

// MinuteTag returns the instance tag holding the minute.
func (t Type) MinuteTag() string { return string(t) + "Minute" }

// DayTag returns the instance tag holding the day spec. Daily has none.
func (t Type) DayTag() string {
	if t == Daily {
		return ""
	}
	return string(t) + "Day"
}

// GenerationTag returns the instance tag holding the retention count.
func (t Type) GenerationTag() string { return string(t) + "Generation" }

// RemoteRegionTag returns the instance tag naming the replication region.
func (t Type) RemoteRegionTag() string { return string(t) + "RemoteRegion" }

// Filters builds the tag filters that select instances due at at. The caller
// is responsible for converting at into the schedule location first.
func Filters(t Type, at time.Time) ([]Filter, error) {
	hourMinute := []Filter{
		{Name: "tag:" + t.HourTag(), Values: []string{strconv.Itoa(at.Hour())}},
		{Name: "tag:" + t.MinuteTag(), Values: []string{strconv.Itoa(at.Minute())}},
	}

	switch t {
	case Daily:
		return hourMinute, nil
	case Weekly:
		day := Filter{Name: "tag:" + t.DayTag(), Values: []string{Weekday(at)}}
		return append([]Filter{day}, hourMinute...), nil
	case Monthly:
		day := Filter{Name: "tag:" + t.DayTag(), Values: MonthDays(at)}
		return append([]Filter{day}, hourMinute...), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// Weekday returns the three letter English abbreviation used by the
// WeeklyBackupDay tag, e.g. "Mon".
func Weekday(at time.Time) string {
	return at.Weekday().String()[:3]
}

// MonthDays returns every MonthlyBackupDay value that matches at:
// the day number, "Last" on the last day of the month, "<Dow>#<n>" for the
// n-th occurrence of the weekday and "<Dow>#Last" for its last occurrence.
func MonthDays(at time.Time) []string {
	day := at.Day()
	last := LastDayOfMonth(at)
	dow := Weekday(at)
	week := (day-1)/7 + 1

	values := []string{strconv.Itoa(day)}
	if day == last {
		values = append(values, "Last")
	}
	values = append(values, fmt.Sprintf("%s#%d", dow, week))
	if day > last-7 {
		values = append(values, dow+"#Last")
	}
	return values
}

// LastDayOfMonth returns the number of days in at's month.
func LastDayOfMonth(at time.Time) int {
	// Day 0 of the following month normalizes to the last day of this one.
	return time.Date(at.Year(), at.Month()+1, 0, 0, 0, 0, 0, at.Location()).Day()
}

// ParseEventTime parses the UTC "time" field of a scheduled event and
// converts it into loc. A nil loc means time.Local.
func ParseEventTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(EventTimeLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid event time %q: %w", s, err)
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc), nil
}

// LoadLocation resolves a schedule timezone name. An empty name means the
// process local zone, which honors TZ.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", name, err)
	}
	return loc, nil
}

// ParseGeneration parses a generation tag value.
func ParseGeneration(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidGeneration, s)
	}
	return n, nil
}
