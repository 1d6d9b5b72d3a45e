package vm

import (
	"fmt"
	"time"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/bytecode"
	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

// Dates and date-times are milliseconds since 1970-01-01 00:00 in civil
// (zone-less) time. A date is a date-time at midnight. Time spans are
// signed millisecond counts.
const (
	msPerSecond = 1000
	msPerMinute = 60 * msPerSecond
	msPerHour   = 60 * msPerMinute
	msPerDay    = 24 * msPerHour
)

// civil converts a millisecond count to a UTC time carrying the civil
// fields.
func civil(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// truncateToDate drops the time of day, rounding toward negative infinity
// so that times before 1970 keep their calendar day.
func truncateToDate(v Value) Value {
	ms := mustInt(v)
	day := ms / msPerDay
	if ms%msPerDay < 0 {
		day--
	}
	return decimal.FromInt64(day * msPerDay)
}

// dateTimeFromParts validates the civil fields and returns milliseconds.
func dateTimeFromParts(year, month, day, hour, minute, second, millisecond int64) (int64, error) {
	switch {
	case month < 1 || month > 12,
		day < 1 || day > 31,
		hour < 0 || hour > 23,
		minute < 0 || minute > 59,
		second < 0 || second > 59,
		millisecond < 0 || millisecond > 999,
		year < -9999 || year > 9999:
		return 0, fmt.Errorf("invalid date or time")
	}
	t := time.Date(int(year), time.Month(month), int(day), int(hour), int(minute), int(second), int(millisecond)*int(time.Millisecond), time.UTC)
	if t.Day() != int(day) {
		return 0, fmt.Errorf("invalid day %d for %04d-%02d", day, year, month)
	}
	return t.UnixMilli(), nil
}

// zoneOffset is the UTC offset in milliseconds that loc applies to the
// civil time ms.
func zoneOffset(loc *time.Location, ms int64) int64 {
	c := civil(ms)
	t := time.Date(c.Year(), c.Month(), c.Day(), c.Hour(), c.Minute(), c.Second(), c.Nanosecond(), loc)
	_, offset := t.Zone()
	return int64(offset) * msPerSecond
}

func formatDate(v Value) string {
	return civil(mustInt(v)).Format("2006-01-02")
}

func formatDateTime(v Value) string {
	return civil(mustInt(v)).Format("2006-01-02 15:04:05.000")
}

// formatTimeSpan renders hours:minutes:seconds.milliseconds. Hours are not
// folded into days.
func formatTimeSpan(v Value) string {
	ms := mustInt(v)
	sign := ""
	if ms < 0 {
		sign = "-"
		ms = -ms
	}
	hours := ms / msPerHour
	ms -= hours * msPerHour
	minutes := ms / msPerMinute
	ms -= minutes * msPerMinute
	seconds := ms / msPerSecond
	ms -= seconds * msPerSecond
	return fmt.Sprintf("%s%02d:%02d:%02d.%03d", sign, hours, minutes, seconds, ms)
}

// newDateTimeOffset builds the record behind the DateTimeOffset type:
// values [DateTime, Offset].
func newDateTimeOffset(dateTime, offset int64) *Record {
	return &Record{Values: []Value{decimal.FromInt64(dateTime), decimal.FromInt64(offset)}}
}

// timeSpanScale maps the TimeSpan constructors and Total* accessors to
// their unit in milliseconds.
var timeSpanScale = map[bytecode.SystemCall]int64{
	bytecode.SysDays:              msPerDay,
	bytecode.SysHours:             msPerHour,
	bytecode.SysMinutes:           msPerMinute,
	bytecode.SysSeconds:           msPerSecond,
	bytecode.SysMilliseconds:      1,
	bytecode.SysTotalDays:         msPerDay,
	bytecode.SysTotalHours:        msPerHour,
	bytecode.SysTotalMinutes:      msPerMinute,
	bytecode.SysTotalSeconds:      msPerSecond,
	bytecode.SysTotalMilliseconds: 1,
}
