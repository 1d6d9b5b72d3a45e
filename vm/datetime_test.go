package vm

import (
	"testing"

	"github.com/nalgeon/be"

	"github.com/tmbasic-lang/tmbasic-sub000/pkg/decimal"
)

func TestFormatTimeSpan(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "00:00:00.000"},
		{1, "00:00:00.001"},
		{msPerHour + 2*msPerMinute + 3*msPerSecond + 4, "01:02:03.004"},
		{30 * msPerHour, "30:00:00.000"},
		{-msPerMinute, "-00:01:00.000"},
	}
	for _, tt := range tests {
		be.Equal(t, formatTimeSpan(num(tt.ms)), tt.want)
	}
}

func TestDateTimeFromParts(t *testing.T) {
	ms, err := dateTimeFromParts(2021, 3, 4, 5, 6, 7, 8)
	be.Err(t, err, nil)
	be.Equal(t, formatDateTime(num(ms)), "2021-03-04 05:06:07.008")
	be.Equal(t, formatDate(num(ms)), "2021-03-04")

	ms, err = dateTimeFromParts(1970, 1, 1, 0, 0, 0, 0)
	be.Err(t, err, nil)
	be.Equal(t, ms, int64(0))
}

func TestDateTimeFromPartsRejectsInvalid(t *testing.T) {
	tests := []struct {
		name               string
		y, mo, d, h, mi, s int64
		ms                 int64
	}{
		{"month 13", 2021, 13, 1, 0, 0, 0, 0},
		{"february 30", 2021, 2, 30, 0, 0, 0, 0},
		{"not a leap year", 2021, 2, 29, 0, 0, 0, 0},
		{"hour 24", 2021, 1, 1, 24, 0, 0, 0},
		{"millisecond 1000", 2021, 1, 1, 0, 0, 0, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dateTimeFromParts(tt.y, tt.mo, tt.d, tt.h, tt.mi, tt.s, tt.ms)
			be.Err(t, err)
		})
	}
	_, err := dateTimeFromParts(2020, 2, 29, 0, 0, 0, 0)
	be.Err(t, err, nil)
}

func TestTruncateToDate(t *testing.T) {
	ms, _ := dateTimeFromParts(2021, 3, 4, 23, 59, 59, 999)
	be.Equal(t, formatDateTime(truncateToDate(num(ms))), "2021-03-04 00:00:00.000")

	before, _ := dateTimeFromParts(1969, 12, 31, 12, 0, 0, 0)
	be.Equal(t, formatDateTime(truncateToDate(num(before))), "1969-12-31 00:00:00.000")
}

func TestZoneOffset(t *testing.T) {
	tz, err := LoadTimeZone("America/Chicago")
	be.Err(t, err, nil)

	winter, _ := dateTimeFromParts(2021, 1, 15, 12, 0, 0, 0)
	summer, _ := dateTimeFromParts(2021, 7, 15, 12, 0, 0, 0)
	be.Equal(t, zoneOffset(tz.Location, winter), int64(-6*msPerHour))
	be.Equal(t, zoneOffset(tz.Location, summer), int64(-5*msPerHour))
	be.Equal(t, zoneOffset(utcZone.Location, summer), int64(0))
}

func TestLoadTimeZone(t *testing.T) {
	_, err := LoadTimeZone("Nowhere/Nothing")
	be.Err(t, err)
	_, err = LoadTimeZone("Local")
	be.Err(t, err)

	a, err := LoadTimeZone("Europe/Paris")
	be.Err(t, err, nil)
	b, _ := LoadTimeZone("Europe/Paris")
	be.True(t, a == b)
	be.Equal(t, a.Name, "Europe/Paris")
}

func TestZoneNamesLoad(t *testing.T) {
	for _, name := range zoneNames {
		_, err := LoadTimeZone(name)
		be.Err(t, err, nil)
	}
}

func TestIntValue(t *testing.T) {
	n, ok := intValue(decimal.MustParse("-2.7"))
	be.True(t, ok)
	be.Equal(t, n, int64(-2))

	_, ok = intValue(nan())
	be.True(t, !ok)
}
