package vm

import (
	"fmt"
	"sort"
	"sync"
	"time"
	_ "time/tzdata" // embedded zone database
)

var utcZone = &TimeZone{Name: "UTC", Location: time.UTC}

var (
	zoneCacheMu sync.Mutex
	zoneCache   = map[string]*TimeZone{"UTC": utcZone}
)

// LoadTimeZone resolves an IANA zone name such as "America/Chicago".
func LoadTimeZone(name string) (*TimeZone, error) {
	zoneCacheMu.Lock()
	defer zoneCacheMu.Unlock()
	if tz, ok := zoneCache[name]; ok {
		return tz, nil
	}
	if name == "" || name == "Local" {
		return nil, fmt.Errorf("time zone %q was not found", name)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("time zone %q was not found: %w", name, err)
	}
	tz := &TimeZone{Name: name, Location: loc}
	zoneCache[name] = tz
	return tz, nil
}

// zoneNames lists the canonical zones offered by AvailableTimeZones. The
// embedded database has no directory listing, so the names are kept here.
var zoneNames = []string{
	"Africa/Abidjan", "Africa/Algiers", "Africa/Cairo", "Africa/Casablanca",
	"Africa/Johannesburg", "Africa/Lagos", "Africa/Nairobi", "Africa/Tripoli",
	"America/Anchorage", "America/Argentina/Buenos_Aires", "America/Bogota",
	"America/Caracas", "America/Chicago", "America/Denver", "America/Halifax",
	"America/Havana", "America/Lima", "America/Los_Angeles", "America/Mexico_City",
	"America/New_York", "America/Phoenix", "America/Santiago", "America/Sao_Paulo",
	"America/St_Johns", "America/Toronto", "America/Vancouver",
	"Asia/Baghdad", "Asia/Bangkok", "Asia/Dhaka", "Asia/Dubai", "Asia/Hong_Kong",
	"Asia/Jakarta", "Asia/Jerusalem", "Asia/Karachi", "Asia/Kathmandu",
	"Asia/Kolkata", "Asia/Manila", "Asia/Seoul", "Asia/Shanghai", "Asia/Singapore",
	"Asia/Taipei", "Asia/Tehran", "Asia/Tokyo",
	"Atlantic/Azores", "Atlantic/Reykjavik",
	"Australia/Adelaide", "Australia/Brisbane", "Australia/Darwin",
	"Australia/Perth", "Australia/Sydney",
	"Europe/Amsterdam", "Europe/Athens", "Europe/Berlin", "Europe/Brussels",
	"Europe/Dublin", "Europe/Helsinki", "Europe/Istanbul", "Europe/Kyiv",
	"Europe/Lisbon", "Europe/London", "Europe/Madrid", "Europe/Moscow",
	"Europe/Paris", "Europe/Rome", "Europe/Stockholm", "Europe/Warsaw",
	"Europe/Zurich",
	"Pacific/Auckland", "Pacific/Honolulu", "Pacific/Fiji", "Pacific/Guam",
	"UTC",
}

func init() {
	sort.Strings(zoneNames)
}
