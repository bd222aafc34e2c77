package caltime

import (
	"errors"
	"sync"
	"time"
)

// Loaded locations are immutable, so a shared cache is safe for concurrent
// callers.
var zoneCache sync.Map // map[string]*time.Location

// LoadZone resolves an IANA zone identifier. "UTC" and "Local" are accepted;
// the empty string is rejected so that a missing zone never silently becomes
// the host zone.
func LoadZone(zone string) (*time.Location, error) {
	if zone == "" {
		return nil, &InvalidZoneError{Zone: zone, Err: errors.New("empty zone")}
	}
	if v, ok := zoneCache.Load(zone); ok {
		return v.(*time.Location), nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, &InvalidZoneError{Zone: zone, Err: err}
	}
	zoneCache.Store(zone, loc)
	return loc, nil
}

// ValidZone reports whether zone can be loaded.
func ValidZone(zone string) bool {
	_, err := LoadZone(zone)
	return err == nil
}
