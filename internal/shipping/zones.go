package shipping

import (
	"math"
	"sort"
	"strings"

	"github.com/dukerupert/meridian/internal/address"
)

const earthRadiusKm = 6371.0

// MatchedZone pairs a matched zone with the geofence distance, when the zone
// declared one.
type MatchedZone struct {
	Zone Zone

	// DistanceKm is the great-circle distance to the zone's geofence
	// center. Nil for zones without a geofence.
	DistanceKm *float64
}

// MatchZones returns every zone matching the destination, ordered by declared
// priority descending, ties broken by earlier creation.
//
// A zone matches when every non-empty attribute list contains the
// corresponding normalized address field, and, if the zone declares a
// geofence, the destination coordinates fall within its radius. A geofenced
// zone never matches a destination without coordinates.
func MatchZones(zones []Zone, dest address.Address, coords *address.Coordinates) []MatchedZone {
	var matched []MatchedZone

	for _, zone := range zones {
		m, ok := matchZone(zone, dest, coords)
		if ok {
			matched = append(matched, m)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].Zone.Priority != matched[j].Zone.Priority {
			return matched[i].Zone.Priority > matched[j].Zone.Priority
		}
		return matched[i].Zone.CreatedAt.Before(matched[j].Zone.CreatedAt)
	})

	return matched
}

func matchZone(zone Zone, dest address.Address, coords *address.Coordinates) (MatchedZone, bool) {
	if !listMatches(zone.Countries, address.NormalizeCountry(dest.Country), address.NormalizeCountry) {
		return MatchedZone{}, false
	}
	if !listMatches(zone.States, address.NormalizeState(dest.State), address.NormalizeState) {
		return MatchedZone{}, false
	}
	if !listMatches(zone.Cities, address.NormalizeCity(dest.City), address.NormalizeCity) {
		return MatchedZone{}, false
	}
	if !listMatches(zone.PostalCodes, address.NormalizePostal(dest.PostalCode), address.NormalizePostal) {
		return MatchedZone{}, false
	}
	if !prefixMatches(zone.ZipPrefixes, address.NormalizePostal(dest.PostalCode)) {
		return MatchedZone{}, false
	}

	if zone.GeoFence != nil {
		if coords == nil {
			return MatchedZone{}, false
		}
		dist := haversineKm(coords.Lat, coords.Lng, zone.GeoFence.CenterLat, zone.GeoFence.CenterLng)
		if dist > zone.GeoFence.RadiusKm {
			return MatchedZone{}, false
		}
		return MatchedZone{Zone: zone, DistanceKm: &dist}, true
	}

	return MatchedZone{Zone: zone}, true
}

// listMatches treats an empty allow-list as a wildcard.
func listMatches(list []string, normalized string, normalize func(string) string) bool {
	if len(list) == 0 {
		return true
	}
	for _, entry := range list {
		if normalize(entry) == normalized {
			return true
		}
	}
	return false
}

// prefixMatches treats an empty prefix list as a wildcard.
func prefixMatches(prefixes []string, normalizedPostal string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, prefix := range prefixes {
		p := address.NormalizePostal(prefix)
		if p != "" && strings.HasPrefix(normalizedPostal, p) {
			return true
		}
	}
	return false
}

// haversineKm computes the great-circle distance between two points.
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLng := rad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)

	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
