// Package shipping matches destinations against configured zones and turns
// shipping methods and their rate tiers into priced options for a cart.
package shipping

import (
	"context"
	"time"
)

// Zone is a named geographic/attribute match rule scoping shipping rates.
// Each attribute list is an allow-list; an empty list matches everything in
// that dimension.
type Zone struct {
	ID        string
	Name      string
	Priority  int
	IsDefault bool

	Countries   []string
	States      []string
	Cities      []string
	PostalCodes []string
	ZipPrefixes []string

	// GeoFence, when set, additionally requires destination coordinates
	// within RadiusKm of the center. No coordinates means no match.
	GeoFence *GeoFence

	CreatedAt time.Time
}

// GeoFence is a circular matching region.
type GeoFence struct {
	CenterLat float64
	CenterLng float64
	RadiusKm  float64
}

// MethodStatus enables or disables a shipping method.
type MethodStatus string

const (
	MethodActive   MethodStatus = "active"
	MethodInactive MethodStatus = "inactive"
)

// Method is a configured way of shipping with zero or more rate tiers.
// A method with no tiers behaves as if it had one tier built from its own
// defaults.
type Method struct {
	ID     string
	Name   string
	Status MethodStatus

	AllowPhysical bool
	AllowDigital  bool

	DefaultCost float64
	HandlingFee float64

	EstimatedDaysMin int
	EstimatedDaysMax int
	DisplayOrder     int

	Rates []Rate
}

// Rate is one priced tier of a method, optionally scoped to a zone and to
// subtotal/distance bounds.
type Rate struct {
	ID    string
	Label string

	// ZoneID scopes the tier to a zone; empty means any destination the
	// method serves.
	ZoneID string

	// Type is a display classification ("flat", "expedited", ...).
	Type string

	BaseCost        float64
	PerItemCost     float64
	PerWeightKgCost float64
	HandlingFee     float64

	// UseMethodCost inherits BaseCost from the method's DefaultCost.
	// Legacy tiers that declare no cost fields and no restrictions inherit
	// implicitly.
	UseMethodCost bool

	MinSubtotal *float64
	MaxSubtotal *float64

	// FreeAbove zeroes the base cost once the cart subtotal reaches it.
	// Additive fees still apply.
	FreeAbove *float64

	MinDistanceKm *float64
	MaxDistanceKm *float64
}

// Option is one priced shipping choice offered to the buyer.
type Option struct {
	OptionID      string
	MethodID      string
	RateID        string
	Label         string
	Cost          float64
	Currency      string
	Type          string
	EstimatedDays string
	MatchedZone   string
}

// Selection identifies a previously quoted option at checkout time. Any one
// of the identifier forms is accepted.
type Selection struct {
	OptionID string
	MethodID string
	RateID   string
}

// ZoneRepository loads the configured shipping zones.
type ZoneRepository interface {
	ListZones(ctx context.Context) ([]Zone, error)
}

// MethodRepository loads the configured shipping methods with their tiers.
type MethodRepository interface {
	ListMethods(ctx context.Context) ([]Method, error)
}
