package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/meridian/internal/domain"
	"github.com/dukerupert/meridian/internal/shipping"
)

// ShippingStore loads shipping zones, methods, and rate tiers from PostgreSQL.
type ShippingStore struct {
	pool *pgxpool.Pool
}

var _ shipping.ZoneRepository = (*ShippingStore)(nil)
var _ shipping.MethodRepository = (*ShippingStore)(nil)

// NewShippingStore creates a PostgreSQL-backed shipping store.
func NewShippingStore(pool *pgxpool.Pool) *ShippingStore {
	return &ShippingStore{pool: pool}
}

// ListZones returns all configured zones. Creation order is preserved via
// created_at so the matcher's tiebreak is stable.
func (s *ShippingStore) ListZones(ctx context.Context) ([]shipping.Zone, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, priority, is_default,
		        countries, states, cities, postal_codes, zip_prefixes,
		        geo_center_lat, geo_center_lng, geo_radius_km, created_at
		 FROM shipping_zones
		 ORDER BY created_at ASC`)
	if err != nil {
		return nil, domain.Internal(err, "shipping.list_zones", "failed to query zones")
	}
	defer rows.Close()

	var zones []shipping.Zone
	for rows.Next() {
		var z shipping.Zone
		var lat, lng, radiusKm *float64
		err := rows.Scan(
			&z.ID, &z.Name, &z.Priority, &z.IsDefault,
			&z.Countries, &z.States, &z.Cities, &z.PostalCodes, &z.ZipPrefixes,
			&lat, &lng, &radiusKm, &z.CreatedAt,
		)
		if err != nil {
			return nil, domain.Internal(err, "shipping.list_zones", "failed to scan zone")
		}
		if lat != nil && lng != nil && radiusKm != nil {
			z.GeoFence = &shipping.GeoFence{CenterLat: *lat, CenterLng: *lng, RadiusKm: *radiusKm}
		}
		zones = append(zones, z)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "shipping.list_zones", "failed to read zones")
	}
	return zones, nil
}

// ListMethods returns all active methods with their rate tiers attached.
func (s *ShippingStore) ListMethods(ctx context.Context) ([]shipping.Method, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, status, allow_physical, allow_digital,
		        default_cost, handling_fee, estimated_days_min, estimated_days_max,
		        display_order
		 FROM shipping_methods
		 WHERE status = 'active'
		 ORDER BY display_order ASC, id ASC`)
	if err != nil {
		return nil, domain.Internal(err, "shipping.list_methods", "failed to query methods")
	}
	defer rows.Close()

	var methods []shipping.Method
	index := map[string]int{}
	for rows.Next() {
		var m shipping.Method
		err := rows.Scan(
			&m.ID, &m.Name, &m.Status, &m.AllowPhysical, &m.AllowDigital,
			&m.DefaultCost, &m.HandlingFee, &m.EstimatedDaysMin, &m.EstimatedDaysMax,
			&m.DisplayOrder,
		)
		if err != nil {
			return nil, domain.Internal(err, "shipping.list_methods", "failed to scan method")
		}
		index[m.ID] = len(methods)
		methods = append(methods, m)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "shipping.list_methods", "failed to read methods")
	}
	if len(methods) == 0 {
		return methods, nil
	}

	rateRows, err := s.pool.Query(ctx,
		`SELECT r.id, r.method_id, r.label, COALESCE(r.zone_id, ''), r.type,
		        r.base_cost, r.per_item_cost, r.per_weight_kg_cost, r.handling_fee,
		        r.use_method_cost, r.min_subtotal, r.max_subtotal, r.free_above,
		        r.min_distance_km, r.max_distance_km
		 FROM shipping_rates r
		 JOIN shipping_methods m ON m.id = r.method_id
		 WHERE m.status = 'active'
		 ORDER BY r.method_id, r.position ASC`)
	if err != nil {
		return nil, domain.Internal(err, "shipping.list_methods", "failed to query rates")
	}
	defer rateRows.Close()

	for rateRows.Next() {
		var (
			r        shipping.Rate
			methodID string
		)
		err := rateRows.Scan(
			&r.ID, &methodID, &r.Label, &r.ZoneID, &r.Type,
			&r.BaseCost, &r.PerItemCost, &r.PerWeightKgCost, &r.HandlingFee,
			&r.UseMethodCost, &r.MinSubtotal, &r.MaxSubtotal, &r.FreeAbove,
			&r.MinDistanceKm, &r.MaxDistanceKm,
		)
		if err != nil {
			return nil, domain.Internal(err, "shipping.list_methods", "failed to scan rate")
		}
		if i, ok := index[methodID]; ok {
			methods[i].Rates = append(methods[i].Rates, r)
		}
	}
	if err := rateRows.Err(); err != nil {
		return nil, domain.Internal(err, "shipping.list_methods", "failed to read rates")
	}

	return methods, nil
}
