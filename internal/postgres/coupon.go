package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/meridian/internal/domain"
)

// CouponStore implements coupon lookup and redemption over PostgreSQL.
// Redemption is a single transaction: a conditional usage_count increment
// followed by an append to the usage log. The conditional UPDATE is what
// keeps concurrent checkouts from blowing past a usage limit.
type CouponStore struct {
	pool *pgxpool.Pool
}

var _ domain.CouponRepository = (*CouponStore)(nil)

// NewCouponStore creates a PostgreSQL-backed coupon store.
func NewCouponStore(pool *pgxpool.Pool) *CouponStore {
	return &CouponStore{pool: pool}
}

// GetByCode looks up a coupon by code, case-insensitively.
func (s *CouponStore) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	var c domain.Coupon
	err := s.pool.QueryRow(ctx,
		`SELECT code, discount_type, discount_value, minimum_order_amount,
		        maximum_discount, usage_limit, usage_count, usage_limit_per_user,
		        start_date, end_date, product_scope, scoped_products,
		        apply_to_shipping, store_only, is_active
		 FROM coupons WHERE code = $1`, code).Scan(
		&c.Code, &c.DiscountType, &c.DiscountValue, &c.MinimumOrderAmount,
		&c.MaximumDiscount, &c.UsageLimit, &c.UsageCount, &c.UsageLimitPerUser,
		&c.StartDate, &c.EndDate, &c.ProductScope, &c.ScopedProducts,
		&c.ApplyToShipping, &c.StoreOnly, &c.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NotFound("coupon.get_by_code", "coupon", code)
		}
		return nil, domain.Internal(err, "coupon.get_by_code", "failed to load coupon")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT user_id, order_id, used_at FROM coupon_usages
		 WHERE coupon_code = $1 ORDER BY used_at ASC`, code)
	if err != nil {
		return nil, domain.Internal(err, "coupon.get_by_code", "failed to load usage log")
	}
	defer rows.Close()

	for rows.Next() {
		var u domain.CouponUsage
		if err := rows.Scan(&u.UserID, &u.OrderID, &u.UsedAt); err != nil {
			return nil, domain.Internal(err, "coupon.get_by_code", "failed to scan usage entry")
		}
		c.UsedBy = append(c.UsedBy, u)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.Internal(err, "coupon.get_by_code", "failed to read usage log")
	}

	return &c, nil
}

// CommitUsage atomically increments usage_count iff the global limit is not
// exhausted, and appends to the redemption log. Returns false when the limit
// was hit concurrently.
func (s *CouponStore) CommitUsage(ctx context.Context, code, userID, orderID string) (bool, error) {
	code = strings.ToUpper(strings.TrimSpace(code))

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, domain.Internal(err, "coupon.commit_usage", "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE coupons SET usage_count = usage_count + 1
		 WHERE code = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`, code)
	if err != nil {
		return false, domain.Internal(err, "coupon.commit_usage", "failed to increment usage count")
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO coupon_usages (coupon_code, user_id, order_id, used_at)
		 VALUES ($1, $2, $3, now())`, code, userID, orderID)
	if err != nil {
		return false, domain.Internal(err, "coupon.commit_usage", "failed to append usage entry")
	}

	if err := tx.Commit(ctx); err != nil {
		return false, domain.Internal(err, "coupon.commit_usage", "failed to commit transaction")
	}
	return true, nil
}
