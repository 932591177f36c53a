package loyalty

import (
	"time"

	"github.com/shopspring/decimal"

	"shopflow/backend/internal/domain"
)

// expiringSoonWindow is how far ahead a point batch's expiry must fall for
// the balance report to count it as "expiring soon".
const expiringSoonWindow = 30 * 24 * time.Hour

// Award is the outcome of applying an active program config to a purchase.
type Award struct {
	Points    int64
	ExpiresAt *time.Time
}

// CalculateAward applies cfg to a purchase amount. A purchase below the
// minimum earns nothing. Points are floor(amount * pointsPerDollar), then
// clamped to the per-purchase maximum when one is set.
func CalculateAward(cfg domain.LoyaltyConfig, purchaseAmount decimal.Decimal, now time.Time) Award {
	if purchaseAmount.LessThan(cfg.MinPurchaseForPoints) {
		return Award{}
	}

	points := purchaseAmount.Mul(cfg.PointsPerDollar).Floor().IntPart()
	if points <= 0 {
		return Award{}
	}
	if cfg.MaxPointsPerPurchase != nil && points > *cfg.MaxPointsPerPurchase {
		points = *cfg.MaxPointsPerPurchase
	}

	award := Award{Points: points}
	if cfg.PointsExpireMonths != nil && *cfg.PointsExpireMonths > 0 {
		expires := now.AddDate(0, *cfg.PointsExpireMonths, 0)
		award.ExpiresAt = &expires
	}
	return award
}

// Balance derives a customer's point balance from their transaction history.
// Expired EARNED batches are skipped entirely; REDEEMED entries (stored as
// negative points) reduce the available balance but not the lifetime total.
func Balance(customer domain.Customer, history []domain.LoyaltyPointTransaction, now time.Time) domain.LoyaltyBalance {
	balance := domain.LoyaltyBalance{
		CustomerID:   customer.ID,
		CustomerName: customer.Name,
	}

	for _, tx := range history {
		if tx.ExpiresAt != nil && !tx.ExpiresAt.After(now) {
			continue
		}

		switch tx.Type {
		case domain.LoyaltyTypeEarned, domain.LoyaltyTypeAdjusted:
			balance.TotalPoints += tx.Points
			balance.AvailablePoints += tx.Points
			if tx.ExpiresAt != nil && tx.ExpiresAt.Sub(now) <= expiringSoonWindow {
				balance.ExpiringSoon += tx.Points
			}
		case domain.LoyaltyTypeRedeemed:
			balance.AvailablePoints += tx.Points
		}

		if balance.LastActivity == nil || tx.CreatedAt.After(*balance.LastActivity) {
			at := tx.CreatedAt
			balance.LastActivity = &at
		}
	}

	if balance.AvailablePoints < 0 {
		balance.AvailablePoints = 0
	}
	return balance
}
