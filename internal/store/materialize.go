package store

import (
	"context"
	"fmt"
	"sort"

	"github.com/uptrace/bun"

	"ms-checkout/internal/models"
)

// Materialization is everything a paid session turns into.
type Materialization struct {
	OrderID    string
	Tickets    []models.Ticket
	TierCounts map[string]int
	Bottles    []models.OrderBottle
	PromoCode  string
}

type MaterializeResult struct {
	TicketsCreated bool
	TicketCount    int
	BottlesCreated bool
	PromoRedeemed  bool
	OversoldTiers  []string
	UnknownTiers   []string
}

// Materialize writes tickets, counters and bottles in one transaction.
// Duplicate rows are rejected by the unique keys, and the counters only move
// when this call is the one that inserted the tickets, so concurrent or
// repeated calls for the same order credit inventory and promo once.
func (s *Store) Materialize(ctx context.Context, m Materialization) (*MaterializeResult, error) {
	result := &MaterializeResult{}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if len(m.Tickets) > 0 {
			res, err := tx.NewInsert().
				Model(&m.Tickets).
				On("CONFLICT (order_id, ticket_index) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("insert tickets: %w", err)
			}
			n, _ := res.RowsAffected()
			result.TicketsCreated = n > 0
			result.TicketCount = int(n)
		}

		if result.TicketsCreated {
			if err := creditInventory(ctx, tx, m.TierCounts, result); err != nil {
				return err
			}
			if m.PromoCode != "" {
				redeemed, err := RedeemPromo(ctx, tx, m.PromoCode)
				if err != nil {
					return fmt.Errorf("redeem promo %s: %w", m.PromoCode, err)
				}
				result.PromoRedeemed = redeemed
			}
		}

		if len(m.Bottles) > 0 {
			res, err := tx.NewInsert().
				Model(&m.Bottles).
				On("CONFLICT (order_id, position) DO NOTHING").
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("insert order bottles: %w", err)
			}
			n, _ := res.RowsAffected()
			result.BottlesCreated = n > 0
		}
		return nil
	})
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Materialization of %s rolled back: %v", m.OrderID, err))
		return nil, err
	}

	s.log.LogDatabase("MATERIALIZE", "tickets", fmt.Sprintf("%s tickets=%d bottles=%t promo=%t",
		m.OrderID, result.TicketCount, result.BottlesCreated, result.PromoRedeemed))
	return result, nil
}

func creditInventory(ctx context.Context, tx bun.Tx, tiers map[string]int, result *MaterializeResult) error {
	names := make([]string, 0, len(tiers))
	for name, n := range tiers {
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, tier := range names {
		ok, err := IncrementSold(ctx, tx, tier, tiers[tier])
		if err != nil {
			return fmt.Errorf("credit tier %s: %w", tier, err)
		}
		if !ok {
			result.UnknownTiers = append(result.UnknownTiers, tier)
			continue
		}

		var row models.InventoryRow
		err = tx.NewSelect().Model(&row).Where("tier = ?", tier).Limit(1).Scan(ctx)
		if err != nil {
			return fmt.Errorf("read tier %s: %w", tier, err)
		}
		if row.SoldCount > row.Capacity {
			result.OversoldTiers = append(result.OversoldTiers, tier)
		}
	}
	return nil
}
