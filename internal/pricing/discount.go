package pricing

import "ms-checkout/internal/models"

// DistributeDiscount spreads discountMinor over items in proportion to each
// line's share of the subtotal. The returned lines always sum to
// subtotal - discount and never carry a negative unit amount. A line may be
// split in two when the last cents cannot be spread evenly over its units.
func DistributeDiscount(items []models.LineItem, discountMinor int64) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	for _, li := range items {
		if li.Quantity > 0 {
			out = append(out, li)
		}
	}

	subtotal := models.SumLineItems(out)
	if discountMinor <= 0 || subtotal <= 0 {
		return out
	}
	if discountMinor > subtotal {
		discountMinor = subtotal
	}

	var applied int64
	for i := range out {
		share := discountMinor * out[i].Total() / subtotal
		perUnit := share / out[i].Quantity
		out[i].UnitAmountMinor -= perUnit
		applied += perUnit * out[i].Quantity
	}

	remainder := discountMinor - applied
	for remainder > 0 {
		progressed := false
		for i := 0; i < len(out) && remainder > 0; i++ {
			if out[i].UnitAmountMinor > 0 && out[i].Quantity <= remainder {
				out[i].UnitAmountMinor--
				remainder -= out[i].Quantity
				progressed = true
			}
		}
		if progressed {
			continue
		}

		i := firstPositive(out)
		if i < 0 {
			break
		}
		take := min(remainder, out[i].UnitAmountMinor)
		out = splitUnit(out, i, take)
		remainder -= take
	}
	return out
}

func firstPositive(items []models.LineItem) int {
	for i, li := range items {
		if li.UnitAmountMinor > 0 {
			return i
		}
	}
	return -1
}

// splitUnit takes one unit of line i out into its own line, reduced by take.
func splitUnit(items []models.LineItem, i int, take int64) []models.LineItem {
	if items[i].Quantity == 1 {
		items[i].UnitAmountMinor -= take
		return items
	}
	single := items[i]
	single.Quantity = 1
	single.UnitAmountMinor -= take
	items[i].Quantity--

	out := make([]models.LineItem, 0, len(items)+1)
	out = append(out, items[:i+1]...)
	out = append(out, single)
	return append(out, items[i+1:]...)
}
