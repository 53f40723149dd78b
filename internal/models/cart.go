package models

// SelectedSeat is a table picked on the seat map. PriceMinor is display-only;
// the server re-derives the price from the tier.
type SelectedSeat struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Tier       string `json:"tier"`
	PriceMinor int64  `json:"price_minor"`
}

type SimpleEntries struct {
	Men   int `json:"men"`
	Women int `json:"women"`
}

// CartSnapshot lives in the buyer's browser until checkout is submitted.
type CartSnapshot struct {
	Seats           []SelectedSeat            `json:"seats"`
	Entries         SimpleEntries             `json:"entries"`
	Bottles         map[string]map[string]int `json:"bottles,omitempty"`
	OnSite          map[string]bool           `json:"on_site,omitempty"`
	TotalPriceMinor int64                     `json:"total_price_minor"`
}

type LineItem struct {
	Description     string `json:"description"`
	UnitAmountMinor int64  `json:"unit_amount_minor"`
	Quantity        int64  `json:"quantity"`
}

func (li LineItem) Total() int64 {
	return li.UnitAmountMinor * li.Quantity
}

func SumLineItems(items []LineItem) int64 {
	var total int64
	for _, li := range items {
		total += li.Total()
	}
	return total
}
