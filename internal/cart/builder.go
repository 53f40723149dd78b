// Package cart accumulates seat, entry and bottle selections into a CartSnapshot.
package cart

import (
	"strings"

	"ms-checkout/internal/models"
)

const (
	WomenEntryPriceMinor int64 = 5000
	MenEntryPriceMinor   int64 = 8000
)

// Builder is not safe for concurrent use; one builder per buyer session.
type Builder struct {
	seats   []models.SelectedSeat
	index   map[string]int
	entries models.SimpleEntries
	bottles map[string]map[string]int
	onSite  map[string]bool
}

func NewBuilder() *Builder {
	return &Builder{
		index:   make(map[string]int),
		bottles: make(map[string]map[string]int),
		onSite:  make(map[string]bool),
	}
}

// AddSeat adds a seat or refreshes it when already selected.
func (b *Builder) AddSeat(seat models.SelectedSeat) {
	seat.ID = strings.TrimSpace(seat.ID)
	if seat.ID == "" {
		return
	}
	seat.Tier = strings.ToUpper(strings.TrimSpace(seat.Tier))
	if seat.PriceMinor < 0 {
		seat.PriceMinor = 0
	}
	if i, ok := b.index[seat.ID]; ok {
		b.seats[i] = seat
		return
	}
	b.index[seat.ID] = len(b.seats)
	b.seats = append(b.seats, seat)
}

// RemoveSeat drops the seat together with its bottle and on-site state.
func (b *Builder) RemoveSeat(seatID string) {
	i, ok := b.index[seatID]
	if !ok {
		return
	}
	b.seats = append(b.seats[:i], b.seats[i+1:]...)
	delete(b.index, seatID)
	for j := i; j < len(b.seats); j++ {
		b.index[b.seats[j].ID] = j
	}
	delete(b.bottles, seatID)
	delete(b.onSite, seatID)
}

func (b *Builder) SetEntries(men, women int) {
	b.entries = models.SimpleEntries{Men: max(men, 0), Women: max(women, 0)}
}

// SetBottle sets the count of one bottle for a selected seat. A count of zero
// or less removes it. Choosing a bottle cancels the on-site deferral.
func (b *Builder) SetBottle(seatID, bottleID string, count int) bool {
	if _, ok := b.index[seatID]; !ok || bottleID == "" {
		return false
	}
	if count <= 0 {
		if alloc := b.bottles[seatID]; alloc != nil {
			delete(alloc, bottleID)
			if len(alloc) == 0 {
				delete(b.bottles, seatID)
			}
		}
		return true
	}
	if b.bottles[seatID] == nil {
		b.bottles[seatID] = make(map[string]int)
	}
	b.bottles[seatID][bottleID] = count
	delete(b.onSite, seatID)
	return true
}

// SetOnSite defers the bottle choice of a seat to arrival and clears any
// pre-selected bottles.
func (b *Builder) SetOnSite(seatID string, onSite bool) bool {
	if _, ok := b.index[seatID]; !ok {
		return false
	}
	if !onSite {
		delete(b.onSite, seatID)
		return true
	}
	b.onSite[seatID] = true
	delete(b.bottles, seatID)
	return true
}

func (b *Builder) Snapshot() models.CartSnapshot {
	snap := models.CartSnapshot{
		Seats:   make([]models.SelectedSeat, len(b.seats)),
		Entries: b.entries,
	}
	copy(snap.Seats, b.seats)

	var total int64
	for _, s := range b.seats {
		total += s.PriceMinor
	}
	total += int64(b.entries.Women)*WomenEntryPriceMinor + int64(b.entries.Men)*MenEntryPriceMinor
	snap.TotalPriceMinor = total

	if len(b.bottles) > 0 {
		snap.Bottles = make(map[string]map[string]int, len(b.bottles))
		for seatID, alloc := range b.bottles {
			cp := make(map[string]int, len(alloc))
			for k, v := range alloc {
				cp[k] = v
			}
			snap.Bottles[seatID] = cp
		}
	}
	if len(b.onSite) > 0 {
		snap.OnSite = make(map[string]bool, len(b.onSite))
		for k, v := range b.onSite {
			snap.OnSite[k] = v
		}
	}
	return snap
}

// FromSnapshot replays an untrusted snapshot through a Builder, which drops
// duplicate seats and allocations for seats that are not selected.
func FromSnapshot(in models.CartSnapshot) models.CartSnapshot {
	b := NewBuilder()
	for _, s := range in.Seats {
		b.AddSeat(s)
	}
	b.SetEntries(in.Entries.Men, in.Entries.Women)
	for seatID, alloc := range in.Bottles {
		for bottleID, count := range alloc {
			b.SetBottle(seatID, bottleID, count)
		}
	}
	for seatID, onSite := range in.OnSite {
		b.SetOnSite(seatID, onSite)
	}
	return b.Snapshot()
}

// SeatByID returns the selected seat with the given id.
func SeatByID(snap models.CartSnapshot, id string) (models.SelectedSeat, bool) {
	for _, s := range snap.Seats {
		if s.ID == id {
			return s, true
		}
	}
	return models.SelectedSeat{}, false
}
