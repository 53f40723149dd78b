// Package checkoutmeta encodes the cart details that have to travel through
// the payment processor's flat string metadata and come back at reconciliation.
package checkoutmeta

import (
	"errors"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"ms-checkout/internal/models"
)

const (
	bottlesVersion  = "v1:"
	entrySeparator  = ";"
	fieldSeparator  = "|"
	onSiteMarker    = "on_site"
	MaxValueLength  = 500
	MaxBottleChunks = 40
)

var ErrMetadataTooLarge = errors.New("bottle selection does not fit in session metadata")

var versionPrefix = regexp.MustCompile(`^v\d+:`)

// BottleSelection is either a bottle with a positive count or an on-site
// deferral for one seat.
type BottleSelection struct {
	SeatLabel string
	Tier      string
	BottleID  string
	Count     int
	OnSite    bool
}

// BottlesFromCart lists the selections of a cart in seat order, bottles
// sorted by id.
func BottlesFromCart(snap models.CartSnapshot) []BottleSelection {
	var out []BottleSelection
	for _, seat := range snap.Seats {
		if snap.OnSite[seat.ID] {
			out = append(out, BottleSelection{SeatLabel: seat.Label, Tier: seat.Tier, OnSite: true})
			continue
		}
		alloc := snap.Bottles[seat.ID]
		ids := make([]string, 0, len(alloc))
		for id, count := range alloc {
			if count > 0 {
				ids = append(ids, id)
			}
		}
		sort.Strings(ids)
		for _, id := range ids {
			out = append(out, BottleSelection{SeatLabel: seat.Label, Tier: seat.Tier, BottleID: id, Count: alloc[id]})
		}
	}
	return out
}

func encodeEntry(s BottleSelection) string {
	if s.OnSite {
		return strings.Join([]string{clean(s.SeatLabel), clean(s.Tier), onSiteMarker}, fieldSeparator)
	}
	return strings.Join([]string{clean(s.SeatLabel), clean(s.Tier), clean(s.BottleID), strconv.Itoa(s.Count)}, fieldSeparator)
}

func clean(v string) string {
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, fieldSeparator, "-")
	return strings.ReplaceAll(v, entrySeparator, "-")
}

// EncodeBottles renders selections as one versioned value. It does not
// enforce the metadata size limit; BottleChunks does.
func EncodeBottles(sel []BottleSelection) string {
	if len(sel) == 0 {
		return ""
	}
	parts := make([]string, 0, len(sel))
	for _, s := range sel {
		parts = append(parts, encodeEntry(s))
	}
	return bottlesVersion + strings.Join(parts, entrySeparator)
}

// BottleChunks splits the encoding on entry boundaries into values no longer
// than MaxValueLength, each carrying its own version prefix.
func BottleChunks(sel []BottleSelection) ([]string, error) {
	if len(sel) == 0 {
		return nil, nil
	}
	var chunks []string
	current := ""
	for _, s := range sel {
		entry := encodeEntry(s)
		if len(bottlesVersion)+len(entry) > MaxValueLength {
			return nil, ErrMetadataTooLarge
		}
		switch {
		case current == "":
			current = bottlesVersion + entry
		case len(current)+len(entrySeparator)+len(entry) <= MaxValueLength:
			current += entrySeparator + entry
		default:
			chunks = append(chunks, current)
			current = bottlesVersion + entry
		}
	}
	chunks = append(chunks, current)
	if len(chunks) > MaxBottleChunks {
		return nil, ErrMetadataTooLarge
	}
	return chunks, nil
}

// DecodeBottles parses one value. Malformed entries are skipped and an
// unknown version yields nothing. Unprefixed values are read as v1.
func DecodeBottles(raw string) []BottleSelection {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, bottlesVersion) {
		raw = strings.TrimPrefix(raw, bottlesVersion)
	} else if versionPrefix.MatchString(raw) {
		return nil
	}

	var out []BottleSelection
	for _, entry := range strings.Split(raw, entrySeparator) {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, fieldSeparator)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if fields[0] == "" {
			continue
		}
		switch {
		case len(fields) == 3 && fields[2] == onSiteMarker:
			out = append(out, BottleSelection{SeatLabel: fields[0], Tier: fields[1], OnSite: true})
		case len(fields) == 4:
			count, err := strconv.Atoi(fields[3])
			if err != nil || count <= 0 || fields[2] == "" {
				continue
			}
			out = append(out, BottleSelection{SeatLabel: fields[0], Tier: fields[1], BottleID: fields[2], Count: count})
		}
	}
	return out
}

// ToOrderBottles maps selections to rows with 1-based positions. IDs are
// left for the store to fill.
func ToOrderBottles(orderID string, sel []BottleSelection) []models.OrderBottle {
	rows := make([]models.OrderBottle, 0, len(sel))
	for i, s := range sel {
		row := models.OrderBottle{
			OrderID:   orderID,
			Position:  i + 1,
			SeatLabel: s.SeatLabel,
			Tier:      s.Tier,
			OnSite:    s.OnSite,
		}
		if !s.OnSite {
			id := s.BottleID
			row.BottleID = &id
			row.Count = s.Count
		}
		rows = append(rows, row)
	}
	return rows
}
