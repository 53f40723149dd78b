package checkoutmeta

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	KeyEmail         = "customer_email"
	KeyName          = "customer_name"
	KeyPhone         = "customer_phone"
	KeyLocale        = "locale"
	KeyPromoCode     = "promo_code"
	KeyDiscountMinor = "discount_minor"
	KeyInventory     = "inventory"
	KeyBottles       = "bottles"
)

// Metadata is everything the reconciliation needs besides the processor's own
// session fields.
type Metadata struct {
	Email         string
	Name          string
	Phone         string
	Locale        string
	PromoCode     string
	DiscountMinor int64
	Tiers         map[string]int
	Bottles       []BottleSelection
}

func (m Metadata) Encode() (map[string]string, error) {
	out := map[string]string{}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			if len(v) > MaxValueLength {
				v = v[:MaxValueLength]
			}
			out[k] = v
		}
	}
	set(KeyEmail, m.Email)
	set(KeyName, m.Name)
	set(KeyPhone, m.Phone)
	set(KeyLocale, m.Locale)
	set(KeyPromoCode, m.PromoCode)
	if m.DiscountMinor > 0 {
		out[KeyDiscountMinor] = strconv.FormatInt(m.DiscountMinor, 10)
	}
	set(KeyInventory, EncodeTierSummary(m.Tiers))

	chunks, err := BottleChunks(m.Bottles)
	if err != nil {
		return nil, err
	}
	for i, c := range chunks {
		out[bottleKey(i)] = c
	}
	return out, nil
}

func Decode(md map[string]string) Metadata {
	m := Metadata{
		Email:     md[KeyEmail],
		Name:      md[KeyName],
		Phone:     md[KeyPhone],
		Locale:    md[KeyLocale],
		PromoCode: strings.ToUpper(strings.TrimSpace(md[KeyPromoCode])),
		Tiers:     DecodeTierSummary(md[KeyInventory]),
	}
	if d, err := strconv.ParseInt(md[KeyDiscountMinor], 10, 64); err == nil && d > 0 {
		m.DiscountMinor = d
	}
	for i := 0; i < MaxBottleChunks; i++ {
		v, ok := md[bottleKey(i)]
		if !ok {
			break
		}
		m.Bottles = append(m.Bottles, DecodeBottles(v)...)
	}
	return m
}

func bottleKey(i int) string {
	if i == 0 {
		return KeyBottles
	}
	return fmt.Sprintf("%s_%d", KeyBottles, i)
}

// EncodeTierSummary renders seat counts per tier as "PRESTIGE:1,VIP:2".
func EncodeTierSummary(tiers map[string]int) string {
	if len(tiers) == 0 {
		return ""
	}
	names := make([]string, 0, len(tiers))
	for name, n := range tiers {
		if n > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s:%d", strings.ToUpper(name), tiers[name]))
	}
	return strings.Join(parts, ",")
}

func DecodeTierSummary(raw string) map[string]int {
	out := map[string]int{}
	for _, part := range strings.Split(raw, ",") {
		name, count, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			continue
		}
		name = strings.ToUpper(strings.TrimSpace(name))
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if name == "" || err != nil || n <= 0 {
			continue
		}
		out[name] += n
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
