package checkoutmeta

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-checkout/internal/models"
)

func TestDecodeBottles_SingleEntry(t *testing.T) {
	got := DecodeBottles("v1:A1|VIP|vodka-70|2")

	require.Len(t, got, 1)
	assert.Equal(t, BottleSelection{SeatLabel: "A1", Tier: "VIP", BottleID: "vodka-70", Count: 2}, got[0])
}

func TestDecodeBottles_OnSite(t *testing.T) {
	got := DecodeBottles("v1:B2|PRESTIGE|on_site")

	require.Len(t, got, 1)
	assert.True(t, got[0].OnSite)
	assert.Empty(t, got[0].BottleID)
	assert.Zero(t, got[0].Count)

	rows := ToOrderBottles("cs_1", got)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].OnSite)
	assert.Nil(t, rows[0].BottleID)
	assert.Zero(t, rows[0].Count)
}

func TestDecodeBottles_SkipsMalformedEntries(t *testing.T) {
	got := DecodeBottles("v1:A1|VIP|vodka-70|two;;A2|VIP|gin|0;A3|VIP||1;A4|VIP|gin|3;junk")

	require.Len(t, got, 1)
	assert.Equal(t, "A4", got[0].SeatLabel)
	assert.Equal(t, 3, got[0].Count)
}

func TestDecodeBottles_UnknownVersionFailsClosed(t *testing.T) {
	assert.Nil(t, DecodeBottles("v2:A1|VIP|vodka-70|2"))
}

func TestDecodeBottles_LegacyUnversioned(t *testing.T) {
	got := DecodeBottles("A1|VIP|vodka-70|2")

	require.Len(t, got, 1)
	assert.Equal(t, "vodka-70", got[0].BottleID)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	sel := []BottleSelection{
		{SeatLabel: "A1", Tier: "VIP", BottleID: "vodka-70", Count: 2},
		{SeatLabel: "A2", Tier: "VIP", OnSite: true},
	}

	assert.Equal(t, sel, DecodeBottles(EncodeBottles(sel)))
}

func TestEncodeBottles_StripsSeparatorsFromFields(t *testing.T) {
	sel := []BottleSelection{{SeatLabel: "A|1", Tier: "VIP;X", BottleID: "gin", Count: 1}}

	got := DecodeBottles(EncodeBottles(sel))

	require.Len(t, got, 1)
	assert.Equal(t, "A-1", got[0].SeatLabel)
	assert.Equal(t, "VIP-X", got[0].Tier)
}

func TestBottleChunks_SplitsOnEntryBoundaries(t *testing.T) {
	var sel []BottleSelection
	for i := 0; i < 60; i++ {
		sel = append(sel, BottleSelection{SeatLabel: "TABLE-" + strings.Repeat("X", 5), Tier: "PRESTIGE", BottleID: "champagne-magnum", Count: i + 1})
	}

	chunks, err := BottleChunks(sel)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	var decoded []BottleSelection
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), MaxValueLength)
		assert.True(t, strings.HasPrefix(c, "v1:"))
		decoded = append(decoded, DecodeBottles(c)...)
	}
	assert.Equal(t, sel, decoded)
}

func TestBottleChunks_RejectsOversizedEntry(t *testing.T) {
	sel := []BottleSelection{{SeatLabel: strings.Repeat("A", MaxValueLength), Tier: "VIP", BottleID: "gin", Count: 1}}

	_, err := BottleChunks(sel)
	assert.ErrorIs(t, err, ErrMetadataTooLarge)
}

func TestBottlesFromCart_SeatOrderAndSortedBottles(t *testing.T) {
	snap := models.CartSnapshot{
		Seats: []models.SelectedSeat{
			{ID: "s1", Label: "A1", Tier: "VIP"},
			{ID: "s2", Label: "A2", Tier: "VIP"},
			{ID: "s3", Label: "A3", Tier: "VIP"},
		},
		Bottles: map[string]map[string]int{
			"s1": {"whisky": 1, "gin": 2},
		},
		OnSite: map[string]bool{"s2": true},
	}

	got := BottlesFromCart(snap)

	require.Len(t, got, 3)
	assert.Equal(t, "gin", got[0].BottleID)
	assert.Equal(t, "whisky", got[1].BottleID)
	assert.Equal(t, BottleSelection{SeatLabel: "A2", Tier: "VIP", OnSite: true}, got[2])
}
