package external

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReceiptTextFull(t *testing.T) {
	text := "JOE'S COFFEE HOUSE\n123 Main St\n2026-03-14\nLatte 4.50\nMuffin 3.25\nTOTAL: $7.75"

	data := ParseReceiptText(text)

	require.NotNil(t, data.Amount)
	assert.Equal(t, "7.75", data.Amount.StringFixed(2))
	require.NotNil(t, data.Date)
	assert.Equal(t, "2026-03-14", data.Date.Format("2006-01-02"))
	assert.Equal(t, "JOE'S COFFEE HOUSE", data.MerchantName)
	assert.Equal(t, "Meals", data.Category)
}

func TestParseReceiptTextPicksLargestAmount(t *testing.T) {
	// Line items must not shadow the total.
	text := "Item A 12.00\nItem B 30.50\nTOTAL 42.50"

	data := ParseReceiptText(text)
	require.NotNil(t, data.Amount)
	assert.Equal(t, "42.50", data.Amount.StringFixed(2))
}

func TestParseReceiptTextUSDateFormat(t *testing.T) {
	data := ParseReceiptText("RECEIPT\n03/14/2026\nTOTAL 10.00")
	require.NotNil(t, data.Date)
	assert.Equal(t, "2026-03-14", data.Date.Format("2006-01-02"))
}

func TestParseReceiptTextEmpty(t *testing.T) {
	data := ParseReceiptText("   \n  ")
	assert.Nil(t, data.Amount)
	assert.Nil(t, data.Date)
	assert.Empty(t, data.MerchantName)
	assert.Empty(t, data.Category)
}

func TestParseReceiptTextNoRecognizableFields(t *testing.T) {
	data := ParseReceiptText("#### #### ####")
	assert.Nil(t, data.Amount)
	assert.Nil(t, data.Date)
}

func TestParseReceiptTextCategoryKeywords(t *testing.T) {
	cases := []struct {
		text     string
		category string
	}{
		{"UBER TRIP\nTOTAL 23.00", "Travel"},
		{"STAPLES STORE\nTOTAL 15.00", "Office Supplies"},
		{"VERIZON WIRELESS BILL\nTOTAL 80.00", "Internet/Phone"},
		{"UNKNOWN VENDOR\nTOTAL 5.00", ""},
	}
	for _, tc := range cases {
		data := ParseReceiptText(tc.text)
		assert.Equal(t, tc.category, data.Category, tc.text)
	}
}

func TestParseReceiptTextDeterministic(t *testing.T) {
	// Text matching several category keyword sets must always resolve
	// to the same category.
	text := "AIRPORT CAFE\nparking 12.00\ncoffee 4.00\nTOTAL 16.00"
	first := ParseReceiptText(text)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first.Category, ParseReceiptText(text).Category)
	}
}

func TestParseReceiptTextMerchantSkipsNumericLines(t *testing.T) {
	data := ParseReceiptText("20260314120000\nACME SUPPLIES\nTOTAL 9.99")
	assert.Equal(t, "ACME SUPPLIES", data.MerchantName)
}

func TestParseReceiptTextAmountBounds(t *testing.T) {
	// Values outside the plausible receipt range are ignored.
	data := ParseReceiptText("REF 99999999.99\nTOTAL 25.00")
	require.NotNil(t, data.Amount)
	assert.Equal(t, "25.00", data.Amount.StringFixed(2))
}
