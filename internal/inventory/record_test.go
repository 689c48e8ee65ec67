package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRecordCells(t *testing.T) {
	var r CanonicalRecord
	require.NoError(t, r.Set(StyleId, "56622797685120"))
	require.NoError(t, r.Set(Rise, decimal.RequireFromString("10.5")))
	require.NoError(t, r.Set(Price, decimal.RequireFromString("98")))
	require.NoError(t, r.Set(QuantityAvailable, int64(3)))
	require.NoError(t, r.Set(AvailableForSale, true))
	require.NoError(t, r.Set(Tags, []string{"denim", "skinny"}))

	require.Equal(t,
		[]string{"56622797685120", "10.50", "98.00", "3", "TRUE", "denim, skinny", ""},
		r.Row([]Column{StyleId, Rise, Price, QuantityAvailable, AvailableForSale, Tags, Inseam}),
	)

	require.Error(t, r.Set(Rise, "10.5"))
	require.Error(t, r.Set(Column(-1), "x"))

	require.NoError(t, r.Set(Rise, nil))
	require.True(t, r.IsBlank(Rise))
	require.Nil(t, r.Get(Rise))
	require.Equal(t, int64(3), r.Get(QuantityAvailable))
}

func TestStyleKey(t *testing.T) {
	r := CanonicalRecord{Handle: "bridget-bootcut"}
	require.Equal(t, "bridget-bootcut", r.StyleKey())
	r.StyleId = "123"
	require.Equal(t, "123", r.StyleKey())
}

func TestParseColumn(t *testing.T) {
	c, err := ParseColumn("sku - shopify")
	require.NoError(t, err)
	require.Equal(t, SkuShopify, c)

	c, err = ParseColumn(" QuantityOfStyle ")
	require.NoError(t, err)
	require.Equal(t, QuantityOfStyle, c)

	_, err = ParseColumn("Colour")
	require.Error(t, err)
}
