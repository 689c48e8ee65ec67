package extract

import (
	"encoding/json"
	"strings"
	"testing"

	"inventory-scrapers/internal/inventory"

	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, text string) map[string]any {
	t.Helper()
	var out map[string]any
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()
	require.NoError(t, decoder.Decode(&out))
	return out
}

const variantRecord = `{
	"product": {
		"handle": "bridget-bootcut",
		"title": "Bridget Bootcut High Rise 33\"",
		"tags": ["denim", "fit:Bootcut", "rise:10 3/4"],
		"images": [{"src": "a.jpg"}, {"src": "b.jpg"}],
		"body_html": ""
	},
	"variant": {"id": 56622797685120, "sku": "BRG-30", "option1": "30"},
	"options": {"size": "30", "color": "Blue"}
}`

func TestGet(t *testing.T) {
	fields := decode(t, variantRecord)

	v, ok := Get(fields, "variant.id")
	require.True(t, ok)
	require.Equal(t, json.Number("56622797685120"), v)

	v, ok = Get(fields, "product.images.1.src")
	require.True(t, ok)
	require.Equal(t, "b.jpg", v)

	v, ok = Get(fields, "product.images.-1.src")
	require.True(t, ok)
	require.Equal(t, "b.jpg", v)

	v, ok = Get(fields, "product.images.*.src")
	require.True(t, ok)
	require.Equal(t, []any{"a.jpg", "b.jpg"}, v)

	v, ok = Get(fields, "product.body_html|product.title")
	require.True(t, ok)
	require.Equal(t, `Bridget Bootcut High Rise 33"`, v)

	_, ok = Get(fields, "product.missing")
	require.False(t, ok)
	_, ok = Get(fields, "product.images.7.src")
	require.False(t, ok)
	_, ok = Get(fields, "product.handle.x")
	require.False(t, ok)
}

func compile(t *testing.T, e inventory.Extraction) Extractor {
	t.Helper()
	x, err := Compile(e)
	require.NoError(t, err)
	return x
}

func TestExtract(t *testing.T) {
	fields := decode(t, variantRecord)

	cases := []struct {
		name     string
		rule     inventory.Extraction
		expected any
	}{
		{"option alias", inventory.Extraction{Option: "waist|size"}, "30"},
		{"regex group", inventory.Extraction{Path: "product.tags", Join: ",", Regex: `rise:([^,]+)`}, "10 3/4"},
		{"regex whole match", inventory.Extraction{Path: "product.title", Regex: `high rise`}, "High Rise"},
		{"lookup", inventory.Extraction{Option: "color", Lookup: map[string]string{"blue": "Indigo"}}, "Indigo"},
		{"lookup default", inventory.Extraction{Option: "color", Lookup: map[string]string{"*": "Other"}}, "Other"},
		{"const", inventory.Extraction{Const: "DL1961"}, "DL1961"},
		{"join", inventory.Extraction{Path: "product.images.*.src", Join: " "}, "a.jpg b.jpg"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			v, ok := compile(t, c.rule).Extract(fields)
			require.True(t, ok)
			require.Equal(t, c.expected, v)
		})
	}

	_, ok := compile(t, inventory.Extraction{Path: "product.title", Regex: `skinny`}).Extract(fields)
	require.False(t, ok)
	_, ok = compile(t, inventory.Extraction{Option: "color", Lookup: map[string]string{"black": "Black"}}).Extract(fields)
	require.False(t, ok)
	_, ok = compile(t, inventory.Extraction{Option: "inseam"}).Extract(fields)
	require.False(t, ok)
}

func TestCompileErrors(t *testing.T) {
	_, err := Compile(inventory.Extraction{Path: "a", Regex: "("})
	require.Error(t, err)
	_, err = Compile(inventory.Extraction{Path: "a", Normalizer: "nope"})
	require.Error(t, err)
	_, err = Compile(inventory.Extraction{Source: "catalog"})
	require.Error(t, err)
}
