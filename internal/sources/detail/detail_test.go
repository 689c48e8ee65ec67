package detail

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"inventory-scrapers/internal/fetch"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/sources"
	"inventory-scrapers/internal/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const productPage = `<html>
<head>
	<title>%s | Brand</title>
	<script type="application/ld+json">{"@type": "Product", "sku": 56622797685120}</script>
</head>
<body>
	<h1 class="product-title">%s</h1>
	<div class="specs"><p>Rise:&nbsp;10 3/4"</p><p>Inseam: 30"</p></div>
	<img class="hero" src="/img/%s.jpg">
	<script>var x = 1;</script>
</body>
</html>`

func upstream(handles ...string) []inventory.RawRecord {
	var out []inventory.RawRecord
	for _, h := range handles {
		out = append(out, inventory.RawRecord{
			Source: "catalog",
			Fields: map[string]any{"product": map[string]any{"handle": h}},
		})
	}
	return out
}

func TestFetchFor(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)

		handle := strings.TrimPrefix(r.URL.Path, "/products/")
		if handle == "gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, productPage, handle, handle, handle)
	}))
	defer srv.Close()

	session, err := fetch.NewSession(fetch.SessionOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	recorder := &telemetry.Recorder{}
	d, err := New(inventory.SourceConfig{
		Name:        "pages",
		Type:        "detail",
		Hosts:       []string{srv.URL},
		Path:        "/products/{key}",
		DependsOn:   "catalog",
		KeyPath:     "product.handle",
		Concurrency: 2,
		Selectors: map[string]string{
			"heading": "h1.product-title",
			"specs":   ".specs",
			"image":   "img.hero@src",
			"missing": ".nope",
		},
	}, sources.Deps{Session: session, API: recorder})
	require.NoError(t, err)
	require.Equal(t, "catalog", d.DependsOn())

	var records []inventory.RawRecord
	err = d.FetchFor(
		context.Background(),
		upstream("heidi", "gone", "bridget", "heidi", "farrow", "kyra"),
		func(r inventory.RawRecord) error {
			records = append(records, r)
			return nil
		},
	)
	require.NoError(t, err)
	require.LessOrEqual(t, maxInFlight.Load(), int32(2))

	var keys []string
	for _, r := range records {
		keys = append(keys, r.Fields["key"].(string))
	}
	require.Equal(t, []string{"heidi", "bridget", "farrow", "kyra"}, keys)

	first := records[0].Fields
	require.Equal(t, "heidi | Brand", first["title"])
	require.Equal(t, "heidi", first["heading"])
	require.Equal(t, `Rise: 10 3/4" Inseam: 30"`, first["specs"])
	require.Equal(t, "/img/heidi.jpg", first["image"])
	require.NotContains(t, first, "missing")
	require.NotContains(t, first["text"], "var x")

	ld := first["ld"].([]any)
	require.Len(t, ld, 1)
	if diff := cmp.Diff("56622797685120", fmt.Sprint(ld[0].(map[string]any)["sku"])); diff != "" {
		t.Fatal(diff)
	}

	dropped := recorder.Events("item-dropped")
	require.Len(t, dropped, 1)
	key, _ := dropped[0].Param("key")
	require.Equal(t, "gone", key)
}

func TestFetchForJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"product": {"handle": %q, "rise": "10.5"}}`, r.URL.Query().Get("handle"))
	}))
	defer srv.Close()

	session, err := fetch.NewSession(fetch.SessionOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	d, err := New(inventory.SourceConfig{
		Name:      "details",
		Hosts:     []string{srv.URL},
		Path:      "/products/{key}.js",
		Params:    map[string]string{"handle": "{key}"},
		Format:    "json",
		DependsOn: "catalog",
		KeyPath:   "product.handle",
	}, sources.Deps{Session: session, API: &telemetry.Recorder{}})
	require.NoError(t, err)

	var records []inventory.RawRecord
	require.NoError(t, d.FetchFor(context.Background(), upstream("heidi"), func(r inventory.RawRecord) error {
		records = append(records, r)
		return nil
	}))
	require.Len(t, records, 1)
	item := records[0].Fields["item"].(map[string]any)
	require.Equal(t, "10.5", item["product"].(map[string]any)["rise"])
}

func TestNewValidates(t *testing.T) {
	_, err := New(inventory.SourceConfig{Name: "x", DependsOn: "catalog", KeyPath: "a", Path: "/products"}, sources.Deps{})
	require.ErrorContains(t, err, "{key}")
	_, err = New(inventory.SourceConfig{Name: "x", Path: "/{key}"}, sources.Deps{})
	require.Error(t, err)
}
