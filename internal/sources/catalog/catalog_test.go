package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"inventory-scrapers/internal/fetch"
	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/sources"
	"inventory-scrapers/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id int, variants int) string {
	vs := ""
	for i := 0; i < variants; i++ {
		if i > 0 {
			vs += ","
		}
		vs += fmt.Sprintf(`{"id": %d%02d, "sku": "SKU-%d-%d", "option1": "%d", "option2": null}`, id, i, id, i, 26+i)
	}
	return fmt.Sprintf(`{
		"id": %d,
		"handle": "style-%d",
		"options": [{"name": "Size"}, {"name": "Color"}],
		"variants": [%s]
	}`, id, id, vs)
}

func newDeps(t *testing.T) sources.Deps {
	t.Helper()
	session, err := fetch.NewSession(fetch.SessionOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	return sources.Deps{
		Brand:   "test",
		Session: session,
		API:     &telemetry.Recorder{},
		Sleep:   func(context.Context, time.Duration) error { return nil },
	}
}

func collect(t *testing.T, c *Catalog) []inventory.RawRecord {
	t.Helper()
	var out []inventory.RawRecord
	err := c.Fetch(context.Background(), func(r inventory.RawRecord) error {
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestFetchStopsOnShortPage(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		assert.Equal(t, "/products.json", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("limit"))
		assert.Equal(t, "womens", r.URL.Query().Get("collection"))
		switch r.URL.Query().Get("page") {
		case "1":
			fmt.Fprintf(w, `{"products": [%s, %s]}`, product(1, 2), product(2, 1))
		case "2":
			fmt.Fprintf(w, `{"products": [%s]}`, product(3, 0))
		default:
			t.Errorf("unexpected page %s", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	c, err := New(inventory.SourceConfig{
		Name:     "catalog",
		Type:     "catalog",
		Hosts:    []string{srv.URL},
		PageSize: 2,
		Params:   map[string]string{"collection": "womens"},
	}, newDeps(t))
	require.NoError(t, err)

	records := collect(t, c)
	require.Equal(t, int32(2), requests.Load())
	require.Len(t, records, 4)

	first := records[0].Fields
	require.Equal(t, "catalog", records[0].Source)
	require.NotContains(t, first["product"], "variants")
	require.Equal(t, map[string]any{"size": "26"}, first["options"])
	variant := first["variant"].(map[string]any)
	require.Equal(t, "100", fmt.Sprint(variant["id"]))

	require.NotContains(t, records[3].Fields, "variant")
}

func TestFetchStopsWhenNothingNew(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		// storefronts that ignore the page param keep returning page one
		fmt.Fprintf(w, `{"products": [%s]}`, product(1, 1))
	}))
	defer srv.Close()

	c, err := New(inventory.SourceConfig{Name: "catalog", Hosts: []string{srv.URL}, PageSize: 1}, newDeps(t))
	require.NoError(t, err)
	require.Len(t, collect(t, c), 1)
	require.Equal(t, int32(2), requests.Load())
}

func TestFetchMaxPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		fmt.Fprintf(w, `{"products": [%s]}`, product(page, 1))
	}))
	defer srv.Close()

	c, err := New(inventory.SourceConfig{Name: "catalog", Hosts: []string{srv.URL}, PageSize: 1, MaxPages: 3}, newDeps(t))
	require.NoError(t, err)
	require.Len(t, collect(t, c), 3)
}

func TestFetchFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := New(inventory.SourceConfig{Name: "catalog", Hosts: []string{srv.URL}}, newDeps(t))
	require.NoError(t, err)
	err = c.Fetch(context.Background(), func(inventory.RawRecord) error { return nil })
	require.True(t, inventory.IsFatal(err))
}
