package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
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

func newDeps(t *testing.T) sources.Deps {
	t.Helper()
	session, err := fetch.NewSession(fetch.SessionOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	return sources.Deps{
		Session: session,
		API:     &telemetry.Recorder{},
		Sleep:   func(context.Context, time.Duration) error { return nil },
	}
}

func collect(t *testing.T, s *Search) []inventory.RawRecord {
	t.Helper()
	var out []inventory.RawRecord
	require.NoError(t, s.Fetch(context.Background(), func(r inventory.RawRecord) error {
		out = append(out, r)
		return nil
	}))
	return out
}

func TestPageIndexWithTotalPages(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "/api/search/search.json", r.URL.Path)
		assert.Equal(t, "collection_handle:womens-jeans", q.Get("bgfilter.collection_handle"))
		assert.Equal(t, "abc123", q.Get("siteId"))
		page := q.Get("page")
		fmt.Fprintf(w, `{
			"pagination": {"totalPages": 2},
			"results": [{"uid": "p%s", "variants": [{"sku": "p%s-26"}, {"sku": "p%s-27"}]}]
		}`, page, page, page)
	}))
	defer srv.Close()

	s, err := New(inventory.SourceConfig{
		Name:  "searchspring",
		Hosts: []string{srv.URL},
		Path:  "/api/search/search.json",
		Params: map[string]string{
			"siteId":                     "abc123",
			"bgfilter.collection_handle": "collection_handle:womens-jeans",
		},
		ResultsPath:    "results",
		TotalPagesPath: "pagination.totalPages",
		Explode:        "variants",
	}, newDeps(t))
	require.NoError(t, err)

	records := collect(t, s)
	require.Equal(t, int32(2), calls.Load())
	require.Len(t, records, 4)
	require.Equal(t, "p1-27", records[1].Fields["item"].(map[string]any)["sku"])
	require.Equal(t, "p2", records[2].Fields["parent"].(map[string]any)["uid"])
}

func TestCursorPost(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tag:'category:Jeans'", body["filters"])
		assert.EqualValues(t, 50, body["hitsPerPage"])

		switch body["cursor"] {
		case nil:
			w.Write([]byte(`{"hits": [{"objectID": "1"}, {"objectID": "2"}], "cursor": "next"}`))
		case "next":
			w.Write([]byte(`{"hits": [{"objectID": "3"}]}`))
		default:
			t.Errorf("unexpected cursor %v", body["cursor"])
		}
	}))
	defer srv.Close()

	s, err := New(inventory.SourceConfig{
		Name:        "algolia",
		Hosts:       []string{srv.URL},
		Path:        "/1/indexes/products/browse",
		Body:        map[string]any{"filters": "tag:'category:Jeans'"},
		CursorParam: "cursor",
		CursorPath:  "cursor",
		LimitParam:  "hitsPerPage",
		PageSize:    50,
		ResultsPath: "hits",
	}, newDeps(t))
	require.NoError(t, err)

	records := collect(t, s)
	require.Equal(t, int32(2), calls.Load())
	require.Len(t, records, 3)
	require.Equal(t, "3", records[2].Fields["item"].(map[string]any)["objectID"])
}

func TestStopsOnShortPage(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "0", r.URL.Query().Get("p"))
		w.Write([]byte(`{"data": {"items": [{"id": 1}]}}`))
	}))
	defer srv.Close()

	start := 0
	s, err := New(inventory.SourceConfig{
		Name:        "nosto",
		Hosts:       []string{srv.URL},
		PageParam:   "p",
		PageStart:   &start,
		LimitParam:  "size",
		PageSize:    24,
		ResultsPath: "data.items",
	}, newDeps(t))
	require.NoError(t, err)
	require.Len(t, collect(t, s), 1)
	require.Equal(t, int32(1), calls.Load())
}

func TestResultsPathRequired(t *testing.T) {
	_, err := New(inventory.SourceConfig{Name: "x"}, newDeps(t))
	require.Error(t, err)
}
