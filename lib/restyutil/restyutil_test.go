package restyutil

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu       sync.Mutex
	messages map[string]string
}

func (o *memoryOutput) Write(id, contents string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages[id] = contents
}

func TestInstrumentClientDumpsRedacted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/json")
		w.Write([]byte(`{"products":[]}`))
	}))
	defer srv.Close()

	out := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	InstrumentClient(client, "catalog", out)

	_, err := client.R().
		SetHeader("X-Shopify-Storefront-Access-Token", "secret-token").
		SetHeader("Accept", "application/json").
		Get(srv.URL + "/products.json")
	require.NoError(t, err)

	require.Len(t, out.messages, 1)
	msg := out.messages["catalog-0001"]
	require.Contains(t, msg, "GET "+srv.URL+"/products.json")
	require.Contains(t, msg, "200 ")
	require.Contains(t, msg, `{"products":[]}`)
	require.Contains(t, msg, "[redacted]")
	require.False(t, strings.Contains(msg, "secret-token"))
}

func TestInstrumentClientNilOutput(t *testing.T) {
	client := resty.New()
	InstrumentClient(client, "noop", nil)
}

func TestFilesystemOutput(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dump")
	out, err := NewFilesystemOutput(dir)
	require.NoError(t, err)

	out.Write("search-0001", "hello")
	contents, err := os.ReadFile(filepath.Join(dir, "search-0001.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(contents))
}

func TestIsSensitiveHeader(t *testing.T) {
	require.True(t, IsSensitiveHeader("Authorization"))
	require.True(t, IsSensitiveHeader("X-Custom-Token"))
	require.False(t, IsSensitiveHeader("Accept"))
}
