package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/internal/telemetry"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, d)
	return nil
}

func newTestController(t *testing.T, hosts []string, policy Policy) (*Controller, *telemetry.Recorder, *sleepRecorder) {
	t.Helper()
	session, err := NewSession(SessionOptions{Timeout: 2 * time.Second})
	require.NoError(t, err)
	recorder := &telemetry.Recorder{}
	sleeper := &sleepRecorder{}
	c := NewController("catalog", session, hosts, policy, recorder)
	c.SetSleep(sleeper.sleep)
	return c, recorder, sleeper
}

func defaultPolicy() Policy {
	return PolicyFrom(inventory.RetryConfig{})
}

// closedHost returns the url of a server that no longer accepts connections.
func closedHost() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

func TestHostSwitchHappensOnce(t *testing.T) {
	var hits atomic.Int32
	alternate := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(`{"products":[]}`))
	}))
	defer alternate.Close()

	primary := closedHost()
	c, recorder, sleeper := newTestController(t, []string{primary, alternate.URL}, defaultPolicy())

	res, err := c.Do(context.Background(), Request{Path: "/products.json"})
	require.NoError(t, err)
	require.Equal(t, `{"products":[]}`, res.String())

	res, err = c.Do(context.Background(), Request{Path: "/products.json"})
	require.NoError(t, err)
	require.Equal(t, 200, res.StatusCode())

	require.Equal(t, alternate.URL, c.Host())
	require.Equal(t, int32(2), hits.Load())
	require.Len(t, sleeper.delays, 1)

	switches := recorder.Events("host-switch")
	require.Len(t, switches, 1)
	from, _ := switches[0].Param("from")
	to, _ := switches[0].Param("to")
	require.Equal(t, primary, from)
	require.Equal(t, alternate.URL, to)
}

func TestRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.Write([]byte("ok"))
		}
	}))
	defer srv.Close()

	c, recorder, sleeper := newTestController(t, []string{srv.URL, "https://unused.invalid"}, Policy{
		MaxRetries:        5,
		BaseDelay:         100 * time.Millisecond,
		MaxDelay:          time.Second,
		FallbackThreshold: 2,
	})

	res, err := c.Do(context.Background(), Request{Path: "/"})
	require.NoError(t, err)
	require.Equal(t, "ok", res.String())
	require.Equal(t, int32(3), calls.Load())
	require.Empty(t, recorder.Events("host-switch"))

	require.Len(t, sleeper.delays, 2)
	require.GreaterOrEqual(t, sleeper.delays[0], 50*time.Millisecond)
	require.LessOrEqual(t, sleeper.delays[0], 150*time.Millisecond)
	require.GreaterOrEqual(t, sleeper.delays[1], 100*time.Millisecond)
	require.LessOrEqual(t, sleeper.delays[1], 300*time.Millisecond)
}

func TestFatalStatusIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	c, _, sleeper := newTestController(t, []string{srv.URL}, defaultPolicy())
	_, err := c.Do(context.Background(), Request{Path: "/"})

	var fatal *inventory.FatalFetchError
	require.True(t, errors.As(err, &fatal))
	require.Equal(t, http.StatusForbidden, fatal.Status)
	require.Equal(t, "catalog", fatal.Source)
	require.Equal(t, 1, fatal.Attempts)
	require.Equal(t, int32(1), calls.Load())
	require.Empty(t, sleeper.delays)
}

func TestExhaustedOnEveryHost(t *testing.T) {
	var calls atomic.Int32
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	a := httptest.NewServer(failing)
	defer a.Close()
	b := httptest.NewServer(failing)
	defer b.Close()

	c, recorder, _ := newTestController(t, []string{a.URL, b.URL}, Policy{
		MaxRetries:        1,
		BaseDelay:         time.Millisecond,
		MaxDelay:          time.Millisecond,
		FallbackThreshold: 2,
	})
	_, err := c.Do(context.Background(), Request{Path: "/"})

	var fatal *inventory.FatalFetchError
	require.True(t, errors.As(err, &fatal))
	require.Equal(t, 4, fatal.Attempts)
	require.Equal(t, http.StatusServiceUnavailable, fatal.Status)
	require.True(t, inventory.IsTransient(err))
	require.Equal(t, int32(4), calls.Load())
	require.Len(t, recorder.Events("host-switch"), 1)
}

func TestCheckHook(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"errors":[{"extensions":{"code":"THROTTLED"}}]}`))
			return
		}
		w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	c, _, _ := newTestController(t, []string{srv.URL}, defaultPolicy())
	res, err := c.Do(context.Background(), Request{
		Method: resty.MethodPost,
		Path:   "/api/graphql.json",
		Body:   map[string]any{"query": "{ shop { name } }"},
		Check: func(res *resty.Response) error {
			if res.String() == `{"data":{}}` {
				return nil
			}
			return &inventory.TransientFetchError{URL: res.Request.URL, Err: errors.New("throttled")}
		},
	})
	require.NoError(t, err)
	require.Equal(t, `{"data":{}}`, res.String())
	require.Equal(t, int32(2), calls.Load())

	_, err = c.Do(context.Background(), Request{
		Path:  "/",
		Check: func(*resty.Response) error { return errors.New("bad document") },
	})
	require.True(t, inventory.IsFatal(err))
	require.ErrorContains(t, err, "bad document")
}

func TestCancelledContext(t *testing.T) {
	c, _, _ := newTestController(t, []string{closedHost()}, defaultPolicy())
	c.SetSleep(sleepContext)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Do(ctx, Request{Path: "/"})
	require.ErrorIs(t, err, context.Canceled)
}
