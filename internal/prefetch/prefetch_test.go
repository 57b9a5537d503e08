package prefetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsrite/configflow/internal/metrics"
	"github.com/thsrite/configflow/internal/provider"
)

func TestFill(t *testing.T) {
	var (
		inFlight int32
		peak     int32
		hits     int32
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		n := atomic.AddInt32(&inFlight, 1)
		defer atomic.AddInt32(&inFlight, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("body:" + r.URL.Path))
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	rec := metrics.New("test", reg)
	p := New(Options{
		Workers:  2,
		BaseURL:  "https://cfg.example.com",
		Loopback: srv.URL,
		Metrics:  rec,
	})

	items := []provider.Download{
		{Name: "a", URL: "https://cfg.example.com/api/aggregations/A1/provider?token=t"},
		{Name: "b", URL: srv.URL + "/b"},
		{Name: "c", URL: srv.URL + "/broken"},
		{Name: "d", URL: srv.URL + "/d"},
		{Name: "e"},
	}
	n := p.Fill(context.Background(), items)

	assert.Equal(t, 3, n)
	assert.Equal(t, "body:/api/aggregations/A1/provider", items[0].Content)
	assert.Equal(t, "body:/b", items[1].Content)
	assert.Empty(t, items[2].Content)
	assert.Equal(t, "body:/d", items[3].Content)
	assert.Empty(t, items[4].Content)
	assert.EqualValues(t, 4, atomic.LoadInt32(&hits), "failures are not retried")
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))

	count, err := testutil.GatherAndCount(reg, "test_prefetch_fetches_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "ok and failed series")
}

func TestRewrite(t *testing.T) {
	p := New(Options{BaseURL: "https://cfg.example.com/"})
	assert.Equal(t, DefaultLoopback+"/api/rules/local/LAN", p.Rewrite("https://cfg.example.com/api/rules/local/LAN"))
	assert.Equal(t, "https://other.example/x", p.Rewrite("https://other.example/x"))

	noBase := New(Options{})
	assert.Equal(t, "https://cfg.example.com/x", noBase.Rewrite("https://cfg.example.com/x"))

	rebased := noBase.WithBase("https://cfg.example.com")
	assert.Equal(t, DefaultLoopback+"/x", rebased.Rewrite("https://cfg.example.com/x"))
	assert.Equal(t, "https://cfg.example.com/x", noBase.Rewrite("https://cfg.example.com/x"))
}
