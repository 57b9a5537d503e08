package middleware

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsrite/configflow/internal/api/requestctx"
	"github.com/thsrite/configflow/internal/model"
)

type failingSource struct{}

func (failingSource) Snapshot(context.Context) (*model.Snapshot, error) {
	return nil, errors.New("disk gone")
}

func TestSnapshotGuard(t *testing.T) {
	snap := &model.Snapshot{SystemConfig: model.SystemConfig{ConfigToken: "tok"}}
	var seen *model.Snapshot
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestctx.SnapshotFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		source model.SnapshotSource
		query  string
		want   int
	}{
		{name: "valid token", source: model.StaticSource{Snap: snap}, query: "?token=tok", want: http.StatusNoContent},
		{name: "missing token", source: model.StaticSource{Snap: snap}, want: http.StatusUnauthorized},
		{name: "wrong token", source: model.StaticSource{Snap: snap}, query: "?token=nope", want: http.StatusUnauthorized},
		{name: "no token configured", source: model.StaticSource{Snap: &model.Snapshot{}}, want: http.StatusNoContent},
		{name: "load failure", source: failingSource{}, want: http.StatusInternalServerError},
		{name: "no source", want: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/config/mihomo"+tt.query, nil)
			SnapshotGuard(tt.source, nil)(next).ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusNoContent {
				require.NotNil(t, seen)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestStructuredLoggerRedactsToken(t *testing.T) {
	var buf bytes.Buffer
	cfg := DefaultLoggingConfig()
	cfg.Logger = slog.New(slog.NewTextHandler(&buf, nil))

	h := StructuredLogger(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/config/surge?token=secret&base_url=x", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	out := buf.String()
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "token=%2A%2A%2A")
	assert.NotContains(t, out, "/health")
}

func TestMetricsGuard(t *testing.T) {
	h := MetricsGuard("m")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer m")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
