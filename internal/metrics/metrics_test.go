package metrics

import (
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsrite/configflow/internal/diag"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New("cf", reg)

	diags := &diag.List{}
	diags.Addf(diag.InvalidRegex, "G1", "bad filter")
	diags.Addf(diag.InvalidRegex, "G2", "bad filter")
	r.ObserveRender("mihomo", nil, diags)
	r.ObserveRender("surge", errors.New("boom"), nil)
	r.SetAggregationNodes("A1", 12)

	expected := `
# HELP cf_render_diagnostics_total Diagnostics recorded while rendering, by kind.
# TYPE cf_render_diagnostics_total counter
cf_render_diagnostics_total{kind="invalid_regex"} 2
# HELP cf_aggregation_nodes Nodes in the last generated aggregation provider.
# TYPE cf_aggregation_nodes gauge
cf_aggregation_nodes{aggregation="A1"} 12
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"cf_render_diagnostics_total", "cf_aggregation_nodes"))

	count, err := testutil.GatherAndCount(reg, "cf_render_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRender("mihomo", nil, nil)
		r.ObservePrefetch(true)
		r.SetAggregationNodes("A1", 1)
	})
}
