// 文件路径: internal/metrics/metrics.go
// 模块说明: 这是 internal 模块里的 metrics 逻辑，记录渲染次数、诊断数量与预取结果的 Prometheus 指标。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/thsrite/configflow/internal/diag"
)

// DefaultNamespace prefixes every metric.
const DefaultNamespace = "configflow"

// Recorder 汇总业务指标。nil Recorder 的方法都是空操作。
type Recorder struct {
	renders     *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
	prefetch    *prometheus.CounterVec
	aggregation *prometheus.GaugeVec
}

// New registers the collectors on reg; a nil reg uses the default registerer.
func New(namespace string, reg prometheus.Registerer) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Recorder{
		renders: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "total",
			Help:      "Rendered documents by dialect and outcome.",
		}, []string{"dialect", "outcome"}),
		diagnostics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "diagnostics_total",
			Help:      "Diagnostics recorded while rendering, by kind.",
		}, []string{"kind"}),
		prefetch: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "prefetch",
			Name:      "fetches_total",
			Help:      "Prefetched download bodies by outcome.",
		}, []string{"outcome"}),
		aggregation: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "aggregation",
			Name:      "nodes",
			Help:      "Nodes in the last generated aggregation provider.",
		}, []string{"aggregation"}),
	}
}

// ObserveRender counts one render and its diagnostics.
func (r *Recorder) ObserveRender(dialect string, err error, diags *diag.List) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.renders.WithLabelValues(dialect, outcome).Inc()
	for _, d := range diags.Entries() {
		r.diagnostics.WithLabelValues(d.Kind.String()).Inc()
	}
}

// ObservePrefetch counts one prefetched item.
func (r *Recorder) ObservePrefetch(ok bool) {
	if r == nil {
		return
	}
	if ok {
		r.prefetch.WithLabelValues("ok").Inc()
		return
	}
	r.prefetch.WithLabelValues("failed").Inc()
}

// SetAggregationNodes records the node count of a generated provider.
func (r *Recorder) SetAggregationNodes(aggID string, n int) {
	if r == nil {
		return
	}
	r.aggregation.WithLabelValues(aggID).Set(float64(n))
}
