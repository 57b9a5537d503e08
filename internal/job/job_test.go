package job

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsrite/configflow/internal/metrics"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/provider"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (c *countingJob) Name() string { return "counting" }

func (c *countingJob) Run(ctx context.Context) error {
	c.runs.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("missing deadline")
	}
	return c.err
}

func TestSchedulerRegister(t *testing.T) {
	s := NewScheduler(nil, time.Second)

	_, err := s.Register("", &countingJob{})
	assert.Error(t, err)
	_, err = s.Register("@every 1h", nil)
	assert.Error(t, err)
	_, err = s.Register("not a spec", &countingJob{})
	assert.Error(t, err)

	job := &countingJob{}
	_, err = s.Register("@every 1s", job)
	require.NoError(t, err)

	s.Start()
	s.Start()
	require.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	<-s.Stop().Done()
	<-s.Stop().Done()
}

func TestSchedulerRunNow(t *testing.T) {
	s := NewScheduler(nil, 0)
	job := &countingJob{err: errors.New("boom")}
	s.RunNow(job)
	assert.EqualValues(t, 1, job.runs.Load())
}

func TestAggregationRefreshJob(t *testing.T) {
	snap, err := model.ParseSnapshot([]byte(`
nodes:
  - {id: n1, name: JP 01, type: ss, server: jp.example.com, port: 8388, params: {cipher: aes-128-gcm, password: pw}}
subscription_aggregations:
  - {id: A1, name: All, nodes: [n1]}
  - {id: A2, name: Unused, nodes: [n1]}
proxy_groups:
  - {id: G1, name: Proxy, type: select, aggregations: [A1]}
`))
	require.NoError(t, err)
	dir := t.TempDir()
	reg := prometheus.NewRegistry()
	builder := provider.NewAggregationBuilder(provider.AggregationOptions{
		Dir:     dir,
		Metrics: metrics.New("test", reg),
	})

	job := NewAggregationRefreshJob(model.StaticSource{Snap: snap}, builder, nil)
	assert.Equal(t, "aggregation.refresh", job.Name())
	require.NoError(t, job.Run(context.Background()))

	body, err := os.ReadFile(filepath.Join(dir, "A1.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(body), "JP 01")
	_, err = os.Stat(filepath.Join(dir, "A2.yaml"))
	assert.True(t, os.IsNotExist(err), "unreferenced aggregations are not written")

	count, err := testutil.GatherAndCount(reg, "test_aggregation_nodes")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAggregationRefreshJobErrors(t *testing.T) {
	var empty *AggregationRefreshJob
	assert.Error(t, empty.Run(context.Background()))

	job := NewAggregationRefreshJob(model.StaticSource{}, provider.NewAggregationBuilder(provider.AggregationOptions{Dir: t.TempDir()}), nil)
	assert.ErrorIs(t, job.Run(context.Background()), model.ErrEmptySnapshot)
}
