package job

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/provider"
)

// AggregationRefreshJob regenerates every referenced aggregation provider file.
type AggregationRefreshJob struct {
	Snapshots model.SnapshotSource
	Builder   *provider.AggregationBuilder
	Logger    *slog.Logger
}

// NewAggregationRefreshJob creates a new AggregationRefreshJob.
func NewAggregationRefreshJob(snapshots model.SnapshotSource, builder *provider.AggregationBuilder, logger *slog.Logger) *AggregationRefreshJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AggregationRefreshJob{
		Snapshots: snapshots,
		Builder:   builder,
		Logger:    logger,
	}
}

// Name implements Runnable interface.
func (j *AggregationRefreshJob) Name() string {
	return "aggregation.refresh"
}

// Run implements Runnable interface.
func (j *AggregationRefreshJob) Run(ctx context.Context) error {
	if j == nil || j.Snapshots == nil || j.Builder == nil {
		return fmt.Errorf("aggregation refresh job dependencies not configured / 聚合刷新任务依赖未配置")
	}

	snap, err := j.Snapshots.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("aggregation refresh job: %w", err)
	}

	written, err := j.Builder.WriteAll(ctx, snap)
	if written > 0 {
		j.Logger.Info("aggregation providers refreshed", "written", written, "dir", j.Builder.Dir())
	}
	if err != nil {
		return fmt.Errorf("aggregation refresh job: %w", err)
	}
	return nil
}
