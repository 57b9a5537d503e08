// 文件路径: internal/provider/aggregation.go
// 模块说明: 这是 internal 模块里的 aggregation 逻辑，汇总订阅节点与手动节点，过滤后生成聚合 provider 文件。
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/thsrite/configflow/internal/decode"
	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/metrics"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/protocol"
	"github.com/thsrite/configflow/internal/resolve"
	"github.com/thsrite/configflow/internal/subscription"
)

var (
	// ErrAggregationNotFound is returned for a missing or disabled aggregation.
	ErrAggregationNotFound = errors.New("aggregation not found or disabled / 聚合不存在或已禁用")
	// ErrSubscriptionNotFound is returned for a missing or disabled subscription.
	ErrSubscriptionNotFound = errors.New("subscription not found or disabled / 订阅不存在或已禁用")
)

// Stats 记录一次聚合的节点统计，仅用于返回与日志，不写回快照。
type Stats struct {
	SubscriptionCounts map[string]int
	Failed             []string
	Total              int
}

// Collected 是聚合后的节点与统计。
type Collected struct {
	Nodes       []model.Node
	Stats       Stats
	Diagnostics *diag.List
}

// AggregationOptions 配置 AggregationBuilder。
type AggregationOptions struct {
	Source       subscription.Source
	Dir          string
	Materializer *decode.Materializer
	Logger       *slog.Logger
	Metrics      *metrics.Recorder
}

// AggregationBuilder 生成聚合 provider。
type AggregationBuilder struct {
	source       subscription.Source
	dir          string
	materializer *decode.Materializer
	logger       *slog.Logger
	metrics      *metrics.Recorder
}

// NewAggregationBuilder 创建聚合构建器；Source 为空时只使用手动节点。
func NewAggregationBuilder(opts AggregationOptions) *AggregationBuilder {
	b := &AggregationBuilder{
		source:       opts.Source,
		dir:          opts.Dir,
		materializer: opts.Materializer,
		logger:       opts.Logger,
		metrics:      opts.Metrics,
	}
	if b.dir == "" {
		b.dir = "data/providers"
	}
	if b.materializer == nil {
		b.materializer = decode.NewMaterializer(nil)
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	return b
}

// Dir returns the directory provider files are written to.
func (b *AggregationBuilder) Dir() string { return b.dir }

// Collect 按以下顺序汇总节点：订阅节点、按名称去重的手动节点、regex_filter 过滤、剔除被策略组直接选择的节点。
func (b *AggregationBuilder) Collect(ctx context.Context, snap *model.Snapshot, aggID string) (*Collected, error) {
	diags := &diag.List{}
	res := resolve.Resolve(snap, nil)
	agg, ok := res.Index.EnabledAggregation(aggID)
	if !ok {
		return nil, fmt.Errorf("aggregation %q: %w", aggID, ErrAggregationNotFound)
	}

	out := &Collected{Diagnostics: diags, Stats: Stats{SubscriptionCounts: make(map[string]int)}}
	var candidates []model.Node
	for _, subID := range agg.Subscriptions {
		sub, ok := res.Index.Subscription(subID)
		if !ok || !sub.Enabled {
			diags.Addf(diag.DanglingReference, agg.Name, "subscription %q is missing or disabled", subID)
			continue
		}
		nodes, err := b.fetch(ctx, *sub)
		if err != nil {
			b.logger.Error("aggregation subscription unavailable",
				"aggregation", agg.Name, "subscription", sub.Name, "error", err)
			out.Stats.Failed = append(out.Stats.Failed, sub.ID)
		}
		out.Stats.SubscriptionCounts[sub.ID] = len(nodes)
		candidates = append(candidates, nodes...)
	}

	names := make(map[string]struct{}, len(candidates))
	for _, n := range candidates {
		names[n.Name] = struct{}{}
	}
	wanted := make(map[string]struct{}, len(agg.Nodes))
	for _, id := range agg.Nodes {
		wanted[id] = struct{}{}
	}
	for _, node := range snap.Nodes {
		if _, ok := wanted[node.ID]; !ok || !node.Enabled || model.IsSentinel(node.ID) {
			continue
		}
		if _, dup := names[node.Name]; dup {
			continue
		}
		names[node.Name] = struct{}{}
		candidates = append(candidates, node)
	}

	if expr := strings.TrimSpace(agg.RegexFilter); expr != "" {
		re, err := protocol.CompileFilter(expr)
		if err != nil {
			diags.Add(diag.InvalidRegex, agg.Name, "regex_filter ignored", err)
			b.logger.Error("aggregation regex_filter invalid", "aggregation", agg.Name, "error", err)
		} else {
			filtered := candidates[:0]
			for _, n := range candidates {
				if ok, _ := re.MatchString(n.Name); ok {
					filtered = append(filtered, n)
				}
			}
			candidates = filtered
		}
	}

	direct := make(map[string]struct{}, len(res.Direct))
	for _, n := range res.Direct {
		direct[n.Name] = struct{}{}
	}
	for _, node := range candidates {
		if model.IsSentinel(node.ID) || res.DirectlySelected.Has(node.ID) {
			continue
		}
		if _, ok := direct[node.Name]; ok && node.SubscriptionID != "" {
			continue
		}
		parsed, err := b.materializer.Materialize(ctx, node)
		if err != nil {
			diags.Add(diag.DecodeFailure, node.Name, "node dropped from aggregation", err)
			continue
		}
		out.Nodes = append(out.Nodes, parsed)
	}
	out.Stats.Total = len(out.Nodes)
	return out, nil
}

func (b *AggregationBuilder) fetch(ctx context.Context, sub model.Subscription) ([]model.Node, error) {
	if b.source == nil {
		return nil, fmt.Errorf("no subscription source configured")
	}
	return b.source.FetchNodes(ctx, sub)
}

// Provider 返回聚合的 mihomo provider 文档 {proxies: [...]}。
func (b *AggregationBuilder) Provider(ctx context.Context, snap *model.Snapshot, aggID string) ([]byte, *Collected, error) {
	collected, err := b.Collect(ctx, snap, aggID)
	if err != nil {
		return nil, nil, err
	}
	payload, err := protocol.EncodeMihomoProvider(collected.Nodes, collected.Diagnostics)
	if err != nil {
		return nil, collected, err
	}
	return payload, collected, nil
}

// SurgeProvider 返回聚合节点的 Surge 行格式，供 policy-path 使用。
func (b *AggregationBuilder) SurgeProvider(ctx context.Context, snap *model.Snapshot, aggID string) (string, *Collected, error) {
	collected, err := b.Collect(ctx, snap, aggID)
	if err != nil {
		return "", nil, err
	}
	return protocol.EncodeSurgeProxies(collected.Nodes, collected.Diagnostics), collected, nil
}

// Write 重新生成 {agg_id}.yaml 并返回文件路径。
func (b *AggregationBuilder) Write(ctx context.Context, snap *model.Snapshot, aggID string) (string, *Collected, error) {
	payload, collected, err := b.Provider(ctx, snap, aggID)
	if err != nil {
		return "", collected, err
	}
	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return "", collected, fmt.Errorf("create provider dir / 创建目录失败: %w", err)
	}
	path := filepath.Join(b.dir, aggID+".yaml")
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return "", collected, fmt.Errorf("write provider / 写入 provider 失败: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", collected, fmt.Errorf("replace provider: %w", err)
	}
	b.metrics.SetAggregationNodes(aggID, collected.Stats.Total)
	b.logger.Info("aggregation provider written",
		"aggregation", aggID, "path", path, "nodes", collected.Stats.Total)
	return path, collected, nil
}

// WriteAll 重新生成所有被策略组引用的启用聚合，单个失败不影响其余聚合。
func (b *AggregationBuilder) WriteAll(ctx context.Context, snap *model.Snapshot) (int, error) {
	res := resolve.Resolve(snap, nil)
	var (
		written int
		errs    []error
	)
	for _, agg := range snap.Aggregations {
		if !agg.Enabled || !res.UsedAggregations.Has(agg.ID) {
			continue
		}
		if _, _, err := b.Write(ctx, snap, agg.ID); err != nil {
			errs = append(errs, err)
			continue
		}
		written++
	}
	return written, errors.Join(errs...)
}

// SubscriptionProxies 返回单个订阅的节点，按 format 输出 mihomo provider 或 Surge 行。
func SubscriptionProxies(ctx context.Context, src subscription.Source, snap *model.Snapshot, subID string, dialect string) ([]byte, *diag.List, error) {
	idx := model.NewIndex(snap)
	sub, ok := idx.Subscription(subID)
	if !ok || !sub.Enabled {
		return nil, nil, fmt.Errorf("subscription %q: %w", subID, ErrSubscriptionNotFound)
	}
	if src == nil {
		return nil, nil, fmt.Errorf("subscription %q: no source configured", subID)
	}
	nodes, err := src.FetchNodes(ctx, *sub)
	if err != nil {
		return nil, nil, err
	}
	diags := &diag.List{}
	if strings.EqualFold(dialect, "surge") {
		return []byte(protocol.EncodeSurgeProxies(nodes, diags)), diags, nil
	}
	payload, err := protocol.EncodeMihomoProvider(nodes, diags)
	return payload, diags, err
}
