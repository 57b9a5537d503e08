// 文件路径: internal/resolve/resolve.go
// 模块说明: 这是 internal 模块里的 resolve 逻辑，计算哪些节点直接输出、哪些只通过聚合 provider 引用。
package resolve

import (
	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
)

// Group 是展开 follow 之后的启用策略组：选择字段来自被跟随的组，ID 与名称来自声明的组。
type Group struct {
	model.ProxyGroup
	Declared   *model.ProxyGroup
	FollowedID string
}

// Result 保存一次解析的全部用量集合。
type Result struct {
	Index  *model.Index
	Groups []Group

	UsedNodes          *IDSet
	DirectlySelected   *IDSet
	OnlyInAggregations *IDSet
	UsedAggregations   *IDSet
	UsedSubscriptions  *IDSet

	// Direct 是最终直接输出的节点，保持快照中的顺序。
	Direct []model.Node

	effective map[string]struct{}
	excluded  map[string]struct{}
}

// Resolve 按固定顺序执行四步：收集用量、收集直接选择、计算仅聚合节点、得出直接节点。
func Resolve(snap *model.Snapshot, diags *diag.List) *Result {
	idx := model.NewIndex(snap)
	res := &Result{
		Index:              idx,
		UsedNodes:          newIDSet(),
		DirectlySelected:   newIDSet(),
		OnlyInAggregations: newIDSet(),
		UsedAggregations:   newIDSet(),
		UsedSubscriptions:  newIDSet(),
		effective:          make(map[string]struct{}),
		excluded:           make(map[string]struct{}),
	}
	res.Groups = EffectiveGroups(idx, diags)
	for _, g := range res.Groups {
		res.effective[g.ID] = struct{}{}
	}

	// step 1
	for _, g := range res.Groups {
		for _, id := range selectedNodeIDs(g) {
			res.UsedNodes.Add(id)
			if _, ok := idx.Node(id); !ok {
				diags.Addf(diag.DanglingReference, g.Name, "node %q does not exist", id)
			}
		}
		for _, agg := range res.GroupAggregations(g) {
			res.UsedAggregations.Add(agg.ID)
		}
		for _, id := range g.Aggregations {
			if _, ok := idx.EnabledAggregation(id); !ok {
				diags.Addf(diag.DanglingReference, g.Name, "aggregation %q is missing or disabled", id)
			}
		}
		for _, sub := range res.GroupSubscriptions(g) {
			res.UsedSubscriptions.Add(sub.ID)
		}
		for _, id := range g.Subscriptions {
			if sub, ok := idx.Subscription(id); !ok || !sub.Enabled {
				diags.Addf(diag.DanglingReference, g.Name, "subscription %q is missing or disabled", id)
			}
		}
		for _, id := range strategyIDs(g) {
			if _, ok := res.effective[id]; !ok {
				diags.Addf(diag.DanglingReference, g.Name, "group %q is missing, disabled or has no usable follow target", id)
			}
		}
	}

	// step 2
	for _, g := range res.Groups {
		for _, id := range selectedNodeIDs(g) {
			res.DirectlySelected.Add(id)
		}
	}

	// step 3
	for _, aggID := range res.UsedAggregations.IDs() {
		agg, ok := idx.EnabledAggregation(aggID)
		if !ok {
			continue
		}
		for _, nodeID := range agg.Nodes {
			if !res.DirectlySelected.Has(nodeID) {
				res.OnlyInAggregations.Add(nodeID)
			}
		}
	}

	// step 4
	emitted := make(map[string]struct{})
	for _, node := range snap.Nodes {
		if !node.Enabled || !res.UsedNodes.Has(node.ID) || res.OnlyInAggregations.Has(node.ID) {
			continue
		}
		if _, dup := emitted[node.ID]; dup {
			continue
		}
		emitted[node.ID] = struct{}{}
		res.Direct = append(res.Direct, node)
	}
	return res
}

// EffectiveGroups 返回启用的策略组，follow 链被展开；目标缺失、被禁用或成环时跳过该组。
func EffectiveGroups(idx *model.Index, diags *diag.List) []Group {
	snap := idx.Snapshot()
	out := make([]Group, 0, len(snap.ProxyGroups))
	for i := range snap.ProxyGroups {
		declared := &snap.ProxyGroups[i]
		if !declared.Enabled {
			continue
		}
		if g, ok := effective(idx, declared, diags); ok {
			out = append(out, g)
		}
	}
	return out
}

func effective(idx *model.Index, declared *model.ProxyGroup, diags *diag.List) (Group, bool) {
	source := declared
	seen := map[string]struct{}{declared.ID: {}}
	for source.FollowGroup != "" {
		target, ok := idx.Group(source.FollowGroup)
		if !ok {
			diags.Addf(diag.DanglingReference, declared.Name, "follow target %q does not exist", source.FollowGroup)
			return Group{}, false
		}
		if !target.Enabled {
			diags.Addf(diag.DanglingReference, declared.Name, "follow target %q is disabled", target.Name)
			return Group{}, false
		}
		if _, loop := seen[target.ID]; loop {
			diags.Addf(diag.DanglingReference, declared.Name, "follow chain loops at %q", target.Name)
			return Group{}, false
		}
		seen[target.ID] = struct{}{}
		source = target
	}

	eff := source.Normalized()
	eff.ID = declared.ID
	eff.Name = declared.Name
	eff.Enabled = true
	eff.FollowGroup = ""
	g := Group{ProxyGroup: eff, Declared: declared}
	if source != declared {
		g.FollowedID = source.ID
	}
	return g, true
}

// selectedNodeIDs 收集 manual_nodes 与 proxies_order 中的非哨兵节点 ID。
func selectedNodeIDs(g Group) []string {
	var ids []string
	for _, id := range g.ManualNodes {
		if !model.IsSentinel(id) {
			ids = append(ids, id)
		}
	}
	for _, entry := range g.ProxiesOrder {
		if entry.Type == model.OrderNode && !model.IsSentinel(entry.ID) {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}

func strategyIDs(g Group) []string {
	ids := append([]string(nil), g.IncludeGroups...)
	for _, entry := range g.ProxiesOrder {
		if entry.Type == model.OrderStrategy {
			ids = append(ids, entry.ID)
		}
	}
	return ids
}

// Exclude 标记一个未能输出的直接节点（解码失败或目标格式不支持），之后不再出现在组成员中。
func (r *Result) Exclude(nodeID string) {
	r.excluded[nodeID] = struct{}{}
}

// IsEffective reports whether the group id resolves to an emitted group.
func (r *Result) IsEffective(id string) bool {
	_, ok := r.effective[id]
	return ok
}

// GroupAggregations 返回组引用的启用聚合：先 proxies_order 中的聚合项，再 aggregations 字段，去重。
func (r *Result) GroupAggregations(g Group) []*model.Aggregation {
	seen := make(map[string]struct{})
	var out []*model.Aggregation
	add := func(id string) {
		agg, ok := r.Index.EnabledAggregation(id)
		if !ok {
			return
		}
		if _, dup := seen[agg.ID]; dup {
			return
		}
		seen[agg.ID] = struct{}{}
		out = append(out, agg)
	}
	for _, entry := range g.ProxiesOrder {
		if entry.Type == model.OrderAggregation {
			add(entry.ID)
		}
	}
	for _, id := range g.Aggregations {
		add(id)
	}
	return out
}

// EnabledSubscriptions 返回组直接引用的启用订阅。
func (r *Result) EnabledSubscriptions(g Group) []*model.Subscription {
	seen := make(map[string]struct{})
	var out []*model.Subscription
	for _, id := range g.Subscriptions {
		sub, ok := r.Index.Subscription(id)
		if !ok || !sub.Enabled {
			continue
		}
		if _, dup := seen[sub.ID]; dup {
			continue
		}
		seen[sub.ID] = struct{}{}
		out = append(out, sub)
	}
	return out
}

// GroupSubscriptions 返回需要单独作为 provider 的订阅：已包含在本组引用的聚合中的订阅被跳过。
func (r *Result) GroupSubscriptions(g Group) []*model.Subscription {
	inAggregations := make(map[string]struct{})
	for _, agg := range r.GroupAggregations(g) {
		for _, subID := range agg.Subscriptions {
			inAggregations[subID] = struct{}{}
		}
	}
	var out []*model.Subscription
	for _, sub := range r.EnabledSubscriptions(g) {
		if _, skip := inAggregations[sub.ID]; skip {
			continue
		}
		out = append(out, sub)
	}
	return out
}

// Members 返回组内成员名称。有 proxies_order 时按其顺序；appendManual 为 true 时，
// 未出现在排序中的手动节点追加在末尾。禁用或不存在的节点、不会输出的组被跳过。
func (r *Result) Members(g Group, appendManual bool) []string {
	var out []string
	if len(g.ProxiesOrder) > 0 {
		ordered := make(map[string]struct{})
		for _, entry := range g.ProxiesOrder {
			switch entry.Type {
			case model.OrderNode:
				ordered[entry.ID] = struct{}{}
				if name, ok := r.nodeName(entry.ID); ok {
					out = append(out, name)
				}
			case model.OrderStrategy:
				if name, ok := r.groupName(entry.ID); ok {
					out = append(out, name)
				}
			}
		}
		if appendManual {
			for _, id := range g.ManualNodes {
				if _, done := ordered[id]; done {
					continue
				}
				if name, ok := r.nodeName(id); ok {
					out = append(out, name)
				}
			}
		}
		return out
	}

	var nodes, strategies []string
	for _, id := range g.ManualNodes {
		if name, ok := r.nodeName(id); ok {
			nodes = append(nodes, name)
		}
	}
	for _, id := range g.IncludeGroups {
		if name, ok := r.groupName(id); ok {
			strategies = append(strategies, name)
		}
	}
	if g.StrategiesFirst() {
		return append(strategies, nodes...)
	}
	return append(nodes, strategies...)
}

func (r *Result) nodeName(id string) (string, bool) {
	if model.IsSentinel(id) {
		return id, true
	}
	if _, skip := r.excluded[id]; skip {
		return "", false
	}
	node, ok := r.Index.Node(id)
	if !ok || !node.Enabled {
		return "", false
	}
	return node.Name, true
}

func (r *Result) groupName(id string) (string, bool) {
	if !r.IsEffective(id) {
		return "", false
	}
	g, ok := r.Index.Group(id)
	if !ok {
		return "", false
	}
	return g.Name, true
}
