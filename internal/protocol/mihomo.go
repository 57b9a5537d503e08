// 文件路径: internal/protocol/mihomo.go
// 模块说明: 这是 internal 模块里的 mihomo 逻辑，把解析结果组装成完整的 mihomo YAML 文档。
package protocol

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"

	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/resolve"
	"github.com/thsrite/configflow/internal/rules"
)

const (
	defaultGroupName = "PROXY"
	autoGroupName    = "Auto"
)

// MihomoBuilder renders the YAML dialect.
type MihomoBuilder struct {
	base *BaseBuilder
}

func NewMihomoBuilder() *MihomoBuilder {
	base := NewBaseBuilder(string(rules.Mihomo))
	base.Allow(
		model.KindShadowsocks, model.KindShadowsocksR, model.KindVMess, model.KindVLESS,
		model.KindTrojan, model.KindHysteria, model.KindHysteria2, model.KindHTTP,
		model.KindSnell, model.KindTUIC, model.KindAnyTLS, model.KindRaw,
	)
	return &MihomoBuilder{base: base}
}

func (b *MihomoBuilder) Flags() []string {
	return []string{"mihomo", "clash", "meta", "stash"}
}

func (b *MihomoBuilder) Build(req BuildRequest) (*Result, error) {
	diags := &diag.List{}
	snap := req.Snapshot
	res := resolve.Resolve(snap, diags)

	doc := b.loadBase(snap.Mihomo.CustomConfig, diags)
	root := doc.Content[0]
	normalizeFindProcessMode(root)

	nodes := b.base.Materialize(req.Context, req, res.Direct, res, diags)
	proxies := mihomoProxies(nodes, diags, func(n model.Node) { res.Exclude(n.ID) })
	names := make([]string, 0, len(proxies))
	for _, p := range proxies {
		if name, ok := p.get("name"); ok {
			names = append(names, model.Stringify(name))
		}
	}

	base := req.base()
	providers := mihomoProviders(snap, res, base)
	groups := b.groups(res, diags)
	if len(res.Groups) == 0 && len(names) > 0 {
		groups = defaultGroups(names)
	}

	defs := rules.Definitions(snap, req.BaseURL, diags)
	ruleProviders := ordered{}
	for _, d := range defs {
		ruleProviders.set(d.Name, ordered{
			{key: "type", value: "http"},
			{key: "behavior", value: d.Behavior},
			{key: "url", value: d.URL},
			{key: "path", value: d.LocalPath()},
			{key: "interval", value: rules.RefreshInterval},
			{key: "format", value: d.Format},
		})
	}
	ruleLines := rules.Render(snap.RuleItems(), defs, rules.Options{Dialect: rules.Mihomo, NoResolve: b.noResolve(req)})

	if err := setMapping(root, "proxies", proxies); err != nil {
		return nil, err
	}
	if len(providers) > 0 {
		if err := setMapping(root, "proxy-providers", providers); err != nil {
			return nil, err
		}
	}
	if err := setMapping(root, "proxy-groups", groups); err != nil {
		return nil, err
	}
	if len(ruleProviders) > 0 {
		if err := setMapping(root, "rule-providers", ruleProviders); err != nil {
			return nil, err
		}
	}
	if ruleLines == nil {
		ruleLines = []string{}
	}
	if err := setMapping(root, "rules", ruleLines); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode mihomo config / 生成 mihomo 配置失败: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return &Result{
		Payload:     buf.Bytes(),
		ContentType: "text/yaml; charset=utf-8",
		Diagnostics: diags,
	}, nil
}

func (b *MihomoBuilder) noResolve(req BuildRequest) rules.NoResolveMode {
	if req.NoResolve != "" {
		return req.NoResolve
	}
	mode, err := rules.ParseNoResolveMode(req.Snapshot.Mihomo.NoResolveMode)
	if err != nil {
		return rules.NoResolveExplicit
	}
	return mode
}

// loadBase 解析自定义 YAML；必须是非空映射，否则退回内置骨架。
func (b *MihomoBuilder) loadBase(custom string, diags *diag.List) *yaml.Node {
	if strings.TrimSpace(custom) != "" {
		var doc yaml.Node
		err := yaml.Unmarshal([]byte(custom), &doc)
		switch {
		case err != nil:
			diags.Add(diag.MalformedCustomBase, "mihomo.custom_config", "custom base is not valid YAML, using the default skeleton", err)
		case len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode:
			diags.Addf(diag.MalformedCustomBase, "mihomo.custom_config", "custom base is not a mapping, using the default skeleton")
		case len(doc.Content[0].Content) == 0:
			// empty mapping falls through to the skeleton
		default:
			return &doc
		}
	}
	var doc yaml.Node
	if err := doc.Encode(defaultMihomoSkeleton()); err != nil {
		return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode, Tag: "!!map"}}}
	}
	return &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{&doc}}
}

func defaultMihomoSkeleton() ordered {
	return ordered{
		{key: "mixed-port", value: 7890},
		{key: "allow-lan", value: true},
		{key: "bind-address", value: "*"},
		{key: "mode", value: "rule"},
		{key: "log-level", value: "info"},
		{key: "external-controller", value: "127.0.0.1:9090"},
		{key: "dns", value: ordered{
			{key: "enable", value: true},
			{key: "listen", value: "0.0.0.0:53"},
			{key: "enhanced-mode", value: "fake-ip"},
			{key: "fake-ip-range", value: "198.18.0.1/16"},
			{key: "nameserver", value: []string{"223.5.5.5", "119.29.29.29"}},
			{key: "fallback", value: []string{"https://1.1.1.1/dns-query", "https://dns.google/dns-query"}},
		}},
	}
}

// normalizeFindProcessMode 把布尔值改为 always/off，合法字符串统一小写并加引号，避免被当成布尔。
func normalizeFindProcessMode(root *yaml.Node) {
	value := mappingValue(root, "find-process-mode")
	if value == nil || value.Kind != yaml.ScalarNode {
		return
	}
	normalized := strings.ToLower(strings.TrimSpace(value.Value))
	switch {
	case value.Tag == "!!bool":
		if normalized == "true" {
			normalized = "always"
		} else {
			normalized = "off"
		}
	case normalized == "always" || normalized == "strict" || normalized == "off":
	default:
		return
	}
	value.Tag = "!!str"
	value.Value = normalized
	value.Style = yaml.DoubleQuotedStyle
}

func providerEntry(link, name string) ordered {
	return ordered{
		{key: "type", value: "http"},
		{key: "url", value: link},
		{key: "path", value: "./providers/" + name + ".yaml"},
		{key: "interval", value: ProviderInterval},
		{key: "health-check", value: ordered{
			{key: "enable", value: true},
			{key: "url", value: DefaultTestURL},
			{key: "interval", value: DefaultTestInterval},
		}},
	}
}

// SubscriptionProviderURL is the locally served endpoint for a subscription's nodes.
func SubscriptionProviderURL(snap *model.Snapshot, base, id string) string {
	return snap.WithToken(base + "/api/subscriptions/" + id + "/proxies")
}

// AggregationProviderURL is the locally served endpoint for an aggregation's provider file.
func AggregationProviderURL(snap *model.Snapshot, base, id string) string {
	return snap.WithToken(base + "/api/aggregations/" + id + "/provider")
}

// mihomoProviders 为用到的订阅与聚合各生成一个 provider，按快照顺序，以名称为键。
func mihomoProviders(snap *model.Snapshot, res *resolve.Result, base string) ordered {
	providers := ordered{}
	for _, sub := range snap.Subscriptions {
		if sub.Enabled && res.UsedSubscriptions.Has(sub.ID) {
			providers.set(sub.Name, providerEntry(SubscriptionProviderURL(snap, base, sub.ID), sub.Name))
		}
	}
	for _, agg := range snap.Aggregations {
		if agg.Enabled && res.UsedAggregations.Has(agg.ID) {
			providers.set(agg.Name, providerEntry(AggregationProviderURL(snap, base, agg.ID), agg.Name))
		}
	}
	return providers
}

func (b *MihomoBuilder) groups(res *resolve.Result, diags *diag.List) []ordered {
	out := make([]ordered, 0, len(res.Groups))
	for _, g := range res.Groups {
		group := ordered{
			{key: "name", value: g.Name},
			{key: "type", value: string(g.Type)},
		}

		var use []string
		for _, sub := range res.GroupSubscriptions(g) {
			use = append(use, sub.Name)
		}
		for _, agg := range res.GroupAggregations(g) {
			use = append(use, agg.Name)
		}
		use = uniqueStrings(use)
		if len(use) > 0 {
			group.set("use", use)
			if filter := groupFilter(g, diags); filter != "" {
				group.set("filter", filter)
			}
		}

		if members := res.Members(g, false); len(members) > 0 {
			group.set("proxies", members)
		}
		if g.URL != "" {
			group.set("url", g.URL)
		}
		if g.Interval > 0 {
			group.set("interval", int(g.Interval))
		}
		switch g.Type {
		case model.GroupURLTest:
			group.set("tolerance", 100)
			group.set("lazy", true)
		case model.GroupLoadBalance:
			group.set("tolerance", 100)
			if g.Strategy != "" {
				group.set("strategy", g.Strategy)
			}
			if g.Lazy != nil {
				group.set("lazy", *g.Lazy)
			}
		}
		out = append(out, group)
	}
	return out
}

// groupFilter 合并组的 regex 与 aggregation_regex；两者都有时写成 (a)|(b)。无法编译的表达式被丢弃。
func groupFilter(g resolve.Group, diags *diag.List) string {
	var filters []string
	for _, expr := range []string{g.Regex, g.AggregationRegex} {
		expr = strings.TrimSpace(expr)
		if expr == "" {
			continue
		}
		if _, err := CompileFilter(expr); err != nil {
			diags.Add(diag.InvalidRegex, g.Name, "filter ignored", err)
			continue
		}
		filters = append(filters, expr)
	}
	switch len(filters) {
	case 0:
		return ""
	case 1:
		return filters[0]
	default:
		wrapped := make([]string, len(filters))
		for i, f := range filters {
			wrapped[i] = "(" + f + ")"
		}
		return strings.Join(wrapped, "|")
	}
}

// CompileFilter compiles a node-name filter with the same engine the client uses.
func CompileFilter(expr string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(expr, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", expr, err)
	}
	return re, nil
}

func defaultGroups(names []string) []ordered {
	return []ordered{
		{
			{key: "name", value: defaultGroupName},
			{key: "type", value: string(model.GroupSelect)},
			{key: "proxies", value: append([]string{autoGroupName}, names...)},
		},
		{
			{key: "name", value: autoGroupName},
			{key: "type", value: string(model.GroupURLTest)},
			{key: "proxies", value: names},
			{key: "url", value: DefaultTestURL},
			{key: "interval", value: DefaultTestInterval},
			{key: "tolerance", value: 100},
			{key: "lazy", value: true},
		},
	}
}
