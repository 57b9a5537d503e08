// 文件路径: internal/model/group.go
// 模块说明: 这是 internal 模块里的 group 逻辑，定义订阅、聚合与策略组。
package model

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Subscription 是外部节点来源，编译器只引用它的 provider 端点。
type Subscription struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	URL     string `yaml:"url,omitempty"`
	Enabled bool   `yaml:"enabled"`
}

func (s *Subscription) UnmarshalYAML(value *yaml.Node) error {
	type plain Subscription
	raw := plain{Enabled: true}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode subscription: %w", err)
	}
	*s = Subscription(raw)
	return nil
}

// Aggregation 把若干订阅和手动节点合并成一个虚拟 provider。
type Aggregation struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Enabled       bool     `yaml:"enabled"`
	Subscriptions []string `yaml:"subscriptions,omitempty"`
	Nodes         []string `yaml:"nodes,omitempty"`
	RegexFilter   string   `yaml:"regex_filter,omitempty"`
}

func (a *Aggregation) UnmarshalYAML(value *yaml.Node) error {
	type plain Aggregation
	raw := plain{Enabled: true}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode aggregation: %w", err)
	}
	*a = Aggregation(raw)
	return nil
}

// proxies_order entry types.
const (
	OrderNode        = "node"
	OrderStrategy    = "strategy"
	OrderAggregation = "aggregation"
)

// OrderEntry 是精确排序里的一项。
type OrderEntry struct {
	Type string `yaml:"type"`
	ID   string `yaml:"id"`
}

// ProxyOrder values.
const (
	NodesFirst      = "nodes_first"
	StrategiesFirst = "strategies_first"
)

// Legacy source values for groups written before the multi-source form.
const (
	SourceSubscription = "subscription"
	SourceNode         = "node"
	SourceStrategy     = "strategy"
)

// ProxyGroup 是一个策略组。FollowGroup 非空时，选择来源全部取自被跟随的组。
type ProxyGroup struct {
	ID               string       `yaml:"id"`
	Name             string       `yaml:"name"`
	Type             GroupType    `yaml:"type"`
	Enabled          bool         `yaml:"enabled"`
	ManualNodes      []string     `yaml:"manual_nodes,omitempty"`
	Aggregations     []string     `yaml:"aggregations,omitempty"`
	Subscriptions    []string     `yaml:"subscriptions,omitempty"`
	IncludeGroups    []string     `yaml:"include_groups,omitempty"`
	ProxiesOrder     []OrderEntry `yaml:"proxies_order,omitempty"`
	ProxyOrder       string       `yaml:"proxy_order,omitempty"`
	FollowGroup      string       `yaml:"follow_group,omitempty"`
	Regex            string       `yaml:"regex,omitempty"`
	AggregationRegex string       `yaml:"aggregation_regex,omitempty"`
	URL              string       `yaml:"url,omitempty"`
	Interval         FlexInt      `yaml:"interval,omitempty"`
	Strategy         string       `yaml:"strategy,omitempty"`
	Lazy             *bool        `yaml:"lazy,omitempty"`

	Source  string   `yaml:"source,omitempty"`
	Proxies []string `yaml:"proxies,omitempty"`
}

func (g *ProxyGroup) UnmarshalYAML(value *yaml.Node) error {
	type plain ProxyGroup
	raw := plain{Enabled: true}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode proxy group: %w", err)
	}
	*g = ProxyGroup(raw)
	return nil
}

// HasSources reports whether any multi-source selection field is set.
func (g ProxyGroup) HasSources() bool {
	return len(g.ManualNodes) > 0 || len(g.Aggregations) > 0 ||
		len(g.IncludeGroups) > 0 || len(g.Subscriptions) > 0
}

// Normalized 返回把旧版 source/proxies 写法展开后的副本。
func (g ProxyGroup) Normalized() ProxyGroup {
	if g.HasSources() {
		return g
	}
	switch g.Source {
	case SourceNode:
		g.ManualNodes = append([]string(nil), g.Proxies...)
	case SourceStrategy:
		g.IncludeGroups = append([]string(nil), g.Proxies...)
	}
	return g
}

// StrategiesFirst reports whether include_groups come before nodes.
func (g ProxyGroup) StrategiesFirst() bool {
	return g.ProxyOrder == StrategiesFirst
}
