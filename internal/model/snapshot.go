// 文件路径: internal/model/snapshot.go
// 模块说明: 这是 internal 模块里的 snapshot 逻辑，负责加载整份配置模型并提供按 ID 查询的索引。
package model

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptySnapshot is returned when the snapshot document has no content.
var ErrEmptySnapshot = errors.New("snapshot is empty / 配置快照为空")

// SystemConfig 影响 URL 构造的全局设置。
type SystemConfig struct {
	ServerDomain      string `yaml:"server_domain,omitempty"`
	ConfigToken       string `yaml:"config_token,omitempty"`
	GithubProxyDomain string `yaml:"github_proxy_domain,omitempty"`
}

// MihomoSection holds the YAML dialect settings.
type MihomoSection struct {
	CustomConfig  string `yaml:"custom_config,omitempty"`
	NoResolveMode string `yaml:"no_resolve_mode,omitempty"`
}

// SmartGroup 把策略组改写为 Surge 的 smart 类型。
type SmartGroup struct {
	GroupID        string `yaml:"group_id"`
	PolicyPriority string `yaml:"policy_priority,omitempty"`
}

// SurgeSection holds the line dialect settings.
type SurgeSection struct {
	CustomConfig string       `yaml:"custom_config,omitempty"`
	SmartGroups  []SmartGroup `yaml:"smart_groups,omitempty"`
}

// Snapshot 是一次渲染的全部输入，渲染过程只读不写。
type Snapshot struct {
	Nodes         []Node             `yaml:"nodes,omitempty"`
	Subscriptions []Subscription     `yaml:"subscriptions,omitempty"`
	Aggregations  []Aggregation      `yaml:"subscription_aggregations,omitempty"`
	ProxyGroups   []ProxyGroup       `yaml:"proxy_groups,omitempty"`
	RuleConfigs   []RuleItem         `yaml:"rule_configs,omitempty"`
	Rules         []RuleItem         `yaml:"rules,omitempty"`
	RuleSets      []RuleItem         `yaml:"rule_sets,omitempty"`
	RuleLibrary   []RuleLibraryEntry `yaml:"rule_library,omitempty"`
	SystemConfig  SystemConfig       `yaml:"system_config,omitempty"`
	Mihomo        MihomoSection      `yaml:"mihomo,omitempty"`
	Surge         SurgeSection       `yaml:"surge,omitempty"`
}

// ParseSnapshot decodes a YAML or JSON snapshot document.
func ParseSnapshot(data []byte) (*Snapshot, error) {
	if strings.TrimSpace(string(data)) == "" {
		return nil, ErrEmptySnapshot
	}
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return &snap, nil
}

// LoadSnapshot reads and parses the snapshot file at path.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	return ParseSnapshot(data)
}

// RuleItems 返回有序规则列表；rule_configs 为空时兼容旧版 rule_sets + rules。
func (s *Snapshot) RuleItems() []RuleItem {
	if len(s.RuleConfigs) > 0 {
		return s.RuleConfigs
	}
	items := make([]RuleItem, 0, len(s.RuleSets)+len(s.Rules))
	for _, rs := range s.RuleSets {
		rs.ItemType = ItemRuleset
		items = append(items, rs)
	}
	for _, r := range s.Rules {
		r.ItemType = ItemRule
		items = append(items, r)
	}
	return items
}

// Rulesets returns the ruleset items in rule order.
func (s *Snapshot) Rulesets() []RuleItem {
	var out []RuleItem
	for _, item := range s.RuleItems() {
		if item.IsRuleset() {
			out = append(out, item)
		}
	}
	return out
}

// EffectiveBase 优先使用 server_domain，其次使用调用方传入的 base URL。
func (s *Snapshot) EffectiveBase(baseURL string) string {
	base := strings.TrimSpace(s.SystemConfig.ServerDomain)
	if base == "" {
		base = strings.TrimSpace(baseURL)
	}
	return strings.TrimRight(base, "/")
}

// WithToken appends ?token= to rawURL when a config token is configured.
func (s *Snapshot) WithToken(rawURL string) string {
	token := s.SystemConfig.ConfigToken
	if token == "" {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "token=" + url.QueryEscape(token)
}

// Index 提供按 ID 查找实体的能力，同 ID 以首次出现为准。
type Index struct {
	snap          *Snapshot
	nodes         map[string]*Node
	groups        map[string]*ProxyGroup
	subscriptions map[string]*Subscription
	aggregations  map[string]*Aggregation
	library       map[string]*RuleLibraryEntry
	libraryByName map[string]*RuleLibraryEntry
}

// NewIndex builds lookup tables over snap.
func NewIndex(snap *Snapshot) *Index {
	idx := &Index{
		snap:          snap,
		nodes:         make(map[string]*Node, len(snap.Nodes)),
		groups:        make(map[string]*ProxyGroup, len(snap.ProxyGroups)),
		subscriptions: make(map[string]*Subscription, len(snap.Subscriptions)),
		aggregations:  make(map[string]*Aggregation, len(snap.Aggregations)),
		library:       make(map[string]*RuleLibraryEntry, len(snap.RuleLibrary)),
		libraryByName: make(map[string]*RuleLibraryEntry, len(snap.RuleLibrary)),
	}
	for i := range snap.Nodes {
		if _, ok := idx.nodes[snap.Nodes[i].ID]; !ok {
			idx.nodes[snap.Nodes[i].ID] = &snap.Nodes[i]
		}
	}
	for i := range snap.ProxyGroups {
		if _, ok := idx.groups[snap.ProxyGroups[i].ID]; !ok {
			idx.groups[snap.ProxyGroups[i].ID] = &snap.ProxyGroups[i]
		}
	}
	for i := range snap.Subscriptions {
		if _, ok := idx.subscriptions[snap.Subscriptions[i].ID]; !ok {
			idx.subscriptions[snap.Subscriptions[i].ID] = &snap.Subscriptions[i]
		}
	}
	for i := range snap.Aggregations {
		if _, ok := idx.aggregations[snap.Aggregations[i].ID]; !ok {
			idx.aggregations[snap.Aggregations[i].ID] = &snap.Aggregations[i]
		}
	}
	for i := range snap.RuleLibrary {
		entry := &snap.RuleLibrary[i]
		if _, ok := idx.library[entry.ID]; !ok {
			idx.library[entry.ID] = entry
		}
		if _, ok := idx.libraryByName[entry.Name]; !ok {
			idx.libraryByName[entry.Name] = entry
		}
	}
	return idx
}

// Snapshot returns the indexed snapshot.
func (i *Index) Snapshot() *Snapshot { return i.snap }

func (i *Index) Node(id string) (*Node, bool) {
	n, ok := i.nodes[id]
	return n, ok
}

func (i *Index) Group(id string) (*ProxyGroup, bool) {
	g, ok := i.groups[id]
	return g, ok
}

func (i *Index) Subscription(id string) (*Subscription, bool) {
	s, ok := i.subscriptions[id]
	return s, ok
}

func (i *Index) Aggregation(id string) (*Aggregation, bool) {
	a, ok := i.aggregations[id]
	return a, ok
}

// EnabledAggregation returns the aggregation only when it exists and is enabled.
func (i *Index) EnabledAggregation(id string) (*Aggregation, bool) {
	a, ok := i.aggregations[id]
	if !ok || !a.Enabled {
		return nil, false
	}
	return a, true
}

func (i *Index) LibraryEntry(id string) (*RuleLibraryEntry, bool) {
	e, ok := i.library[id]
	return e, ok
}

func (i *Index) LibraryEntryByName(name string) (*RuleLibraryEntry, bool) {
	e, ok := i.libraryByName[name]
	return e, ok
}
