// 文件路径: internal/model/rule.go
// 模块说明: 这是 internal 模块里的 rule 逻辑，定义规则项与规则库条目。
package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule item types.
const (
	ItemRule    = "rule"
	ItemRuleset = "ruleset"
)

// Rule-set behaviors.
const (
	BehaviorDomain    = "domain"
	BehaviorIPCIDR    = "ipcidr"
	BehaviorClassical = "classical"
)

// RuleItem 是有序规则列表中的一项，列表顺序即客户端的匹配顺序。
type RuleItem struct {
	ItemType      string `yaml:"itemType"`
	Enabled       bool   `yaml:"enabled"`
	RuleType      string `yaml:"rule_type,omitempty"`
	Value         string `yaml:"value,omitempty"`
	Policy        string `yaml:"policy,omitempty"`
	NoResolve     bool   `yaml:"no_resolve,omitempty"`
	Name          string `yaml:"name,omitempty"`
	URL           string `yaml:"url,omitempty"`
	LibraryRuleID string `yaml:"library_rule_id,omitempty"`
	Behavior      string `yaml:"behavior,omitempty"`
}

func (r *RuleItem) UnmarshalYAML(value *yaml.Node) error {
	type plain RuleItem
	raw := plain{Enabled: true}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode rule item: %w", err)
	}
	*r = RuleItem(raw)
	return nil
}

// IsRuleset reports whether the item references a rule-set definition.
func (r RuleItem) IsRuleset() bool {
	return r.ItemType == ItemRuleset
}

// NormalizedRuleType returns the upper-cased rule type.
func (r RuleItem) NormalizedRuleType() string {
	return strings.ToUpper(strings.TrimSpace(r.RuleType))
}

// RuleLibraryEntry 是可复用的规则集定义，通过 library_rule_id 引用。
type RuleLibraryEntry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	URL      string `yaml:"url,omitempty"`
	Behavior string `yaml:"behavior,omitempty"`
	Enabled  bool   `yaml:"enabled"`
}

func (e *RuleLibraryEntry) UnmarshalYAML(value *yaml.Node) error {
	type plain RuleLibraryEntry
	raw := plain{Enabled: true}
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("decode rule library entry: %w", err)
	}
	*e = RuleLibraryEntry(raw)
	return nil
}
