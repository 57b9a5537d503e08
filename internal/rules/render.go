// 文件路径: internal/rules/render.go
// 模块说明: 这是 internal 模块里的 rules 逻辑，把有序规则列表渲染成目标方言的规则行，顺序即匹配顺序。
package rules

import (
	"fmt"
	"strings"

	"github.com/thsrite/configflow/internal/model"
)

// Dialect names a target configuration syntax.
type Dialect string

const (
	Mihomo Dialect = "mihomo"
	Surge  Dialect = "surge"
)

// ParseDialect accepts the dialect names case-insensitively; "clash" is an alias of mihomo.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mihomo", "clash", "clash.meta", "meta":
		return Mihomo, nil
	case "surge":
		return Surge, nil
	default:
		return "", fmt.Errorf("unknown dialect %q / 未知的配置格式", s)
	}
}

// NoResolveMode 决定何时在规则后追加 no-resolve。
type NoResolveMode string

const (
	// NoResolveExplicit 只看条目自身的 no_resolve 标记。
	NoResolveExplicit NoResolveMode = "explicit"
	// NoResolveInfer 额外为 IP 类规则与 ipcidr 规则集自动追加。
	NoResolveInfer NoResolveMode = "infer"
)

// ParseNoResolveMode maps an empty value to explicit.
func ParseNoResolveMode(s string) (NoResolveMode, error) {
	switch NoResolveMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", NoResolveExplicit:
		return NoResolveExplicit, nil
	case NoResolveInfer:
		return NoResolveInfer, nil
	default:
		return "", fmt.Errorf("unknown no-resolve mode %q / 未知的 no-resolve 模式", s)
	}
}

var ipRuleTypes = map[string]struct{}{
	"IP-CIDR":   {},
	"IP-CIDR6":  {},
	"IP-SUFFIX": {},
	"GEOIP":     {},
}

// surgeTypes maps mihomo rule types to their Surge names.
var surgeTypes = []struct{ from, to string }{
	{"SRC-IP-CIDR", "SRC-IP"},
	{"DST-PORT", "DEST-PORT"},
}

// Options controls one rule rendering pass.
type Options struct {
	Dialect   Dialect
	NoResolve NoResolveMode
	// DefaultPolicy is used by ruleset items without a policy.
	DefaultPolicy string
}

// Render 逐条渲染启用的规则项，只过滤 enabled=false，其余全部保持原顺序输出。
func Render(items []model.RuleItem, defs []Definition, opts Options) []string {
	byName := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if _, ok := byName[d.Name]; !ok {
			byName[d.Name] = d
		}
	}
	if opts.DefaultPolicy == "" {
		opts.DefaultPolicy = "PROXY"
		if opts.Dialect == Surge {
			opts.DefaultPolicy = "Proxy"
		}
	}

	out := make([]string, 0, len(items))
	for _, item := range items {
		if !item.Enabled {
			continue
		}
		if item.IsRuleset() {
			out = append(out, renderRuleset(item, byName, opts))
			continue
		}
		out = append(out, renderRule(item, opts))
	}
	return out
}

func renderRule(item model.RuleItem, opts Options) string {
	typ := item.NormalizedRuleType()
	policy := item.Policy

	switch typ {
	case "MATCH", "FINAL":
		if opts.Dialect == Surge {
			return "FINAL," + policy
		}
		return "MATCH," + policy
	case "RULE-SET":
		return withNoResolve("RULE-SET,"+item.Value+","+policy, item.NoResolve)
	case "AND", "OR", "NOT":
		if opts.Dialect == Surge {
			return typ + "," + SurgeLogical(item.Value) + "," + policy
		}
		return typ + "," + item.Value + "," + policy
	}

	noResolve := item.NoResolve
	if opts.NoResolve == NoResolveInfer {
		if _, ok := ipRuleTypes[typ]; ok {
			noResolve = true
		}
	}
	if opts.Dialect == Surge {
		typ = SurgeRuleType(typ)
	}
	return withNoResolve(typ+","+item.Value+","+policy, noResolve)
}

func renderRuleset(item model.RuleItem, defs map[string]Definition, opts Options) string {
	policy := item.Policy
	if policy == "" {
		policy = opts.DefaultPolicy
	}
	def, known := defs[item.Name]

	noResolve := item.NoResolve
	if opts.NoResolve == NoResolveInfer && known && def.Behavior == model.BehaviorIPCIDR {
		noResolve = true
	}

	if opts.Dialect != Surge {
		return withNoResolve("RULE-SET,"+item.Name+","+policy, noResolve)
	}

	link, original := item.URL, item.URL
	if known {
		link, original = def.URL, def.OriginalURL
	}
	var options []string
	if noResolve {
		options = append(options, "no-resolve")
	}
	if IsYAMLSource(original) {
		options = append(options, "rule-set-format=yaml")
	}
	line := "RULE-SET," + link + "," + policy
	if len(options) > 0 {
		line += "," + strings.Join(options, ",")
	}
	return line
}

func withNoResolve(line string, noResolve bool) string {
	if noResolve {
		return line + ",no-resolve"
	}
	return line
}

// SurgeRuleType returns the Surge name of a mihomo rule type.
func SurgeRuleType(typ string) string {
	for _, m := range surgeTypes {
		if typ == m.from {
			return m.to
		}
	}
	return typ
}

// SurgeLogical 把 ),( 改为 ), ( 并替换子条件中的规则类型。
func SurgeLogical(value string) string {
	value = strings.ReplaceAll(value, "),(", "), (")
	for _, m := range surgeTypes {
		value = strings.ReplaceAll(value, m.from, m.to)
	}
	return value
}
