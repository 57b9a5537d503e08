// 文件路径: internal/rules/definition.go
// 模块说明: 这是 internal 模块里的 rules 逻辑，把规则集条目解析成带最终 URL、格式与缓存文件名的定义。
package rules

import (
	"strings"

	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
)

// Rule-set file formats.
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

// RefreshInterval is the rule-provider refresh interval in seconds.
const RefreshInterval = 86400

// LocalRulePath is the served path prefix for rule-library files.
const LocalRulePath = "/api/rules/local/"

var githubDomains = []string{
	"github.com",
	"raw.githubusercontent.com",
	"gist.githubusercontent.com",
	"api.github.com",
}

// Definition 是一个规则集的最终形态，同时用于 rule-providers 与下载清单。
type Definition struct {
	Name        string
	URL         string
	OriginalURL string
	Behavior    string
	Format      string
	Extension   string
}

// LocalPath is the client-side cache file for the rule set.
func (d Definition) LocalPath() string {
	return "./ruleset/" + d.Name + "." + d.Extension
}

// Definitions 按规则顺序解析所有启用的规则集条目，同名条目以第一次出现为准。
func Definitions(snap *model.Snapshot, baseURL string, diags *diag.List) []Definition {
	idx := model.NewIndex(snap)
	base := snap.EffectiveBase(baseURL)
	proxy := snap.SystemConfig.GithubProxyDomain

	seen := make(map[string]struct{})
	var out []Definition
	for _, item := range snap.Rulesets() {
		if !item.Enabled || item.Name == "" {
			continue
		}
		if _, dup := seen[item.Name]; dup {
			continue
		}
		seen[item.Name] = struct{}{}
		out = append(out, define(idx, item, base, proxy, diags))
	}
	return out
}

func define(idx *model.Index, item model.RuleItem, base, proxy string, diags *diag.List) Definition {
	link := item.URL
	original := link
	behavior := item.Behavior

	if item.LibraryRuleID != "" {
		entry, ok := idx.LibraryEntry(item.LibraryRuleID)
		if !ok {
			diags.Addf(diag.DanglingReference, item.Name, "rule library entry %q does not exist", item.LibraryRuleID)
		} else {
			if entry.URL != "" {
				original = entry.URL
			}
			if entry.Name != "" {
				link = LocalRulePath + entry.Name
			}
			if behavior == "" {
				behavior = entry.Behavior
			}
		}
	}

	switch {
	case strings.HasPrefix(link, "/") && base != "":
		link = base + link
	case strings.HasPrefix(link, "http"):
		link = GithubProxy(link, proxy)
	}
	if behavior == "" {
		behavior = model.BehaviorDomain
	}

	def := Definition{
		Name:        item.Name,
		URL:         link,
		OriginalURL: original,
		Behavior:    behavior,
		Format:      FormatText,
		Extension:   "list",
	}
	if IsYAMLSource(original) {
		def.Format = FormatYAML
		def.Extension = "yaml"
	}
	return def
}

// IsYAMLSource reports whether a rule-set URL points at a YAML file.
func IsYAMLSource(rawURL string) bool {
	return strings.HasSuffix(rawURL, ".yaml") || strings.HasSuffix(rawURL, ".yml")
}

// GithubProxy 为 GitHub 地址加上代理前缀，格式为 代理地址/原地址。
func GithubProxy(rawURL, proxy string) string {
	proxy = strings.TrimSpace(proxy)
	if rawURL == "" || proxy == "" {
		return rawURL
	}
	matched := false
	for _, domain := range githubDomains {
		if strings.Contains(rawURL, domain) {
			matched = true
			break
		}
	}
	if !matched {
		return rawURL
	}
	if !strings.HasPrefix(proxy, "http://") && !strings.HasPrefix(proxy, "https://") {
		proxy = "https://" + proxy
	}
	if !strings.HasSuffix(proxy, "/") {
		proxy += "/"
	}
	return proxy + rawURL
}
