// 文件路径: internal/provider/downloads.go
// 模块说明: 这是 internal 模块里的 downloads 逻辑，列出远端客户端需要预先下载的 provider 与规则集文件。
package provider

import (
	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/protocol"
	"github.com/thsrite/configflow/internal/resolve"
	"github.com/thsrite/configflow/internal/rules"
)

// Download 是一个辅助文件：从 URL 下载并保存到 LocalPath。
type Download struct {
	Name      string `json:"name" yaml:"name"`
	URL       string `json:"url" yaml:"url"`
	LocalPath string `json:"local_path" yaml:"local_path"`
	Content   string `json:"content,omitempty" yaml:"content,omitempty"`
}

// ProviderPath is where a client stores a provider file.
func ProviderPath(name string) string {
	return "./providers/" + name + ".yaml"
}

// ListProviderDownloads 返回主文档引用的订阅与聚合 provider，订阅在前、聚合在后，均按快照顺序。
func ListProviderDownloads(snap *model.Snapshot, baseURL string) []Download {
	res := resolve.Resolve(snap, nil)
	base := snap.EffectiveBase(baseURL)
	var out []Download
	for _, sub := range snap.Subscriptions {
		if sub.Enabled && res.UsedSubscriptions.Has(sub.ID) {
			out = append(out, Download{
				Name:      sub.Name,
				URL:       protocol.SubscriptionProviderURL(snap, base, sub.ID),
				LocalPath: ProviderPath(sub.Name),
			})
		}
	}
	for _, agg := range snap.Aggregations {
		if agg.Enabled && res.UsedAggregations.Has(agg.ID) {
			out = append(out, Download{
				Name:      agg.Name,
				URL:       protocol.AggregationProviderURL(snap, base, agg.ID),
				LocalPath: ProviderPath(agg.Name),
			})
		}
	}
	return out
}

// ListRulesetDownloads 返回每个规则集定义对应的下载项，URL 与 rule-providers 中一致。
func ListRulesetDownloads(snap *model.Snapshot, baseURL string) []Download {
	var diags diag.List
	defs := rules.Definitions(snap, baseURL, &diags)
	out := make([]Download, 0, len(defs))
	for _, d := range defs {
		out = append(out, Download{Name: d.Name, URL: d.URL, LocalPath: d.LocalPath()})
	}
	return out
}
