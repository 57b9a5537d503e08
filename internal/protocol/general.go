// 文件路径: internal/protocol/general.go
// 模块说明: 这是 internal 模块里的 general 逻辑，把直接节点编码为分享链接，再整体 base64 输出，兼容 V2RayN、Shadowrocket 等客户端。
package protocol

import (
	"encoding/base64"
	"strings"

	"github.com/thsrite/configflow/internal/decode"
	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/resolve"
)

// GeneralBuilder emits a standard base64 subscription of share links.
type GeneralBuilder struct {
	base *BaseBuilder
}

// NewGeneralBuilder returns a ready-to-use general builder instance.
func NewGeneralBuilder() *GeneralBuilder {
	base := NewBaseBuilder("general")
	base.Allow(
		model.KindShadowsocks, model.KindShadowsocksR, model.KindVMess, model.KindVLESS,
		model.KindTrojan, model.KindHysteria, model.KindHysteria2,
	)
	return &GeneralBuilder{base: base}
}

// Flags enumerates supported client identifiers for this builder.
func (b *GeneralBuilder) Flags() []string {
	return []string{"general", "base64", "v2rayn", "v2rayng", "passwall", "ssrplus", "shadowrocket", "nekobox", "nekoray", "hiddify"}
}

// Build renders the directly selected nodes, or every enabled manual node when no group exists.
func (b *GeneralBuilder) Build(req BuildRequest) (*Result, error) {
	diags := &diag.List{}
	res := resolve.Resolve(req.Snapshot, diags)
	candidates := res.Direct
	if len(res.Groups) == 0 {
		candidates = enabledManualNodes(req.Snapshot)
	}

	links := ShareLinks(b.base.Materialize(req.Context, req, candidates, res, diags), diags)
	var builder strings.Builder
	for _, link := range links {
		builder.WriteString(link)
		builder.WriteString("\n")
	}
	payload := base64.StdEncoding.EncodeToString([]byte(builder.String()))
	return &Result{
		Payload:     []byte(payload),
		ContentType: "text/plain; charset=utf-8",
		Diagnostics: diags,
	}, nil
}

// ShareLinks encodes materialized nodes as share links; nodes without one are recorded and skipped.
func ShareLinks(nodes []model.Node, diags *diag.List) []string {
	links := make([]string, 0, len(nodes))
	for _, node := range nodes {
		link, err := decode.Encode(node)
		if err != nil {
			diags.Add(diag.UnsupportedNode, node.Name, "no share link", err)
			continue
		}
		links = append(links, link)
	}
	return links
}

func enabledManualNodes(snap *model.Snapshot) []model.Node {
	var out []model.Node
	for _, node := range snap.Nodes {
		if node.Enabled && node.SubscriptionID == "" && !model.IsSentinel(node.ID) {
			out = append(out, node)
		}
	}
	return out
}
