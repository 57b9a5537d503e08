// 文件路径: internal/protocol/base.go
// 模块说明: 这是 internal 模块里的 base 逻辑，负责把直接节点物化并按方言支持的协议过滤。
package protocol

import (
	"context"

	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/resolve"
)

// BaseBuilder 记录方言支持的协议种类，并负责节点的物化流水线。
type BaseBuilder struct {
	dialect string
	allowed map[model.NodeKind]struct{}
}

func NewBaseBuilder(dialect string) *BaseBuilder {
	return &BaseBuilder{dialect: dialect, allowed: make(map[model.NodeKind]struct{})}
}

func (b *BaseBuilder) Allow(kinds ...model.NodeKind) {
	if b == nil {
		return
	}
	for _, k := range kinds {
		b.allowed[k] = struct{}{}
	}
}

// Supports reports whether the dialect can express the kind. An empty allow list accepts everything.
func (b *BaseBuilder) Supports(kind model.NodeKind) bool {
	if b == nil || len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[kind]
	return ok
}

// Materialize 依次处理节点：解码或委托转换，保留内部名称；失败或方言不支持的节点被跳过并记录诊断。
// 当 res 不为空时，被跳过的节点同时从组成员中剔除。
func (b *BaseBuilder) Materialize(ctx context.Context, req BuildRequest, nodes []model.Node, res *resolve.Result, diags *diag.List) []model.Node {
	m := req.materializer()
	out := make([]model.Node, 0, len(nodes))
	for _, node := range nodes {
		if ctx.Err() != nil {
			break
		}
		parsed, err := m.Materialize(ctx, node)
		if err != nil {
			diags.Add(diag.DecodeFailure, node.Name, "node dropped", err)
			b.exclude(res, node.ID)
			continue
		}
		if !b.Supports(parsed.Kind()) {
			diags.Addf(diag.UnsupportedNode, node.Name, "%s nodes cannot be expressed in %s", parsed.TypeName(), b.dialect)
			b.exclude(res, node.ID)
			continue
		}
		out = append(out, parsed)
	}
	return out
}

func (b *BaseBuilder) exclude(res *resolve.Result, id string) {
	if res != nil && id != "" {
		res.Exclude(id)
	}
}
