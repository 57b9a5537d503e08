// 文件路径: internal/api/requestctx/snapshot.go
// 模块说明: 这是 internal 模块里的 requestctx 逻辑，把本次请求加载的配置快照挂到 context 上，守卫与 handler 共用同一份。
package requestctx

import (
	"context"

	"github.com/thsrite/configflow/internal/model"
)

type snapshotKey struct{}

// WithSnapshot attaches the snapshot loaded for this request.
func WithSnapshot(ctx context.Context, snap *model.Snapshot) context.Context {
	return context.WithValue(ctx, snapshotKey{}, snap)
}

// SnapshotFromContext returns the request snapshot or nil when none was attached.
func SnapshotFromContext(ctx context.Context) *model.Snapshot {
	if ctx == nil {
		return nil
	}
	snap, _ := ctx.Value(snapshotKey{}).(*model.Snapshot)
	return snap
}
