// 文件路径: internal/protocol/manager.go
// 模块说明: 这是 internal 模块里的 manager 逻辑，管理各方言构建器，按方言标识或 User-Agent 选择。
package protocol

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
)

// ErrNoBuilder is returned when no builder is registered or the flag matches nothing.
var ErrNoBuilder = errors.New("no matching protocol builder / 没有匹配的配置构建器")

// Manager 管理可用的方言构建器，并按标识匹配。
type Manager struct {
	builders       []Builder
	defaultBuilder Builder
}

// NewManager 创建注册表并可预加载构建器。
func NewManager(builders ...Builder) *Manager {
	m := &Manager{}
	for _, builder := range builders {
		m.Register(builder)
	}
	return m
}

// NewDefaultManager registers the mihomo, surge and share-link builders; mihomo is the default.
func NewDefaultManager() *Manager {
	return NewManager(NewMihomoBuilder(), NewSurgeBuilder(), NewGeneralBuilder())
}

// Register 将构建器注册到列表。
func (m *Manager) Register(builder Builder) {
	if builder == nil {
		return
	}
	m.builders = append(m.builders, builder)
	if m.defaultBuilder == nil {
		m.defaultBuilder = builder
	}
}

// Flags 返回所有构建器支持的标识集合。
func (m *Manager) Flags() []string {
	seen := make(map[string]struct{})
	var flags []string
	for _, builder := range m.builders {
		for _, flag := range builder.Flags() {
			n := strings.ToLower(strings.TrimSpace(flag))
			if n == "" {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			flags = append(flags, n)
		}
	}
	return flags
}

// Build 选择合适的构建器并生成配置。显式标识不匹配时报错，只有标识为空才回落到默认构建器。
func (m *Manager) Build(req BuildRequest) (*Result, error) {
	if len(m.builders) == 0 {
		return nil, fmt.Errorf("no protocol builders registered / 未注册任何协议构建器: %w", ErrNoBuilder)
	}
	if req.Snapshot == nil {
		req.Snapshot = &model.Snapshot{}
	}
	builder := m.matchBuilder(req.Flag, req.UserAgent)
	if builder == nil {
		if strings.TrimSpace(req.Flag) != "" {
			return nil, fmt.Errorf("dialect %q: %w", req.Flag, ErrNoBuilder)
		}
		builder = m.defaultBuilder
	}
	if req.Context == nil {
		req.Context = context.Background()
	}
	res, err := builder.Build(req)
	if err != nil {
		return nil, err
	}
	if res.Diagnostics == nil {
		res.Diagnostics = &diag.List{}
	}
	return res, nil
}

// Render is the plain entry point: one dialect, one snapshot, one base URL.
func (m *Manager) Render(ctx context.Context, dialect string, snap *model.Snapshot, baseURL string) (*Result, error) {
	return m.Build(BuildRequest{Context: ctx, Snapshot: snap, BaseURL: baseURL, Flag: dialect})
}

func (m *Manager) matchBuilder(flag string, userAgent string) Builder {
	combined := strings.ToLower(strings.TrimSpace(flag))
	if combined == "" {
		combined = strings.ToLower(strings.TrimSpace(userAgent))
	}
	if combined == "" {
		return nil
	}
	for i := len(m.builders) - 1; i >= 0; i-- {
		builder := m.builders[i]
		for _, candidate := range builder.Flags() {
			if candidate == "" {
				continue
			}
			if strings.Contains(combined, strings.ToLower(candidate)) {
				return builder
			}
		}
	}
	return nil
}
