// 文件路径: internal/protocol/types.go
// 模块说明: 这是 internal 模块里的 types 逻辑，定义渲染请求、渲染结果和构建器契约。
package protocol

import (
	"context"
	"log/slog"

	"github.com/thsrite/configflow/internal/decode"
	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/rules"
)

// Default health-check settings shared by providers and tested groups.
const (
	DefaultTestURL      = "http://www.gstatic.com/generate_204"
	DefaultTestInterval = 300
	ProviderInterval    = 3600
	PolicyPathInterval  = 86400
)

// BuildRequest carries everything a builder needs for one render.
type BuildRequest struct {
	Context  context.Context
	Snapshot *model.Snapshot
	// BaseURL is used when system_config.server_domain is empty.
	BaseURL string
	Flag    string
	// UserAgent selects a builder when Flag is empty.
	UserAgent    string
	NoResolve    rules.NoResolveMode
	Materializer *decode.Materializer
	Logger       *slog.Logger
}

func (r BuildRequest) base() string {
	return r.Snapshot.EffectiveBase(r.BaseURL)
}

func (r BuildRequest) materializer() *decode.Materializer {
	if r.Materializer != nil {
		return r.Materializer
	}
	return decode.NewMaterializer(nil)
}

// Result captures the serialized document and what was skipped while building it.
type Result struct {
	Payload     []byte
	ContentType string
	Headers     map[string]string
	Diagnostics *diag.List
}

// Builder defines the contract implemented by each dialect renderer.
type Builder interface {
	Flags() []string
	Build(req BuildRequest) (*Result, error)
}
