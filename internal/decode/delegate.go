// 文件路径: internal/decode/delegate.go
// 模块说明: 这是 internal 模块里的 delegate 逻辑，把无法识别的字符串交给外部转换器，并以内部名称为准合并结果。
package decode

import (
	"context"
	"errors"
	"fmt"

	"github.com/thsrite/configflow/internal/model"
)

// ErrSentinel is returned when a DIRECT/REJECT pseudo node reaches the decoder.
var ErrSentinel = errors.New("sentinel ids are never decoded / DIRECT 与 REJECT 不参与解码")

// Converter 是不透明代理字符串的外部转换协作者，返回结果视为已是目标格式。
type Converter interface {
	Convert(ctx context.Context, raw string) (model.Node, error)
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, raw string) (model.Node, error)

func (f ConverterFunc) Convert(ctx context.Context, raw string) (model.Node, error) {
	return f(ctx, raw)
}

// Base64Converter 是默认转换器：base64 解码后重新走一遍本地解码器。
type Base64Converter struct{}

func (Base64Converter) Convert(_ context.Context, raw string) (model.Node, error) {
	decoded, err := decodeBase64(raw)
	if err != nil {
		return model.Node{}, fail("delegate", "not base64", errors.Join(ErrUnrecognized, err))
	}
	nodes, errs := DecodeAll(string(decoded))
	if len(nodes) == 0 {
		return model.Node{}, fail("delegate", "no node in decoded content", errors.Join(append([]error{ErrUnrecognized}, errs...)...))
	}
	return nodes[0], nil
}

// Materializer 在渲染前把带 proxy_string 的节点解析成带类型参数的节点。
type Materializer struct {
	converter Converter
}

// NewMaterializer returns a materializer; a nil converter selects Base64Converter.
func NewMaterializer(converter Converter) *Materializer {
	if converter == nil {
		converter = Base64Converter{}
	}
	return &Materializer{converter: converter}
}

// Materialize 先本地解码，失败再委托转换器；节点的 ID 与名称始终以内部记录为准。
func (m *Materializer) Materialize(ctx context.Context, node model.Node) (model.Node, error) {
	if model.IsSentinel(node.ID) {
		return model.Node{}, ErrSentinel
	}
	if node.ProxyString == "" {
		if node.Params == nil {
			return model.Node{}, fail("node", "no type and no proxy string", ErrUnrecognized)
		}
		return node, nil
	}

	parsed, err := Decode(node.ProxyString)
	if err != nil {
		converted, convErr := m.converter.Convert(ctx, node.ProxyString)
		if convErr != nil {
			return model.Node{}, fmt.Errorf("node %q: %w", node.Name, errors.Join(err, convErr))
		}
		parsed = converted
	}
	if parsed.Params == nil {
		return model.Node{}, fail("node", "converter returned no params", ErrUnrecognized)
	}
	parsed.ID = node.ID
	if node.Name != "" {
		parsed.Name = node.Name
	}
	parsed.Enabled = node.Enabled
	parsed.SubscriptionID = node.SubscriptionID
	parsed.ProxyString = ""
	return parsed, nil
}
