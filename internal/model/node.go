// 文件路径: internal/model/node.go
// 模块说明: 这是 internal 模块里的 node 逻辑，定义节点实体以及它在快照中的 YAML/JSON 表示。
package model

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel node IDs are pseudo nodes that are emitted literally.
const (
	SentinelDirect = "DIRECT"
	SentinelReject = "REJECT"
)

// IsSentinel reports whether id is DIRECT or REJECT.
func IsSentinel(id string) bool {
	return id == SentinelDirect || id == SentinelReject
}

// Node 是一个代理端点。Params 决定协议，ProxyString 非空时渲染前会先被解码。
type Node struct {
	ID             string
	Name           string
	Server         string
	Port           int
	Enabled        bool
	ProxyString    string
	SubscriptionID string
	Params         Params
}

// Kind returns the protocol kind, KindUnknown when no params are attached.
func (n Node) Kind() NodeKind {
	if n.Params == nil {
		return KindUnknown
	}
	return n.Params.Kind()
}

// TypeName 返回目标格式里的 type 字符串。
func (n Node) TypeName() string {
	switch p := n.Params.(type) {
	case nil:
		return ""
	case *Raw:
		return strings.ToLower(p.Type)
	case *HTTP:
		if p.TLS {
			return "https"
		}
		return "http"
	default:
		return p.Kind().String()
	}
}

// nodeDoc 是节点在快照文件中的松散结构。
type nodeDoc struct {
	ID             string         `yaml:"id,omitempty"`
	Name           string         `yaml:"name"`
	Type           string         `yaml:"type,omitempty"`
	Server         string         `yaml:"server,omitempty"`
	Port           FlexInt        `yaml:"port,omitempty"`
	Enabled        *bool          `yaml:"enabled,omitempty"`
	ProxyString    string         `yaml:"proxy_string,omitempty"`
	SubscriptionID string         `yaml:"subscription_id,omitempty"`
	Params         map[string]any `yaml:"params,omitempty"`
}

// UnmarshalYAML decodes the loose snapshot shape and builds the typed params.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var doc nodeDoc
	if err := value.Decode(&doc); err != nil {
		return fmt.Errorf("decode node: %w", err)
	}
	*n = Node{
		ID:             doc.ID,
		Name:           doc.Name,
		Server:         doc.Server,
		Port:           int(doc.Port),
		Enabled:        doc.Enabled == nil || *doc.Enabled,
		ProxyString:    doc.ProxyString,
		SubscriptionID: doc.SubscriptionID,
	}
	if doc.Type != "" || len(doc.Params) > 0 {
		n.Params = BuildParams(doc.Type, doc.Params)
	}
	return nil
}

// MarshalYAML writes the node back in the loose snapshot shape.
func (n Node) MarshalYAML() (any, error) {
	enabled := n.Enabled
	doc := nodeDoc{
		ID:             n.ID,
		Name:           n.Name,
		Type:           n.TypeName(),
		Server:         n.Server,
		Port:           FlexInt(n.Port),
		ProxyString:    n.ProxyString,
		SubscriptionID: n.SubscriptionID,
	}
	if !enabled {
		doc.Enabled = &enabled
	}
	if n.Params != nil {
		doc.Params = n.Params.Fields()
		if len(doc.Params) == 0 {
			doc.Params = nil
		}
	}
	return doc, nil
}

// FlexInt 接受数字或数字字符串，订阅里端口经常被写成字符串。
type FlexInt int

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *FlexInt) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("expected scalar, got kind %d", value.Kind)
	}
	if strings.TrimSpace(value.Value) == "" || value.Tag == "!!null" {
		*f = 0
		return nil
	}
	n, ok := ToInt(strings.TrimSpace(value.Value))
	if !ok {
		var fl float64
		if err := value.Decode(&fl); err != nil {
			return fmt.Errorf("invalid integer %q", value.Value)
		}
		n = int(fl)
	}
	*f = FlexInt(n)
	return nil
}
