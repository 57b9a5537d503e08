// 文件路径: internal/subscription/parse.go
// 模块说明: 这是 internal 模块里的 parse 逻辑，把订阅正文解析为节点：优先 proxies YAML，其次 base64 链接列表，最后按原文链接列表解析。
package subscription

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"gopkg.in/yaml.v3"

	"github.com/thsrite/configflow/internal/decode"
	"github.com/thsrite/configflow/internal/model"
)

// ErrNoNodes is returned when a body parses but yields nothing.
var ErrNoNodes = errors.New("subscription has no usable nodes / 订阅中没有可用节点")

// Format names the shape a subscription body was parsed as.
type Format string

const (
	FormatProxiesYAML Format = "proxies"
	FormatBase64      Format = "base64"
	FormatURIList     Format = "uri-list"
)

// Parsed 是一次解析的结果；Errors 收集被跳过的行。
type Parsed struct {
	Nodes       []model.Node
	Format      Format
	ContentHash string
	Errors      []error
}

// NormalizeBody 去掉 BOM 并把 UTF-16 正文转为 UTF-8。
func NormalizeBody(body []byte) []byte {
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), body)
	if err != nil {
		return body
	}
	return out
}

// Parse 解析订阅正文。
func Parse(body []byte) (*Parsed, error) {
	body = NormalizeBody(body)
	sum := sha256.Sum256(body)
	parsed := &Parsed{ContentHash: hex.EncodeToString(sum[:])}
	content := strings.TrimSpace(string(body))
	if content == "" {
		return parsed, ErrNoNodes
	}

	if strings.Contains(content, "proxies:") || strings.Contains(content, "proxies :") {
		nodes, errs, err := parseProxiesYAML(content)
		if err != nil {
			return parsed, err
		}
		parsed.Nodes, parsed.Errors, parsed.Format = nodes, errs, FormatProxiesYAML
		return parsed, nil
	}

	parsed.Format = FormatURIList
	if decode.IsBase64(content) {
		if decoded, err := decode.DecodeBase64(content); err == nil {
			content = string(NormalizeBody(decoded))
			parsed.Format = FormatBase64
		}
	}
	parsed.Nodes, parsed.Errors = decode.DecodeAll(content)
	if len(parsed.Nodes) == 0 {
		return parsed, errors.Join(append([]error{ErrNoNodes}, parsed.Errors...)...)
	}
	return parsed, nil
}

func parseProxiesYAML(content string) ([]model.Node, []error, error) {
	var doc struct {
		Proxies []map[string]any `yaml:"proxies"`
	}
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, nil, fmt.Errorf("parse proxies yaml / 解析 YAML 订阅失败: %w", err)
	}
	var (
		nodes []model.Node
		errs  []error
	)
	for i, obj := range doc.Proxies {
		if _, ok := obj["name"]; !ok {
			obj["name"] = "Unnamed"
		}
		node, err := decode.NodeFromObject(obj)
		if err != nil {
			errs = append(errs, fmt.Errorf("proxy #%d: %w", i, err))
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, errs, nil
}
