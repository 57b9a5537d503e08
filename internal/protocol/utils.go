// 文件路径: internal/protocol/utils.go
// 模块说明: 这是 internal 模块里的 utils 逻辑，提供保持键顺序的 YAML 映射和几个字符串小工具。
package protocol

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type field struct {
	key   string
	value any
}

// ordered 是按插入顺序输出的 YAML 映射，同名键覆盖原值但保留位置。
type ordered []field

func (o *ordered) set(key string, value any) {
	for i := range *o {
		if (*o)[i].key == key {
			(*o)[i].value = value
			return
		}
	}
	*o = append(*o, field{key: key, value: value})
}

func (o ordered) get(key string) (any, bool) {
	for _, f := range o {
		if f.key == key {
			return f.value, true
		}
	}
	return nil, false
}

// mergeExtra appends keys not already present, sorted for a stable document.
func (o *ordered) mergeExtra(extra map[string]any) {
	if len(extra) == 0 {
		return
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, exists := o.get(k); exists {
			continue
		}
		*o = append(*o, field{key: k, value: extra[k]})
	}
}

// Map converts to a plain map, losing order.
func (o ordered) Map() map[string]any {
	out := make(map[string]any, len(o))
	for _, f := range o {
		out[f.key] = f.value
	}
	return out
}

func (o ordered) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, f := range o {
		var value yaml.Node
		if err := value.Encode(f.value); err != nil {
			return nil, fmt.Errorf("encode %s: %w", f.key, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.key},
			&value,
		)
	}
	return node, nil
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// setMapping replaces the value of key in place, or appends the pair.
func setMapping(mapping *yaml.Node, key string, value any) error {
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = &node
			return nil
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
		&node,
	)
	return nil
}

func uniqueStrings(items []string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}

func joinList(values []string) string {
	return strings.Join(values, ", ")
}

func itoa(v int) string {
	return strconv.Itoa(v)
}
