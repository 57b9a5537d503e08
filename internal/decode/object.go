// 文件路径: internal/decode/object.go
// 模块说明: 这是 internal 模块里的 object 逻辑，解析 JSON/YAML 对象形式的节点（mihomo proxies 条目）。
package decode

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thsrite/configflow/internal/model"
)

var objectKeys = map[string]struct{}{"name": {}, "type": {}, "server": {}, "port": {}}

// decodeObject 解析单个映射；JSON 是 YAML 的子集，统一交给 yaml.v3。
func decodeObject(text string) (model.Node, error) {
	var obj map[string]any
	if err := yaml.Unmarshal([]byte(text), &obj); err != nil {
		return model.Node{}, fail("object", "parse mapping", err)
	}
	if len(obj) == 0 {
		return model.Node{}, fail("object", "empty mapping", ErrUnrecognized)
	}
	return NodeFromObject(obj)
}

func decodeObjectList(text string) ([]model.Node, error) {
	var list []any
	if err := yaml.Unmarshal([]byte(text), &list); err != nil {
		return nil, fail("object", "parse list", err)
	}
	nodes := make([]model.Node, 0, len(list))
	for _, item := range list {
		obj, ok := model.AsMap(item)
		if !ok {
			continue
		}
		node, err := NodeFromObject(obj)
		if err != nil {
			continue
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// NodeFromObject 把扁平的 mihomo 风格映射转成节点：name/type/server/port 以外的键进入 params。
func NodeFromObject(obj map[string]any) (model.Node, error) {
	typ := strings.ToLower(strings.TrimSpace(model.Stringify(obj["type"])))
	if typ == "" {
		return model.Node{}, fail("object", "missing type", ErrUnrecognized)
	}
	port, _ := model.ToInt(obj["port"])
	params := make(map[string]any, len(obj))
	for k, v := range obj {
		if _, skip := objectKeys[k]; skip {
			continue
		}
		params[k] = v
	}
	node := model.Node{
		Name:    model.Stringify(obj["name"]),
		Server:  model.Stringify(obj["server"]),
		Port:    port,
		Enabled: true,
		Params:  model.BuildParams(typ, params),
	}
	return node, nil
}
