// 文件路径: internal/model/fields.go
// 模块说明: 这是 internal 模块里的 fields 逻辑，负责从松散的 map 中按路径读取各种类型的字段。
package model

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldValue 按点分路径读取嵌套 map，例如 "ws-opts.headers.Host"。
func FieldValue(fields map[string]any, path string) any {
	if len(fields) == 0 {
		return nil
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	var current any = fields
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			continue
		}
		obj, ok := AsMap(current)
		if !ok {
			return nil
		}
		current, ok = obj[segment]
		if !ok {
			return nil
		}
	}
	return current
}

// FieldString 读取字符串，数值与布尔会被格式化。
func FieldString(fields map[string]any, path string) string {
	return Stringify(FieldValue(fields, path))
}

// FieldBool 读取布尔值，兼容 "1"/"true"/"yes" 之类的字符串。
func FieldBool(fields map[string]any, path string) bool {
	return Truthy(FieldValue(fields, path))
}

// FieldInt 读取整数，无法解析时返回 0。
func FieldInt(fields map[string]any, path string) int {
	n, _ := ToInt(FieldValue(fields, path))
	return n
}

// FieldMap 读取子对象。
func FieldMap(fields map[string]any, path string) map[string]any {
	m, _ := AsMap(FieldValue(fields, path))
	return m
}

// Stringify 把标量转成字符串，非标量返回空串。
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Truthy follows the loose truthiness used by node params.
func Truthy(value any) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		lower := strings.ToLower(strings.TrimSpace(v))
		return lower == "1" || lower == "true" || lower == "yes"
	case int:
		return v != 0
	case int64:
		return v != 0
	case float64:
		return v != 0
	default:
		return false
	}
}

// ToInt 尝试把数值或数字字符串转换为 int。
func ToInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// AsMap 接受 yaml 解出的 map[string]any 以及 map[any]any。
func AsMap(value any) (map[string]any, bool) {
	switch v := value.(type) {
	case map[string]any:
		return v, true
	case map[any]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[Stringify(k)] = val
		}
		return out, true
	default:
		return nil, false
	}
}

// StringList 接受逗号分隔的字符串或列表。
func StringList(value any) []string {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s := Stringify(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// CloneMap 深拷贝嵌套的 map 与 slice，避免渲染时改到快照。
func CloneMap(src map[string]any) map[string]any {
	if src == nil {
		return nil
	}
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = cloneValue(v)
	}
	return dst
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneMap(t)
	case map[any]any:
		m, _ := AsMap(t)
		return CloneMap(m)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// fieldReader 记录已经消费过的键，剩余的键进入 Extra。
type fieldReader struct {
	fields map[string]any
	used   map[string]struct{}
}

func newFieldReader(fields map[string]any) *fieldReader {
	return &fieldReader{fields: fields, used: make(map[string]struct{})}
}

func (r *fieldReader) raw(keys ...string) (any, bool) {
	for _, key := range keys {
		r.used[key] = struct{}{}
	}
	for _, key := range keys {
		if v, ok := r.fields[key]; ok && v != nil {
			if s, isStr := v.(string); isStr && s == "" {
				continue
			}
			return v, true
		}
	}
	return nil, false
}

func (r *fieldReader) str(keys ...string) string {
	v, _ := r.raw(keys...)
	return Stringify(v)
}

func (r *fieldReader) boolean(keys ...string) bool {
	v, _ := r.raw(keys...)
	return Truthy(v)
}

func (r *fieldReader) optBool(keys ...string) *bool {
	v, ok := r.raw(keys...)
	if !ok {
		return nil
	}
	b := Truthy(v)
	return &b
}

func (r *fieldReader) integer(keys ...string) int {
	v, _ := r.raw(keys...)
	n, _ := ToInt(v)
	return n
}

func (r *fieldReader) object(keys ...string) map[string]any {
	v, _ := r.raw(keys...)
	m, _ := AsMap(v)
	if len(m) == 0 {
		return nil
	}
	return CloneMap(m)
}

func (r *fieldReader) list(keys ...string) []string {
	v, _ := r.raw(keys...)
	return StringList(v)
}

func (r *fieldReader) rest() map[string]any {
	var out map[string]any
	for k, v := range r.fields {
		if _, ok := r.used[k]; ok {
			continue
		}
		if out == nil {
			out = make(map[string]any)
		}
		out[k] = cloneValue(v)
	}
	return out
}
