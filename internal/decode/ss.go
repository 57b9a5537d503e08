// 文件路径: internal/decode/ss.go
// 模块说明: 这是 internal 模块里的 ss 逻辑，解析与生成 ss:// 链接。
package decode

import (
	"net/url"
	"sort"
	"strings"

	"github.com/thsrite/configflow/internal/model"
)

const defaultSSName = "SS Node"

func init() {
	register(model.KindShadowsocks, []string{"ss"}, decodeSS, encodeSS)
}

// decodeSS 支持三种形式：base64(method:password)@host:port、明文 method:password@host:port、整段 base64。
func decodeSS(body string) (model.Node, error) {
	rest, name := splitFragment(body, defaultSSName)
	authority, query := splitQuery(rest)

	var userinfo, hostport string
	if strings.Count(authority, "@") == 1 {
		userinfo, hostport, _ = strings.Cut(authority, "@")
	} else {
		decoded, err := decodeBase64(authority)
		if err != nil {
			return model.Node{}, fail("ss", "decode base64 body", err)
		}
		plain := string(decoded)
		if inner, innerName, ok := strings.Cut(plain, "#"); ok {
			plain = inner
			if innerName != "" && name == defaultSSName {
				name = unescape(innerName)
			}
		}
		idx := strings.LastIndex(plain, "@")
		if idx < 0 {
			return model.Node{}, fail("ss", "missing @ in decoded body", ErrUnrecognized)
		}
		userinfo, hostport = plain[:idx], plain[idx+1:]
		hostport = strings.TrimSuffix(hostport, "/")
	}

	method, password, err := ssUserinfo(userinfo)
	if err != nil {
		return model.Node{}, err
	}
	host, port, err := splitHostPort(hostport)
	if err != nil {
		return model.Node{}, fail("ss", "invalid host:port", err)
	}

	fields := map[string]any{
		"cipher":   method,
		"password": password,
	}
	if plugin := query.Get("plugin"); plugin != "" {
		pluginName, opts := parseSSPlugin(plugin)
		fields["plugin"] = pluginName
		if len(opts) > 0 {
			fields["plugin-opts"] = opts
		}
	}
	if model.Truthy(query.Get("udp")) {
		fields["udp"] = true
	}
	return model.Node{
		Name:    name,
		Server:  host,
		Port:    port,
		Enabled: true,
		Params:  model.BuildParams("ss", fields),
	}, nil
}

func ssUserinfo(userinfo string) (string, string, error) {
	userinfo = unescape(userinfo)
	if decoded, err := decodeBase64(userinfo); err == nil {
		if method, password, ok := strings.Cut(string(decoded), ":"); ok {
			return method, password, nil
		}
	}
	method, password, ok := strings.Cut(userinfo, ":")
	if !ok {
		return "", "", fail("ss", "userinfo is not method:password", ErrUnrecognized)
	}
	return method, password, nil
}

// parseSSPlugin 把 SIP003 插件串 "obfs-local;obfs=http;obfs-host=x" 转为 mihomo 的 plugin/plugin-opts。
func parseSSPlugin(raw string) (string, map[string]any) {
	parts := strings.Split(raw, ";")
	name := strings.TrimSpace(parts[0])
	opts := make(map[string]any)
	for _, part := range parts[1:] {
		key, value, hasValue := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if !hasValue {
			opts[key] = true
			continue
		}
		opts[key] = value
	}
	switch name {
	case "obfs-local", "simple-obfs", "obfs":
		out := make(map[string]any)
		if mode, ok := opts["obfs"]; ok {
			out["mode"] = mode
		}
		if host, ok := opts["obfs-host"]; ok {
			out["host"] = host
		}
		return "obfs", out
	default:
		return name, opts
	}
}

func encodeSSPlugin(name string, opts map[string]any) string {
	parts := []string{name}
	if name == "obfs" {
		parts[0] = "obfs-local"
		if mode := model.FieldString(opts, "mode"); mode != "" {
			parts = append(parts, "obfs="+mode)
		}
		if host := model.FieldString(opts, "host"); host != "" {
			parts = append(parts, "obfs-host="+host)
		}
		return strings.Join(parts, ";")
	}
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if b, ok := opts[k].(bool); ok {
			if b {
				parts = append(parts, k)
			}
			continue
		}
		parts = append(parts, k+"="+model.Stringify(opts[k]))
	}
	return strings.Join(parts, ";")
}

func encodeSS(node model.Node) (string, error) {
	p, ok := node.Params.(*model.SS)
	if !ok {
		return "", fail("ss", "params mismatch", ErrNotEncodable)
	}
	var b strings.Builder
	b.WriteString("ss://")
	b.WriteString(encodeBase64(p.Cipher + ":" + p.Password))
	b.WriteString("@")
	b.WriteString(joinHostPort(node.Server, node.Port))
	query := url.Values{}
	if p.Plugin != "" {
		query.Set("plugin", encodeSSPlugin(p.Plugin, p.PluginOpts))
	}
	if p.UDP {
		query.Set("udp", "1")
	}
	if len(query) > 0 {
		b.WriteString("/?")
		b.WriteString(query.Encode())
	}
	b.WriteString(fragment(node.Name))
	return b.String(), nil
}
