// 文件路径: internal/decode/ssr.go
// 模块说明: 这是 internal 模块里的 ssr 逻辑，解析与生成 ssr:// 链接。
package decode

import (
	"strconv"
	"strings"

	"github.com/thsrite/configflow/internal/model"
)

const defaultSSRName = "SSR Node"

func init() {
	register(model.KindShadowsocksR, []string{"ssr"}, decodeSSR, encodeSSR)
}

// decodeSSR 解析 base64(host:port:protocol:method:obfs:base64(password)/?k=base64(v)...)。
func decodeSSR(body string) (model.Node, error) {
	decoded, err := decodeBase64(body)
	if err != nil {
		return model.Node{}, fail("ssr", "decode base64 body", err)
	}
	main, params, _ := strings.Cut(string(decoded), "/")
	parts := strings.SplitN(main, ":", 6)
	if len(parts) != 6 {
		return model.Node{}, fail("ssr", "expected 6 colon separated fields", ErrUnrecognized)
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return model.Node{}, fail("ssr", "invalid port", err)
	}
	password, err := decodeBase64(parts[5])
	if err != nil {
		return model.Node{}, fail("ssr", "decode password", err)
	}

	query := make(map[string]string)
	if _, raw, ok := strings.Cut(params, "?"); ok {
		for _, item := range strings.Split(raw, "&") {
			key, value, ok := strings.Cut(item, "=")
			if !ok {
				continue
			}
			v, err := decodeBase64(value)
			if err != nil {
				return model.Node{}, fail("ssr", "decode query "+key, err)
			}
			query[key] = string(v)
		}
	}

	name := query["remarks"]
	if name == "" {
		name = defaultSSRName
	}
	fields := map[string]any{
		"cipher":         parts[3],
		"password":       string(password),
		"protocol":       parts[2],
		"obfs":           parts[4],
		"protocol-param": query["protoparam"],
		"obfs-param":     query["obfsparam"],
	}
	return model.Node{
		Name:    name,
		Server:  parts[0],
		Port:    port,
		Enabled: true,
		Params:  model.BuildParams("ssr", fields),
	}, nil
}

func encodeSSR(node model.Node) (string, error) {
	p, ok := node.Params.(*model.SSR)
	if !ok {
		return "", fail("ssr", "params mismatch", ErrNotEncodable)
	}
	main := strings.Join([]string{
		node.Server,
		strconv.Itoa(node.Port),
		p.Protocol,
		p.Cipher,
		p.Obfs,
		encodeBase64(p.Password),
	}, ":")
	var query []string
	if p.ObfsParam != "" {
		query = append(query, "obfsparam="+encodeBase64(p.ObfsParam))
	}
	if p.ProtocolParam != "" {
		query = append(query, "protoparam="+encodeBase64(p.ProtocolParam))
	}
	if node.Name != "" {
		query = append(query, "remarks="+encodeBase64(node.Name))
	}
	return "ssr://" + encodeBase64(main+"/?"+strings.Join(query, "&")), nil
}
