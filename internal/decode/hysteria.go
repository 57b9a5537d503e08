// 文件路径: internal/decode/hysteria.go
// 模块说明: 这是 internal 模块里的 hysteria 逻辑，解析与生成 hysteria:// 与 hysteria2:// 链接。
package decode

import (
	"net/url"
	"strings"

	"github.com/thsrite/configflow/internal/model"
)

func init() {
	register(model.KindHysteria, []string{"hysteria"}, hysteriaDecoder(false), encodeHysteria)
	register(model.KindHysteria2, []string{"hysteria2", "hy2"}, hysteriaDecoder(true), encodeHysteria)
}

func hysteriaDecoder(v2 bool) decodeFunc {
	scheme, typ, fallbackName := "hysteria", "hysteria", "Hysteria Node"
	if v2 {
		scheme, typ, fallbackName = "hysteria2", "hysteria2", "Hysteria2 Node"
	}
	return func(body string) (model.Node, error) {
		rest, name := splitFragment(body, fallbackName)
		var auth, serverInfo string
		if idx := strings.LastIndex(rest, "@"); idx >= 0 {
			auth, serverInfo = unescape(rest[:idx]), rest[idx+1:]
		} else {
			serverInfo = rest
		}
		hostport, query := splitQuery(serverInfo)
		host, port, err := splitHostPort(hostport)
		if err != nil {
			return model.Node{}, fail(scheme, "invalid host:port", err)
		}
		if auth == "" {
			auth = query.Get("auth")
		}
		fields := map[string]any{
			"password":         auth,
			"obfs":             query.Get("obfs"),
			"sni":              firstNonEmpty(query.Get("peer"), query.Get("sni")),
			"skip-cert-verify": query.Get("insecure") == "1",
		}
		if pw := query.Get("obfs-password"); pw != "" {
			fields["obfs-password"] = pw
		}
		if alpn := query.Get("alpn"); alpn != "" {
			fields["alpn"] = strings.Split(alpn, ",")
		}
		return model.Node{
			Name:    name,
			Server:  host,
			Port:    port,
			Enabled: true,
			Params:  model.BuildParams(typ, fields),
		}, nil
	}
}

func encodeHysteria(node model.Node) (string, error) {
	p, ok := node.Params.(*model.Hysteria)
	if !ok {
		return "", fail("hysteria", "params mismatch", ErrNotEncodable)
	}
	scheme := "hysteria"
	if p.V2 {
		scheme = "hysteria2"
	}
	q := url.Values{}
	setNonEmpty(q, "obfs", p.Obfs)
	setNonEmpty(q, "obfs-password", model.FieldString(p.Extra, "obfs-password"))
	setNonEmpty(q, "sni", p.SNI)
	if p.SkipCertVerify {
		q.Set("insecure", "1")
	}
	if len(p.ALPN) > 0 {
		q.Set("alpn", strings.Join(p.ALPN, ","))
	}
	link := scheme + "://" + escapeUserinfo(p.Password) + "@" + joinHostPort(node.Server, node.Port)
	if len(q) > 0 {
		link += "?" + q.Encode()
	}
	return link + fragment(node.Name), nil
}
