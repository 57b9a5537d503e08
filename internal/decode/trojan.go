// 文件路径: internal/decode/trojan.go
// 模块说明: 这是 internal 模块里的 trojan 逻辑，解析与生成 trojan:// 链接。
package decode

import (
	"net/url"
	"strings"

	"github.com/thsrite/configflow/internal/model"
)

const defaultTrojanName = "Trojan Node"

func init() {
	register(model.KindTrojan, []string{"trojan"}, decodeTrojan, encodeTrojan)
}

func decodeTrojan(body string) (model.Node, error) {
	rest, name := splitFragment(body, defaultTrojanName)
	idx := strings.LastIndex(rest, "@")
	if idx < 0 {
		return model.Node{}, fail("trojan", "missing password@", ErrUnrecognized)
	}
	password, serverInfo := rest[:idx], rest[idx+1:]
	hostport, query := splitQuery(serverInfo)
	host, port, err := splitHostPort(hostport)
	if err != nil {
		return model.Node{}, fail("trojan", "invalid host:port", err)
	}

	fields := map[string]any{
		"password":         unescape(password),
		"sni":              firstNonEmpty(query.Get("sni"), query.Get("peer")),
		"skip-cert-verify": model.Truthy(query.Get("allowInsecure")),
	}
	switch network := query.Get("type"); network {
	case "ws":
		fields["network"] = network
		opts := map[string]any{"path": queryDefault(query, "path", "/")}
		if h := query.Get("host"); h != "" {
			opts["headers"] = map[string]any{"Host": h}
		}
		fields["ws-opts"] = opts
	case "grpc":
		fields["network"] = network
		fields["grpc-opts"] = map[string]any{"grpc-service-name": query.Get("serviceName")}
	}
	return model.Node{
		Name:    name,
		Server:  host,
		Port:    port,
		Enabled: true,
		Params:  model.BuildParams("trojan", fields),
	}, nil
}

func encodeTrojan(node model.Node) (string, error) {
	p, ok := node.Params.(*model.Trojan)
	if !ok {
		return "", fail("trojan", "params mismatch", ErrNotEncodable)
	}
	q := url.Values{}
	setNonEmpty(q, "sni", p.SNI)
	if p.SkipCertVerify {
		q.Set("allowInsecure", "1")
	}
	switch p.Network {
	case "ws":
		q.Set("type", "ws")
		setNonEmpty(q, "path", model.FieldString(p.WSOpts, "path"))
		setNonEmpty(q, "host", model.FieldString(p.WSOpts, "headers.Host"))
	case "grpc":
		q.Set("type", "grpc")
		setNonEmpty(q, "serviceName", model.FieldString(p.GRPCOpts, "grpc-service-name"))
	}
	link := "trojan://" + escapeUserinfo(p.Password) + "@" + joinHostPort(node.Server, node.Port)
	if len(q) > 0 {
		link += "?" + q.Encode()
	}
	return link + fragment(node.Name), nil
}
