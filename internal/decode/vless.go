// 文件路径: internal/decode/vless.go
// 模块说明: 这是 internal 模块里的 vless 逻辑，解析与生成 vless:// 链接，包含 Reality 参数。
package decode

import (
	"net/url"
	"strings"

	"github.com/thsrite/configflow/internal/model"
)

const defaultVLESSName = "VLESS Node"

func init() {
	register(model.KindVLESS, []string{"vless"}, decodeVLESS, encodeVLESS)
}

func decodeVLESS(body string) (model.Node, error) {
	rest, name := splitFragment(body, defaultVLESSName)
	userID, serverInfo, ok := strings.Cut(rest, "@")
	if !ok {
		return model.Node{}, fail("vless", "missing uuid@", ErrUnrecognized)
	}
	hostport, query := splitQuery(serverInfo)
	host, port, err := splitHostPort(hostport)
	if err != nil {
		return model.Node{}, fail("vless", "invalid host:port", err)
	}

	security := queryDefault(query, "security", "none")
	network := queryDefault(query, "type", "tcp")
	fields := map[string]any{
		"uuid":       unescape(userID),
		"encryption": queryDefault(query, "encryption", "none"),
		"security":   security,
		"type":       network,
	}
	if security == "tls" || security == "reality" {
		fields["sni"] = query.Get("sni")
		fields["fp"] = query.Get("fp")
	}
	if security == "reality" {
		fields["pbk"] = query.Get("pbk")
		fields["sid"] = query.Get("sid")
		fields["spx"] = query.Get("spx")
	}
	switch network {
	case "ws":
		opts := map[string]any{"path": queryDefault(query, "path", "/")}
		if h := query.Get("host"); h != "" {
			opts["headers"] = map[string]any{"Host": h}
		}
		fields["ws-opts"] = opts
	case "grpc":
		fields["grpc-opts"] = map[string]any{"grpc-service-name": query.Get("serviceName")}
	case "tcp":
		if headerType := queryDefault(query, "headerType", "none"); headerType != "none" {
			fields["tcp-opts"] = map[string]any{"header": map[string]any{"type": headerType}}
		}
	}
	if flow := query.Get("flow"); flow != "" {
		fields["flow"] = flow
	}
	if alpn := query.Get("alpn"); alpn != "" {
		fields["alpn"] = strings.Split(alpn, ",")
	}
	if model.Truthy(query.Get("allowInsecure")) {
		fields["skip-cert-verify"] = true
	}
	if pe := query.Get("packetEncoding"); pe != "" {
		fields["packet-encoding"] = pe
	}
	return model.Node{
		Name:    name,
		Server:  host,
		Port:    port,
		Enabled: true,
		Params:  model.BuildParams("vless", fields),
	}, nil
}

func queryDefault(q url.Values, key, fallback string) string {
	if v := q.Get(key); v != "" {
		return v
	}
	return fallback
}

func encodeVLESS(node model.Node) (string, error) {
	p, ok := node.Params.(*model.VLESS)
	if !ok {
		return "", fail("vless", "params mismatch", ErrNotEncodable)
	}
	q := url.Values{}
	setNonEmpty(q, "encryption", p.Encryption)
	setNonEmpty(q, "security", p.Security)
	setNonEmpty(q, "type", p.Network)
	setNonEmpty(q, "sni", p.Servername)
	setNonEmpty(q, "fp", p.ClientFingerprint)
	pbk, sid, spx := p.PublicKey, p.ShortID, p.SpiderX
	if p.RealityOpts != nil {
		pbk = firstNonEmpty(pbk, model.FieldString(p.RealityOpts, "public-key"))
		sid = firstNonEmpty(sid, model.FieldString(p.RealityOpts, "short-id"))
		spx = firstNonEmpty(spx, model.FieldString(p.RealityOpts, "spider-x"))
	}
	setNonEmpty(q, "pbk", pbk)
	setNonEmpty(q, "sid", sid)
	setNonEmpty(q, "spx", spx)
	switch p.Network {
	case "ws":
		setNonEmpty(q, "path", model.FieldString(p.WSOpts, "path"))
		setNonEmpty(q, "host", model.FieldString(p.WSOpts, "headers.Host"))
	case "grpc":
		setNonEmpty(q, "serviceName", model.FieldString(p.GRPCOpts, "grpc-service-name"))
	case "tcp", "":
		setNonEmpty(q, "headerType", model.FieldString(p.TCPOpts, "header.type"))
	}
	setNonEmpty(q, "flow", p.Flow)
	if len(p.ALPN) > 0 {
		q.Set("alpn", strings.Join(p.ALPN, ","))
	}
	if p.SkipCertVerify {
		q.Set("allowInsecure", "1")
	}
	setNonEmpty(q, "packetEncoding", p.PacketEncoding)

	link := "vless://" + escapeUserinfo(p.UUID) + "@" + joinHostPort(node.Server, node.Port)
	if len(q) > 0 {
		link += "?" + q.Encode()
	}
	return link + fragment(node.Name), nil
}

func setNonEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
