// 文件路径: internal/protocol/mihomo_proxy.go
// 模块说明: 这是 internal 模块里的 mihomo 节点投影逻辑，把带类型参数的节点展开成 mihomo proxies 条目。
package protocol

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
)

// ErrUnsupportedKind is returned for kinds the mihomo proxy list cannot hold.
var ErrUnsupportedKind = errors.New("node kind not supported by this dialect / 该格式不支持此协议")

// mihomoProxy 按协议种类投影字段，未识别的 Extra 键在末尾按字母序追加。
func mihomoProxy(node model.Node) (ordered, error) {
	proxy := ordered{
		{key: "name", value: node.Name},
		{key: "type", value: node.TypeName()},
		{key: "server", value: node.Server},
		{key: "port", value: node.Port},
	}

	switch p := node.Params.(type) {
	case *model.SS:
		proxy.set("cipher", orDefault(p.Cipher, "aes-256-gcm"))
		proxy.set("password", p.Password)
		if p.UDP {
			proxy.set("udp", true)
		}
		if p.Plugin != "" {
			proxy.set("plugin", p.Plugin)
		}
		if len(p.PluginOpts) > 0 {
			proxy.set("plugin-opts", p.PluginOpts)
		}
		proxy.mergeExtra(p.Extra)

	case *model.SSR:
		proxy.set("cipher", orDefault(p.Cipher, "aes-256-cfb"))
		proxy.set("password", p.Password)
		proxy.set("protocol", orDefault(p.Protocol, "origin"))
		proxy.set("protocol-param", p.ProtocolParam)
		proxy.set("obfs", orDefault(p.Obfs, "plain"))
		proxy.set("obfs-param", p.ObfsParam)
		if p.UDP {
			proxy.set("udp", true)
		}
		proxy.mergeExtra(p.Extra)

	case *model.VMess:
		proxy.set("uuid", p.UUID)
		proxy.set("alterId", p.AlterID)
		proxy.set("cipher", orDefault(p.Cipher, "auto"))
		network := orDefault(p.Network, "tcp")
		proxy.set("network", network)
		proxy.set("tls", p.TLS)
		if network == "ws" {
			proxy.set("ws-opts", orEmptyMap(p.WSOpts))
		}
		if network == "grpc" && len(p.GRPCOpts) > 0 {
			proxy.set("grpc-opts", p.GRPCOpts)
		}
		if p.UDP {
			proxy.set("udp", true)
		}
		if p.SkipCertVerify {
			proxy.set("skip-cert-verify", true)
		}
		if p.Servername != "" {
			proxy.set("servername", p.Servername)
		}
		proxy.mergeExtra(p.Extra)

	case *model.VLESS:
		mihomoVLESS(&proxy, p)

	case *model.Trojan:
		proxy.set("password", p.Password)
		proxy.set("sni", p.SNI)
		proxy.set("skip-cert-verify", p.SkipCertVerify)
		if p.UDP {
			proxy.set("udp", true)
		}
		if p.Network != "" && p.Network != "tcp" {
			proxy.set("network", p.Network)
		}
		if p.Network == "ws" && len(p.WSOpts) > 0 {
			proxy.set("ws-opts", p.WSOpts)
		}
		if p.Network == "grpc" && len(p.GRPCOpts) > 0 {
			proxy.set("grpc-opts", p.GRPCOpts)
		}
		proxy.mergeExtra(p.Extra)

	case *model.Hysteria:
		if p.V2 {
			proxy.set("password", p.Password)
		} else {
			proxy.set("auth-str", p.Password)
		}
		if p.Obfs != "" {
			proxy.set("obfs", p.Obfs)
		}
		proxy.set("sni", p.SNI)
		proxy.set("skip-cert-verify", p.SkipCertVerify)
		if len(p.ALPN) > 0 {
			proxy.set("alpn", p.ALPN)
		}
		if p.UDP {
			proxy.set("udp", true)
		}
		proxy.mergeExtra(p.Extra)

	case *model.HTTP:
		proxy.set("type", "http")
		if p.TLS {
			proxy.set("tls", true)
		}
		if p.Username != "" {
			proxy.set("username", p.Username)
		}
		if p.Password != "" {
			proxy.set("password", p.Password)
		}
		if p.SNI != "" {
			proxy.set("sni", p.SNI)
		}
		if p.SkipCertVerify {
			proxy.set("skip-cert-verify", true)
		}
		proxy.mergeExtra(p.Extra)

	case *model.Snell:
		proxy.set("psk", p.PSK)
		if p.Version > 0 {
			proxy.set("version", p.Version)
		}
		if p.UDP {
			proxy.set("udp", true)
		}
		if p.Obfs != "" {
			opts := ordered{{key: "mode", value: p.Obfs}}
			if p.ObfsHost != "" {
				opts.set("host", p.ObfsHost)
			}
			proxy.set("obfs-opts", opts)
		}
		proxy.mergeExtra(p.Extra)

	case *model.TUIC:
		if p.UUID != "" {
			proxy.set("uuid", p.UUID)
		}
		if p.Password != "" {
			proxy.set("password", p.Password)
		}
		if p.Token != "" {
			proxy.set("token", p.Token)
		}
		if len(p.ALPN) > 0 {
			proxy.set("alpn", p.ALPN)
		}
		if p.SNI != "" {
			proxy.set("sni", p.SNI)
		}
		proxy.set("skip-cert-verify", p.SkipCertVerify)
		if p.UDP {
			proxy.set("udp", true)
		}
		proxy.mergeExtra(p.Extra)

	case *model.AnyTLS:
		proxy.set("password", p.Password)
		if p.SNI != "" {
			proxy.set("sni", p.SNI)
		}
		proxy.set("skip-cert-verify", p.SkipCertVerify)
		if p.UDP {
			proxy.set("udp", true)
		}
		extra := make(map[string]any, len(p.Extra))
		for k, v := range p.Extra {
			extra[strings.ReplaceAll(k, "_", "-")] = v
		}
		proxy.mergeExtra(extra)

	case *model.Raw:
		if p.Type == "" {
			return nil, fmt.Errorf("node %q has no type: %w", node.Name, ErrUnsupportedKind)
		}
		proxy.mergeExtra(p.Values)

	case *model.WireGuard:
		return nil, fmt.Errorf("wireguard node %q: %w", node.Name, ErrUnsupportedKind)

	case nil:
		return nil, fmt.Errorf("node %q has no params: %w", node.Name, ErrUnsupportedKind)

	default:
		return nil, fmt.Errorf("node %q (%T): %w", node.Name, p, ErrUnsupportedKind)
	}
	return proxy, nil
}

// mihomoVLESS 处理 TLS 与 Reality 两种模式；Reality 强制 tls=true，并在缺少 reality-opts 时由 pbk/sid/spx 构建。
func mihomoVLESS(proxy *ordered, p *model.VLESS) {
	udp := true
	if p.UDP != nil {
		udp = *p.UDP
	}
	proxy.set("udp", udp)
	proxy.set("uuid", p.UUID)
	network := orDefault(p.Network, "tcp")
	proxy.set("network", network)
	proxy.set("flow", p.Flow)
	proxy.set("packet-encoding", p.PacketEncoding)
	proxy.set("encryption", orDefault(p.Encryption, "none"))
	proxy.set("fingerprint", p.Fingerprint)
	proxy.set("client-fingerprint", p.ClientFingerprint)
	proxy.set("skip-cert-verify", p.SkipCertVerify)
	if p.TLS != nil {
		proxy.set("tls", *p.TLS)
	}
	if p.Servername != "" {
		proxy.set("servername", p.Servername)
	}

	smux := p.Smux
	if smux == nil {
		smux = model.NormalizeSmux(nil)
	}
	proxy.set("smux", smux)
	alpn := p.ALPN
	if alpn == nil {
		alpn = []string{}
	}
	proxy.set("alpn", alpn)

	security := strings.ToLower(p.Security)
	reality := security == "reality" || p.RealityOpts != nil
	switch {
	case reality:
		proxy.set("tls", true)
		if p.RealityOpts != nil {
			proxy.set("reality-opts", p.RealityOpts)
			break
		}
		opts := ordered{}
		if p.PublicKey != "" {
			opts.set("public-key", p.PublicKey)
		}
		if p.ShortID != "" {
			opts.set("short-id", p.ShortID)
		}
		if p.SpiderX != "" {
			opts.set("spider-x", p.SpiderX)
		}
		if len(opts) > 0 {
			proxy.set("reality-opts", opts)
		}
	case security == "tls":
		proxy.set("tls", true)
	}

	switch network {
	case "ws":
		if len(p.WSOpts) > 0 {
			proxy.set("ws-opts", p.WSOpts)
		}
	case "grpc":
		if len(p.GRPCOpts) > 0 {
			proxy.set("grpc-opts", p.GRPCOpts)
		}
	case "tcp":
		if len(p.TCPOpts) > 0 {
			proxy.set("tcp-opts", p.TCPOpts)
		}
	}
	proxy.mergeExtra(p.Extra)
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// mihomoProxies 投影一组已物化的节点，无法表达的节点记录诊断后跳过，并交给 skipped 回调。
func mihomoProxies(nodes []model.Node, diags *diag.List, skipped func(model.Node)) []ordered {
	out := make([]ordered, 0, len(nodes))
	for _, node := range nodes {
		proxy, err := mihomoProxy(node)
		if err != nil {
			diags.Add(diag.UnsupportedNode, node.Name, "skipped in mihomo output", err)
			if skipped != nil {
				skipped(node)
			}
			continue
		}
		out = append(out, proxy)
	}
	return out
}

// EncodeMihomoProvider 生成 provider 文件内容 {proxies: [...]}。
func EncodeMihomoProvider(nodes []model.Node, diags *diag.List) ([]byte, error) {
	doc := ordered{{key: "proxies", value: mihomoProxies(nodes, diags, nil)}}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode provider: %w", err)
	}
	return out, nil
}
