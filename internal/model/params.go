// 文件路径: internal/model/params.go
// 模块说明: 这是 internal 模块里的 params 逻辑，每种协议一个参数结构体，组成封闭的联合类型。
package model

import (
	"strings"
)

// Params 是节点协议参数的封闭联合类型，只能由本包中的变体实现。
type Params interface {
	Kind() NodeKind
	// Fields 返回快照里 params 字段的松散表示，键名沿用 mihomo 的写法。
	Fields() map[string]any
	isParams()
}

// SS 是 Shadowsocks 参数。
type SS struct {
	Cipher     string
	Password   string
	UDP        bool
	Plugin     string
	PluginOpts map[string]any
	Extra      map[string]any
}

// SSR 是 ShadowsocksR 参数。
type SSR struct {
	Cipher        string
	Password      string
	Protocol      string
	ProtocolParam string
	Obfs          string
	ObfsParam     string
	UDP           bool
	Extra         map[string]any
}

// VMess 参数。
type VMess struct {
	UUID           string
	AlterID        int
	Cipher         string
	Network        string
	TLS            bool
	Servername     string
	SkipCertVerify bool
	UDP            bool
	WSOpts         map[string]any
	GRPCOpts       map[string]any
	Extra          map[string]any
}

// VLESS 参数。Reality 相关字段同时保留 URI 形式 (pbk/sid/spx) 与结构化形式 (reality-opts)。
type VLESS struct {
	UUID              string
	Network           string
	Security          string
	Encryption        string
	Flow              string
	PacketEncoding    string
	Servername        string
	Fingerprint       string
	ClientFingerprint string
	SkipCertVerify    bool
	TLS               *bool
	ALPN              []string
	Smux              map[string]any
	RealityOpts       map[string]any
	PublicKey         string
	ShortID           string
	SpiderX           string
	WSOpts            map[string]any
	GRPCOpts          map[string]any
	TCPOpts           map[string]any
	UDP               *bool
	Extra             map[string]any
}

// Trojan 参数。
type Trojan struct {
	Password       string
	SNI            string
	SkipCertVerify bool
	UDP            bool
	Network        string
	WSOpts         map[string]any
	GRPCOpts       map[string]any
	Extra          map[string]any
}

// Hysteria 同时承载 v1 与 v2，V2 决定 Kind。
type Hysteria struct {
	V2             bool
	Password       string
	Obfs           string
	SNI            string
	SkipCertVerify bool
	UDP            bool
	ALPN           []string
	Extra          map[string]any
}

// HTTP 参数，TLS 为 true 时即 https。
type HTTP struct {
	TLS            bool
	Username       string
	Password       string
	SNI            string
	SkipCertVerify bool
	Extra          map[string]any
}

// Snell 参数。
type Snell struct {
	PSK      string
	Version  int
	Reuse    bool
	UDP      bool
	Obfs     string
	ObfsHost string
	Extra    map[string]any
}

// TUIC 参数。
type TUIC struct {
	UUID           string
	Password       string
	Token          string
	ALPN           []string
	SNI            string
	SkipCertVerify bool
	UDP            bool
	Extra          map[string]any
}

// WireGuard 参数，只由结构化字段构造。
type WireGuard struct {
	SectionName  string
	PrivateKey   string
	SelfIP       string
	SelfIPv6     string
	DNS          []string
	MTU          int
	PublicKey    string
	Endpoint     string
	AllowedIPs   []string
	Keepalive    int
	PresharedKey string
	ClientID     string
	UDP          bool
	Extra        map[string]any
}

// AnyTLS 参数，未知键原样保留在 Extra 中。
type AnyTLS struct {
	Password       string
	SNI            string
	SkipCertVerify bool
	UDP            bool
	Extra          map[string]any
}

// Raw 是通用对象形式的透传变体，Values 已经是目标格式。
type Raw struct {
	Type   string
	Values map[string]any
}

func (*SS) Kind() NodeKind        { return KindShadowsocks }
func (*SSR) Kind() NodeKind       { return KindShadowsocksR }
func (*VMess) Kind() NodeKind     { return KindVMess }
func (*VLESS) Kind() NodeKind     { return KindVLESS }
func (*Trojan) Kind() NodeKind    { return KindTrojan }
func (*HTTP) Kind() NodeKind      { return KindHTTP }
func (*Snell) Kind() NodeKind     { return KindSnell }
func (*TUIC) Kind() NodeKind      { return KindTUIC }
func (*WireGuard) Kind() NodeKind { return KindWireGuard }
func (*AnyTLS) Kind() NodeKind    { return KindAnyTLS }
func (*Raw) Kind() NodeKind       { return KindRaw }

func (h *Hysteria) Kind() NodeKind {
	if h.V2 {
		return KindHysteria2
	}
	return KindHysteria
}

func (*SS) isParams()        {}
func (*SSR) isParams()       {}
func (*VMess) isParams()     {}
func (*VLESS) isParams()     {}
func (*Trojan) isParams()    {}
func (*Hysteria) isParams()  {}
func (*HTTP) isParams()      {}
func (*Snell) isParams()     {}
func (*TUIC) isParams()      {}
func (*WireGuard) isParams() {}
func (*AnyTLS) isParams()    {}
func (*Raw) isParams()       {}

// BuildParams 根据类型字符串把松散的 params 转换成对应的变体。
// 未知类型返回 Raw，保留原始键值。
func BuildParams(typ string, fields map[string]any) Params {
	r := newFieldReader(fields)
	switch kind := ParseKind(typ); kind {
	case KindShadowsocks:
		p := &SS{
			Cipher:     r.str("cipher", "method"),
			Password:   r.str("password"),
			UDP:        r.boolean("udp", "udp-relay"),
			Plugin:     r.str("plugin"),
			PluginOpts: r.object("plugin-opts"),
		}
		p.Extra = r.rest()
		return p
	case KindShadowsocksR:
		p := &SSR{
			Cipher:        r.str("cipher", "method"),
			Password:      r.str("password"),
			Protocol:      r.str("protocol"),
			ProtocolParam: r.str("protocol-param", "protoparam"),
			Obfs:          r.str("obfs"),
			ObfsParam:     r.str("obfs-param", "obfsparam"),
			UDP:           r.boolean("udp", "udp-relay"),
		}
		p.Extra = r.rest()
		return p
	case KindVMess:
		p := &VMess{
			UUID:           r.str("uuid", "id"),
			AlterID:        r.integer("alterId", "aid"),
			Cipher:         r.str("cipher", "scy"),
			Network:        r.str("network", "net"),
			TLS:            tlsFlag(r),
			Servername:     r.str("servername", "sni"),
			SkipCertVerify: r.boolean("skip-cert-verify"),
			UDP:            r.boolean("udp", "udp-relay"),
			WSOpts:         r.object("ws-opts"),
			GRPCOpts:       r.object("grpc-opts"),
		}
		p.Extra = r.rest()
		return p
	case KindVLESS:
		return buildVLESS(r)
	case KindTrojan:
		p := &Trojan{
			Password:       r.str("password"),
			SNI:            r.str("sni", "servername"),
			SkipCertVerify: r.boolean("skip-cert-verify", "allowInsecure"),
			UDP:            r.boolean("udp", "udp-relay"),
			Network:        r.str("network"),
			WSOpts:         r.object("ws-opts"),
			GRPCOpts:       r.object("grpc-opts"),
		}
		p.Extra = r.rest()
		return p
	case KindHysteria, KindHysteria2:
		p := &Hysteria{
			V2:             kind == KindHysteria2,
			Password:       r.str("password", "auth-str", "auth_str", "auth"),
			Obfs:           r.str("obfs"),
			SNI:            r.str("sni", "peer", "servername"),
			SkipCertVerify: r.boolean("skip-cert-verify", "insecure"),
			UDP:            r.boolean("udp", "udp-relay"),
			ALPN:           r.list("alpn"),
		}
		p.Extra = r.rest()
		return p
	case KindHTTP:
		p := &HTTP{
			TLS:            strings.EqualFold(strings.TrimSpace(typ), "https") || r.boolean("tls"),
			Username:       r.str("username"),
			Password:       r.str("password"),
			SNI:            r.str("sni", "servername"),
			SkipCertVerify: r.boolean("skip-cert-verify"),
		}
		p.Extra = r.rest()
		return p
	case KindSnell:
		p := &Snell{
			PSK:      r.str("psk", "password"),
			Version:  r.integer("version"),
			Reuse:    r.boolean("reuse"),
			UDP:      r.boolean("udp", "udp-relay"),
			Obfs:     r.str("obfs", "obfs-opts.mode"),
			ObfsHost: r.str("obfs-host"),
		}
		if opts := r.object("obfs-opts"); opts != nil {
			if p.Obfs == "" {
				p.Obfs = FieldString(opts, "mode")
			}
			if p.ObfsHost == "" {
				p.ObfsHost = FieldString(opts, "host")
			}
		}
		p.Extra = r.rest()
		return p
	case KindTUIC:
		p := &TUIC{
			UUID:           r.str("uuid"),
			Password:       r.str("password"),
			Token:          r.str("token"),
			ALPN:           r.list("alpn"),
			SNI:            r.str("sni", "servername"),
			SkipCertVerify: r.boolean("skip-cert-verify"),
			UDP:            r.boolean("udp", "udp-relay"),
		}
		p.Extra = r.rest()
		return p
	case KindWireGuard:
		return buildWireGuard(r)
	case KindAnyTLS:
		p := &AnyTLS{
			Password:       r.str("password"),
			SNI:            r.str("sni", "servername"),
			SkipCertVerify: r.boolean("skip-cert-verify", "skip_cert_verify"),
			UDP:            r.boolean("udp"),
		}
		p.Extra = r.rest()
		return p
	default:
		return &Raw{Type: strings.TrimSpace(typ), Values: CloneMap(fields)}
	}
}

func tlsFlag(r *fieldReader) bool {
	v, ok := r.raw("tls")
	if !ok {
		return false
	}
	if s, isStr := v.(string); isStr && strings.EqualFold(s, "tls") {
		return true
	}
	return Truthy(v)
}

func buildVLESS(r *fieldReader) *VLESS {
	p := &VLESS{
		UUID:              r.str("uuid", "id"),
		Network:           r.str("network", "type"),
		Security:          r.str("security"),
		Encryption:        r.str("encryption"),
		Flow:              r.str("flow"),
		PacketEncoding:    r.str("packet-encoding"),
		Servername:        r.str("servername", "sni"),
		Fingerprint:       r.str("fingerprint"),
		ClientFingerprint: r.str("client-fingerprint", "fp"),
		SkipCertVerify:    r.boolean("skip-cert-verify"),
		TLS:               r.optBool("tls"),
		ALPN:              r.list("alpn"),
		RealityOpts:       r.object("reality-opts"),
		PublicKey:         r.str("pbk", "public-key"),
		ShortID:           r.str("sid", "short-id"),
		SpiderX:           r.str("spx", "spider-x"),
		WSOpts:            r.object("ws-opts"),
		GRPCOpts:          r.object("grpc-opts"),
		TCPOpts:           r.object("tcp-opts"),
		UDP:               r.optBool("udp"),
	}
	if smux, ok := r.raw("smux"); ok {
		p.Smux = NormalizeSmux(smux)
	}
	p.Extra = r.rest()
	return p
}

// NormalizeSmux 把布尔形式的 smux 统一成 {enabled: bool}，对象形式原样保留。
func NormalizeSmux(value any) map[string]any {
	if m, ok := AsMap(value); ok {
		return CloneMap(m)
	}
	enabled, _ := value.(bool)
	return map[string]any{"enabled": enabled}
}

func buildWireGuard(r *fieldReader) *WireGuard {
	p := &WireGuard{
		SectionName:  r.str("section-name"),
		PrivateKey:   r.str("private-key", "privateKey"),
		SelfIP:       r.str("self-ip", "ip", "address"),
		SelfIPv6:     r.str("self-ip-v6", "ipv6"),
		DNS:          r.list("dns", "dns-server"),
		MTU:          r.integer("mtu"),
		PublicKey:    r.str("public-key", "publicKey", "peer-public-key"),
		Endpoint:     r.str("endpoint"),
		AllowedIPs:   r.list("allowed-ips", "allowed_ips"),
		Keepalive:    r.integer("keepalive", "persistent-keepalive"),
		PresharedKey: r.str("preshared-key", "presharedKey", "pre-shared-key"),
		UDP:          r.boolean("udp"),
	}
	if v, ok := r.raw("client-id", "reserved"); ok {
		if list := StringList(v); len(list) > 1 {
			p.ClientID = strings.Join(list, "/")
		} else {
			p.ClientID = Stringify(v)
		}
	}
	p.Extra = r.rest()
	return p
}

func (p *SS) Fields() map[string]any {
	out := withExtra(p.Extra)
	out["cipher"] = p.Cipher
	out["password"] = p.Password
	setIf(out, "udp", p.UDP, p.UDP)
	setIf(out, "plugin", p.Plugin, p.Plugin != "")
	setIf(out, "plugin-opts", CloneMap(p.PluginOpts), len(p.PluginOpts) > 0)
	return out
}

func (p *SSR) Fields() map[string]any {
	out := withExtra(p.Extra)
	out["cipher"] = p.Cipher
	out["password"] = p.Password
	out["protocol"] = p.Protocol
	out["obfs"] = p.Obfs
	setIf(out, "protocol-param", p.ProtocolParam, p.ProtocolParam != "")
	setIf(out, "obfs-param", p.ObfsParam, p.ObfsParam != "")
	setIf(out, "udp", p.UDP, p.UDP)
	return out
}

func (p *VMess) Fields() map[string]any {
	out := withExtra(p.Extra)
	out["uuid"] = p.UUID
	out["alterId"] = p.AlterID
	setIf(out, "cipher", p.Cipher, p.Cipher != "")
	setIf(out, "network", p.Network, p.Network != "")
	setIf(out, "tls", p.TLS, p.TLS)
	setIf(out, "servername", p.Servername, p.Servername != "")
	setIf(out, "skip-cert-verify", p.SkipCertVerify, p.SkipCertVerify)
	setIf(out, "udp", p.UDP, p.UDP)
	setIf(out, "ws-opts", CloneMap(p.WSOpts), len(p.WSOpts) > 0)
	setIf(out, "grpc-opts", CloneMap(p.GRPCOpts), len(p.GRPCOpts) > 0)
	return out
}

func (p *VLESS) Fields() map[string]any {
	out := withExtra(p.Extra)
	out["uuid"] = p.UUID
	setIf(out, "network", p.Network, p.Network != "")
	setIf(out, "security", p.Security, p.Security != "")
	setIf(out, "encryption", p.Encryption, p.Encryption != "")
	setIf(out, "flow", p.Flow, p.Flow != "")
	setIf(out, "packet-encoding", p.PacketEncoding, p.PacketEncoding != "")
	setIf(out, "servername", p.Servername, p.Servername != "")
	setIf(out, "fingerprint", p.Fingerprint, p.Fingerprint != "")
	setIf(out, "client-fingerprint", p.ClientFingerprint, p.ClientFingerprint != "")
	setIf(out, "skip-cert-verify", p.SkipCertVerify, p.SkipCertVerify)
	if p.TLS != nil {
		out["tls"] = *p.TLS
	}
	setIf(out, "alpn", append([]string(nil), p.ALPN...), len(p.ALPN) > 0)
	setIf(out, "smux", CloneMap(p.Smux), p.Smux != nil)
	setIf(out, "reality-opts", CloneMap(p.RealityOpts), p.RealityOpts != nil)
	setIf(out, "pbk", p.PublicKey, p.PublicKey != "")
	setIf(out, "sid", p.ShortID, p.ShortID != "")
	setIf(out, "spx", p.SpiderX, p.SpiderX != "")
	setIf(out, "ws-opts", CloneMap(p.WSOpts), len(p.WSOpts) > 0)
	setIf(out, "grpc-opts", CloneMap(p.GRPCOpts), len(p.GRPCOpts) > 0)
	setIf(out, "tcp-opts", CloneMap(p.TCPOpts), len(p.TCPOpts) > 0)
	if p.UDP != nil {
		out["udp"] = *p.UDP
	}
	return out
}

func (p *Trojan) Fields() map[string]any {
	out := withExtra(p.Extra)
	out["password"] = p.Password
	setIf(out, "sni", p.SNI, p.SNI != "")
	setIf(out, "skip-cert-verify", p.SkipCertVerify, p.SkipCertVerify)
	setIf(out, "udp", p.UDP, p.UDP)
	setIf(out, "network", p.Network, p.Network != "")
	setIf(out, "ws-opts", CloneMap(p.WSOpts), len(p.WSOpts) > 0)
	setIf(out, "grpc-opts", CloneMap(p.GRPCOpts), len(p.GRPCOpts) > 0)
	return out
}

func (p *Hysteria) Fields() map[string]any {
	out := withExtra(p.Extra)
	out["password"] = p.Password
	setIf(out, "obfs", p.Obfs, p.Obfs != "")
	setIf(out, "sni", p.SNI, p.SNI != "")
	setIf(out, "skip-cert-verify", p.SkipCertVerify, p.SkipCertVerify)
	setIf(out, "udp", p.UDP, p.UDP)
	setIf(out, "alpn", append([]string(nil), p.ALPN...), len(p.ALPN) > 0)
	return out
}

func (p *HTTP) Fields() map[string]any {
	out := withExtra(p.Extra)
	setIf(out, "tls", p.TLS, p.TLS)
	setIf(out, "username", p.Username, p.Username != "")
	setIf(out, "password", p.Password, p.Password != "")
	setIf(out, "sni", p.SNI, p.SNI != "")
	setIf(out, "skip-cert-verify", p.SkipCertVerify, p.SkipCertVerify)
	return out
}

func (p *Snell) Fields() map[string]any {
	out := withExtra(p.Extra)
	out["psk"] = p.PSK
	setIf(out, "version", p.Version, p.Version != 0)
	setIf(out, "reuse", p.Reuse, p.Reuse)
	setIf(out, "udp", p.UDP, p.UDP)
	setIf(out, "obfs", p.Obfs, p.Obfs != "")
	setIf(out, "obfs-host", p.ObfsHost, p.ObfsHost != "")
	return out
}

func (p *TUIC) Fields() map[string]any {
	out := withExtra(p.Extra)
	setIf(out, "uuid", p.UUID, p.UUID != "")
	setIf(out, "password", p.Password, p.Password != "")
	setIf(out, "token", p.Token, p.Token != "")
	setIf(out, "alpn", append([]string(nil), p.ALPN...), len(p.ALPN) > 0)
	setIf(out, "sni", p.SNI, p.SNI != "")
	setIf(out, "skip-cert-verify", p.SkipCertVerify, p.SkipCertVerify)
	setIf(out, "udp", p.UDP, p.UDP)
	return out
}

func (p *WireGuard) Fields() map[string]any {
	out := withExtra(p.Extra)
	setIf(out, "section-name", p.SectionName, p.SectionName != "")
	out["private-key"] = p.PrivateKey
	setIf(out, "self-ip", p.SelfIP, p.SelfIP != "")
	setIf(out, "self-ip-v6", p.SelfIPv6, p.SelfIPv6 != "")
	setIf(out, "dns", append([]string(nil), p.DNS...), len(p.DNS) > 0)
	setIf(out, "mtu", p.MTU, p.MTU != 0)
	out["public-key"] = p.PublicKey
	setIf(out, "endpoint", p.Endpoint, p.Endpoint != "")
	setIf(out, "allowed-ips", append([]string(nil), p.AllowedIPs...), len(p.AllowedIPs) > 0)
	setIf(out, "keepalive", p.Keepalive, p.Keepalive != 0)
	setIf(out, "preshared-key", p.PresharedKey, p.PresharedKey != "")
	setIf(out, "client-id", p.ClientID, p.ClientID != "")
	setIf(out, "udp", p.UDP, p.UDP)
	return out
}

func (p *AnyTLS) Fields() map[string]any {
	out := withExtra(p.Extra)
	out["password"] = p.Password
	setIf(out, "sni", p.SNI, p.SNI != "")
	setIf(out, "skip-cert-verify", p.SkipCertVerify, p.SkipCertVerify)
	setIf(out, "udp", p.UDP, p.UDP)
	return out
}

func (p *Raw) Fields() map[string]any {
	return CloneMap(p.Values)
}

func withExtra(extra map[string]any) map[string]any {
	out := CloneMap(extra)
	if out == nil {
		out = make(map[string]any)
	}
	return out
}

func setIf(out map[string]any, key string, value any, cond bool) {
	if cond {
		out[key] = value
	}
}
