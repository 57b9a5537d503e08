// 文件路径: internal/protocol/surge.go
// 模块说明: 这是 internal 模块里的 surge 逻辑，按 [General]/[Proxy]/[Proxy Group]/[Rule]/[WireGuard] 顺序拼出 Surge 配置。
package protocol

import (
	"fmt"
	"strings"

	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/resolve"
	"github.com/thsrite/configflow/internal/rules"
)

// ManagedInterval is the auto-update interval announced in the managed-config header.
const ManagedInterval = 86400

var defaultSurgeGeneral = []string{
	"[General]",
	"loglevel = notify",
	"internet-test-url = " + DefaultTestURL,
	"proxy-test-url = " + DefaultTestURL,
	"test-timeout = 3",
	"skip-proxy = localhost, *.local, injections.adguard.org, local.adguard.org, captive.apple.com, guzzoni.apple.com, 0.0.0.0/8, 10.0.0.0/8, 17.0.0.0/8, 100.64.0.0/10, 127.0.0.0/8, 169.254.0.0/16, 172.16.0.0/12, 192.0.0.0/24, 192.0.2.0/24, 192.168.0.0/16, 192.88.99.0/24, 198.18.0.0/15, 198.51.100.0/24, 203.0.113.0/24, 224.0.0.0/4, 240.0.0.0/4, 255.255.255.255/32",
	"dns-server = 223.5.5.5, 119.29.29.29, system",
	"ipv6 = true",
	"allow-wifi-access = true",
	"wifi-access-http-port = 6152",
	"wifi-access-socks5-port = 6153",
	"http-listen = 0.0.0.0:6152",
	"socks5-listen = 0.0.0.0:6153",
	"exclude-simple-hostnames = true",
}

// SurgeBuilder renders the line dialect.
type SurgeBuilder struct {
	base *BaseBuilder
}

func NewSurgeBuilder() *SurgeBuilder {
	base := NewBaseBuilder(string(rules.Surge))
	base.Allow(
		model.KindShadowsocks, model.KindVMess, model.KindVLESS, model.KindTrojan,
		model.KindHysteria2, model.KindHTTP, model.KindSnell, model.KindTUIC, model.KindWireGuard,
	)
	return &SurgeBuilder{base: base}
}

func (b *SurgeBuilder) Flags() []string {
	return []string{"surge"}
}

func (b *SurgeBuilder) Build(req BuildRequest) (*Result, error) {
	diags := &diag.List{}
	snap := req.Snapshot
	res := resolve.Resolve(snap, diags)
	base := req.base()

	sections := []string{surgeGeneral(snap.Surge.CustomConfig)}

	nodes := b.base.Materialize(req.Context, req, res.Direct, res, diags)
	proxyLines := []string{"[Proxy]"}
	var wireguard []string
	var names []string
	for _, node := range nodes {
		line, section, err := SurgeProxyLine(node)
		if err != nil {
			diags.Add(diag.UnsupportedNode, node.Name, "skipped in surge output", err)
			res.Exclude(node.ID)
			continue
		}
		proxyLines = append(proxyLines, line)
		names = append(names, node.Name)
		if section != "" {
			wireguard = append(wireguard, section)
		}
	}
	sections = append(sections, strings.Join(proxyLines, "\n"))

	smart := make(map[string]string, len(snap.Surge.SmartGroups))
	for _, sg := range snap.Surge.SmartGroups {
		if _, ok := smart[sg.GroupID]; !ok {
			smart[sg.GroupID] = sg.PolicyPriority
		}
	}
	groupLines := []string{"[Proxy Group]"}
	for _, g := range res.Groups {
		if line, ok := surgeGroupLine(snap, res, g, base, smart); ok {
			groupLines = append(groupLines, line)
		}
	}
	if len(res.Groups) == 0 && len(names) > 0 {
		list := joinList(names)
		groupLines = append(groupLines,
			"Proxy = select, "+list,
			fmt.Sprintf("%s = url-test, %s, url = %s, interval = %d", autoGroupName, list, DefaultTestURL, DefaultTestInterval),
		)
	}
	sections = append(sections, strings.Join(groupLines, "\n"))

	defs := rules.Definitions(snap, req.BaseURL, diags)
	ruleLines := rules.Render(snap.RuleItems(), defs, rules.Options{Dialect: rules.Surge, NoResolve: b.noResolve(req)})
	sections = append(sections, strings.Join(append([]string{"[Rule]"}, ruleLines...), "\n"))
	sections = append(sections, wireguard...)

	managed := snap.WithToken(base + "/api/config/surge")
	header := fmt.Sprintf("#!MANAGED-CONFIG %s interval=%d strict=true", managed, ManagedInterval)
	payload := header + "\n\n" + strings.Join(sections, "\n\n")
	return &Result{
		Payload:     []byte(payload),
		ContentType: "text/plain; charset=utf-8",
		Diagnostics: diags,
	}, nil
}

func (b *SurgeBuilder) noResolve(req BuildRequest) rules.NoResolveMode {
	if req.NoResolve != "" {
		return req.NoResolve
	}
	return rules.NoResolveExplicit
}

// surgeGeneral 从自定义文本中截取 [General] 段，直到下一个段头；没有时使用默认段。
func surgeGeneral(custom string) string {
	if strings.TrimSpace(custom) != "" {
		var lines []string
		in := false
		for _, line := range strings.Split(strings.TrimSpace(custom), "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(trimmed, "[General]"):
				in = true
				lines = append(lines, line)
			case in && strings.HasPrefix(trimmed, "["):
				return strings.Join(lines, "\n")
			case in:
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			return strings.Join(lines, "\n")
		}
	}
	return strings.Join(defaultSurgeGeneral, "\n")
}

// surgePolicyPath 在 provider 地址后追加 format=surge，使端点返回 Surge 节点语法。
func surgePolicyPath(link string) string {
	if strings.Contains(link, "?") {
		return link + "&format=surge"
	}
	return link + "?format=surge"
}

// surgeGroupLine 渲染一个策略组；订阅与聚合以 policy-path 引用。成员与 policy-path 都为空时跳过。
func surgeGroupLine(snap *model.Snapshot, res *resolve.Result, g resolve.Group, base string, smart map[string]string) (string, bool) {
	groupType := g.Type
	priority, isSmart := smart[g.ID]
	if isSmart {
		groupType = model.GroupSmart
	}

	members := res.Members(g, true)
	var paths []string
	for _, sub := range res.EnabledSubscriptions(g) {
		paths = append(paths, surgePolicyPath(SubscriptionProviderURL(snap, base, sub.ID)))
	}
	for _, agg := range res.GroupAggregations(g) {
		paths = append(paths, surgePolicyPath(AggregationProviderURL(snap, base, agg.ID)))
	}
	if len(members) == 0 && len(paths) == 0 {
		return "", false
	}

	var line strings.Builder
	line.WriteString(g.Name + " = " + string(groupType))
	if len(members) > 0 {
		line.WriteString(", " + joinList(members))
	}
	switch groupType {
	case model.GroupSelect:
	case model.GroupURLTest, model.GroupFallback, model.GroupLoadBalance, model.GroupSmart:
		if groupType == model.GroupSmart && priority != "" {
			line.WriteString(", policy-priority=" + priority)
		}
		testURL := orDefault(g.URL, DefaultTestURL)
		interval := int(g.Interval)
		if interval <= 0 {
			interval = DefaultTestInterval
		}
		fmt.Fprintf(&line, ", url = %s, interval = %d", testURL, interval)
	default:
		return "", false
	}
	for _, path := range paths {
		fmt.Fprintf(&line, ", policy-path = %s, update-interval = %d", path, PolicyPathInterval)
	}
	return line.String(), true
}

// SurgeProxyLine 返回节点的 [Proxy] 行；WireGuard 节点额外返回独立的 [WireGuard] 段。
func SurgeProxyLine(node model.Node) (line string, section string, err error) {
	name, server, port := node.Name, node.Server, itoa(node.Port)
	switch p := node.Params.(type) {
	case *model.SS:
		parts := []string{name + " = ss", server, port, "encrypt-method=" + orDefault(p.Cipher, "aes-256-gcm"), "password=" + p.Password}
		if p.Plugin == "obfs" || p.Plugin == "obfs-local" || p.Plugin == "simple-obfs" {
			if mode := model.FieldString(p.PluginOpts, "mode"); mode != "" {
				parts = append(parts, "obfs="+mode)
			}
			if host := model.FieldString(p.PluginOpts, "host"); host != "" {
				parts = append(parts, "obfs-host="+host)
			}
		}
		if p.UDP {
			parts = append(parts, "udp-relay=true")
		}
		if testURL := model.FieldString(p.Extra, "test-url"); testURL != "" {
			parts = append(parts, "test-url="+testURL)
		}
		return joinList(parts), "", nil

	case *model.VMess:
		parts := []string{name + " = vmess", server, port, "username=" + p.UUID}
		if p.TLS {
			parts = append(parts, "tls=true")
			if p.Servername != "" {
				parts = append(parts, "sni="+p.Servername)
			}
		}
		if p.Network == "ws" {
			parts = append(parts, surgeWS(p.WSOpts)...)
		}
		if p.SkipCertVerify {
			parts = append(parts, "skip-cert-verify=true")
		}
		if p.UDP {
			parts = append(parts, "udp-relay=true")
		}
		return joinList(parts), "", nil

	case *model.VLESS:
		// Surge has no vless; the vmess line is the closest it accepts.
		parts := []string{name + " = vmess", server, port, "username=" + p.UUID}
		if (p.TLS != nil && *p.TLS) || strings.EqualFold(p.Security, "tls") {
			parts = append(parts, "tls=true")
			if p.Servername != "" {
				parts = append(parts, "sni="+p.Servername)
			}
		}
		switch p.Network {
		case "ws":
			parts = append(parts, surgeWS(p.WSOpts)...)
		case "grpc":
			if svc := model.FieldString(p.GRPCOpts, "grpc-service-name"); svc != "" {
				parts = append(parts, "grpc-service-name="+svc)
			}
		}
		if p.SkipCertVerify {
			parts = append(parts, "skip-cert-verify=true")
		}
		if p.UDP != nil && *p.UDP {
			parts = append(parts, "udp-relay=true")
		}
		return joinList(parts), "", nil

	case *model.Trojan:
		parts := []string{name + " = trojan", server, port, "password=" + p.Password}
		if p.SNI != "" {
			parts = append(parts, "sni="+p.SNI)
		}
		if p.SkipCertVerify {
			parts = append(parts, "skip-cert-verify=true")
		}
		if p.UDP {
			parts = append(parts, "udp-relay=true")
		}
		return joinList(parts), "", nil

	case *model.Hysteria:
		if !p.V2 {
			return "", "", fmt.Errorf("hysteria v1 node %q: %w", name, ErrUnsupportedKind)
		}
		parts := []string{name + " = hysteria2", server, port, "password=" + p.Password}
		if p.SNI != "" {
			parts = append(parts, "sni="+p.SNI)
		}
		if p.SkipCertVerify {
			parts = append(parts, "skip-cert-verify=true")
		}
		if p.UDP {
			parts = append(parts, "udp-relay=true")
		}
		return joinList(parts), "", nil

	case *model.HTTP:
		typ := node.TypeName()
		if p.Username != "" && p.Password != "" {
			return joinList([]string{name + " = " + typ, server, port, p.Username, p.Password}), "", nil
		}
		return joinList([]string{name + " = " + typ, server, port}), "", nil

	case *model.Snell:
		parts := []string{name + " = snell", server, port, "psk=" + p.PSK}
		version := p.Version
		if version == 0 {
			version = 4
		}
		parts = append(parts, "version="+itoa(version))
		if p.Reuse {
			parts = append(parts, "reuse=true")
		}
		if p.UDP {
			parts = append(parts, "udp-relay=true")
		}
		if p.Obfs != "" {
			parts = append(parts, "obfs="+p.Obfs)
			if p.ObfsHost != "" {
				parts = append(parts, "obfs-host="+p.ObfsHost)
			}
		}
		return joinList(parts), "", nil

	case *model.TUIC:
		parts := []string{name + " = tuic-v5", server, port}
		if p.UUID != "" {
			parts = append(parts, "uuid="+p.UUID)
		}
		if p.Password != "" {
			parts = append(parts, "password="+p.Password)
		} else if p.Token != "" {
			parts = append(parts, "token="+p.Token)
		}
		alpn := "h3"
		if len(p.ALPN) > 0 {
			alpn = strings.Join(p.ALPN, ",")
		}
		parts = append(parts, "alpn="+alpn)
		if p.SNI != "" {
			parts = append(parts, "sni="+p.SNI)
		}
		if p.SkipCertVerify {
			parts = append(parts, "skip-cert-verify=true")
		}
		if p.UDP {
			parts = append(parts, "udp-relay=true")
		}
		return joinList(parts), "", nil

	case *model.WireGuard:
		line, section := surgeWireGuard(node, p)
		return line, section, nil

	case *model.SSR, *model.AnyTLS, *model.Raw, nil:
		return "", "", fmt.Errorf("%s node %q: %w", node.TypeName(), name, ErrUnsupportedKind)

	default:
		return "", "", fmt.Errorf("node %q (%T): %w", name, p, ErrUnsupportedKind)
	}
}

func surgeWS(opts map[string]any) []string {
	path := orDefault(model.FieldString(opts, "path"), "/")
	parts := []string{"ws=true", "ws-path=" + path}
	if host := model.FieldString(opts, "headers.Host"); host != "" {
		parts = append(parts, "ws-headers=Host:"+host)
	}
	return parts
}

func surgeWireGuard(node model.Node, p *model.WireGuard) (string, string) {
	sectionName := p.SectionName
	if sectionName == "" {
		sectionName = strings.NewReplacer(" ", "-", "_", "-").Replace(node.Name)
	}
	refParts := []string{node.Name + " = wireguard", "section-name = " + sectionName}
	if p.MTU > 0 {
		refParts = append(refParts, "mtu="+itoa(p.MTU))
	}

	lines := []string{"[WireGuard " + sectionName + "]"}
	if p.PrivateKey != "" {
		lines = append(lines, "private-key = "+p.PrivateKey)
	}
	if p.SelfIP != "" {
		lines = append(lines, "self-ip = "+p.SelfIP)
	}
	if p.SelfIPv6 != "" {
		lines = append(lines, "self-ip-v6 = "+p.SelfIPv6)
	}
	if len(p.DNS) > 0 {
		lines = append(lines, "dns-server = "+joinList(p.DNS))
	}
	if p.MTU > 0 {
		lines = append(lines, "mtu = "+itoa(p.MTU))
	}
	if p.PublicKey != "" {
		endpoint := p.Endpoint
		if endpoint == "" {
			endpoint = node.Server + ":" + itoa(node.Port)
		}
		allowed := "0.0.0.0/0, ::/0"
		if len(p.AllowedIPs) > 0 {
			allowed = joinList(p.AllowedIPs)
		}
		peer := []string{"public-key = " + p.PublicKey, "endpoint = " + endpoint, `allowed-ips = "` + allowed + `"`}
		if p.Keepalive > 0 {
			peer = append(peer, "keepalive = "+itoa(p.Keepalive))
		}
		if p.PresharedKey != "" {
			peer = append(peer, "preshared-key = "+p.PresharedKey)
		}
		if p.ClientID != "" {
			peer = append(peer, "client-id = "+p.ClientID)
		}
		lines = append(lines, "peer = ("+joinList(peer)+")")
	}
	return joinList(refParts), strings.Join(lines, "\n")
}

// EncodeSurgeProxies 渲染 policy-path 端点使用的节点列表，每行一个；需要独立段落的 WireGuard 被跳过。
func EncodeSurgeProxies(nodes []model.Node, diags *diag.List) string {
	lines := make([]string, 0, len(nodes))
	for _, node := range nodes {
		line, section, err := SurgeProxyLine(node)
		if err != nil {
			diags.Add(diag.UnsupportedNode, node.Name, "skipped in surge provider", err)
			continue
		}
		if section != "" {
			diags.Addf(diag.UnsupportedNode, node.Name, "wireguard needs its own section and cannot be served through policy-path")
			continue
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
