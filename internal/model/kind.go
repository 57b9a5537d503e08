// 文件路径: internal/model/kind.go
// 模块说明: 这是 internal 模块里的 kind 逻辑，定义节点协议与策略组类型这两个封闭枚举。
package model

import "strings"

// NodeKind 是节点协议的封闭枚举，每个取值对应一个 Params 变体。
type NodeKind int

const (
	KindUnknown NodeKind = iota
	KindShadowsocks
	KindShadowsocksR
	KindVMess
	KindVLESS
	KindTrojan
	KindHysteria
	KindHysteria2
	KindHTTP
	KindSnell
	KindTUIC
	KindWireGuard
	KindAnyTLS
	KindRaw
)

var kindNames = [...]string{
	KindUnknown:      "unknown",
	KindShadowsocks:  "ss",
	KindShadowsocksR: "ssr",
	KindVMess:        "vmess",
	KindVLESS:        "vless",
	KindTrojan:       "trojan",
	KindHysteria:     "hysteria",
	KindHysteria2:    "hysteria2",
	KindHTTP:         "http",
	KindSnell:        "snell",
	KindTUIC:         "tuic",
	KindWireGuard:    "wireguard",
	KindAnyTLS:       "anytls",
	KindRaw:          "raw",
}

func (k NodeKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnknown]
	}
	return kindNames[k]
}

// ParseKind 把外部传入的类型字符串映射到枚举，包含常见别名。
// 未识别的类型返回 KindUnknown，由调用方决定是否走 Raw 透传。
func ParseKind(s string) NodeKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ss", "shadowsocks":
		return KindShadowsocks
	case "ssr", "shadowsocksr":
		return KindShadowsocksR
	case "vmess":
		return KindVMess
	case "vless":
		return KindVLESS
	case "trojan":
		return KindTrojan
	case "hysteria":
		return KindHysteria
	case "hysteria2", "hy2":
		return KindHysteria2
	case "http", "https":
		return KindHTTP
	case "snell":
		return KindSnell
	case "tuic", "tuic-v5":
		return KindTUIC
	case "wireguard", "wg":
		return KindWireGuard
	case "anytls":
		return KindAnyTLS
	default:
		return KindUnknown
	}
}

// GroupType 是策略组类型。
type GroupType string

const (
	GroupSelect      GroupType = "select"
	GroupURLTest     GroupType = "url-test"
	GroupFallback    GroupType = "fallback"
	GroupLoadBalance GroupType = "load-balance"
	GroupSmart       GroupType = "smart"
	GroupRelay       GroupType = "relay"
)

// Known reports whether t is one of the declared group types.
func (t GroupType) Known() bool {
	switch t {
	case GroupSelect, GroupURLTest, GroupFallback, GroupLoadBalance, GroupSmart, GroupRelay:
		return true
	default:
		return false
	}
}

// Tested reports whether the group type carries a health-check url/interval.
func (t GroupType) Tested() bool {
	switch t {
	case GroupURLTest, GroupFallback, GroupLoadBalance, GroupSmart:
		return true
	default:
		return false
	}
}
