package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSnapshot = `
nodes:
  - id: n1
    name: HK 01
    type: ss
    server: 1.2.3.4
    port: "443"
    params:
      cipher: aes-128-gcm
      password: secret
      udp: true
      test-url: http://cp.cloudflare.com
  - id: n2
    name: JP 01
    type: vless
    server: jp.example.com
    port: 443
    enabled: false
    params:
      uuid: 0f2c
      security: reality
      pbk: X
      sid: "Y"
      fp: chrome
      smux: true
subscriptions:
  - id: s1
    name: Sub One
    url: https://example.com/sub
subscription_aggregations:
  - id: a1
    name: Agg
    subscriptions: [s1]
    nodes: [n1]
proxy_groups:
  - id: g1
    name: Legacy
    type: select
    source: node
    proxies: [n1, DIRECT]
  - id: g2
    name: Tested
    type: url-test
    interval: "600"
    enabled: false
rules:
  - rule_type: DOMAIN
    value: example.com
    policy: Legacy
rule_sets:
  - name: ads
    url: https://example.com/ads.yaml
    policy: REJECT
system_config:
  server_domain: https://cfg.example.com/
  config_token: t0k
`

func TestParseSnapshotDefaultsAndParams(t *testing.T) {
	snap, err := ParseSnapshot([]byte(sampleSnapshot))
	require.NoError(t, err)
	require.Len(t, snap.Nodes, 2)

	n1 := snap.Nodes[0]
	assert.True(t, n1.Enabled)
	assert.Equal(t, 443, n1.Port)
	ss, ok := n1.Params.(*SS)
	require.True(t, ok)
	assert.Equal(t, "aes-128-gcm", ss.Cipher)
	assert.True(t, ss.UDP)
	assert.Equal(t, map[string]any{"test-url": "http://cp.cloudflare.com"}, ss.Extra)

	n2 := snap.Nodes[1]
	assert.False(t, n2.Enabled)
	vless, ok := n2.Params.(*VLESS)
	require.True(t, ok)
	assert.Equal(t, "chrome", vless.ClientFingerprint)
	assert.Equal(t, "X", vless.PublicKey)
	assert.Equal(t, map[string]any{"enabled": true}, vless.Smux)

	require.Len(t, snap.ProxyGroups, 2)
	assert.True(t, snap.ProxyGroups[0].Enabled)
	assert.Equal(t, []string{"n1", "DIRECT"}, snap.ProxyGroups[0].Normalized().ManualNodes)
	assert.False(t, snap.ProxyGroups[1].Enabled)
	assert.Equal(t, FlexInt(600), snap.ProxyGroups[1].Interval)
	assert.True(t, snap.Aggregations[0].Enabled)
}

func TestRuleItemsLegacyOrder(t *testing.T) {
	snap, err := ParseSnapshot([]byte(sampleSnapshot))
	require.NoError(t, err)

	items := snap.RuleItems()
	require.Len(t, items, 2)
	assert.Equal(t, ItemRuleset, items[0].ItemType)
	assert.Equal(t, "ads", items[0].Name)
	assert.Equal(t, ItemRule, items[1].ItemType)
	assert.True(t, items[1].Enabled)

	snap.RuleConfigs = []RuleItem{{ItemType: ItemRule, RuleType: "MATCH", Policy: "DIRECT", Enabled: true}}
	assert.Len(t, snap.RuleItems(), 1)
	assert.Empty(t, snap.Rulesets())
}

func TestEffectiveBaseAndToken(t *testing.T) {
	snap := &Snapshot{}
	assert.Equal(t, "http://local:5001", snap.EffectiveBase("http://local:5001/"))
	assert.Equal(t, "/x", snap.WithToken("/x"))

	snap.SystemConfig = SystemConfig{ServerDomain: "https://cfg.example.com", ConfigToken: "a b"}
	assert.Equal(t, "https://cfg.example.com", snap.EffectiveBase("http://ignored"))
	assert.Equal(t, "/x?token=a+b", snap.WithToken("/x"))
	assert.Equal(t, "/x?format=surge&token=a+b", snap.WithToken("/x?format=surge"))
}

func TestIndexFirstMatchWins(t *testing.T) {
	snap := &Snapshot{
		Nodes: []Node{{ID: "n", Name: "first"}, {ID: "n", Name: "second"}},
		Aggregations: []Aggregation{
			{ID: "a", Name: "off", Enabled: false},
		},
		RuleLibrary: []RuleLibraryEntry{{ID: "l1", Name: "ads", URL: "https://x/ads.list"}},
	}
	idx := NewIndex(snap)

	n, ok := idx.Node("n")
	require.True(t, ok)
	assert.Equal(t, "first", n.Name)

	_, ok = idx.Aggregation("a")
	assert.True(t, ok)
	_, ok = idx.EnabledAggregation("a")
	assert.False(t, ok)

	e, ok := idx.LibraryEntryByName("ads")
	require.True(t, ok)
	assert.Equal(t, "l1", e.ID)
}

func TestParseSnapshotEmpty(t *testing.T) {
	_, err := ParseSnapshot([]byte("  \n"))
	require.ErrorIs(t, err, ErrEmptySnapshot)
}

func TestBuildParamsUnknownTypeIsRaw(t *testing.T) {
	p := BuildParams("mieru", map[string]any{"username": "u"})
	raw, ok := p.(*Raw)
	require.True(t, ok)
	assert.Equal(t, KindRaw, raw.Kind())
	assert.Equal(t, "mieru", raw.Type)
	assert.Equal(t, map[string]any{"username": "u"}, raw.Fields())
}

func TestBuildParamsFieldsRoundTrip(t *testing.T) {
	cases := []struct {
		typ    string
		fields map[string]any
	}{
		{"trojan", map[string]any{"password": "p", "sni": "a.com", "skip-cert-verify": true}},
		{"hysteria2", map[string]any{"password": "p", "obfs": "salamander", "sni": "b.com"}},
		{"tuic", map[string]any{"uuid": "u", "password": "p", "alpn": []string{"h3"}}},
		{"wireguard", map[string]any{"private-key": "k", "public-key": "pk", "self-ip": "10.0.0.2", "mtu": 1280}},
	}
	for _, tc := range cases {
		t.Run(tc.typ, func(t *testing.T) {
			first := BuildParams(tc.typ, tc.fields)
			second := BuildParams(tc.typ, first.Fields())
			assert.Equal(t, first, second)
		})
	}
}

func TestNodeTypeName(t *testing.T) {
	assert.Equal(t, "https", Node{Params: BuildParams("https", nil)}.TypeName())
	assert.Equal(t, "hysteria2", Node{Params: BuildParams("hy2", nil)}.TypeName())
	assert.Equal(t, "", Node{}.TypeName())
	assert.Equal(t, KindUnknown, Node{}.Kind())
}
