package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
)

const rulesSnapshot = `
rule_configs:
  - {itemType: rule, rule_type: DOMAIN-SUFFIX, value: google.com, policy: PROXY}
  - {itemType: ruleset, name: ads, policy: REJECT, url: https://raw.githubusercontent.com/x/ads.yaml, behavior: domain}
  - {itemType: rule, rule_type: IP-CIDR, value: 10.0.0.0/8, policy: DIRECT}
  - {itemType: rule, rule_type: DOMAIN, value: off.example, policy: DIRECT, enabled: false}
  - {itemType: ruleset, name: lan, library_rule_id: lib1, policy: DIRECT}
  - {itemType: ruleset, name: cn, url: /static/cn.list}
  - {itemType: rule, rule_type: SRC-IP-CIDR, value: 192.168.1.0/24, policy: DIRECT, no_resolve: true}
  - {itemType: rule, rule_type: AND, value: "((SRC-IP-CIDR,192.168.1.110/32),(DST-PORT,443))", policy: REJECT}
  - {itemType: rule, rule_type: MATCH, policy: PROXY}
rule_library:
  - {id: lib1, name: LAN, url: https://example.com/lan.yml, behavior: ipcidr}
system_config:
  server_domain: https://cfg.example.com/
  github_proxy_domain: ghproxy.example
`

func loadRules(t *testing.T) (*model.Snapshot, []Definition) {
	t.Helper()
	snap, err := model.ParseSnapshot([]byte(rulesSnapshot))
	require.NoError(t, err)
	var diags diag.List
	defs := Definitions(snap, "http://ignored", &diags)
	assert.Zero(t, diags.Len())
	return snap, defs
}

func TestDefinitions(t *testing.T) {
	_, defs := loadRules(t)
	require.Len(t, defs, 3)

	ads := defs[0]
	assert.Equal(t, "https://ghproxy.example/https://raw.githubusercontent.com/x/ads.yaml", ads.URL)
	assert.Equal(t, FormatYAML, ads.Format)
	assert.Equal(t, "./ruleset/ads.yaml", ads.LocalPath())

	lan := defs[1]
	assert.Equal(t, "https://cfg.example.com/api/rules/local/LAN", lan.URL)
	assert.Equal(t, "https://example.com/lan.yml", lan.OriginalURL)
	assert.Equal(t, FormatYAML, lan.Format, "format follows the library url, not the local endpoint")
	assert.Equal(t, model.BehaviorIPCIDR, lan.Behavior)

	cn := defs[2]
	assert.Equal(t, "https://cfg.example.com/static/cn.list", cn.URL)
	assert.Equal(t, FormatText, cn.Format)
	assert.Equal(t, "list", cn.Extension)
	assert.Equal(t, model.BehaviorDomain, cn.Behavior)
}

func TestDefinitionsMissingLibraryEntry(t *testing.T) {
	snap := &model.Snapshot{RuleConfigs: []model.RuleItem{
		{ItemType: model.ItemRuleset, Enabled: true, Name: "gone", LibraryRuleID: "nope", URL: "https://example.com/gone.list"},
	}}
	var diags diag.List
	defs := Definitions(snap, "", &diags)
	require.Len(t, defs, 1)
	assert.Equal(t, "https://example.com/gone.list", defs[0].URL)
	assert.Equal(t, 1, diags.Count(diag.DanglingReference))
}

func TestRenderMihomo(t *testing.T) {
	snap, defs := loadRules(t)

	t.Run("explicit", func(t *testing.T) {
		got := Render(snap.RuleItems(), defs, Options{Dialect: Mihomo, NoResolve: NoResolveExplicit})
		assert.Equal(t, []string{
			"DOMAIN-SUFFIX,google.com,PROXY",
			"RULE-SET,ads,REJECT",
			"IP-CIDR,10.0.0.0/8,DIRECT",
			"RULE-SET,lan,DIRECT",
			"RULE-SET,cn,PROXY",
			"SRC-IP-CIDR,192.168.1.0/24,DIRECT,no-resolve",
			"AND,((SRC-IP-CIDR,192.168.1.110/32),(DST-PORT,443)),REJECT",
			"MATCH,PROXY",
		}, got)
	})

	t.Run("infer", func(t *testing.T) {
		got := Render(snap.RuleItems(), defs, Options{Dialect: Mihomo, NoResolve: NoResolveInfer})
		assert.Equal(t, "IP-CIDR,10.0.0.0/8,DIRECT,no-resolve", got[2])
		assert.Equal(t, "RULE-SET,lan,DIRECT,no-resolve", got[3])
		assert.Equal(t, "RULE-SET,ads,REJECT", got[1])
	})
}

func TestRenderSurge(t *testing.T) {
	snap, defs := loadRules(t)
	got := Render(snap.RuleItems(), defs, Options{Dialect: Surge})
	assert.Equal(t, []string{
		"DOMAIN-SUFFIX,google.com,PROXY",
		"RULE-SET,https://ghproxy.example/https://raw.githubusercontent.com/x/ads.yaml,REJECT,rule-set-format=yaml",
		"IP-CIDR,10.0.0.0/8,DIRECT",
		"RULE-SET,https://cfg.example.com/api/rules/local/LAN,DIRECT,rule-set-format=yaml",
		"RULE-SET,https://cfg.example.com/static/cn.list,Proxy",
		"SRC-IP,192.168.1.0/24,DIRECT,no-resolve",
		"AND,((SRC-IP,192.168.1.110/32), (DEST-PORT,443)),REJECT",
		"FINAL,PROXY",
	}, got)
}

func TestRulesetNoResolveScenario(t *testing.T) {
	items := []model.RuleItem{{ItemType: model.ItemRuleset, Enabled: true, Name: "ads", Policy: "REJECT", NoResolve: true}}
	defs := []Definition{{Name: "ads", Behavior: model.BehaviorIPCIDR}}

	for _, mode := range []NoResolveMode{NoResolveExplicit, NoResolveInfer} {
		t.Run(string(mode), func(t *testing.T) {
			got := Render(items, defs, Options{Dialect: Mihomo, NoResolve: mode})
			assert.Equal(t, []string{"RULE-SET,ads,REJECT,no-resolve"}, got)
		})
	}
}

func TestRenderPreservesOrderAndDropsOnlyDisabled(t *testing.T) {
	var items []model.RuleItem
	for i, v := range []string{"a.com", "b.com", "c.com", "d.com"} {
		items = append(items, model.RuleItem{ItemType: model.ItemRule, Enabled: i != 2, RuleType: "domain", Value: v, Policy: "P"})
	}
	got := Render(items, nil, Options{Dialect: Mihomo})
	assert.Equal(t, []string{"DOMAIN,a.com,P", "DOMAIN,b.com,P", "DOMAIN,d.com,P"}, got)
}

func TestParseModes(t *testing.T) {
	mode, err := ParseNoResolveMode("")
	require.NoError(t, err)
	assert.Equal(t, NoResolveExplicit, mode)
	mode, err = ParseNoResolveMode("INFER")
	require.NoError(t, err)
	assert.Equal(t, NoResolveInfer, mode)
	_, err = ParseNoResolveMode("guess")
	assert.Error(t, err)

	d, err := ParseDialect("Clash")
	require.NoError(t, err)
	assert.Equal(t, Mihomo, d)
	_, err = ParseDialect("quantumult")
	assert.Error(t, err)
}

func TestGithubProxy(t *testing.T) {
	assert.Equal(t, "https://p.example/https://github.com/a", GithubProxy("https://github.com/a", "https://p.example"))
	assert.Equal(t, "https://example.com/a", GithubProxy("https://example.com/a", "p.example"))
	assert.Equal(t, "https://github.com/a", GithubProxy("https://github.com/a", ""))
}

func TestDirResolver(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "LAN.yaml"), []byte("payload: []\n"), 0o644))

	r := DirResolver{Dir: dir}
	path, err := r.ResolveLocal("LAN")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "LAN.yaml"), path)

	_, err = r.ResolveLocal("missing")
	assert.ErrorIs(t, err, ErrRuleNotFound)
	_, err = r.ResolveLocal("../etc/passwd")
	assert.ErrorIs(t, err, ErrRuleNotFound)
}
