package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/subscription"
)

const providerSnapshot = `
nodes:
  - {id: n1, name: HK 01, type: ss, server: 1.1.1.1, port: 443, params: {cipher: aes-128-gcm, password: p}}
  - {id: n2, name: JP 01, type: ss, server: 2.2.2.2, port: 443, params: {cipher: aes-128-gcm, password: p}}
  - {id: n3, name: SG 01, type: ss, server: 3.3.3.3, port: 443, params: {cipher: aes-128-gcm, password: p}}
  - {id: n4, name: US dup, type: ss, server: 4.4.4.4, port: 443, params: {cipher: aes-128-gcm, password: p}}
  - {id: n5, name: JP off, type: ss, server: 5.5.5.5, port: 443, params: {cipher: aes-128-gcm, password: p}, enabled: false}
subscriptions:
  - {id: s1, name: Sub One, url: https://example.com/s1}
  - {id: s2, name: Sub Two, url: https://example.com/s2}
  - {id: s3, name: Unused, url: https://example.com/s3}
subscription_aggregations:
  - {id: A1, name: Agg One, nodes: [n1, n2, n4, n5, DIRECT], subscriptions: [s1]}
  - {id: A2, name: Filtered, nodes: [n2, n3], regex_filter: "^JP"}
  - {id: A3, name: Off, nodes: [n2], enabled: false}
proxy_groups:
  - {id: G1, name: Main, type: select, manual_nodes: [n1]}
  - {id: G2, name: Pool, type: select, aggregations: [A1, A2], subscriptions: [s2]}
rule_configs:
  - {itemType: ruleset, name: ads, url: "https://example.com/ads.yaml", policy: REJECT}
system_config:
  config_token: tok
`

func mustSnapshot(t *testing.T, doc string) *model.Snapshot {
	t.Helper()
	snap, err := model.ParseSnapshot([]byte(doc))
	require.NoError(t, err)
	return snap
}

func stubSource(nodes map[string][]model.Node) subscription.Source {
	return subscription.SourceFunc(func(_ context.Context, sub model.Subscription) ([]model.Node, error) {
		if n, ok := nodes[sub.ID]; ok {
			return n, nil
		}
		return nil, errors.New("unreachable")
	})
}

func TestListDownloads(t *testing.T) {
	snap := mustSnapshot(t, providerSnapshot)

	providers := ListProviderDownloads(snap, "http://127.0.0.1:5000/")
	assert.Equal(t, []Download{
		{Name: "Sub Two", URL: "http://127.0.0.1:5000/api/subscriptions/s2/proxies?token=tok", LocalPath: "./providers/Sub Two.yaml"},
		{Name: "Agg One", URL: "http://127.0.0.1:5000/api/aggregations/A1/provider?token=tok", LocalPath: "./providers/Agg One.yaml"},
		{Name: "Filtered", URL: "http://127.0.0.1:5000/api/aggregations/A2/provider?token=tok", LocalPath: "./providers/Filtered.yaml"},
	}, providers)

	rulesets := ListRulesetDownloads(snap, "http://127.0.0.1:5000")
	assert.Equal(t, []Download{
		{Name: "ads", URL: "https://example.com/ads.yaml", LocalPath: "./ruleset/ads.yaml"},
	}, rulesets)
}

func TestCollectAggregation(t *testing.T) {
	snap := mustSnapshot(t, providerSnapshot)
	src := stubSource(map[string][]model.Node{
		"s1": {
			{ID: "x1", Name: "US dup", Server: "9.9.9.9", Port: 1, Enabled: true, SubscriptionID: "s1", Params: &model.Trojan{Password: "t"}},
			{ID: "x2", Name: "HK 01", Server: "8.8.8.8", Port: 1, Enabled: true, SubscriptionID: "s1", Params: &model.Trojan{Password: "t"}},
		},
	})
	b := NewAggregationBuilder(AggregationOptions{Source: src, Dir: t.TempDir()})

	got, err := b.Collect(context.Background(), snap, "A1")
	require.NoError(t, err)
	var names []string
	for _, n := range got.Nodes {
		names = append(names, n.Name)
	}
	// n1 is directly selected by Main, the subscription's HK 01 shares its name,
	// n4 loses to the subscription node of the same name, n5 is disabled.
	assert.Equal(t, []string{"US dup", "JP 01"}, names)
	assert.Equal(t, model.KindTrojan, got.Nodes[0].Kind())
	assert.Equal(t, 2, got.Stats.SubscriptionCounts["s1"])
	assert.Equal(t, 2, got.Stats.Total)

	filtered, err := b.Collect(context.Background(), snap, "A2")
	require.NoError(t, err)
	require.Len(t, filtered.Nodes, 1)
	assert.Equal(t, "JP 01", filtered.Nodes[0].Name)

	_, err = b.Collect(context.Background(), snap, "A3")
	assert.ErrorIs(t, err, ErrAggregationNotFound)
	_, err = b.Collect(context.Background(), snap, "nope")
	assert.ErrorIs(t, err, ErrAggregationNotFound)
}

func TestCollectSurvivesFailures(t *testing.T) {
	snap := mustSnapshot(t, providerSnapshot)
	snap.Aggregations[1].RegexFilter = "(["
	b := NewAggregationBuilder(AggregationOptions{Source: stubSource(nil)})

	got, err := b.Collect(context.Background(), snap, "A1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, got.Stats.Failed)
	assert.Len(t, got.Nodes, 2, "manual nodes still served")

	got, err = b.Collect(context.Background(), snap, "A2")
	require.NoError(t, err)
	assert.Len(t, got.Nodes, 2, "invalid filter is ignored")
	assert.Equal(t, 1, got.Diagnostics.Count(diag.InvalidRegex))
}

func TestWriteAggregationProvider(t *testing.T) {
	snap := mustSnapshot(t, providerSnapshot)
	dir := t.TempDir()
	b := NewAggregationBuilder(AggregationOptions{Source: stubSource(map[string][]model.Node{"s1": nil}), Dir: dir})

	path, collected, err := b.Write(context.Background(), snap, "A1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "A1.yaml"), path)
	assert.Equal(t, 2, collected.Stats.Total)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Proxies []map[string]any `yaml:"proxies"`
	}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	require.Len(t, doc.Proxies, 2)
	assert.Equal(t, "JP 01", doc.Proxies[0]["name"])
	assert.Equal(t, "US dup", doc.Proxies[1]["name"])
	assert.NotContains(t, string(data), "DIRECT")

	n, err := b.WriteAll(context.Background(), snap)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.FileExists(t, filepath.Join(dir, "A2.yaml"))
	assert.NoFileExists(t, filepath.Join(dir, "A3.yaml"))
}

func TestSurgeAndSubscriptionProviders(t *testing.T) {
	snap := mustSnapshot(t, providerSnapshot)
	src := stubSource(map[string][]model.Node{
		"s2": {{ID: "y", Name: "Remote", Server: "r.example", Port: 443, Params: &model.Trojan{Password: "t"}}},
	})
	b := NewAggregationBuilder(AggregationOptions{Source: src})

	body, _, err := b.SurgeProvider(context.Background(), snap, "A2")
	require.NoError(t, err)
	assert.Equal(t, "JP 01 = ss, 2.2.2.2, 443, encrypt-method=aes-128-gcm, password=p", body)

	out, diags, err := SubscriptionProxies(context.Background(), src, snap, "s2", "surge")
	require.NoError(t, err)
	assert.Zero(t, diags.Len())
	assert.Equal(t, "Remote = trojan, r.example, 443, password=t", string(out))

	out, _, err = SubscriptionProxies(context.Background(), src, snap, "s2", "")
	require.NoError(t, err)
	assert.Contains(t, string(out), "name: Remote")

	_, _, err = SubscriptionProxies(context.Background(), src, snap, "missing", "")
	assert.ErrorIs(t, err, ErrSubscriptionNotFound)
}
