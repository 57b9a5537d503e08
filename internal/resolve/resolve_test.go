package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
)

func mustSnapshot(t *testing.T, doc string) *model.Snapshot {
	t.Helper()
	snap, err := model.ParseSnapshot([]byte(doc))
	require.NoError(t, err)
	return snap
}

func directIDs(res *Result) []string {
	ids := make([]string, 0, len(res.Direct))
	for _, n := range res.Direct {
		ids = append(ids, n.ID)
	}
	return ids
}

func groupByName(t *testing.T, res *Result, name string) Group {
	t.Helper()
	for _, g := range res.Groups {
		if g.Name == name {
			return g
		}
	}
	t.Fatalf("group %q not resolved", name)
	return Group{}
}

const scenarioSnapshot = `
nodes:
  - {id: n1, name: HK 01, type: ss, server: 1.1.1.1, port: 443, params: {cipher: aes-128-gcm, password: p}}
  - {id: n2, name: JP 01, type: ss, server: 2.2.2.2, port: 443, params: {cipher: aes-128-gcm, password: p}}
  - {id: n3, name: US 01, type: ss, server: 3.3.3.3, port: 443, params: {cipher: aes-128-gcm, password: p}, enabled: false}
subscriptions:
  - {id: s1, name: Sub One, url: https://example.com/s1}
  - {id: s2, name: Sub Two, url: https://example.com/s2}
  - {id: s3, name: Sub Off, url: https://example.com/s3, enabled: false}
subscription_aggregations:
  - {id: A1, name: Agg One, nodes: [n2], subscriptions: [s1]}
proxy_groups:
  - {id: G1, name: Proxy, type: url-test, manual_nodes: [n1, DIRECT], url: "http://t.example/204", interval: 120}
  - {id: G2, name: Asia, type: select, aggregations: [A1], subscriptions: [s1, s2, s3]}
  - {id: G3, name: Mirror, type: select, follow_group: G1}
`

func TestResolveScenarios(t *testing.T) {
	var diags diag.List
	res := Resolve(mustSnapshot(t, scenarioSnapshot), &diags)

	t.Run("manual node is direct", func(t *testing.T) {
		assert.Equal(t, []string{"n1"}, directIDs(res))
		assert.Equal(t, []string{"HK 01", "DIRECT"}, res.Members(groupByName(t, res, "Proxy"), false))
	})

	t.Run("aggregation only node stays out of direct", func(t *testing.T) {
		assert.True(t, res.OnlyInAggregations.Has("n2"))
		assert.False(t, res.UsedNodes.Has("n2"))
		assert.Equal(t, []string{"A1"}, res.UsedAggregations.IDs())
	})

	t.Run("follower takes the followed selection", func(t *testing.T) {
		g := groupByName(t, res, "Mirror")
		assert.Equal(t, "G3", g.ID)
		assert.Equal(t, "G1", g.FollowedID)
		assert.Equal(t, model.GroupURLTest, g.Type)
		assert.Equal(t, "http://t.example/204", g.URL)
		assert.Equal(t, 120, int(g.Interval))
		assert.Equal(t, res.Members(groupByName(t, res, "Proxy"), false), res.Members(g, false))
		require.NotNil(t, g.Declared)
		assert.Equal(t, "G1", g.Declared.FollowGroup)
	})

	t.Run("subscriptions inside the group's aggregations are skipped", func(t *testing.T) {
		g := groupByName(t, res, "Asia")
		subs := res.GroupSubscriptions(g)
		require.Len(t, subs, 1)
		assert.Equal(t, "s2", subs[0].ID)
		assert.Len(t, res.EnabledSubscriptions(g), 2)
		assert.Equal(t, []string{"s2"}, res.UsedSubscriptions.IDs())
	})

	assert.Equal(t, 1, diags.Count(diag.DanglingReference), "disabled s3 is reported")
}

func TestResolveDirectNodesInvariant(t *testing.T) {
	doc := `
nodes:
  - {id: n1, name: A, type: ss, server: h, port: 1, params: {cipher: c, password: p}}
  - {id: n2, name: B, type: ss, server: h, port: 2, params: {cipher: c, password: p}}
  - {id: n3, name: C, type: ss, server: h, port: 3, params: {cipher: c, password: p}}
  - {id: n4, name: D, type: ss, server: h, port: 4, params: {cipher: c, password: p}, enabled: false}
subscription_aggregations:
  - {id: A1, name: Agg, nodes: [n1, n2]}
proxy_groups:
  - id: G1
    name: Mixed
    type: select
    aggregations: [A1]
    proxies_order:
      - {type: node, id: n3}
      - {type: node, id: n2}
      - {type: node, id: n4}
      - {type: node, id: missing}
`
	var diags diag.List
	res := Resolve(mustSnapshot(t, doc), &diags)

	// n2 is selected directly and sits in A1: directly selected wins.
	assert.Equal(t, []string{"n2", "n3"}, directIDs(res))
	assert.Equal(t, []string{"n1"}, res.OnlyInAggregations.IDs())
	for _, n := range res.Direct {
		assert.True(t, n.Enabled)
		assert.True(t, res.UsedNodes.Has(n.ID))
		assert.False(t, res.OnlyInAggregations.Has(n.ID))
	}
	assert.Equal(t, []string{"C", "B"}, res.Members(res.Groups[0], false))
	assert.Equal(t, 1, diags.Count(diag.DanglingReference))
}

func TestResolveFollowEdgeCases(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "missing target",
			doc: `
proxy_groups:
  - {id: G1, name: Lonely, type: select, follow_group: nope}
`,
		},
		{
			name: "disabled target",
			doc: `
proxy_groups:
  - {id: G0, name: Off, type: select, enabled: false, manual_nodes: [DIRECT]}
  - {id: G1, name: Lonely, type: select, follow_group: G0}
`,
		},
		{
			name: "cycle",
			doc: `
proxy_groups:
  - {id: G1, name: Lonely, type: select, follow_group: G2}
  - {id: G2, name: Other, type: select, follow_group: G1}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var diags diag.List
			res := Resolve(mustSnapshot(t, tt.doc), &diags)
			for _, g := range res.Groups {
				assert.NotEqual(t, "Lonely", g.Name)
			}
			assert.False(t, res.IsEffective("G1"))
			assert.Positive(t, diags.Count(diag.DanglingReference))
		})
	}
}

func TestResolveTransitiveFollow(t *testing.T) {
	doc := `
proxy_groups:
  - {id: G1, name: Base, type: fallback, manual_nodes: [REJECT]}
  - {id: G2, name: Mid, type: select, follow_group: G1}
  - {id: G3, name: Tail, type: select, follow_group: G2}
`
	res := Resolve(mustSnapshot(t, doc), nil)
	require.Len(t, res.Groups, 3)
	tail := groupByName(t, res, "Tail")
	assert.Equal(t, "G1", tail.FollowedID)
	assert.Equal(t, model.GroupFallback, tail.Type)
	assert.Equal(t, []string{"REJECT"}, res.Members(tail, false))
}

func TestMembersOrdering(t *testing.T) {
	doc := `
nodes:
  - {id: n1, name: A, type: ss, server: h, port: 1, params: {cipher: c, password: p}}
  - {id: n2, name: B, type: ss, server: h, port: 2, params: {cipher: c, password: p}}
proxy_groups:
  - {id: G1, name: Auto, type: url-test, manual_nodes: [n1]}
  - {id: G2, name: Off, type: select, enabled: false, manual_nodes: [n1]}
  - {id: G3, name: NodesFirst, type: select, manual_nodes: [n1, n2], include_groups: [G1, G2]}
  - {id: G4, name: GroupsFirst, type: select, manual_nodes: [n1], include_groups: [G1], proxy_order: strategies_first}
  - id: G5
    name: Ordered
    type: select
    manual_nodes: [n1, n2]
    proxies_order:
      - {type: strategy, id: G1}
      - {type: node, id: n2}
      - {type: aggregation, id: A9}
`
	res := Resolve(mustSnapshot(t, doc), nil)

	assert.Equal(t, []string{"A", "B", "Auto"}, res.Members(groupByName(t, res, "NodesFirst"), false))
	assert.Equal(t, []string{"Auto", "A"}, res.Members(groupByName(t, res, "GroupsFirst"), false))

	ordered := groupByName(t, res, "Ordered")
	assert.Equal(t, []string{"Auto", "B"}, res.Members(ordered, false))
	assert.Equal(t, []string{"Auto", "B", "A"}, res.Members(ordered, true))
	assert.Empty(t, res.GroupAggregations(ordered))
}

func TestExcludeDropsMember(t *testing.T) {
	doc := `
nodes:
  - {id: n1, name: A, type: ss, server: h, port: 1, params: {cipher: c, password: p}}
  - {id: n2, name: B, type: wireguard, server: h, port: 2, params: {private-key: k}}
proxy_groups:
  - {id: G1, name: Proxy, type: select, manual_nodes: [n1, n2]}
`
	res := Resolve(mustSnapshot(t, doc), nil)
	require.Len(t, res.Direct, 2)
	res.Exclude("n2")
	assert.Equal(t, []string{"A"}, res.Members(res.Groups[0], false))
}

func TestLegacyGroupSource(t *testing.T) {
	doc := `
nodes:
  - {id: n1, name: A, type: ss, server: h, port: 1, params: {cipher: c, password: p}}
proxy_groups:
  - {id: G1, name: Legacy, type: select, source: node, proxies: [n1, DIRECT]}
  - {id: G2, name: Outer, type: select, source: strategy, proxies: [G1]}
`
	res := Resolve(mustSnapshot(t, doc), nil)
	assert.Equal(t, []string{"n1"}, directIDs(res))
	assert.Equal(t, []string{"A", "DIRECT"}, res.Members(groupByName(t, res, "Legacy"), false))
	assert.Equal(t, []string{"Legacy"}, res.Members(groupByName(t, res, "Outer"), false))
}
