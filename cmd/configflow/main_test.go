package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thsrite/configflow/internal/provider"
)

const cliSnapshot = `
nodes:
  - {id: n1, name: HK 01, type: ss, server: 1.1.1.1, port: 443, params: {cipher: aes-128-gcm, password: p}}
subscription_aggregations:
  - {id: A1, name: Agg One, nodes: [n1]}
proxy_groups:
  - {id: G1, name: Pool, type: select, aggregations: [A1]}
`

func runCLI(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetArgs(nil) })
	return rootCmd.Execute()
}

func TestRenderAndAggregateCommands(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	snap := filepath.Join(dir, "snapshot.yaml")
	require.NoError(t, os.WriteFile(snap, []byte(cliSnapshot), 0o644))
	t.Setenv("CONFIGFLOW_PROVIDERS_DIR", filepath.Join(dir, "providers"))

	out := filepath.Join(dir, "mihomo.yaml")
	require.NoError(t, runCLI(t, "render", "--snapshot", snap, "--base-url", "https://cfg.example.com", "-o", out))
	body, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(body), "https://cfg.example.com/api/aggregations/A1/provider")

	require.NoError(t, runCLI(t, "aggregate", "--snapshot", snap, "A1"))
	provided, err := os.ReadFile(filepath.Join(dir, "providers", "A1.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(provided), "HK 01")

	assert.Error(t, runCLI(t, "aggregate", "--snapshot", snap, "missing"))
	assert.Error(t, runCLI(t, "render", "--snapshot", filepath.Join(dir, "nope.yaml")))
}

func TestPrintDownloads(t *testing.T) {
	var buf bytes.Buffer
	printDownloads(&buf, "ruleset", []provider.Download{
		{Name: "ads", URL: "https://example.com/ads.yaml", LocalPath: "./ruleset/ads.yaml", Content: "abc"},
		{Name: "lan", URL: "https://example.com/lan.list", LocalPath: "./ruleset/lan.list"},
	})
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	assert.Contains(t, string(lines[0]), "3B")
	assert.Contains(t, string(lines[1]), " - ")
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
