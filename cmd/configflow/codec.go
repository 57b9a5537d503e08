package main

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thsrite/configflow/internal/diag"
	"github.com/thsrite/configflow/internal/model"
	"github.com/thsrite/configflow/internal/protocol"
	"github.com/thsrite/configflow/internal/subscription"
)

func init() {
	decodeCmd := &cobra.Command{
		Use:   "decode <file|->",
		Short: "Decode share links or a subscription body into canonical nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readInput(args[0])
			if err != nil {
				return err
			}
			parsed, err := subscription.Parse(body)
			if err != nil {
				return err
			}
			for _, perr := range parsed.Errors {
				logger.Warn("skipped entry", "error", perr)
			}
			for i := range parsed.Nodes {
				if parsed.Nodes[i].ID == "" {
					parsed.Nodes[i].ID = subscription.NodeID()
				}
				parsed.Nodes[i].Enabled = true
			}
			enc := yaml.NewEncoder(os.Stdout)
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(map[string]any{"nodes": parsed.Nodes})
		},
	}
	rootCmd.AddCommand(decodeCmd)

	var asBase64 bool
	encodeCmd := &cobra.Command{
		Use:   "encode",
		Short: "Print share links for the snapshot's enabled manual nodes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := model.LoadSnapshot(cfg.Snapshot.Path)
			if err != nil {
				return err
			}
			var nodes []model.Node
			for _, n := range snap.Nodes {
				if n.Enabled && !model.IsSentinel(n.ID) {
					nodes = append(nodes, n)
				}
			}
			diags := &diag.List{}
			out := strings.Join(protocol.ShareLinks(nodes, diags), "\n")
			diags.Log(cmd.Context(), logger)
			if asBase64 {
				out = base64.StdEncoding.EncodeToString([]byte(out))
			}
			_, err = fmt.Fprintln(os.Stdout, out)
			return err
		},
	}
	encodeCmd.Flags().BoolVar(&asBase64, "base64", false, "wrap the link list in base64 like a subscription body")
	rootCmd.AddCommand(encodeCmd)
}

func readInput(name string) ([]byte, error) {
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	body, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return body, nil
}
