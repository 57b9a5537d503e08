package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thsrite/configflow/internal/protocol"
	"github.com/thsrite/configflow/internal/provider"
)

func init() {
	var (
		dialect string
		output  string
	)
	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "Render a client document from the snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildComponents(cfg, nil)
			if err != nil {
				return err
			}
			snap, err := deps.snapshots.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			res, err := protocol.NewDefaultManager().Build(protocol.BuildRequest{
				Context:      cmd.Context(),
				Snapshot:     snap,
				BaseURL:      cfg.Render.BaseURL,
				Flag:         dialect,
				NoResolve:    deps.noResolve,
				Materializer: deps.materializer,
				Logger:       logger,
			})
			if err != nil {
				return err
			}
			res.Diagnostics.Log(cmd.Context(), logger.With("dialect", dialect))
			return writeOutput(output, res.Payload)
		},
	}
	renderCmd.Flags().StringVarP(&dialect, "dialect", "d", "mihomo", "target dialect: mihomo, surge or a share-link client flag")
	renderCmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	rootCmd.AddCommand(renderCmd)

	var prefetchBodies bool
	downloadsCmd := &cobra.Command{
		Use:   "downloads",
		Short: "List provider and ruleset downloads",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildComponents(cfg, nil)
			if err != nil {
				return err
			}
			snap, err := deps.snapshots.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			providers := provider.ListProviderDownloads(snap, cfg.Render.BaseURL)
			rulesets := provider.ListRulesetDownloads(snap, cfg.Render.BaseURL)
			if prefetchBodies {
				p := deps.prefetcher.WithBase(snap.EffectiveBase(cfg.Render.BaseURL))
				n := p.Fill(cmd.Context(), providers) + p.Fill(cmd.Context(), rulesets)
				logger.Info("prefetch finished", "fetched", n, "total", len(providers)+len(rulesets))
			}
			printDownloads(os.Stdout, "provider", providers)
			printDownloads(os.Stdout, "ruleset", rulesets)
			return nil
		},
	}
	downloadsCmd.Flags().BoolVar(&prefetchBodies, "prefetch", false, "fetch every body and report its size")
	rootCmd.AddCommand(downloadsCmd)

	aggregateCmd := &cobra.Command{
		Use:   "aggregate [agg-id...]",
		Short: "Regenerate aggregation provider files",
		Long:  "Regenerate the named aggregation provider files, or every aggregation referenced by a group when none is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := buildComponents(cfg, nil)
			if err != nil {
				return err
			}
			return runAggregate(cmd.Context(), deps, args)
		},
	}
	rootCmd.AddCommand(aggregateCmd)
}

func runAggregate(ctx context.Context, deps *components, ids []string) error {
	snap, err := deps.snapshots.Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		written, err := deps.aggregations.WriteAll(ctx, snap)
		fmt.Printf("wrote %d provider file(s) to %s\n", written, deps.aggregations.Dir())
		return err
	}
	for _, id := range ids {
		path, collected, err := deps.aggregations.Write(ctx, snap, id)
		if err != nil {
			return err
		}
		collected.Diagnostics.Log(ctx, logger.With("aggregation", id))
		fmt.Printf("%s\t%d nodes\t%s\n", id, collected.Stats.Total, path)
		if len(collected.Stats.Failed) > 0 {
			fmt.Printf("  failed subscriptions: %s\n", strings.Join(collected.Stats.Failed, ", "))
		}
	}
	return nil
}

func printDownloads(out io.Writer, kind string, items []provider.Download) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	for _, item := range items {
		size := "-"
		if item.Content != "" {
			size = fmt.Sprintf("%dB", len(item.Content))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", kind, item.Name, item.LocalPath, size, item.URL)
	}
	w.Flush()
}

func writeOutput(path string, payload []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(payload)
		return err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
