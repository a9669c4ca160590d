package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/verdia-ai/verdia/pkg/config"
	"github.com/verdia-ai/verdia/pkg/tracker"
)

func newUsageCmd() *cobra.Command {
	var (
		configPath string
		feature    string
		since      time.Duration
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show invocation usage statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			tr, err := tracker.New(cfg.DBPath)
			if err != nil {
				return err
			}
			defer tr.Close()

			ctx := context.Background()

			if since > 0 {
				n, err := tr.CountSince(ctx, time.Now().Add(-since))
				if err != nil {
					return err
				}
				fmt.Printf("Invocations in the last %s: %d\n", since, n)
				return nil
			}

			summaries, err := tr.Summary(ctx, feature)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Println("No usage data found.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FEATURE\tMODEL\tOUTCOME\tCOUNT\tEST. TOKENS")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
					s.Feature, s.Model, s.Outcome, s.Count, s.EstimatedTokens)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "verdia.yaml", "path to config file")
	cmd.Flags().StringVar(&feature, "feature", "", "filter by feature (diagnosis or chat)")
	cmd.Flags().DurationVar(&since, "since", 0, "count invocations in a trailing window, e.g. 24h")
	return cmd
}
