package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verdia-ai/verdia/pkg/config"
)

func newQuotaCmd() *cobra.Command {
	var (
		configPath string
		scope      string
	)

	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show remaining quota without spending any",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			gw, cleanup, err := buildGateway(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			rem, err := gw.Remaining(context.Background(), scope)
			if err != nil {
				return err
			}

			fmt.Printf("Per minute:    %s\n", headroom(rem.Minute))
			fmt.Printf("Per day:       %s\n", headroom(rem.DayGlobal))
			if scope != "" {
				fmt.Printf("Per day (%s): %s\n", scope, headroom(rem.DayScope))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "verdia.yaml", "path to config file")
	cmd.Flags().StringVar(&scope, "scope", "", "caller scope to report per-scope headroom for")
	return cmd
}

func headroom(n int) string {
	if n < 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%d remaining", n)
}
