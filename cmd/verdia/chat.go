package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verdia-ai/verdia/pkg/config"
	"github.com/verdia-ai/verdia/pkg/gateway"
	"github.com/verdia-ai/verdia/pkg/ratelimit"
)

func newChatCmd() *cobra.Command {
	var (
		configPath  string
		scope       string
		contextText string
	)

	cmd := &cobra.Command{
		Use:   "chat [question...]",
		Short: "Ask the plant-care assistant a question",
		Args:  cobra.MinimumNArgs(1),
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

			question := strings.Join(args, " ")
			var req gateway.Request
			if contextText != "" {
				req = gateway.NewContextualChatRequest(scope, question, contextText)
			} else {
				req = gateway.NewChatRequest(scope, question)
			}

			res, err := gw.Execute(context.Background(), req)
			if err != nil {
				var qe *ratelimit.QuotaError
				if errors.As(err, &qe) {
					return fmt.Errorf("quota exceeded (%s tier), try again later", qe.Tier)
				}
				return err
			}

			fmt.Println(res.Raw)
			if res.Meta.CacheHit {
				fmt.Println("\n(served from cache)")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "verdia.yaml", "path to config file")
	cmd.Flags().StringVar(&scope, "scope", "", "caller scope for per-scope quota, e.g. user:42")
	cmd.Flags().StringVar(&contextText, "context", "", "plant-specific context; disables caching for this question")
	return cmd
}
