package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verdia-ai/verdia/pkg/config"
	"github.com/verdia-ai/verdia/pkg/gateway"
	"github.com/verdia-ai/verdia/pkg/ratelimit"
)

func newDiagnoseCmd() *cobra.Command {
	var (
		configPath string
		scope      string
		imagePath  string
	)

	cmd := &cobra.Command{
		Use:   "diagnose [description...]",
		Short: "Run a structured plant-health diagnosis",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			var image []byte
			var imageMIME string
			if imagePath != "" {
				image, err = os.ReadFile(imagePath)
				if err != nil {
					return fmt.Errorf("read image: %w", err)
				}
				imageMIME = http.DetectContentType(image)
			}

			gw, cleanup, err := buildGateway(cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			prompt := strings.Join(args, " ")
			req := gateway.NewDiagnosisRequest(scope, prompt, image, imageMIME)

			res, err := gw.Execute(context.Background(), req)
			if err != nil {
				var qe *ratelimit.QuotaError
				if errors.As(err, &qe) {
					return fmt.Errorf("quota exceeded (%s tier), try again later", qe.Tier)
				}
				return err
			}

			d := res.Diagnosis
			fmt.Printf("State:      %s\n", d.State)
			fmt.Printf("Confidence: %.0f%%\n", d.Confidence)
			fmt.Printf("Summary:    %s\n", d.Summary)
			if d.DetailedDiagnosis != "" {
				fmt.Printf("\n%s\n", d.DetailedDiagnosis)
			}
			if len(d.Issues) > 0 {
				fmt.Println("\nIssues:")
				for _, is := range d.Issues {
					fmt.Printf("  [%s/%s] %s\n", is.Kind, is.Severity, is.Description)
				}
			}
			if len(d.Recommendations) > 0 {
				fmt.Println("\nRecommendations:")
				for _, r := range d.Recommendations {
					fmt.Printf("  [%s/%s] %s\n", r.Kind, r.Priority, r.Description)
				}
			}
			fmt.Printf("\n(request %s, model %s, %dms)\n",
				res.Meta.RequestID, res.Meta.Model, res.Meta.Elapsed.Milliseconds())
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "verdia.yaml", "path to config file")
	cmd.Flags().StringVar(&scope, "scope", "", "caller scope for per-scope quota, e.g. user:42")
	cmd.Flags().StringVar(&imagePath, "image", "", "path to a photo of the plant")
	return cmd
}
