package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "verdia",
		Short:   "Verdia — rate-limited, cached gateway to the plant-care AI provider",
		Version: version,
	}

	root.AddCommand(
		newDiagnoseCmd(),
		newChatCmd(),
		newQuotaCmd(),
		newCacheCmd(),
		newUsageCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
