package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"chronoloom/internal/app"
	"chronoloom/internal/service"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Run one reconcile pass and print the result as JSON",
	Long: `Runs one reconcile pass against the configured scheduler. With the
local scheduler the schedule lives only for this process, so the pass is
mostly useful with the kafka scheduler or to preview what would be created.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := app.New(ctx, cfg)
		if err != nil {
			fatal("Error initializing", err)
		}
		defer a.Close()

		res, err := a.Service.Resync(ctx, service.TriggerManual)
		if err != nil {
			fatal("Error reconciling", err)
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			fatal("Error encoding result", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
