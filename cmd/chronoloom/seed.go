package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"chronoloom/internal/app"
)

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create sample reminders due over the coming hours",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := app.New(ctx, cfg)
		if err != nil {
			fatal("Error initializing", err)
		}
		defer a.Close()

		start := time.Now()
		n, res, err := a.Seed(ctx, app.SampleReminders(start, seedCount))
		if err != nil {
			fatal(fmt.Sprintf("Seeded %d before failing", n), err)
		}
		fmt.Printf("Done: %d reminders, %d notifications scheduled in %v\n", n, len(res.Created), time.Since(start))
	},
}

func init() {
	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 8, "Number of reminders to create")
	rootCmd.AddCommand(seedCmd)
}
