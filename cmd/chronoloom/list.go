package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"chronoloom/internal/app"
	"chronoloom/internal/query"
)

var (
	listJSON      bool
	listSearch    string
	listFrequency string
	listSort      string
	listOrder     string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored reminders",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		q := query.Query{Text: listSearch, Frequency: listFrequency, Location: time.Local}
		if listSort != "" || listOrder != "" {
			field, order, err := query.ParseSort(listSort, listOrder)
			if err != nil {
				fatal("Invalid sort", err)
			}
			q.SortBy, q.Order = field, order
		}

		a, err := app.New(ctx, cfg)
		if err != nil {
			fatal("Error initializing", err)
		}
		defer a.Close()

		reminders := a.Service.List(ctx, q)
		if listJSON {
			if err := json.NewEncoder(os.Stdout).Encode(reminders); err != nil {
				fatal("Error encoding reminders", err)
			}
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tDESCRIPTION\tCATEGORY\tFREQUENCY\tDUE\tCOMPLETED")
		for _, r := range reminders {
			completed := "-"
			if r.CompletedAt != nil {
				completed = query.FormatLongDate(*r.CompletedAt, time.Local)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Description, r.Category, r.Frequency,
				r.Date.In(time.Local).Format("2006-01-02 15:04"), completed)
		}
		_ = w.Flush()
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Output as JSON")
	listCmd.Flags().StringVarP(&listSearch, "query", "q", "", "Search description, long date and category")
	listCmd.Flags().StringVar(&listFrequency, "frequency", "", "Filter by frequency (Daily, Monthly, Quarterly, Yearly, all)")
	listCmd.Flags().StringVar(&listSort, "sort", "", "Sort by createdAt or completedAt")
	listCmd.Flags().StringVar(&listOrder, "order", "", "asc or desc")
	rootCmd.AddCommand(listCmd)
}
