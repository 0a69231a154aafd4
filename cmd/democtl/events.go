package main

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) eventsCmd() *cobra.Command {
	group := &cobra.Command{
		Use:   "events",
		Short: "Orchestration event log",
		Long:  "Read, summarize, or clear recorded fallback events",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List events, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, done, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			events, _ := store.List(cmd.Context())
			if limit > 0 && len(events) > limit {
				events = events[:limit]
			}
			if c.output == "json" {
				return c.json(events)
			}
			if len(events) == 0 {
				warnColor.Fprintln(c.out, "No events recorded")
				return nil
			}
			rows := make([][]string, 0, len(events))
			for _, e := range events {
				rows = append(rows, []string{
					time.UnixMilli(e.Timestamp).UTC().Format("2006-01-02 15:04:05"),
					e.Slug,
					e.Reason.String(),
					e.Mode.String(),
					e.SessionID,
				})
			}
			return c.table([]string{"TIME", "SLUG", "REASON", "MODE", "SESSION"}, rows)
		},
	}
	listCmd.Flags().IntVar(&limit, "limit", 0, "show at most this many events")

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Show fallback statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, done, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			sum, err := store.Summary(cmd.Context())
			if err != nil {
				return err
			}
			if c.output == "json" {
				return c.json(sum)
			}

			fmt.Fprintf(c.out, "Events: %d across %d sessions\n", sum.Total, sum.Sessions)
			fmt.Fprintf(c.out, "Default rate: %.1f%%\n", sum.DefaultRate*100)
			if sum.LoadTime != nil {
				fmt.Fprintf(c.out, "Load time: mean %.0fms, p50 %.0fms, p90 %.0fms (%d samples)\n",
					sum.LoadTime.MeanMs, sum.LoadTime.P50Ms, sum.LoadTime.P90Ms, sum.LoadTime.Samples)
			}
			if len(sum.ByReason) == 0 {
				return nil
			}
			rows := make([][]string, 0, len(sum.ByReason))
			for reason, n := range sum.ByReason {
				rows = append(rows, []string{reason.String(), strconv.Itoa(n)})
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
			fmt.Fprintln(c.out)
			return c.table([]string{"REASON", "COUNT"}, rows)
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every recorded event",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, done, err := c.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer done()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			successColor.Fprintln(c.out, "✓ Events cleared")
			return nil
		},
	}

	group.AddCommand(listCmd, summaryCmd, clearCmd)
	return group
}
