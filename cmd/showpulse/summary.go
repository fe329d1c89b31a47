package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/WessleyAI/showpulse/engine/combine"
	"github.com/WessleyAI/showpulse/engine/summary"
)

func (a *app) combineCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "combine",
		Short: "Merge every shard of a date into the final detailed and summary outputs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			day, err := a.cfg.Day(a.now())
			if err != nil {
				return err
			}
			store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			c := &combine.Combiner{Store: store, Log: a.log, Loc: day.Loc()}
			res, err := c.Combine(ctx, day.Code)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "combined %d shards: %d rows, %d duplicates dropped, %d shows, %d movies (%s)\n",
				len(res.Shards), res.Raw, res.Duplicates, len(res.Detailed.Data), len(res.Summary.Movies),
				res.Detailed.LastUpdated)
			renderSummary(a.stdout, res.Summary.Movies, 10)
			return nil
		},
	}
}

func (a *app) summaryCmd() *cobra.Command {
	var (
		top      int
		combined bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the stored movie summary of a shard, or of the combined date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.loadSummary(cmd.Context(), combined)
			if err != nil {
				return err
			}
			renderSummary(a.stdout, s, top)
			return nil
		},
	}
	cmd.Flags().IntVar(&top, "top", 0, "show only the top N movies by gross")
	cmd.Flags().BoolVar(&combined, "combined", false, "read the combined summary instead of the shard's")
	return cmd
}

func (a *app) loadSummary(ctx context.Context, combined bool) (summary.Summary, error) {
	day, err := a.cfg.Day(a.now())
	if err != nil {
		return nil, err
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if combined {
		_, s, err := store.LoadCombined(ctx, day.Code)
		return s.Movies, err
	}
	return store.LoadSummary(ctx, day.Code, a.cfg.Shard)
}

// renderSummary prints one row per movie, highest gross first. top <= 0
// prints every movie.
func renderSummary(w io.Writer, s summary.Summary, top int) {
	if len(s) == 0 {
		fmt.Fprintln(w, "no shows")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Movie", "Cities", "Venues", "Shows", "Sold", "Seats", "Occupancy %", "Fast filling", "Housefull", "Gross"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, Align: text.AlignRight},
		{Number: 10, Align: text.AlignRight},
	})

	var total summary.Counters
	for i, title := range s.Titles() {
		m := s[title]
		total.Shows += m.Shows
		total.Sold += m.Sold
		total.TotalSeats += m.TotalSeats
		total.Gross += m.Gross
		if top > 0 && i >= top {
			continue
		}
		t.AppendRow(table.Row{
			title, m.Cities, m.Venues, m.Shows, m.Sold, m.TotalSeats,
			fmt.Sprintf("%.2f", m.Occupancy), m.FastFilling, m.Housefull, fmt.Sprintf("%.2f", m.Gross),
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d movies", len(s)), "", "", total.Shows, total.Sold, total.TotalSeats,
		fmt.Sprintf("%.2f", summary.Occupancy(total.Sold, total.TotalSeats)), "", "", fmt.Sprintf("%.2f", total.Gross),
	})
	t.Render()
}
