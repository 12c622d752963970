package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/flatten-sim/internal/persistence"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored runs, newest first",
		Long: `List stored runs matching the filters, newest first.

When nothing matches, the most recent runs are shown instead.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			var f persistence.Filter
			f.Region, _ = cmd.Flags().GetString("region")
			f.Team, _ = cmd.Flags().GetString("team")
			f.Locale, _ = cmd.Flags().GetString("locale")
			f.Weeks, _ = cmd.Flags().GetInt("weeks")
			f.Limit, _ = cmd.Flags().GetInt("limit")

			runs, err := db.FindRunsWithDefault(f)
			if err != nil {
				return err
			}

			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				out := make([]map[string]any, 0, len(runs))
				for _, r := range runs {
					tracks := make([]any, 0, len(r.Result.Tracks))
					for _, t := range r.Result.Tracks {
						tracks = append(tracks, t.Summary())
					}
					out = append(out, map[string]any{
						"id":         r.ID,
						"team":       r.Team,
						"region":     r.Region,
						"weeks":      r.Weeks,
						"created_at": r.CreatedAt,
						"tracks":     tracks,
					})
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(out)
			}
			printHistory(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().String("region", "", "Filter by zip code")
	cmd.Flags().String("team", "", "Filter by team name (case-insensitive)")
	cmd.Flags().String("locale", "", "Filter by locale")
	cmd.Flags().Int("weeks", 0, "Filter by number of weeks played")
	cmd.Flags().Int("limit", 20, "Maximum runs to list")
	return cmd
}

func printHistory(w io.Writer, runs []persistence.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs stored yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTEAM\tREGION\tWEEKS\tWHEN\tDEATHS")
	for _, r := range runs {
		deaths := ""
		for i, t := range r.Result.Tracks {
			if i > 0 {
				deaths += " / "
			}
			deaths += t.Name + " " + humanize.Comma(int64(t.Final().Deaths()))
		}
		team := r.Team
		if team == "" {
			team = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, team, r.Region, r.Weeks, humanize.Time(r.CreatedAt), deaths)
	}
	tw.Flush()
}

func newTeamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "teams",
		Short: "List team names, most recently active first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			db, err := openStore(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer db.Close()

			names, err := db.TeamNames()
			if err != nil {
				return err
			}
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				if names == nil {
					names = []persistence.TeamName{}
				}
				return json.NewEncoder(cmd.OutOrStdout()).Encode(names)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TEAM\tRUNS\tLAST RUN")
			for _, n := range names {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", n.Name, n.Runs, humanize.Time(n.LastRun))
			}
			return tw.Flush()
		},
	}
}
