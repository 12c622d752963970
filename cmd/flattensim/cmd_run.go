package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/flatten-sim/internal/logging"
	"github.com/talgya/flatten-sim/internal/persistence"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Play one session and print the outcome of each track",
		Example: `  flattensim run --region 94110 --weeks 4 --decisions "2,5,2,1;1,3,1,0"
  flattensim run --config game.yaml --seed 42 --save=false`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("region") {
				cfg.Region, _ = flags.GetString("region")
			}
			if flags.Changed("team") {
				cfg.Team, _ = flags.GetString("team")
			}
			if flags.Changed("weeks") {
				cfg.Weeks, _ = flags.GetInt("weeks")
			}
			if flags.Changed("seed") {
				cfg.Seed, _ = flags.GetInt64("seed")
			}
			if flags.Changed("parallel") {
				cfg.Parallel, _ = flags.GetBool("parallel")
			}
			if raw, _ := flags.GetString("decisions"); raw != "" {
				weeks, err := parseDecisions(raw)
				if err != nil {
					return fmt.Errorf("invalid --decisions: %w", err)
				}
				track, err := cfg.PlayerTrack()
				if err != nil {
					return err
				}
				if err := cfg.SetDecisions(track, weeks); err != nil {
					return err
				}
			}
			locale, _ := flags.GetString("locale")
			save, _ := flags.GetBool("save")
			jsonOut, _ := flags.GetBool("json")

			tables, err := cfg.LoadTables()
			if err != nil {
				return fmt.Errorf("load reference data: %w", err)
			}
			days := logging.NewDayLogger(cfg.Logging.TraceDir, cfg.Logging.Level)
			defer days.Close()

			run, err := runSession(cmd.Context(), cfg, tables, days)
			if err != nil {
				return err
			}
			run.Locale = locale

			if save {
				db, err := openStore(cfg.Store.Path)
				if err != nil {
					return err
				}
				defer db.Close()
				if err := db.SaveRun(run); err != nil {
					return fmt.Errorf("save run: %w", err)
				}
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(run)
			}
			printRun(cmd.OutOrStdout(), run)
			return nil
		},
	}

	cmd.Flags().String("region", "", "Zip code to simulate")
	cmd.Flags().String("team", "", "Team name stored with the run")
	cmd.Flags().String("locale", "", "Player locale stored with the run")
	cmd.Flags().Int("weeks", 0, "Number of weeks to play")
	cmd.Flags().Int64("seed", 0, "Random seed (0 draws a fresh one)")
	cmd.Flags().String("decisions", "", `Weekly decisions "essentials,work,leisure,gathering" separated by ';'`)
	cmd.Flags().Bool("parallel", false, "Step tracks concurrently")
	cmd.Flags().Bool("save", true, "Store the run in the database")
	return cmd
}

// openStore opens the run database, creating its directory.
func openStore(path string) (*persistence.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	db, err := persistence.Open(path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func printRun(w io.Writer, run *persistence.Run) {
	r := run.Result
	fmt.Fprintf(w, "Region %s: %s people, %s beds, %s available to the epidemic (seed %d)\n",
		r.Region, humanize.Comma(int64(r.Population)), humanize.Comma(int64(r.TotalBeds)),
		humanize.Comma(int64(r.Capacity)), r.Seed)
	if run.ID != "" {
		fmt.Fprintf(w, "Run %s\n", run.ID)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRACK\tDEATHS\tRECOVERED\tEVER INFECTED\tPEAK HOSPITALIZED\tPEAK DAY\tTURNED AWAY")
	for _, t := range r.Tracks {
		s := t.Summary()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			s.Name,
			humanize.Comma(int64(s.Deaths)),
			humanize.Comma(int64(s.Recovered)),
			humanize.Comma(int64(s.EverInfected)),
			humanize.Comma(int64(s.PeakHospitalized)),
			s.PeakDay,
			humanize.Comma(int64(s.NotAdmitted)),
		)
	}
	tw.Flush()
}
