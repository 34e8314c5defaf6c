package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pkgveil/pkg/stats"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show recorded filter events",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().String("db", "", "Stats sqlite database")
	statsCmd.Flags().Int("recent", 0, "Also list the N most recent events")

	viper.BindPFlag("stats.db_path", statsCmd.Flags().Lookup("db"))

	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	recent, _ := cmd.Flags().GetInt("recent")
	if cfg.Stats.DBPath == "" {
		return ErrNoStatsDB
	}

	store, err := stats.Open(cfg.Stats.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	totals, err := store.Totals(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CALLER\tFILTERED\tLAST")
	for _, t := range totals {
		fmt.Fprintf(w, "%s\t%d\t%s\n", t.Caller, t.Count, t.Last.Local().Format(time.DateTime))
	}
	w.Flush()

	if recent <= 0 {
		return nil
	}

	events, err := store.Recent(ctx, recent)
	if err != nil {
		return err
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "AT\tSESSION\tSTRATEGY\tUID\tCALLER\tTARGET\tUSER")
	for _, ev := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%d\n",
			ev.At.Local().Format(time.DateTime), orDash(ev.Session), orDash(ev.Strategy),
			ev.UID, ev.Caller, ev.Target, ev.UserID)
	}
	return w.Flush()
}
