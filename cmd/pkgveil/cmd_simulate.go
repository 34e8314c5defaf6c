package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/pkgveil/pkg/decision"
	"github.com/jingkaihe/pkgveil/pkg/hook"
	"github.com/jingkaihe/pkgveil/pkg/policy"
	"github.com/jingkaihe/pkgveil/pkg/stats"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <scenario.yaml>",
	Short: "Load the visibility hook into a simulated package service",
	Long: `Build an in-memory package service from a scenario file, load the
visibility hook into it and print the verdict of every scenario query.

With --watch the policy file is watched and the queries are re-run after
every applied revision until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().String("policy", "", "Policy file (overrides the scenario policy block)")
	simulateCmd.Flags().Bool("watch", false, "Watch the policy file and re-run queries on change")
	simulateCmd.Flags().Bool("force-fallback", false, "Skip delegate substitution")
	simulateCmd.Flags().String("stats-db", "", "Record filter events to this sqlite database")
	simulateCmd.Flags().Bool("json", false, "Print results as JSON")

	viper.BindPFlag("policy.path", simulateCmd.Flags().Lookup("policy"))
	viper.BindPFlag("policy.watch", simulateCmd.Flags().Lookup("watch"))
	viper.BindPFlag("hook.force_fallback", simulateCmd.Flags().Lookup("force-fallback"))

	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	// stats.db_path is bound to the stats command's --db flag.
	if cmd.Flags().Changed("stats-db") {
		cfg.Stats.DBPath, _ = cmd.Flags().GetString("stats-db")
	}

	scenario, err := LoadScenario(args[0])
	if err != nil {
		return err
	}
	svc, err := scenario.Build()
	if err != nil {
		return err
	}

	policyCfg := scenario.Policy
	if cfg.Policy.Path != "" {
		policyCfg, err = policy.LoadConfig(cfg.Policy.Path)
		if err != nil {
			return err
		}
	}
	if policyCfg == nil {
		return ErrNoPolicy
	}
	authority, err := policy.NewEngine(policyCfg, policy.WithSystemPackages(svc.IsSystemPackage))
	if err != nil {
		return err
	}

	engine := decision.NewEngine(svc, authority,
		decision.WithBinder(svc),
		decision.WithLogger(logger),
	)
	installer := hook.NewInstaller(svc, engine,
		hook.WithLogger(logger),
		hook.WithForceFallback(cfg.Hook.ForceFallback),
	)

	if cfg.Stats.DBPath != "" {
		store, err := stats.Open(cfg.Stats.DBPath)
		if err != nil {
			return err
		}
		defer store.Close()
		recorder := stats.NewRecorder(store, cfg.Stats.QueueSize, logger)
		defer recorder.Close()
		installer.SetEventFunc(recorder.Record)
	}

	installer.Load()
	defer installer.Unload()

	report := func() {
		printSimulation(os.Stdout, installer, scenario.Run(svc), authority.FilterCount(), asJSON)
	}
	report()

	if !cfg.Policy.Watch {
		return nil
	}

	reloader, err := policy.NewReloader(authority, cfg.Policy.Path, cfg.Policy.ReloadDebounce, logger)
	if err != nil {
		return err
	}
	reloader.OnReload(report)

	ctx, cancel := contextWithSignal(context.Background())
	defer cancel()
	logger.Info("watching policy", "path", cfg.Policy.Path)
	return reloader.Run(ctx)
}

type simulationOutput struct {
	Session  string        `json:"session"`
	Strategy string        `json:"strategy"`
	State    string        `json:"state"`
	Filtered int64         `json:"filtered"`
	Results  []QueryResult `json:"results"`
}

func printSimulation(w io.Writer, installer *hook.Installer, results []QueryResult, filtered int64, asJSON bool) {
	out := simulationOutput{
		Session:  installer.Session(),
		Strategy: installer.Strategy(),
		State:    string(installer.State()),
		Filtered: filtered,
		Results:  results,
	}
	if asJSON {
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(w, string(data))
		return
	}

	fmt.Fprintf(w, "hook: %s (strategy=%s session=%s)\n", out.State, orDash(out.Strategy), orDash(out.Session))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CALLER\tUID\tTARGET\tUSER\tVERDICT")
	for _, r := range results {
		verdict := "visible"
		if r.Hidden {
			verdict = "hidden"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%s\n", orDash(r.Caller), r.UID, r.Target, r.User, verdict)
	}
	tw.Flush()
	fmt.Fprintf(w, "filtered: %d\n", out.Filtered)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
