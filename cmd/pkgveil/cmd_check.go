package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/pkgveil/pkg/policy"
)

var checkCmd = &cobra.Command{
	Use:   "check [caller target]",
	Short: "Validate a policy file or evaluate one caller/target pair",
	Long: `Without arguments, validate the policy file and print a summary.

With a caller and a target, print whether the policy hides the target from
the caller. The command exits 1 when the target is hidden.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 0 && len(args) != 2 {
			return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
		}
		return nil
	},
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().String("policy", "", "Policy file")
	checkCmd.Flags().StringSlice("system", nil, "Packages to treat as system packages (can be repeated)")
	checkCmd.MarkFlagRequired("policy")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("policy")
	system, _ := cmd.Flags().GetStringSlice("system")

	policyCfg, err := policy.LoadConfig(path)
	if err != nil {
		return err
	}

	systemSet := make(map[string]bool, len(system))
	for _, name := range system {
		systemSet[name] = true
	}
	engine, err := policy.NewEngine(policyCfg, policy.WithSystemPackages(func(name string) bool {
		return systemSet[name]
	}))
	if err != nil {
		return err
	}

	if len(args) == 0 {
		fmt.Printf("%s: ok (%d templates, %d scoped apps)\n", path, len(policyCfg.Templates), len(policyCfg.Scope))
		return nil
	}

	return checkPair(os.Stdout, engine, args[0], args[1])
}

type scopedAuthority interface {
	InScope(caller string) bool
	ShouldHide(caller, target string) (bool, error)
}

// checkPair prints the verdict for one pair, consulting rules only for
// callers in scope.
func checkPair(w io.Writer, authority scopedAuthority, caller, target string) error {
	if !authority.InScope(caller) {
		fmt.Fprintf(w, "%s -> %s: visible (caller not in scope)\n", caller, target)
		return nil
	}
	hide, err := authority.ShouldHide(caller, target)
	if err != nil {
		return err
	}
	if hide {
		fmt.Fprintf(w, "%s -> %s: hidden\n", caller, target)
		return commandExit(1)
	}
	fmt.Fprintf(w, "%s -> %s: visible\n", caller, target)
	return nil
}
