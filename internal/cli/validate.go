package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/shepherd/internal/config"
	"github.com/ppiankov/shepherd/internal/reporter"
)

func newValidateCmd() *cobra.Command {
	var checkDirs bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the config file and print the launch plan",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if checkDirs {
				if err := config.ValidateDirs(cfg); err != nil {
					return err
				}
			}

			textRep := reporter.NewTextReporter(os.Stdout, isTerminal())
			textRep.PrintPlan(cfg.Services)
			fmt.Printf("OK: %d services, grace %s, log dir %s\n", len(cfg.Services), cfg.GracePeriod, cfg.LogDir)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkDirs, "check-dirs", false, "also verify that declared working directories exist")

	return cmd
}
