package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/shepherd/internal/config"
	"github.com/ppiankov/shepherd/internal/history"
	"github.com/ppiankov/shepherd/internal/reporter"
	"github.com/ppiankov/shepherd/internal/service"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store, err := history.Open(history.DefaultPath(cfg.LogDir))
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if runID != "" {
				report, err := store.Get(runID)
				if err != nil {
					return err
				}
				// order by the stored run's own service set, not the
				// current config, which may have changed since
				ids := make([]string, 0, len(report.Results))
				for id := range report.Results {
					ids = append(ids, id)
				}
				sort.Strings(ids)
				specs := make([]service.Spec, len(ids))
				for i, id := range ids {
					specs[i] = service.Spec{ID: id}
				}
				textRep := reporter.NewTextReporter(os.Stdout, isTerminal())
				textRep.PrintStatus(specs, report.Results)
				textRep.PrintSummary(report)
				return nil
			}

			entries, err := store.List(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no recorded runs")
				return nil
			}

			fmt.Printf("%-36s  %-20s  %-9s  %-13s  %s\n", "RUN", "STARTED", "DURATION", "CAUSE", "OUTCOME")
			for _, e := range entries {
				outcome := fmt.Sprintf("%d ok, %d failed, %d stopped", e.Succeeded, e.Failed, e.Terminated)
				if e.Forced > 0 {
					outcome += fmt.Sprintf(", %d killed", e.Forced)
				}
				fmt.Printf("%-36s  %-20s  %-9s  %-13s  %s\n",
					e.RunID,
					e.StartedAt.Local().Format(time.DateTime),
					e.Duration.Truncate(time.Millisecond),
					e.Cause,
					outcome)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show the full stored report for one run ID")

	return cmd
}
