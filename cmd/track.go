package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/mertkara/sharcprep/pkg/database"
	"github.com/mertkara/sharcprep/pkg/orchestrator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	trackSplit string
	trackAll   bool
)

var trackCmd = &cobra.Command{
	Use:   "track [experiment]",
	Short: "Query the preparation run database",
	Long:  `Query recorded preparation runs for a specific experiment or all experiments`,
	Run:   runTrack,
}

func init() {
	trackCmd.Flags().StringVar(&trackSplit, "split", "", "filter by split (train, dev)")
	trackCmd.Flags().BoolVar(&trackAll, "all", false, "query all experiments")
	rootCmd.AddCommand(trackCmd)
}

func runTrack(cmd *cobra.Command, args []string) {
	if !trackAll && len(args) == 0 {
		color.Red("Error: either provide an experiment name or use --all flag")
		cmd.Help()
		os.Exit(1)
	}

	if trackAll && len(args) > 0 {
		color.Red("Error: cannot use both experiment name and --all flag together")
		cmd.Help()
		os.Exit(1)
	}

	orch, err := orchestrator.NewOrchestrator(settingsFile)
	if err != nil {
		color.Red("Failed to initialize orchestrator: %v", err)
		os.Exit(1)
	}

	db := orch.GetDB()
	if db == nil || !db.IsEnabled() {
		color.Red("Error: Database is not enabled. Please enable it in sharcprep.yaml")
		os.Exit(1)
	}

	var runs []database.RunRecord
	if trackAll {
		runs, err = db.QueryAllRuns()
	} else {
		runs, err = db.QueryRuns(args[0])
	}
	if err != nil {
		color.Red("Failed to query database: %v", err)
		os.Exit(1)
	}

	if trackSplit != "" {
		filtered := runs[:0]
		for _, r := range runs {
			if r.Split == trackSplit {
				filtered = append(filtered, r)
			}
		}
		runs = filtered
	}

	if len(runs) == 0 {
		color.Yellow("No runs found")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "EXPERIMENT\tHASH\tSPLIT\tINSTANCES\tBATCHES\tYES\tNO\tIRR\tMORE\tFINISHED")
	for _, r := range runs {
		hash := r.ConfigHash
		if len(hash) > 12 {
			hash = hash[:12]
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			r.Experiment, hash, r.Split, r.Instances, r.Batches,
			r.YesCount, r.NoCount, r.IrrelevantCount, r.MoreCount,
			r.FinishedAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()

	fmt.Println()
	color.Green("Total runs: %d", len(runs))
}
