package cmd

import (
	"fmt"
	"os"

	"github.com/mertkara/sharcprep/pkg/orchestrator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [key.path]",
	Short: "Print resolved experiment values",
	Long: `Print the fully resolved experiment config (defaults applied), or a
single value when a key path is given, e.g.

  sharcprep inspect -c configs/bert_qa.json trainer.optimizer.lr`,
	Run: runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) {
	if configFile == "" {
		color.Red("Error: -c (experiment config) is required")
		cmd.Help()
		os.Exit(1)
	}

	Verbose = verbose
	if verbose {
		setDebugLogFunctions()
	}

	orch, err := orchestrator.NewOrchestrator(settingsFile)
	if err != nil {
		color.Red("Failed to initialize orchestrator: %v", err)
		os.Exit(1)
	}

	exp, err := orch.LoadExperiment(configFile, overrides)
	if err != nil {
		color.Red("Failed to load experiment: %v", err)
		os.Exit(1)
	}

	if len(args) > 0 {
		value, err := exp.Get(args[0])
		if err != nil {
			color.Red("Error: %v", err)
			os.Exit(1)
		}
		fmt.Printf("%v\n", value)
		return
	}

	serialized, err := exp.Serialize()
	if err != nil {
		color.Red("Failed to serialize experiment: %v", err)
		os.Exit(1)
	}
	fmt.Print(string(serialized))
}
