package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/database"
	"github.com/mertkara/sharcprep/pkg/dataset"
	"github.com/mertkara/sharcprep/pkg/fetch"
	"github.com/mertkara/sharcprep/pkg/orchestrator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	settingsFile string
	configFile   string
	split        string
	outputFile   string
	jsonFormat   bool
	silent       bool
	stats        bool
	verbose      bool
	exportES     bool
	overrides    []string
)

var Verbose bool

var rootCmd = &cobra.Command{
	Use:   "sharcprep",
	Short: "experiment config and dataset preparation for conversational machine reading",
	Long:  `load a QA experiment file, validate it, and prepare ShARC-style data into model-ready batches`,
	Run:   runPrepare,
}

// singleDashAliases covers every long flag the help template advertises
// with a single dash.
var singleDashAliases = map[string]string{
	"-config":   "--config",
	"-split":    "--split",
	"-set":      "--set",
	"-output":   "--output",
	"-json":     "--json",
	"-es":       "--es",
	"-silent":   "--silent",
	"-stats":    "--stats",
	"-settings": "--settings",
	"-verbose":  "--verbose",
}

func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if double, ok := singleDashAliases[arg]; ok {
			arg = double
		}
		out[i] = arg
	}
	return out
}

func Execute() {
	os.Args = normalizeArgs(os.Args)

	hasSilentFlag := false
	for _, arg := range os.Args {
		if arg == "--silent" {
			hasSilentFlag = true
		}
	}

	if !hasSilentFlag {
		printBanner()
	}

	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func DebugLog(format string, args ...interface{}) {
	if Verbose {
		fmt.Printf("[DBG] "+format+"\n", args...)
	}
}

func setDebugLogFunctions() {
	config.DebugLog = DebugLog
	orchestrator.DebugLog = DebugLog
	dataset.DebugLog = DebugLog
	database.DebugLog = DebugLog
	fetch.DebugLog = DebugLog
}

func init() {
	rootCmd.SetHelpTemplate(`Usage:
  {{.UseLine}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasAvailableSubCommands}}Commands:{{range .Commands}}{{if (or .IsAvailableCommand (eq .Name "help"))}}
  {{rpad .Name .NamePadding }} {{.Short}}{{end}}{{end}}

{{end}}Flags:
INPUT:
   -c, -config string      experiment config file (json or yaml)
   -split string           data split to prepare: train or dev (default: train)

OVERRIDES:
   --set key=value         override an experiment key by path
                           (e.g. --set trainer.optimizer.lr=3e-5)

OUTPUT:
   -o, -output string      file to write prepared instances to
   -j, -json               write output in JSONL(ines) format
   -es                     export prepared instances to elasticsearch
   -silent                 silent mode - no banner or extra output
   -stats                  display dataset statistics after preparation

CONFIGURATION:
   -settings string        tool settings file (default: sharcprep.yaml)

OPTIMIZATION:
   -v, -verbose            enable verbose/debug output
{{if .HasAvailableSubCommands}}
Use "{{.CommandPath}} [command] --help" for more information about a command.{{end}}
`)

	rootCmd.PersistentFlags().StringVar(&settingsFile, "settings", "", "tool settings file (default: sharcprep.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose/debug output")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "experiment config file (json or yaml)")
	rootCmd.PersistentFlags().StringArrayVar(&overrides, "set", nil, "override an experiment key by path (key=value)")

	rootCmd.Flags().StringVar(&split, "split", "train", "data split to prepare: train or dev")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "file to write prepared instances to")
	rootCmd.Flags().BoolVarP(&jsonFormat, "json", "j", false, "write output in JSONL(ines) format")
	rootCmd.Flags().BoolVar(&silent, "silent", false, "silent mode - no banner or extra output")
	rootCmd.Flags().BoolVar(&stats, "stats", false, "display dataset statistics after preparation")
	rootCmd.Flags().BoolVar(&exportES, "es", false, "export prepared instances to elasticsearch")

	rootCmd.AddCommand(versionCmd)
}

func runPrepare(cmd *cobra.Command, args []string) {
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

	options := orchestrator.PrepareOptions{
		ConfigPath: configFile,
		Split:      split,
		Overrides:  overrides,
		Stats:      stats,
		ExportES:   exportES,
	}

	result, err := orch.RunPrepare(options)
	if err != nil {
		color.Red("Preparation failed: %v", err)
		os.Exit(1)
	}

	if err := handleOutput(result); err != nil {
		color.Red("Output error: %v", err)
		os.Exit(1)
	}

	if stats && !silent {
		displayStatistics(result)
	}

	if result.Success {
		os.Exit(0)
	}
	os.Exit(1)
}

func printBanner() {
	banner := color.CyanString(`
┌─┐┬ ┬┌─┐┬─┐┌─┐┌─┐┬─┐┌─┐┌─┐
└─┐├─┤├─┤├┬┘│  ├─┘├┬┘├┤ ├─┘
└─┘┴ ┴┴ ┴┴└─└─┘┴  ┴└─└─┘┴
`)
	info := color.HiBlackString("experiment config + dataset preparation for conversational machine reading")
	fmt.Println(banner)
	fmt.Println(info)
	fmt.Println()
}

func handleOutput(result *orchestrator.PrepareResult) error {
	if outputFile == "" {
		if !silent {
			color.Green("\nPrepared %d instances (%d batches) from %s in %v",
				len(result.Instances), len(result.Batches), result.DataPath, result.Duration)
		}
		return nil
	}

	if jsonFormat {
		return writeJSONLFile(result, outputFile)
	}
	return writeTXTFile(result, outputFile)
}

func writeTXTFile(result *orchestrator.PrepareResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	for _, inst := range result.Instances {
		if _, err := fmt.Fprintf(file, "%s\t%s\t%d\t%d\n",
			inst.UtteranceID, inst.Action, inst.SpanStart, inst.SpanEnd); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
	}

	return nil
}

func writeJSONLFile(result *orchestrator.PrepareResult, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	for _, inst := range result.Instances {
		line, err := inst.MarshalJSONL()
		if err != nil {
			return fmt.Errorf("failed to marshal instance: %w", err)
		}
		if _, err := fmt.Fprintln(file, string(line)); err != nil {
			return fmt.Errorf("failed to write to file: %w", err)
		}
	}

	return nil
}

func displayStatistics(result *orchestrator.PrepareResult) {
	fmt.Println()

	color.Green("[INF] Prepared %d instances in %d batches in %v",
		len(result.Instances), len(result.Batches), result.Duration)
	fmt.Println()

	color.Cyan("[INF] Action label distribution")
	fmt.Println()

	actions := make([]string, 0, len(result.ActionCounts))
	for action := range result.ActionCounts {
		actions = append(actions, action)
	}
	sort.Strings(actions)

	fmt.Printf(" %-15s %-10s\n", "Action", "Count")
	color.Cyan("──────────────────────────")
	for _, action := range actions {
		fmt.Printf(" %-15s %-10d\n", action, result.ActionCounts[action])
	}
	fmt.Println()

	color.Cyan("[INF] Span supervision: %d/%d instances carry a gold span",
		result.WithSpan, len(result.Instances))

	if result.NaivePaddingCost > 0 {
		color.Cyan("[INF] Padding: %d pad tokens with %s batching vs %d in arrival order",
			result.PaddingCost, result.Experiment.Iterator.Type, result.NaivePaddingCost)
	}

	color.Cyan("[INF] Trainer: t_total=%d warmup_steps=%d metric=%s (maximize=%v)",
		result.TTotal, result.WarmupSteps, result.Metric.Name, result.Metric.Maximize)

	fmt.Println()
}
