package cmd

import (
	"fmt"
	"os"

	"github.com/mertkara/sharcprep/pkg/batch"
	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/dataset"
	"github.com/mertkara/sharcprep/pkg/orchestrator"
	"github.com/mertkara/sharcprep/pkg/tokenize"

	"github.com/fatih/color"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [config file]",
	Short: "Validate an experiment config file",
	Long: `Validate an experiment config file: parse it, check its structural
constraints, and verify that parse -> serialize -> parse round-trips
losslessly.`,
	Run: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	path := configFile
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		color.Red("Error: provide a config file argument or the -c flag")
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

	exp, err := orch.LoadExperiment(path, overrides)
	if err != nil {
		color.Red("Invalid: %v", err)
		os.Exit(1)
	}

	if err := checkTypeTags(exp); err != nil {
		color.Red("Invalid: %v", err)
		os.Exit(1)
	}

	if err := checkRoundTrip(exp); err != nil {
		color.Red("Round-trip check failed: %v", err)
		os.Exit(1)
	}

	color.Green("Valid: %s", path)
	fmt.Println()
	fmt.Printf("  dataset_reader.type        %s\n", exp.DatasetReader.Type)
	fmt.Printf("  tokenizer.type             %s\n", exp.DatasetReader.Tokenizer.Type)
	fmt.Printf("  max_context_length         %d\n", exp.DatasetReader.MaxContextLength)
	fmt.Printf("  model.type                 %s\n", exp.Model.Type)
	fmt.Printf("  loss_weights.span_loss     %g\n", exp.Model.LossWeights.SpanLoss)
	fmt.Printf("  loss_weights.action_loss   %g\n", exp.Model.LossWeights.ActionLoss)
	fmt.Printf("  iterator.type              %s\n", exp.Iterator.Type)
	fmt.Printf("  iterator.batch_size        %d\n", exp.Iterator.BatchSize)
	fmt.Printf("  trainer.num_epochs         %d\n", exp.Trainer.NumEpochs)
	fmt.Printf("  trainer.patience           %d\n", exp.Trainer.Patience)
	fmt.Printf("  trainer.validation_metric  %s\n", exp.Trainer.ValidationMetric)
	fmt.Printf("  optimizer.type             %s\n", exp.Trainer.Optimizer.Type)
	fmt.Printf("  optimizer.lr               %g\n", exp.Trainer.Optimizer.LR)
}

// checkTypeTags resolves every component type tag against its registry, so
// validate rejects a config the prepare pipeline would reject. The schema
// package cannot do this itself: it would have to import the packages that
// register against it.
func checkTypeTags(exp *config.Experiment) error {
	if _, err := dataset.Readers.Lookup(exp.DatasetReader.Type); err != nil {
		return fmt.Errorf("dataset_reader: %w", err)
	}
	if _, err := tokenize.Tokenizers.Lookup(exp.DatasetReader.Tokenizer.Type); err != nil {
		return fmt.Errorf("dataset_reader.tokenizer: %w", err)
	}
	for name, idx := range exp.DatasetReader.TokenIndexers {
		if _, err := tokenize.Indexers.Lookup(idx.Type); err != nil {
			return fmt.Errorf("dataset_reader.token_indexers.%s: %w", name, err)
		}
	}
	if _, err := batch.Iterators.Lookup(exp.Iterator.Type); err != nil {
		return fmt.Errorf("iterator: %w", err)
	}
	return nil
}

// checkRoundTrip serializes the resolved experiment and parses it back; any
// difference means the schema drops or mangles a field.
func checkRoundTrip(exp *config.Experiment) error {
	serialized, err := exp.Serialize()
	if err != nil {
		return err
	}

	reparsed, err := config.ParseExperiment(serialized, ".json")
	if err != nil {
		return fmt.Errorf("reparse failed: %w", err)
	}

	if diff := cmp.Diff(exp, reparsed); diff != "" {
		return fmt.Errorf("experiment changed across serialize/parse:\n%s", diff)
	}

	return nil
}
