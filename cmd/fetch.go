package cmd

import (
	"context"
	"os"
	"time"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/fetch"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var fetchTimeout int

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Pre-download experiment data and vocabularies",
	Long:  `Download the data files and pretrained vocabularies an experiment config references into the local cache`,
	Run:   runFetch,
}

func init() {
	fetchCmd.Flags().IntVar(&fetchTimeout, "timeout", 300, "download timeout in seconds")
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	path := configFile
	if path == "" && len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		color.Red("Error: provide an experiment config with -c or as an argument")
		cmd.Help()
		os.Exit(1)
	}

	exp, err := config.LoadExperiment(path)
	if err != nil {
		color.Red("Failed to load experiment config: %v", err)
		os.Exit(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(fetchTimeout)*time.Second)
	defer cancel()

	client := fetch.New("")
	vocabClient := fetch.New(config.GetVocabCacheDir())

	for _, dataPath := range []string{exp.TrainDataPath, exp.ValidationDataPath} {
		if dataPath == "" {
			continue
		}
		if !fetch.IsURL(dataPath) {
			color.Yellow("Skipping local path: %s", dataPath)
			continue
		}
		local, err := client.CachedPath(ctx, dataPath)
		if err != nil {
			color.Red("Failed to fetch %s: %v", dataPath, err)
			os.Exit(1)
		}
		color.Green("Cached %s -> %s", dataPath, local)
	}

	if tok := exp.DatasetReader.Tokenizer; tok.PretrainedModel != "" {
		local, err := vocabClient.VocabPath(ctx, tok.PretrainedModel)
		if err != nil {
			color.Red("Failed to fetch vocabulary for %s: %v", tok.PretrainedModel, err)
			os.Exit(1)
		}
		color.Green("Cached vocabulary %s -> %s", tok.PretrainedModel, local)
	}

	for name, idx := range exp.DatasetReader.TokenIndexers {
		if idx.PretrainedModel == "" {
			continue
		}
		local, err := vocabClient.VocabPath(ctx, idx.PretrainedModel)
		if err != nil {
			color.Red("Failed to fetch vocabulary for indexer %s: %v", name, err)
			os.Exit(1)
		}
		color.Green("Cached vocabulary %s -> %s", idx.PretrainedModel, local)
	}

	color.Green("Fetch complete")
}
