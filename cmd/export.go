package cmd

import (
	"context"
	"os"
	"time"

	"github.com/mertkara/sharcprep/pkg/elastic"
	"github.com/mertkara/sharcprep/pkg/orchestrator"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var exportTimeout int

var exportCmd = &cobra.Command{
	Use:   "export <file.jsonl>",
	Short: "Index a previously written JSONL output file into Elasticsearch",
	Long:  `Bulk-index the instances from a JSONL file produced by a prepare run (-o with -j) into the configured Elasticsearch index`,
	Args:  cobra.ExactArgs(1),
	Run:   runExport,
}

func init() {
	exportCmd.Flags().IntVar(&exportTimeout, "timeout", 300, "indexing timeout in seconds")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) {
	orch, err := orchestrator.NewOrchestrator(settingsFile)
	if err != nil {
		color.Red("Failed to initialize orchestrator: %v", err)
		os.Exit(1)
	}

	settings := orch.GetSettings()
	if !settings.Elastic.Enabled {
		color.Red("Error: Elasticsearch is not enabled. Please enable it in sharcprep.yaml")
		os.Exit(1)
	}

	client, err := elastic.New(settings.Elastic)
	if err != nil {
		color.Red("Failed to connect to elasticsearch: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(exportTimeout)*time.Second)
	defer cancel()

	n, err := client.IndexJSONLinesFile(ctx, args[0])
	if err != nil {
		color.Red("Export failed: %v", err)
		os.Exit(1)
	}

	color.Green("Indexed %d instances from %s", n, args[0])
}
