package elastic

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/dataset"
)

type Client struct {
	es    *es8.Client
	index string
}

func New(cfg config.Elastic) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("elasticsearch URL is required")
	}
	index := cfg.Index
	if strings.TrimSpace(index) == "" {
		index = "sharcprep_instances"
	}

	es, err := es8.NewClient(es8.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	// Lightweight ping
	if _, err := es.Info(); err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}

	return &Client{es: es, index: index}, nil
}

func (c *Client) newBulkIndexer(failed *int64) (esutil.BulkIndexer, error) {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     c.es,
		Index:      c.index,
		NumWorkers: 4,
		OnError: func(ctx context.Context, err error) {
			atomic.AddInt64(failed, 1)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}
	return bi, nil
}

func onItemFailure(failed *int64) func(context.Context, esutil.BulkIndexerItem, esutil.BulkIndexerResponseItem, error) {
	return func(ctx context.Context, item esutil.BulkIndexerItem, resp esutil.BulkIndexerResponseItem, err error) {
		atomic.AddInt64(failed, 1)
	}
}

func closeBulk(ctx context.Context, bi esutil.BulkIndexer, failed *int64) error {
	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("bulk indexer close failed: %w", err)
	}
	if n := atomic.LoadInt64(failed); n > 0 {
		return fmt.Errorf("%d documents failed to index", n)
	}
	return nil
}

// IndexInstances bulk-indexes prepared instances, one document per instance,
// keyed by utterance id so re-exporting an experiment overwrites rather than
// duplicates.
func (c *Client) IndexInstances(ctx context.Context, instances []*dataset.Instance) error {
	var failed int64
	bi, err := c.newBulkIndexer(&failed)
	if err != nil {
		return err
	}

	for _, inst := range instances {
		doc, err := inst.MarshalJSONL()
		if err != nil {
			return fmt.Errorf("failed to marshal instance %s: %w", inst.UtteranceID, err)
		}

		item := esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: inst.UtteranceID,
			Body:       bytes.NewReader(doc),
			OnFailure:  onItemFailure(&failed),
		}
		if err := bi.Add(ctx, item); err != nil {
			return fmt.Errorf("bulk add failed: %w", err)
		}
	}

	return closeBulk(ctx, bi, &failed)
}

// IndexJSONLinesFile indexes a JSONL file written by a previous prepare run.
// Each line must be a serialized instance; documents are keyed by utterance
// id just like IndexInstances, so re-running an export overwrites rather
// than duplicates. Returns how many documents were submitted.
func (c *Client) IndexJSONLinesFile(ctx context.Context, filename string) (int, error) {
	f, err := os.Open(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to open jsonl file: %w", err)
	}
	defer f.Close()

	var failed int64
	bi, err := c.newBulkIndexer(&failed)
	if err != nil {
		return 0, err
	}

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 8*1024*1024)

	indexed := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var doc struct {
			UtteranceID string `json:"utterance_id"`
		}
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			bi.Close(ctx)
			return indexed, fmt.Errorf("%s:%d is not a valid instance line: %w", filename, lineNo, err)
		}

		item := esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.UtteranceID,
			Body:       strings.NewReader(line),
			OnFailure:  onItemFailure(&failed),
		}
		if err := bi.Add(ctx, item); err != nil {
			return indexed, fmt.Errorf("bulk add failed: %w", err)
		}
		indexed++
	}
	if err := scanner.Err(); err != nil {
		bi.Close(ctx)
		return indexed, fmt.Errorf("scanner error: %w", err)
	}

	if err := closeBulk(ctx, bi, &failed); err != nil {
		return indexed, err
	}
	return indexed, nil
}
