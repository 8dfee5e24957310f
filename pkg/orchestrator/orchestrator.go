package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mertkara/sharcprep/pkg/batch"
	"github.com/mertkara/sharcprep/pkg/config"
	"github.com/mertkara/sharcprep/pkg/database"
	"github.com/mertkara/sharcprep/pkg/dataset"
	"github.com/mertkara/sharcprep/pkg/elastic"
	"github.com/mertkara/sharcprep/pkg/train"

	"github.com/sirupsen/logrus"
)

var DebugLog func(string, ...interface{})

type Orchestrator struct {
	settings *config.Settings
	manager  *config.Manager
	logger   *logrus.Logger
	db       *database.DB
}

type PrepareOptions struct {
	ConfigPath string
	Split      string
	Overrides  []string
	Stats      bool
	ExportES   bool
}

type PrepareResult struct {
	Experiment *config.Experiment
	ConfigHash string
	Split      string
	DataPath   string

	Instances    []*dataset.Instance
	Batches      []batch.Batch
	ActionCounts map[string]int
	WithSpan     int

	// Padding cost of the configured iterator vs. arrival-order batching,
	// for the stats display.
	PaddingCost      int
	NaivePaddingCost int

	// Resolved trainer values.
	TTotal      int
	WarmupSteps int
	Metric      train.Metric

	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Success   bool
	Errors    []error
}

type customFormatter struct{}

func (f *customFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var levelText string
	switch entry.Level {
	case logrus.InfoLevel:
		levelText = "[INF]"
	case logrus.WarnLevel:
		levelText = "[WARN]"
	case logrus.ErrorLevel:
		levelText = "[ERR]"
	case logrus.DebugLevel:
		levelText = "[DBG]"
	default:
		levelText = "[???]"
	}
	return []byte(fmt.Sprintf("%s %s\n", levelText, entry.Message)), nil
}

func NewOrchestrator(settingsPath string) (*Orchestrator, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.InfoLevel)
	logger.SetFormatter(&customFormatter{})

	manager := config.NewManager(settingsPath)
	if err := manager.LoadSettings(); err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	settings := manager.GetSettings()

	db, err := database.New(&settings.Database)
	if err != nil {
		logger.Warnf("Database initialization failed: %v", err)
	}

	return &Orchestrator{
		settings: settings,
		manager:  manager,
		logger:   logger,
		db:       db,
	}, nil
}

func (o *Orchestrator) GetSettings() *config.Settings {
	return o.settings
}

func (o *Orchestrator) GetDB() *database.DB {
	return o.db
}

// LoadExperiment reads the experiment file and applies --set overrides.
func (o *Orchestrator) LoadExperiment(configPath string, overrides []string) (*config.Experiment, error) {
	exp, err := config.LoadExperiment(configPath)
	if err != nil {
		return nil, err
	}

	for _, override := range overrides {
		key, value, found := strings.Cut(override, "=")
		if !found {
			return nil, fmt.Errorf("override %q is not key=value", override)
		}
		if err := exp.Set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return nil, err
		}
		if DebugLog != nil {
			DebugLog("override applied: %s = %s", key, value)
		}
	}

	if len(overrides) > 0 {
		if err := exp.Validate(); err != nil {
			return nil, fmt.Errorf("experiment invalid after overrides: %w", err)
		}
	}

	return exp, nil
}

func (o *Orchestrator) RunPrepare(options PrepareOptions) (*PrepareResult, error) {
	startTime := time.Now()

	result := &PrepareResult{
		Split:        options.Split,
		StartTime:    startTime,
		ActionCounts: make(map[string]int),
	}

	exp, err := o.LoadExperiment(options.ConfigPath, options.Overrides)
	if err != nil {
		return nil, err
	}
	result.Experiment = exp

	serialized, err := exp.Serialize()
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(serialized)
	result.ConfigHash = hex.EncodeToString(sum[:])

	dataPath, err := dataPathForSplit(exp, options.Split)
	if err != nil {
		return nil, err
	}
	result.DataPath = dataPath

	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(o.settings.DefaultSettings.Timeout)*time.Minute)
	defer cancel()

	reader, err := dataset.NewReader(ctx, exp.DatasetReader)
	if err != nil {
		return nil, fmt.Errorf("failed to build dataset reader: %w", err)
	}

	o.logger.Infof("Reading %s split with the %s reader from %s", options.Split, reader.Name(), dataPath)

	for res := range reader.Read(ctx, dataPath) {
		if res.Error != nil {
			result.Errors = append(result.Errors, res.Error)
			o.logger.Errorf("Reader error: %v", res.Error)
			continue
		}

		result.Instances = append(result.Instances, res.Instance)
		if res.Instance.Action != "" {
			result.ActionCounts[res.Instance.Action]++
		}
		if res.Instance.HasSpan() {
			result.WithSpan++
		}
	}

	if len(result.Instances) == 0 {
		return result, fmt.Errorf("no instances read from %s", dataPath)
	}

	iterator, err := batch.NewIterator(exp.Iterator)
	if err != nil {
		return nil, fmt.Errorf("failed to build iterator: %w", err)
	}

	batches, err := iterator.Batches(result.Instances)
	if err != nil {
		return nil, fmt.Errorf("batching failed: %w", err)
	}
	result.Batches = batches

	o.logger.Infof("Prepared %d instances in %d batches (%s iterator, batch size %d)",
		len(result.Instances), len(batches), iterator.Name(), exp.Iterator.BatchSize)

	if options.Stats && len(exp.Iterator.SortingKeys) > 0 {
		key := exp.Iterator.SortingKeys[0]
		if cost, err := batch.PaddingCost(batches, key); err == nil {
			result.PaddingCost = cost
		}
		basicBatches, err := batch.NewBasic(exp.Iterator.BatchSize).Batches(result.Instances)
		if err == nil {
			if cost, err := batch.PaddingCost(basicBatches, key); err == nil {
				result.NaivePaddingCost = cost
			}
		}
	}

	if err := o.resolveTrainer(exp, result); err != nil {
		return nil, err
	}

	endTime := time.Now()
	result.EndTime = endTime
	result.Duration = endTime.Sub(startTime)
	result.Success = len(result.Errors) == 0

	if o.db != nil && o.db.IsEnabled() {
		run := database.RunRecord{
			Experiment:      exp.DatasetReader.Type,
			ConfigHash:      result.ConfigHash,
			Split:           options.Split,
			DataPath:        dataPath,
			Instances:       len(result.Instances),
			Batches:         len(result.Batches),
			YesCount:        result.ActionCounts[dataset.ActionYes],
			NoCount:         result.ActionCounts[dataset.ActionNo],
			IrrelevantCount: result.ActionCounts[dataset.ActionIrrelevant],
			MoreCount:       result.ActionCounts[dataset.ActionMore],
			StartedAt:       startTime,
			FinishedAt:      endTime,
		}
		if err := o.db.RecordRun(run); err != nil {
			o.logger.Warnf("Failed to record run in database: %v", err)
		}
	}

	if options.ExportES || o.settings.Elastic.Enabled {
		if err := o.exportInstances(ctx, result.Instances); err != nil {
			o.logger.Warnf("Elasticsearch export failed: %v", err)
		}
	}

	return result, nil
}

// resolveTrainer computes the derived trainer values the framework will see:
// total steps, warmup steps and the early-stopping metric.
func (o *Orchestrator) resolveTrainer(exp *config.Experiment, result *PrepareResult) error {
	metric, err := train.ParseMetric(exp.Trainer.ValidationMetric)
	if err != nil {
		return err
	}
	result.Metric = metric

	tTotal, err := train.ResolveTTotal(exp.Trainer.Optimizer,
		len(result.Instances), exp.Iterator.BatchSize, exp.Trainer.NumEpochs)
	if err != nil {
		return err
	}
	result.TTotal = tTotal
	result.WarmupSteps = train.WarmupSteps(exp.Trainer.Optimizer.Warmup, tTotal)

	// Parameter groups only need to compile; actual parameter names come
	// from the framework at train time.
	if _, err := train.ResolveParameterGroups(nil, exp.Trainer.Optimizer); err != nil {
		return err
	}

	if DebugLog != nil {
		DebugLog("resolved trainer: t_total=%d warmup_steps=%d metric=%s maximize=%v",
			tTotal, result.WarmupSteps, metric.Name, metric.Maximize)
	}

	return nil
}

func (o *Orchestrator) exportInstances(ctx context.Context, instances []*dataset.Instance) error {
	client, err := elastic.New(o.settings.Elastic)
	if err != nil {
		return err
	}

	o.logger.Infof("Exporting %d instances to elasticsearch", len(instances))
	return client.IndexInstances(ctx, instances)
}

func dataPathForSplit(exp *config.Experiment, split string) (string, error) {
	switch split {
	case "", "train":
		return exp.TrainDataPath, nil
	case "dev", "validation":
		if exp.ValidationDataPath == "" {
			return "", fmt.Errorf("experiment has no validation_data_path")
		}
		return exp.ValidationDataPath, nil
	default:
		return "", fmt.Errorf("unknown split %q (expected train or dev)", split)
	}
}
