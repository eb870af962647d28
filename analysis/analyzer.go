package analysis

import (
	"context"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/faanross/RCR-payload-jitter/config"
	zlog "github.com/faanross/RCR-payload-jitter/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Dataset is one numeric sample extracted from a (log file, IP) pairing,
// along with the identity fields the report displays
type Dataset struct {
	LogFile string
	IP      string
	Label   string
	Sample  []float64
}

// DatasetResult pairs a dataset's identity with its coverage result
type DatasetResult struct {
	Dataset
	Result
}

// Analyzer evaluates datasets against a shared read-only parameter set.
// Datasets are independent of one another, so evaluation fans out across a
// worker pool.
type Analyzer struct {
	Config      *config.Config
	RunID       uuid.UUID
	Workers     int
	datasetChan chan Dataset

	mu      sync.Mutex
	results []DatasetResult
}

// NewAnalyzer returns a new Analyzer object
func NewAnalyzer(cfg *config.Config) *Analyzer {
	workers := int(math.Floor(math.Max(4, float64(runtime.NumCPU())/2)))
	return &Analyzer{
		Config:      cfg,
		RunID:       uuid.New(),
		Workers:     workers,
		datasetChan: make(chan Dataset),
	}
}

// Analyze runs the outlier classifier and coverage calculator over every
// dataset. A dataset that fails evaluation is logged and skipped so that one
// bad dataset cannot abort the rest of the run.
func (analyzer *Analyzer) Analyze(datasets []Dataset) ([]DatasetResult, error) {
	logger := zlog.GetLogger()

	start := time.Now()
	logger.Debug().Str("run_id", analyzer.RunID.String()).Int("datasets", len(datasets)).Msg("Starting Analysis")

	analysisErrGroup, ctx := errgroup.WithContext(context.Background())

	// create analysis calculation workers
	for i := 0; i < analyzer.Workers; i++ {
		analysisErrGroup.Go(func() error {
			return analyzer.runAnalysis()
		})
	}

	// feed the workers
	analysisErrGroup.Go(func() error {
		defer close(analyzer.datasetChan)
		for _, dataset := range datasets {
			select {
			case analyzer.datasetChan <- dataset:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := analysisErrGroup.Wait(); err != nil {
		return nil, err
	}

	// sort for a deterministic report ordering regardless of which worker
	// finished first
	sort.Slice(analyzer.results, func(i, j int) bool {
		if analyzer.results[i].LogFile != analyzer.results[j].LogFile {
			return analyzer.results[i].LogFile < analyzer.results[j].LogFile
		}
		return analyzer.results[i].IP < analyzer.results[j].IP
	})

	logger.Debug().Str("elapsed_time", time.Since(start).String()).Int("results", len(analyzer.results)).Msg("Finished Analysis")

	return analyzer.results, nil
}

// runAnalysis consumes datasets from the channel until it is closed
func (analyzer *Analyzer) runAnalysis() error {
	logger := zlog.GetLogger()

	for dataset := range analyzer.datasetChan {
		result, err := AnalyzeSample(dataset.Sample, analyzer.Config.Analysis)
		if err != nil {
			// failures are per-dataset: log and move on
			logger.Err(err).
				Str("log_file", dataset.LogFile).
				Str("ip", dataset.IP).
				Str("label", dataset.Label).
				Msg("unable to analyze dataset, skipping")
			continue
		}

		logger.Info().
			Str("log_file", dataset.LogFile).
			Str("ip", dataset.IP).
			Float64("rcr", result.RCR).
			Int("removed_outliers", result.RemovedOutlierCount).
			Msg("analyzed dataset")

		analyzer.mu.Lock()
		analyzer.results = append(analyzer.results, DatasetResult{Dataset: dataset, Result: result})
		analyzer.mu.Unlock()
	}
	return nil
}
