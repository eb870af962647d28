package analysis

import (
	"testing"

	"github.com/faanross/RCR-payload-jitter/config"

	"github.com/stretchr/testify/require"
)

func analyzerTestConfig() *config.Config {
	cfg := config.GetDefaultConfig()
	cfg.Analysis = config.AnalysisParams{
		ZThreshold:     config.Param{Value: 3.0},
		MinClusterSize: config.Param{Value: 5},
		ClusterWidth:   config.Param{Value: 10},
		BucketSize:     config.Param{Value: 1},
		MinBucketCount: config.Param{Value: 1},
	}
	return &cfg
}

func TestAnalyzerSkipsFailedDatasets(t *testing.T) {
	analyzer := NewAnalyzer(analyzerTestConfig())

	datasets := []Dataset{
		{LogFile: "conn.log", IP: "10.0.0.1", Label: "good", Sample: []float64{1, 2, 3, 4, 5}},
		{LogFile: "conn.log", IP: "10.0.0.2", Label: "empty", Sample: nil},
		{LogFile: "conn.log", IP: "10.0.0.3", Label: "also good", Sample: []float64{5, 6, 7}},
	}

	results, err := analyzer.Analyze(datasets)
	require.NoError(t, err, "a failing dataset must not abort the run")
	require.Len(t, results, 2, "only the valid datasets should produce results")

	for _, result := range results {
		require.NotEqual(t, "10.0.0.2", result.IP, "the empty dataset should have been skipped")
	}
}

func TestAnalyzerResultsAreDeterministic(t *testing.T) {
	datasets := []Dataset{
		{LogFile: "b_conn.log", IP: "10.0.0.2", Sample: []float64{4, 5, 6}},
		{LogFile: "a_conn.log", IP: "10.0.0.9", Sample: []float64{1, 2, 3}},
		{LogFile: "a_conn.log", IP: "10.0.0.1", Sample: []float64{7, 8, 9}},
	}

	results, err := NewAnalyzer(analyzerTestConfig()).Analyze(datasets)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// ordered by log file, then IP, regardless of worker completion order
	require.Equal(t, "a_conn.log", results[0].LogFile)
	require.Equal(t, "10.0.0.1", results[0].IP)
	require.Equal(t, "a_conn.log", results[1].LogFile)
	require.Equal(t, "10.0.0.9", results[1].IP)
	require.Equal(t, "b_conn.log", results[2].LogFile)

	// running a second analyzer over the same datasets yields the same scores
	again, err := NewAnalyzer(analyzerTestConfig()).Analyze(datasets)
	require.NoError(t, err)
	for i := range results {
		require.Equal(t, results[i].Result, again[i].Result, "scores should be reproducible across runs")
	}
}

func TestAnalyzerEmptyInput(t *testing.T) {
	results, err := NewAnalyzer(analyzerTestConfig()).Analyze(nil)
	require.NoError(t, err)
	require.Empty(t, results, "no datasets in should mean no results out")
}
