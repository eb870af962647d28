package report

import (
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/faanross/RCR-payload-jitter/analysis"
	"github.com/faanross/RCR-payload-jitter/config"

	"github.com/spf13/afero"
)

var ErrNoResults = errors.New("no results to generate report from")

// ParamRow is one entry in the report's analysis parameter table
type ParamRow struct {
	Name        string
	Value       float64
	Description string
}

type datasetSection struct {
	LogFile         string
	IP              string
	Label           string
	RCR             float64
	OriginalRange   analysis.Range
	AdjustedRange   analysis.Range
	TotalBuckets    int
	FilledBuckets   int
	RemovedOutliers int
	SampleSize      int
	BeforePlot      template.HTML
	AfterPlot       template.HTML
}

type reportData struct {
	GeneratedAt string
	RunID       string
	Version     string
	Params      []ParamRow
	Sections    []datasetSection
}

// Generate renders the full self-contained HTML report for the given results
func Generate(results []analysis.DatasetResult, params config.AnalysisParams, runID string) (string, error) {
	if len(results) == 0 {
		return "", ErrNoResults
	}

	data := reportData{
		GeneratedAt: time.Now().Format(time.RFC1123),
		RunID:       runID,
		Version:     config.Version,
		Params:      paramRows(params),
	}

	for _, result := range results {
		data.Sections = append(data.Sections, datasetSection{
			LogFile:         result.LogFile,
			IP:              result.IP,
			Label:           result.Label,
			RCR:             result.RCR,
			OriginalRange:   result.OriginalRange,
			AdjustedRange:   result.AdjustedRange,
			TotalBuckets:    result.TotalBuckets,
			FilledBuckets:   result.FilledBuckets,
			RemovedOutliers: result.RemovedOutlierCount,
			SampleSize:      len(result.Result.Sample),
			BeforePlot:      histogramSVG(result.Result.Sample, nil, nil),
			AfterPlot:       histogramSVG(result.Result.Sample, result.NormalMask, &result.AdjustedRange),
		})
	}

	var rendered strings.Builder
	if err := reportTemplate.Execute(&rendered, data); err != nil {
		return "", fmt.Errorf("unable to render report template: %w", err)
	}

	return rendered.String(), nil
}

// WriteReport renders the report and writes it to path in a single shot
func WriteReport(afs afero.Fs, path string, results []analysis.DatasetResult, params config.AnalysisParams, runID string) error {
	rendered, err := Generate(results, params, runID)
	if err != nil {
		return err
	}

	return afero.WriteFile(afs, path, []byte(rendered), 0644)
}

func paramRows(params config.AnalysisParams) []ParamRow {
	return []ParamRow{
		{Name: "z_threshold", Value: params.ZThreshold.Value, Description: params.ZThreshold.Description},
		{Name: "min_cluster_size", Value: params.MinClusterSize.Value, Description: params.MinClusterSize.Description},
		{Name: "cluster_width", Value: params.ClusterWidth.Value, Description: params.ClusterWidth.Description},
		{Name: "bucket_size", Value: params.BucketSize.Value, Description: params.BucketSize.Description},
		{Name: "min_bucket_count", Value: params.MinBucketCount.Value, Description: params.MinBucketCount.Description},
	}
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
    <style>
body { font-family: Arial; margin: 20px auto; max-width: 1200px; padding: 20px; }
table { border-collapse: collapse; width: 100%; margin: 20px 0; }
th, td { border: 1px solid #ddd; padding: 12px; text-align: left; }
th { background-color: #f5f5f5; }
tr:nth-child(even) { background-color: #f9f9f9; }
.plot-container { margin: 20px 0; background: white; padding: 20px; }
.dataset-section { margin: 40px 0; border-top: 2px solid #eee; padding-top: 20px; }
svg { max-width: 100%; height: auto; }
.params-section { background-color: #f8f9fa; padding: 15px; margin: 20px 0; }
.footer { color: #888; font-size: 12px; margin-top: 40px; }
    </style>
</head>
<body>
    <h1>Network Traffic Analysis Report</h1>

    <h2>Summary Results</h2>
    <table>
        <tr>
            <th>Log File</th>
            <th>IP Address</th>
            <th>Label</th>
            <th>RCR Score</th>
            <th>Outliers Found</th>
            <th>Total Connections</th>
        </tr>
        {{range .Sections}}<tr>
            <td>{{.LogFile}}</td>
            <td>{{.IP}}</td>
            <td>{{.Label}}</td>
            <td>{{printf "%.2f" .RCR}}%</td>
            <td>{{.RemovedOutliers}}</td>
            <td>{{.SampleSize}}</td>
        </tr>
        {{end}}
    </table>

    <div class="params-section">
        <h3>Analysis Parameters</h3>
        <table>
            <tr>
                <th>Parameter</th>
                <th>Value</th>
                <th>Description</th>
            </tr>
            {{range .Params}}<tr>
                <td>{{.Name}}</td>
                <td>{{.Value}}</td>
                <td>{{.Description}}</td>
            </tr>
            {{end}}
        </table>
    </div>

    <h2>Detailed Analysis</h2>
    {{range .Sections}}<div class="dataset-section">
        <h3>{{.Label}} ({{.IP}})</h3>
        <p>Log File: {{.LogFile}}</p>
        <p>RCR Score: {{printf "%.2f" .RCR}}%</p>
        <p>Original Range: {{printf "%.1f" .OriginalRange.Min}} - {{printf "%.1f" .OriginalRange.Max}} bytes</p>
        <p>Adjusted Range: {{printf "%.1f" .AdjustedRange.Min}} - {{printf "%.1f" .AdjustedRange.Max}} bytes</p>
        <p>Buckets Filled: {{.FilledBuckets}} / {{.TotalBuckets}}</p>
        <p>Outliers Removed: {{.RemovedOutliers}}</p>
        <div class="plot-container">
            <h4>Before Outlier Removal</h4>
            {{.BeforePlot}}
        </div>
        <div class="plot-container">
            <h4>After Outlier Removal (Red = Outliers)</h4>
            {{.AfterPlot}}
        </div>
    </div>
    {{end}}

    <div class="footer">Generated {{.GeneratedAt}} &middot; run {{.RunID}} &middot; version {{.Version}}</div>
</body>
</html>
`))
