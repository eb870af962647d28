package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/faanross/RCR-payload-jitter/analysis"
	"github.com/faanross/RCR-payload-jitter/config"
	"github.com/faanross/RCR-payload-jitter/importer"
	zlog "github.com/faanross/RCR-payload-jitter/logger"
	"github.com/faanross/RCR-payload-jitter/report"
	"github.com/faanross/RCR-payload-jitter/util"

	"github.com/manifoldco/promptui"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var ErrNoResults = errors.New("no datasets could be analyzed, skipping report generation")
var ErrReportAborted = errors.New("report generation cancelled")

var AnalyzeCommand = &cli.Command{
	Name:      "analyze",
	Usage:     "analyze byte-count coverage for the IPs configured in the config file",
	UsageText: "rcr analyze [--config FILE] [--logs DIRECTORY] [--out FILE]",
	Args:      false,
	Flags: []cli.Flag{
		ConfigFlag(false),
		&cli.StringFlag{
			Name:     "logs",
			Aliases:  []string{"l"},
			Usage:    "path to the log directory, overriding the configured input directory",
			Required: false,
			Action: func(_ *cli.Context, path string) error {
				return ValidateLogDirectory(afero.NewOsFs(), path)
			},
		},
		&cli.StringFlag{
			Name:     "out",
			Aliases:  []string{"o"},
			Usage:    "path to write the HTML report to, overriding the configured output path",
			Required: false,
		},
		&cli.BoolFlag{
			Name:     "non-interactive",
			Aliases:  []string{"ni"},
			Usage:    "does not prompt for confirmation before overwriting an existing report",
			Value:    false,
			Required: false,
		},
	},
	Action: func(cCtx *cli.Context) error {
		if cCtx.NArg() > 0 {
			return ErrTooManyArguments
		}

		afs := afero.NewOsFs()

		cfg, err := config.ReadFileConfig(afs, cCtx.String("config"))
		if err != nil {
			return err
		}

		return RunAnalyzeCommand(afs, cfg, cCtx.String("logs"), cCtx.String("out"), cCtx.Bool("non-interactive"), true)
	},
}

// RunAnalyzeCommand extracts one dataset per configured (log file, IP) pair,
// evaluates each against the analysis parameters, and writes the HTML report.
// Failures processing one log file or one IP are logged and do not abort the
// run; if no dataset survives, no report is written and an error is returned.
func RunAnalyzeCommand(afs afero.Fs, cfg *config.Config, logsDir string, outPath string, nonInteractive bool, showProgress bool) error {
	logger := zlog.GetLogger()

	start := time.Now()

	if logsDir == "" {
		logsDir = cfg.InputDirectory
	}
	if outPath == "" {
		outPath = cfg.OutputPath
	}

	// iterate the configured log files in a stable order
	logFiles := make([]string, 0, len(cfg.InputData))
	for logFile := range cfg.InputData {
		logFiles = append(logFiles, logFile)
	}
	sort.Strings(logFiles)

	var fileBar *mpb.Bar
	var progress *mpb.Progress
	if showProgress {
		progress = mpb.New(mpb.WithWidth(64))
		fileBar = progress.New(int64(len(logFiles)),
			mpb.BarStyle().Lbound("╢").Filler("▌").Tip("▌").Padding("░").Rbound("╟"),
			mpb.PrependDecorators(
				decor.Name("Log Parsing", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
				decor.OnComplete(decor.Elapsed(decor.ET_STYLE_GO), "done"),
			),
			mpb.AppendDecorators(decor.CountersNoUnit("%d / %d")),
		)
	}

	var datasets []analysis.Dataset
	for _, logFile := range logFiles {
		path := filepath.Join(logsDir, logFile)

		if err := util.ValidateFile(afs, path); err != nil {
			logger.Err(err).Str("path", path).Msg("log file not found, skipping")
			if fileBar != nil {
				fileBar.Increment()
			}
			continue
		}

		logger.Info().Str("path", path).Msg("processing log file")

		extracted, err := importer.ExtractDatasets(afs, path, cfg.InputData[logFile])
		if err != nil {
			logger.Err(err).Str("path", path).Msg("unable to extract datasets from log file, skipping")
			if fileBar != nil {
				fileBar.Increment()
			}
			continue
		}

		datasets = append(datasets, extracted...)
		if fileBar != nil {
			fileBar.Increment()
		}
	}

	if progress != nil {
		progress.Wait()
	}

	analyzer := analysis.NewAnalyzer(cfg)
	results, err := analyzer.Analyze(datasets)
	if err != nil {
		return err
	}

	if len(results) == 0 {
		return ErrNoResults
	}

	// confirm before clobbering an existing report
	exists, err := afero.Exists(afs, outPath)
	if err != nil {
		return err
	}
	if exists && !nonInteractive {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Overwrite existing report at %s", outPath),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			return ErrReportAborted
		}
	}

	if err := report.WriteReport(afs, outPath, results, cfg.Analysis, analyzer.RunID.String()); err != nil {
		return err
	}

	// create formatter for adding commas in the counts
	p := message.NewPrinter(language.English)
	totalConnections := 0
	for _, result := range results {
		totalConnections += len(result.Result.Sample)
	}
	logger.Info().
		Str("report", outPath).
		Str("datasets", p.Sprintf("%d", len(results))).
		Str("connections", p.Sprintf("%d", totalConnections)).
		Str("elapsed_time", time.Since(start).String()).
		Msg("Report generated successfully! 🎉")

	return nil
}
