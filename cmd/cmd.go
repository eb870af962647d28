package cmd

import (
	"errors"

	"github.com/faanross/RCR-payload-jitter/util"

	"github.com/spf13/afero"
	"github.com/urfave/cli/v2"
)

var ErrMissingConfigPath = errors.New("config path parameter is required")
var ErrTooManyArguments = errors.New("too many arguments provided")

func Commands() []*cli.Command {
	return []*cli.Command{
		AnalyzeCommand,
		ValidateConfigCommand,
	}
}

func ConfigFlag(required bool) *cli.StringFlag {
	return &cli.StringFlag{
		Name:     "config",
		Aliases:  []string{"c"},
		Usage:    "Load configuration from `FILE`",
		Value:    "./config.hjson", // default config file path
		Required: required,
		Action: func(_ *cli.Context, path string) error {
			return ValidateConfigPath(afero.NewOsFs(), path)
		},
	}
}

func ValidateConfigPath(afs afero.Fs, configPath string) error {
	if configPath == "" {
		return ErrMissingConfigPath
	}

	// get relative file path
	_, err := util.ParseRelativePath(configPath)
	if err != nil {
		return err
	}

	// validate file path
	if err := util.ValidateFile(afs, configPath); err != nil {
		return err
	}

	return nil
}

func ValidateLogDirectory(afs afero.Fs, dir string) error {
	// get relative directory path
	_, err := util.ParseRelativePath(dir)
	if err != nil {
		return err
	}

	// validate directory path
	if err := util.ValidateDirectory(afs, dir); err != nil {
		return err
	}

	return nil
}
