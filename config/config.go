package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strconv"

	"github.com/faanross/RCR-payload-jitter/util"

	"github.com/go-playground/validator/v10"
	"github.com/hjson/hjson-go/v4"
	"github.com/spf13/afero"
)

var Version string

const DefaultConfigPath = "./config.hjson"

var errReadingConfigFile = errors.New("encountered an error while reading the config file")
var ErrNoInputData = errors.New("config must define at least one log file with at least one IP to analyze")
var ErrInvalidIPKey = errors.New("input_data IP keys must be valid IP addresses")

type (
	Config struct {
		Env       Env            `json:"env"`
		Analysis  AnalysisParams `json:"analysis_params" validate:"required"`
		InputData InputData      `json:"input_data" validate:"required"`

		// InputDirectory is the directory searched for the log files named in InputData
		InputDirectory string `json:"input_directory" validate:"required"`
		// OutputPath is where the rendered HTML report is written
		OutputPath string `json:"output_path" validate:"required"`
	}

	Env struct { // set by environment variables
		LogLevel int8 `json:"-" validate:"min=-1,max=5"` // LOG_LEVEL
	}

	// InputData maps a log file name to the IPs of interest within it,
	// where each IP maps to a human readable label for the report
	InputData map[string]map[string]string

	// Param is a single analysis parameter along with the description
	// displayed in the report's parameter table
	Param struct {
		Value       float64 `json:"value"`
		Description string  `json:"description"`
	}

	// AnalysisParams holds the knobs for outlier classification and coverage
	// calculation. The set is loaded once and shared read-only across all
	// dataset evaluations.
	AnalysisParams struct {
		ZThreshold     Param `json:"z_threshold"`
		MinClusterSize Param `json:"min_cluster_size"`
		ClusterWidth   Param `json:"cluster_width"`
		BucketSize     Param `json:"bucket_size"`
		MinBucketCount Param `json:"min_bucket_count"`
	}
)

// Int returns the parameter value truncated to an integer, for parameters
// that are counts rather than byte quantities
func (p Param) Int() int {
	return int(p.Value)
}

// ReadFileConfig attempts to read the config file at the specified path and
// returns a config object, layering the file's values over the defaults.
func ReadFileConfig(afs afero.Fs, path string) (*Config, error) {
	// read the config file
	contents, err := util.GetFileContents(afs, path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := unmarshal(contents, &cfg, nil); err != nil {
		return nil, fmt.Errorf("%w, located by default at '%s', please correct the issue in the config and try again:\n\t- %w", errReadingConfigFile, path, err)
	}

	return &cfg, nil
}

// ReadConfigFromMemory reads the config from bytes already read into memory as opposed to reading from a file
// It also provides its own environment struct that must already be completely set
func ReadConfigFromMemory(data []byte, env Env) (*Config, error) {
	var cfg Config
	if err := unmarshal(data, &cfg, &env); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setEnv() error {
	// get the log level, leaving the default in place if the variable is unset
	logLevelStr := os.Getenv("LOG_LEVEL")
	if logLevelStr != "" {
		logLevel, err := strconv.Atoi(logLevelStr)
		if err != nil {
			return fmt.Errorf("unable to convert LOG_LEVEL to int: %w", err)
		}
		c.Env.LogLevel = int8(logLevel)
	}
	return nil
}

// unmarshal unmarshals the data into the config struct, sets the environment variables, and validates the values
func unmarshal(data []byte, cfg *Config, env *Env) error {
	// unmarshal the config file (hjson handles both hjson and plain JSON)
	if err := hjson.Unmarshal(data, &cfg); err != nil {
		return err
	}

	// set the environment struct
	// this MUST be done before validating the values, because the
	// validation checks the environment derived values
	if env == nil {
		// set the environment variables from the actual environment
		if err := cfg.setEnv(); err != nil {
			return fmt.Errorf("unable to set environment: %w", err)
		}
	} else {
		// set the environment variables from the provided environment struct
		cfg.Env = *env
	}

	// validate values
	if err := cfg.Validate(); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON unmarshals the JSON bytes into the config struct
// overrides the default unmarshalling method to allow for custom parsing
func (c *Config) UnmarshalJSON(bytes []byte) error {
	// create temporary config struct to unmarshal into
	// not doing this would result in an infinite unmarshalling loop
	type tmpConfig Config
	defaultCfg := GetDefaultConfig()

	// set the default config to a variable of the temporary type
	tmpCfg := tmpConfig(defaultCfg)

	// unmarshal json into the default config struct
	err := hjson.Unmarshal(bytes, &tmpCfg)
	if err != nil {
		return err
	}

	// convert the temporary config struct to a config struct
	cfg := Config(tmpCfg)

	// set the new config values
	*c = cfg

	return nil
}

// GetDefaultConfig returns a Config object with default values
func GetDefaultConfig() Config {
	// set version to dev if not set
	if Version == "" {
		Version = "dev"
	}

	return defaultConfig()
}

// Reset resets the config values to default
// note: Env values are not reset
func (cfg *Config) Reset() error {
	// store the environment values before resetting
	env := cfg.Env

	// get the default config
	newConfig := GetDefaultConfig()

	*cfg = newConfig
	cfg.Env = env

	// validate the config struct
	if err := cfg.Validate(); err != nil {
		return err
	}

	return nil
}

// Validate validates the config struct values
func (cfg *Config) Validate() error {
	// create a new validator
	validate, err := NewValidator()
	if err != nil {
		return err
	}

	// validate the config struct
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	// validate the input data mapping
	if err := cfg.InputData.validate(); err != nil {
		return err
	}

	return nil
}

// NewValidator creates a new validator with custom validation rules
func NewValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())

	// validate the analysis parameter ranges at the struct level since the
	// numeric constraints apply to the nested Value field of each parameter
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		value := sl.Current().Interface().(AnalysisParams)
		if value.ZThreshold.Value < 0 {
			sl.ReportError(value.ZThreshold, "ZThreshold", "z_threshold", "param_gte_zero", "")
		}
		if value.MinClusterSize.Value < 1 || !isWholeNumber(value.MinClusterSize.Value) {
			sl.ReportError(value.MinClusterSize, "MinClusterSize", "min_cluster_size", "param_whole_gte_one", "")
		}
		if value.ClusterWidth.Value < 0 {
			sl.ReportError(value.ClusterWidth, "ClusterWidth", "cluster_width", "param_gte_zero", "")
		}
		if value.BucketSize.Value <= 0 {
			sl.ReportError(value.BucketSize, "BucketSize", "bucket_size", "param_gt_zero", "")
		}
		if value.MinBucketCount.Value < 0 || !isWholeNumber(value.MinBucketCount.Value) {
			sl.ReportError(value.MinBucketCount, "MinBucketCount", "min_bucket_count", "param_whole_gte_zero", "")
		}
	}, AnalysisParams{})

	return v, nil
}

func isWholeNumber(value float64) bool {
	return value == math.Trunc(value)
}

// validate checks that the input data mapping names at least one dataset and
// that every IP key parses as an IP address
func (data InputData) validate() error {
	total := 0
	for logFile, ips := range data {
		for ip := range ips {
			if net.ParseIP(ip) == nil {
				return fmt.Errorf("%w: file %s contains invalid IP '%s'", ErrInvalidIPKey, logFile, ip)
			}
			total++
		}
	}
	if total == 0 {
		return ErrNoInputData
	}
	return nil
}

// return a copy of the default config object
func defaultConfig() Config {
	return Config{
		Env: Env{
			LogLevel: 1,
		},
		Analysis: AnalysisParams{
			ZThreshold: Param{
				Value:       3.0,
				Description: "Number of population standard deviations from the mean past which a value becomes an outlier candidate",
			},
			MinClusterSize: Param{
				Value:       5,
				Description: "Minimum number of candidate values within one cluster width required to rescue the cluster as normal traffic",
			},
			ClusterWidth: Param{
				Value:       10,
				Description: "Width in bytes of the sliding window used to group candidate outliers into clusters",
			},
			BucketSize: Param{
				Value:       100,
				Description: "Width in bytes of each histogram bucket across the adjusted value range",
			},
			MinBucketCount: Param{
				Value:       1,
				Description: "Minimum number of observations a bucket must contain to count as filled",
			},
		},
		InputDirectory: "./input",
		OutputPath:     "./results.html",
	}
}
