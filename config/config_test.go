package config

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const validConfigJSON = `{
	"input_directory": "./input",
	"output_path": "./results.html",
	"input_data": {
		"conn.log": {
			"165.232.108.226": "C2 Server",
			"143.110.250.149": "File Server"
		}
	},
	"analysis_params": {
		"z_threshold": {"value": 3.0, "description": "z-score cutoff"},
		"min_cluster_size": {"value": 5, "description": "cluster rescue size"},
		"cluster_width": {"value": 10, "description": "cluster width in bytes"},
		"bucket_size": {"value": 100, "description": "bucket width in bytes"},
		"min_bucket_count": {"value": 1, "description": "fill threshold"}
	}
}`

func TestReadConfigFromMemory(t *testing.T) {
	tests := []struct {
		name          string
		contents      string
		expectedError bool
	}{
		{
			name:     "Valid JSON Config",
			contents: validConfigJSON,
		},
		{
			name: "Valid HJSON Config",
			contents: `{
				// comments are allowed
				input_data: {
					"conn.log": { "10.0.0.1": "workstation" }
				}
				analysis_params: {
					z_threshold: {value: 2.5, description: "cutoff"}
					min_cluster_size: {value: 4, description: "rescue size"}
					cluster_width: {value: 25, description: "width"}
					bucket_size: {value: 50, description: "bucket width"}
					min_bucket_count: {value: 2, description: "fill threshold"}
				}
			}`,
		},
		{
			name: "Negative Z Threshold",
			contents: `{
				"input_data": {"conn.log": {"10.0.0.1": "host"}},
				"analysis_params": {
					"z_threshold": {"value": -1, "description": ""},
					"min_cluster_size": {"value": 5, "description": ""},
					"cluster_width": {"value": 10, "description": ""},
					"bucket_size": {"value": 100, "description": ""},
					"min_bucket_count": {"value": 1, "description": ""}
				}
			}`,
			expectedError: true,
		},
		{
			name: "Zero Bucket Size",
			contents: `{
				"input_data": {"conn.log": {"10.0.0.1": "host"}},
				"analysis_params": {
					"z_threshold": {"value": 3, "description": ""},
					"min_cluster_size": {"value": 5, "description": ""},
					"cluster_width": {"value": 10, "description": ""},
					"bucket_size": {"value": 0, "description": ""},
					"min_bucket_count": {"value": 1, "description": ""}
				}
			}`,
			expectedError: true,
		},
		{
			name: "Fractional Cluster Size",
			contents: `{
				"input_data": {"conn.log": {"10.0.0.1": "host"}},
				"analysis_params": {
					"z_threshold": {"value": 3, "description": ""},
					"min_cluster_size": {"value": 2.5, "description": ""},
					"cluster_width": {"value": 10, "description": ""},
					"bucket_size": {"value": 100, "description": ""},
					"min_bucket_count": {"value": 1, "description": ""}
				}
			}`,
			expectedError: true,
		},
		{
			name: "Invalid IP Key",
			contents: `{
				"input_data": {"conn.log": {"not-an-ip": "host"}},
				"analysis_params": {
					"z_threshold": {"value": 3, "description": ""},
					"min_cluster_size": {"value": 5, "description": ""},
					"cluster_width": {"value": 10, "description": ""},
					"bucket_size": {"value": 100, "description": ""},
					"min_bucket_count": {"value": 1, "description": ""}
				}
			}`,
			expectedError: true,
		},
		{
			name: "No Input Data",
			contents: `{
				"input_data": {},
				"analysis_params": {
					"z_threshold": {"value": 3, "description": ""},
					"min_cluster_size": {"value": 5, "description": ""},
					"cluster_width": {"value": 10, "description": ""},
					"bucket_size": {"value": 100, "description": ""},
					"min_bucket_count": {"value": 1, "description": ""}
				}
			}`,
			expectedError: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, err := ReadConfigFromMemory([]byte(test.contents), Env{LogLevel: 1})

			if test.expectedError {
				require.Error(t, err, "expected config validation to fail")
				return
			}

			require.NoError(t, err, "config should load without error")
			require.NotEmpty(t, cfg.InputData, "input data should be populated")
			require.NotEmpty(t, cfg.InputDirectory, "defaults should fill the input directory")
			require.NotEmpty(t, cfg.OutputPath, "defaults should fill the output path")
		})
	}
}

func TestReadFileConfig(t *testing.T) {
	afs := afero.NewMemMapFs()

	require.NoError(t, afero.WriteFile(afs, "/config.json", []byte(validConfigJSON), 0644))

	cfg, err := ReadFileConfig(afs, "/config.json")
	require.NoError(t, err)
	require.Len(t, cfg.InputData["conn.log"], 2)
	require.Equal(t, "C2 Server", cfg.InputData["conn.log"]["165.232.108.226"])
	require.InDelta(t, 3.0, cfg.Analysis.ZThreshold.Value, 1e-9)
	require.Equal(t, 5, cfg.Analysis.MinClusterSize.Int())

	_, err = ReadFileConfig(afs, "/missing.json")
	require.Error(t, err, "a missing config file should be an error")
}

func TestDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	// the defaults carry no input data, so they fail validation until a
	// config file supplies some
	require.Error(t, cfg.Validate())

	cfg.InputData = InputData{"conn.log": {"10.0.0.1": "host"}}
	require.NoError(t, cfg.Validate(), "defaults with input data should be valid")

	require.Equal(t, "./input", cfg.InputDirectory)
	require.Equal(t, "./results.html", cfg.OutputPath)
	require.InDelta(t, 3.0, cfg.Analysis.ZThreshold.Value, 1e-9)
	require.Equal(t, 5, cfg.Analysis.MinClusterSize.Int())
	require.NotEmpty(t, cfg.Analysis.BucketSize.Description, "default parameters should carry descriptions")
}

func TestConfigReset(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.InputData = InputData{"conn.log": {"10.0.0.1": "host"}}
	cfg.Env.LogLevel = 0
	cfg.Analysis.ZThreshold.Value = 99

	// Reset drops the modified values but keeps the environment ones;
	// it also fails validation here because input data is cleared
	err := cfg.Reset()
	require.Error(t, err)
	require.InDelta(t, 3.0, cfg.Analysis.ZThreshold.Value, 1e-9)
	require.Equal(t, int8(0), cfg.Env.LogLevel)
}
