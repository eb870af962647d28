package util

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestValidateFile(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		fileContents  []byte
		createDir     bool
		expectedError error
	}{
		{
			name:         "Valid File",
			path:         "/logs/conn.log",
			fileContents: []byte("data"),
		},
		{
			name:          "File Does Not Exist",
			path:          "/logs/missing.log",
			expectedError: ErrFileDoesNotExist,
		},
		{
			name:          "File Is Empty",
			path:          "/logs/empty.log",
			fileContents:  []byte{},
			expectedError: ErrFileIsEmpty,
		},
		{
			name:          "Path Is Directory",
			path:          "/logs",
			createDir:     true,
			expectedError: ErrPathIsDir,
		},
		{
			name:          "Empty Path",
			path:          "",
			expectedError: ErrInvalidPath,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			afs := afero.NewMemMapFs()

			if test.fileContents != nil {
				require.NoError(t, afero.WriteFile(afs, test.path, test.fileContents, 0644), "failed to create file")
			}
			if test.createDir {
				require.NoError(t, afs.MkdirAll(test.path, 0755), "failed to create directory")
			}

			err := ValidateFile(afs, test.path)

			if test.expectedError != nil {
				require.ErrorIs(t, err, test.expectedError, "error should match expected value")
			} else {
				require.NoError(t, err, "did not expect an error but got one")
			}
		})
	}
}

func TestValidateDirectory(t *testing.T) {
	afs := afero.NewMemMapFs()

	require.NoError(t, afero.WriteFile(afs, "/logs/conn.log", []byte("data"), 0644))
	require.NoError(t, ValidateDirectory(afs, "/logs"))

	require.ErrorIs(t, ValidateDirectory(afs, "/missing"), ErrDirDoesNotExist)
	require.ErrorIs(t, ValidateDirectory(afs, "/logs/conn.log"), ErrPathIsNotDir)

	require.NoError(t, afs.MkdirAll("/empty", 0755))
	require.ErrorIs(t, ValidateDirectory(afs, "/empty"), ErrDirIsEmpty)
}

func TestGetFileContents(t *testing.T) {
	afs := afero.NewMemMapFs()

	expected := []byte("log contents")
	require.NoError(t, afero.WriteFile(afs, "/logs/conn.log", expected, 0644))

	contents, err := GetFileContents(afs, "/logs/conn.log")
	require.NoError(t, err)
	require.Equal(t, expected, contents, "file contents should match expected value")

	_, err = GetFileContents(afs, "/logs/missing.log")
	require.ErrorIs(t, err, ErrFileDoesNotExist)
}

func TestParseRelativePath(t *testing.T) {
	// empty paths are rejected
	_, err := ParseRelativePath("")
	require.ErrorIs(t, err, ErrInvalidPath)

	// absolute paths pass through untouched
	path, err := ParseRelativePath("/etc/rcr/config.hjson")
	require.NoError(t, err)
	require.Equal(t, "/etc/rcr/config.hjson", path)

	// dot-relative paths are anchored to the working directory
	path, err = ParseRelativePath("./config.hjson")
	require.NoError(t, err)
	require.NotEqual(t, "./config.hjson", path)
	require.Contains(t, path, "config.hjson")
}
