package importer

import (
	"bufio"
	"compress/gzip"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/faanross/RCR-payload-jitter/analysis"
	zlog "github.com/faanross/RCR-payload-jitter/logger"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
)

var errTruncated = errors.New("log file is potentially truncated")
var errCorrupted = errors.New("log file is potentially corrupted")
var errEmptyFile = errors.New("log file is empty")
var errMissingFields = errors.New("TSV Zeek header does not define the required conn log fields")

const lineErrorLimit = 25

// connHeader stores the state parsed out of a Zeek TSV header block along
// with the column positions of the two fields the extractor cares about
type connHeader struct {
	separator    string
	setSeparator string
	emptyField   string
	unsetField   string
	path         string
	fieldOrder   []string
	isTSV        bool
	isJSON       bool
	respHostIdx  int
	bytesIdx     int
}

// ExtractDatasets pulls one byte-count sample per configured IP out of the
// conn log at path. The sample for an IP holds the orig_ip_bytes value of
// every entry whose responder host matches that IP and whose byte count is
// set. IPs with no matching entries are logged and skipped, so an empty
// sample never reaches the analyzer.
func ExtractDatasets(afs afero.Fs, path string, ipLabels map[string]string) ([]analysis.Dataset, error) {
	logger := zlog.GetLogger()

	samples := make(map[string][]float64, len(ipLabels))
	err := parseConnFile(afs, path, func(respHost string, origIPBytes float64) {
		if _, ok := ipLabels[respHost]; ok {
			samples[respHost] = append(samples[respHost], origIPBytes)
		}
	})
	if err != nil {
		return nil, err
	}

	// iterate the configured IPs in a stable order
	ips := make([]string, 0, len(ipLabels))
	for ip := range ipLabels {
		ips = append(ips, ip)
	}
	sort.Strings(ips)

	var datasets []analysis.Dataset
	for _, ip := range ips {
		sample := samples[ip]
		if len(sample) == 0 {
			logger.Warn().Str("path", path).Str("ip", ip).Msg("no valid data found for IP, skipping dataset")
			continue
		}

		logger.Info().Str("path", path).Str("ip", ip).Int("connection_count", len(sample)).Msg("extracted dataset")

		datasets = append(datasets, analysis.Dataset{
			LogFile: filepath.Base(path),
			IP:      ip,
			Label:   ipLabels[ip],
			Sample:  sample,
		})
	}

	return datasets, nil
}

// parseConnFile determines whether the file at path is a TSV or JSON Zeek
// conn log, scans through each line, and calls emit with the responder host
// and orig_ip_bytes value of every entry that has both fields set
func parseConnFile(afs afero.Fs, path string, emit func(respHost string, origIPBytes float64)) error {
	logger := zlog.GetLogger()

	empty, err := afero.IsEmpty(afs, path)
	if err != nil {
		return fmt.Errorf("could not determine if file is empty: %w", err)
	}
	if empty {
		return fmt.Errorf("%w: %s", errEmptyFile, path)
	}

	file, err := afs.Open(path)
	if err != nil {
		return fmt.Errorf("could not open file for parsing: %w", err)
	}
	defer file.Close()

	// set up a new scanner to read from file
	var scanner *bufio.Scanner
	if strings.HasSuffix(path, ".gz") {
		// create gzip reader if the file extension insinuates that the file is compressed
		gzipReader, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("could not open compressed file: %w", err)
		}
		scanner = bufio.NewScanner(gzipReader)
		defer gzipReader.Close()
	} else {
		scanner = bufio.NewScanner(file)
	}

	// set a buffer for the scanner
	initialBufferSize := 64 * 1024 // 64KiB
	maxBufferSize := 1024 * 1024   // 1MiB
	scanner.Buffer(make([]byte, 0, initialBufferSize), maxBufferSize)

	var header connHeader

	// allow us to stop scanning in lines from a file that produced more than
	// a certain amount of errors
	lineErrorCounter := 0
	previousLineHadError := false

	for scanner.Scan() {
		if scanner.Err() != nil {
			return fmt.Errorf("could not scan the file: %w", scanner.Err())
		}

		// skip empty lines
		if len(scanner.Bytes()) < 1 {
			continue
		}

		// if the format has not been determined yet, attempt to detect it
		if !header.isJSON && !header.isTSV {
			switch {

			// comment lines make up the TSV header block
			case scanner.Bytes()[0] == '#':
				header.parseHeaderLine(scanner.Text())
				continue

			// the line is not a comment, so attempt to check if it is JSON
			case scanner.Bytes()[0] == '{' && jsoniter.ConfigCompatibleWithStandardLibrary.Valid(scanner.Bytes()):
				header.isJSON = true

			// not JSON and not a comment: treat as TSV data
			default:
				if header.separator == "" || len(header.fieldOrder) == 0 {
					// no header block was seen; fall back to the canonical
					// conn log column order
					logger.Warn().Str("path", path).Msg("no TSV Zeek header found, assuming default conn log columns")
					header.separator = "\t"
					header.fieldOrder = defaultConnFields
				}
				if err := header.mapFields(); err != nil {
					return fmt.Errorf("%w: %s", err, path)
				}
				header.isTSV = true
			}
		}

		if header.isJSON {
			previousLineHadError = false

			var entry Conn
			if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(scanner.Bytes(), &entry); err != nil {
				logger.Err(err).Str("path", path).Bytes("record", scanner.Bytes()).Msg("failed to unmarshal line from JSON")
				lineErrorCounter++
				previousLineHadError = true
				if lineErrorCounter > lineErrorLimit {
					return fmt.Errorf("%w: %s", errCorrupted, path)
				}
				continue
			}

			// skip entries missing the responder host or an unset byte count
			if entry.Destination == "" || entry.OrigIPBytes == nil {
				continue
			}

			emit(entry.Destination, float64(*entry.OrigIPBytes))
		} else if header.isTSV {
			previousLineHadError = false

			// trailing comment lines close out the file
			if scanner.Bytes()[0] == '#' {
				continue
			}

			fields := strings.Split(scanner.Text(), header.separator)
			if len(fields) <= header.respHostIdx || len(fields) <= header.bytesIdx {
				logger.Err(errTruncated).Str("path", path).Send()
				return fmt.Errorf("%w: %s", errTruncated, path)
			}

			respHost := fields[header.respHostIdx]
			rawBytes := fields[header.bytesIdx]

			// skip entries with unset or empty fields
			if header.fieldUnset(respHost) || header.fieldUnset(rawBytes) {
				continue
			}

			origIPBytes, err := strconv.ParseFloat(rawBytes, 64)
			if err != nil {
				logger.Warn().Err(err).
					Str("path", path).
					Str("field_name", origIPBytesField).
					Str("field_value", rawBytes).
					Msg("failed to parse field in TSV Zeek log")
				lineErrorCounter++
				previousLineHadError = true
				if lineErrorCounter > lineErrorLimit {
					return fmt.Errorf("%w: %s", errCorrupted, path)
				}
				continue
			}

			emit(respHost, origIPBytes)
		}
	}

	// if the last line of the log had an error, indicate that the file may be truncated
	if previousLineHadError {
		return fmt.Errorf("%w: %s", errTruncated, path)
	}

	return nil
}

// parseHeaderLine parses a single comment line of a Zeek TSV header block
func (header *connHeader) parseHeaderLine(line string) {
	potentialFields := strings.Fields(line)
	if len(potentialFields) < 2 {
		return
	}

	// grab from the comment # to the space to get the field name
	potentialFieldName := potentialFields[0][1:]
	potentialFieldValue := convertHexFieldValue(potentialFields[1])

	switch potentialFieldName {
	case "separator":
		header.separator = potentialFieldValue
	case "set_separator":
		header.setSeparator = potentialFieldValue
	case "unset_field":
		header.unsetField = potentialFieldValue
	case "empty_field":
		header.emptyField = potentialFieldValue
	case "path":
		header.path = potentialFieldValue
	case "fields":
		header.fieldOrder = potentialFields[1:]
	}
}

// mapFields locates the columns holding the responder host and byte count
func (header *connHeader) mapFields() error {
	header.respHostIdx = -1
	header.bytesIdx = -1
	for i, field := range header.fieldOrder {
		switch field {
		case respHostField:
			header.respHostIdx = i
		case origIPBytesField:
			header.bytesIdx = i
		}
	}
	if header.respHostIdx == -1 || header.bytesIdx == -1 {
		return errMissingFields
	}
	return nil
}

// fieldUnset reports whether a TSV field value represents an unset or empty
// field, defaulting to the conventional "-" marker when no header declared one
func (header *connHeader) fieldUnset(value string) bool {
	if header.unsetField != "" && value == header.unsetField {
		return true
	}
	if header.emptyField != "" && value == header.emptyField {
		return true
	}
	return value == "-" || value == ""
}

// convertHexFieldValue unquotes escaped header values such as \x09
func convertHexFieldValue(givenValue string) string {
	newValue, err := strconv.Unquote("\"" + givenValue + "\"")
	if err != nil {
		return givenValue
	}
	return newValue
}
