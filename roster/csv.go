package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadCSV parses a header-keyed roster feed. Short rows are accepted; their
// missing cells are simply absent from the resulting RawRow.
func ReadCSV(r io.Reader) ([]RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &DataLoadError{Err: errors.New("feed is empty")}
		}
		return nil, &DataLoadError{Err: fmt.Errorf("failed to read header: %w", err)}
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var rows []RawRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DataLoadError{Err: fmt.Errorf("failed to parse row %d: %w", len(rows)+1, err)}
		}

		row := make(RawRow, len(header))
		for i, value := range record {
			if i >= len(header) {
				break
			}
			row[header[i]] = value
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// ReadCSVFile opens path and parses it with ReadCSV.
func ReadCSVFile(path string) ([]RawRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &DataLoadError{Source: path, Err: err}
	}
	defer file.Close()
	return readCSVFile(file, path)
}

// ReadCSVFileIn parses the file name inside dir. Names that would resolve
// outside dir, through ".." or symlinks or an absolute path, are rejected.
func ReadCSVFileIn(dir, name string) ([]RawRow, error) {
	if dir == "" {
		return nil, &DataLoadError{Source: name, Err: errors.New("no roster directory configured")}
	}
	file, err := os.OpenInRoot(dir, name)
	if err != nil {
		return nil, &DataLoadError{Source: name, Err: err}
	}
	defer file.Close()
	return readCSVFile(file, name)
}

func readCSVFile(file *os.File, source string) ([]RawRow, error) {
	rows, err := ReadCSV(file)
	if err != nil {
		var loadErr *DataLoadError
		if errors.As(err, &loadErr) {
			loadErr.Source = source
		}
		return nil, err
	}
	return rows, nil
}
