package roster

import "fmt"

// DataLoadError reports a roster feed that could not be read or parsed at all.
// Row-level defects never produce one; those rows are dropped.
type DataLoadError struct {
	Source string
	Err    error
}

func (e *DataLoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("failed to load community data: %v", e.Err)
	}
	return fmt.Sprintf("failed to load community data from %s: %v", e.Source, e.Err)
}

func (e *DataLoadError) Unwrap() error {
	return e.Err
}
