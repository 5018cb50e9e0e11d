package datasource

import (
	"errors"
	"fmt"

	"github.com/vanderheijden86/beadsync/pkg/loader"
)

// ErrNoValidSource is returned when discovery finds nothing loadable.
var ErrNoValidSource = errors.New("no valid data source")

// ValidateSource opens the source and counts its issues, recording the
// outcome on s. An empty store is invalid.
func ValidateSource(s *DataSource) error {
	s.Valid = false
	s.ValidationError = ""
	s.IssueCount = 0

	count, err := countIssues(*s)
	if err == nil && count == 0 {
		err = errors.New("source holds no issues")
	}
	if err != nil {
		s.ValidationError = err.Error()
		return err
	}
	s.Valid = true
	s.IssueCount = count
	return nil
}

func countIssues(s DataSource) (int, error) {
	switch s.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(s)
		if err != nil {
			return 0, err
		}
		defer reader.Close()
		return reader.CountIssues()
	case SourceTypeJSONL:
		if s.Size == 0 {
			return 0, nil
		}
		issues, err := loader.LoadIssuesFromFileWithOptions(s.Path, loader.ParseOptions{
			WarningHandler: func(string) {},
		})
		if err != nil {
			return 0, err
		}
		return len(issues), nil
	default:
		return 0, fmt.Errorf("unknown source type: %s", s.Type)
	}
}

// SelectBestSource picks the freshest valid source. When sources is already
// ordered by DiscoverSources this is the first valid entry.
func SelectBestSource(sources []DataSource) (DataSource, error) {
	var best *DataSource
	for i := range sources {
		s := &sources[i]
		if !s.Valid {
			continue
		}
		if best == nil ||
			s.ModTime.After(best.ModTime) ||
			(s.ModTime.Equal(best.ModTime) && s.Priority > best.Priority) {
			best = s
		}
	}
	if best == nil {
		return DataSource{}, ErrNoValidSource
	}
	return *best, nil
}
