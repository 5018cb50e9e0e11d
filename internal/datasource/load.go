package datasource

import (
	"fmt"

	"github.com/vanderheijden86/beadsync/pkg/debug"
	"github.com/vanderheijden86/beadsync/pkg/loader"
	"github.com/vanderheijden86/beadsync/pkg/metrics"
	"github.com/vanderheijden86/beadsync/pkg/model"
)

// LoadIssues loads a full issue set from the freshest valid store in
// beadsDir. When no store validates it falls back to the preferred JSONL
// export so a fresh project with an empty file still loads.
func LoadIssues(beadsDir string) ([]model.Issue, error) {
	defer metrics.Timer(metrics.FullLoad)()

	sources, err := DiscoverSources(beadsDir, DiscoveryOptions{Validate: true})
	if err != nil {
		return nil, err
	}
	best, err := SelectBestSource(sources)
	if err == nil {
		debug.Log("datasource: loading %s", best)
		return LoadFromSource(best)
	}

	jsonlPath, ferr := loader.FindJSONLPath(beadsDir)
	if ferr != nil {
		return nil, fmt.Errorf("%w: %w", err, ferr)
	}
	return loader.LoadIssuesFromFile(jsonlPath)
}

// LoadFromSource reads every issue from one store.
func LoadFromSource(source DataSource) ([]model.Issue, error) {
	switch source.Type {
	case SourceTypeSQLite:
		reader, err := NewSQLiteReader(source)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite source %s: %w", source.Path, err)
		}
		defer reader.Close()
		return reader.LoadIssues()
	case SourceTypeJSONL:
		return loader.LoadIssuesFromFile(source.Path)
	default:
		return nil, fmt.Errorf("unknown source type: %s", source.Type)
	}
}
