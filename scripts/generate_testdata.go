//go:build ignore

// generate_testdata.go creates sample projects for trying the board and for
// benchmarking the reconciler.
// Usage: go run scripts/generate_testdata.go
//
// Creates, for each size:
//
//	testdata/<name>/.beads/issues.jsonl   (the full load)
//	testdata/<name>/updates.jsonl         (push envelopes revising every tenth issue)
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/vanderheijden86/beadsync/pkg/push"
	"github.com/vanderheijden86/beadsync/pkg/testutil"
)

type datasetSpec struct {
	name string
	size int
}

var datasets = []datasetSpec{
	{"small", 100},
	{"medium", 1000},
	{"large", 5000},
}

func main() {
	for _, ds := range datasets {
		fmt.Printf("Generating %s dataset (%d issues)...\n", ds.name, ds.size)
		if err := generate(filepath.Join("testdata", ds.name), ds); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to generate %s: %v\n", ds.name, err)
			os.Exit(1)
		}
	}
	fmt.Println("Done!")
}

func generate(dir string, ds datasetSpec) error {
	cfg := testutil.BoardConfig()
	cfg.Seed = int64(ds.size)
	cfg.IDPrefix = "BENCH"
	gen := testutil.New(cfg)
	issues := gen.Issues(ds.size)

	beadsDir := filepath.Join(dir, ".beads")
	if err := os.MkdirAll(beadsDir, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(beadsDir, "issues.jsonl"), []byte(testutil.ToJSONL(issues)), 0644); err != nil {
		return err
	}

	var sb strings.Builder
	for i := 0; i < len(issues); i += 10 {
		data, err := json.Marshal(push.UpsertEnvelope(gen.Revise(issues[i], time.Hour)))
		if err != nil {
			return err
		}
		sb.Write(data)
		sb.WriteByte('\n')
	}
	return os.WriteFile(filepath.Join(dir, "updates.jsonl"), []byte(sb.String()), 0644)
}
