// Command windgen builds every scenario of a generation plan and writes one
// field document per scenario. It uses the same domain and codec packages as
// the service so the files match what the pipeline publishes.
//
// Usage:
//
//	go run ./cmd/windgen \
//	  -plan plans/vancouver.toml \
//	  -out data/fields \
//	  -encoding msgpack+zstd \
//	  -requests-out data/mock/scenario_requests.json
//
// Without -plan the built-in Vancouver Island plan is used. -print-plan writes
// that plan as TOML and exits.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-data-windfield/internal/codec"
	"github.com/couchcryptid/storm-data-windfield/internal/domain"
	"github.com/couchcryptid/storm-data-windfield/internal/plan"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	planPath := flag.String("plan", "", "generation plan (TOML); defaults to the built-in plan")
	outDir := flag.String("out", "", "output directory for field documents")
	encoding := flag.String("encoding", string(codec.EncodingJSON), "document encoding: json or msgpack+zstd")
	requestsOut := flag.String("requests-out", "", "optional path for a JSON array of the scenario requests")
	generatedAt := flag.String("generated-at", "", "fixed RFC 3339 timestamp for generated_at")
	workers := flag.Int("workers", runtime.GOMAXPROCS(0), "scenarios built concurrently")
	printPlan := flag.Bool("print-plan", false, "print the plan as TOML and exit")
	flag.Parse()

	p := plan.Default()
	if *planPath != "" {
		var err error
		if p, err = plan.Load(*planPath); err != nil {
			return err
		}
	}
	if *printPlan {
		return p.Encode(os.Stdout)
	}

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	enc, err := codec.ParseEncoding(*encoding)
	if err != nil {
		return err
	}

	if *generatedAt != "" {
		at, err := time.Parse(time.RFC3339, *generatedAt)
		if err != nil {
			return fmt.Errorf("parse -generated-at: %w", err)
		}
		domain.SetClock(clockwork.NewFakeClockAt(at))
		defer domain.SetClock(nil)
	}

	scenarios, err := p.Scenarios()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	defaults := p.Defaults()
	var g errgroup.Group
	g.SetLimit(max(*workers, 1))
	for _, s := range scenarios {
		g.Go(func() error {
			return writeField(*outDir, s, defaults, enc)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	log.Printf("plan %s: %d fields written to %s", p.Name, len(scenarios), *outDir)

	if *requestsOut != "" {
		if err := writeRequests(*requestsOut, scenarios); err != nil {
			return err
		}
		log.Printf("requests written to %s", *requestsOut)
	}
	return nil
}

func writeField(dir string, s domain.Scenario, d domain.Defaults, enc codec.Encoding) error {
	resolved, err := s.Resolve(d)
	if err != nil {
		return fmt.Errorf("scenario %s: %w", s.ID, err)
	}
	field, err := resolved.Build(domain.Defaults{})
	if err != nil {
		return fmt.Errorf("scenario %s: %w", s.ID, err)
	}

	data, err := codec.Encode(codec.FromField(field, resolved, domain.Now()), enc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", s.ID, err)
	}
	path := filepath.Join(dir, s.ID+enc.Ext())
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // fixture files are meant to be shared
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("%s: std=%.2f levels=%d size=%dx%d", s.ID, field.StdDev(), field.Len(), field.Size().Rows, field.Size().Cols)
	return nil
}

func writeRequests(path string, scenarios []domain.Scenario) error {
	data, err := json.MarshalIndent(scenarios, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal requests: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create requests dir: %w", err)
	}
	return os.WriteFile(path, append(data, '\n'), 0o644) //nolint:gosec // fixture files are meant to be shared
}
