// Command validate performs integrity checks on a directory of generated
// wind field documents. Every document must decode, regenerate bit for bit
// from its embedded scenario, and carry a plausible field. When a request
// fixture is given, every request must have a matching document.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -dir data/fields \
//	  -requests data/mock/scenario_requests.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/couchcryptid/storm-data-windfield/internal/codec"
	"github.com/couchcryptid/storm-data-windfield/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// document is one decoded file.
type document struct {
	path string
	doc  codec.Document
}

func main() {
	dir := flag.String("dir", "", "directory containing field documents")
	requests := flag.String("requests", "", "optional JSON array of scenario requests")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dir, *requests); code != 0 {
		os.Exit(code)
	}
}

func run(dir, requestsPath string) int {
	fmt.Println("=== Wind Field Integrity Validation ===")
	fmt.Println()

	docs, decode := loadDocuments(dir, requestsPath)
	if len(docs) == 0 && decode.passed() {
		fmt.Fprintf(os.Stderr, "FATAL: no field documents in %s\n", dir)
		return 1
	}

	phases := []*phase{
		decode,
		validateRegeneration(docs),
		validateFieldShape(docs),
	}
	if requestsPath != "" {
		reqs, err := loadRequests(requestsPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load requests: %v\n", err)
			return 1
		}
		phases = append(phases, validateRequestCoverage(reqs, docs))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Documents: %d\n", len(docs))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Decode ──

func loadDocuments(dir, skip string) ([]document, *phase) {
	p := &phase{name: "Phase 1: Decode (documents)"}

	entries, err := os.ReadDir(dir)
	if err != nil {
		p.errorf("read dir: %v", err)
		return nil, p
	}

	skipAbs, _ := filepath.Abs(skip)
	var docs []document
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		enc, ok := codec.EncodingForPath(e.Name())
		if !ok {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if abs, _ := filepath.Abs(path); skip != "" && abs == skipAbs {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			p.errorf("%s: %v", e.Name(), err)
			continue
		}
		doc, err := codec.Decode(data, enc)
		if err != nil {
			p.errorf("%s: %v", e.Name(), err)
			continue
		}
		docs = append(docs, document{path: e.Name(), doc: doc})
	}
	return docs, p
}

// ── Phase 2: Regeneration ──
// Rebuilds every field from its embedded scenario and compares bit for bit.

func validateRegeneration(docs []document) *phase {
	p := &phase{name: "Phase 2: Regeneration (determinism)"}

	for _, d := range docs {
		s := d.doc.Scenario
		if s.StdDev == nil || s.Tropopause == nil || s.Bias == nil {
			p.errorf("%s: embedded scenario is not resolved", d.path)
			continue
		}
		if *s.StdDev != d.doc.StdDev {
			p.errorf("%s: std_dev %g does not match scenario %g", d.path, d.doc.StdDev, *s.StdDev)
		}

		got, err := d.doc.Field()
		if err != nil {
			p.errorf("%s: rebuild stored field: %v", d.path, err)
			continue
		}
		want, err := s.Build(domain.Defaults{})
		if err != nil {
			p.errorf("%s: regenerate: %v", d.path, err)
			continue
		}
		if !want.Equal(got) {
			p.errorf("%s: stored field differs from regenerated field", d.path)
		}
	}
	return p
}

// ── Phase 3: Field Shape ──
// Checks grid sizes, level order, per-level seeds and value sanity.

func validateFieldShape(docs []document) *phase {
	p := &phase{name: "Phase 3: Field Shape (grids)"}

	for _, d := range docs {
		checkDocumentShape(p, d)
	}
	return p
}

func checkDocumentShape(p *phase, d document) {
	s := d.doc.Scenario
	if want := s.Region.Size(); d.doc.Size != want {
		p.errorf("%s: size %dx%d, region implies %dx%d", d.path, d.doc.Size.Rows, d.doc.Size.Cols, want.Rows, want.Cols)
	}
	if len(d.doc.Levels) != len(s.Levels) {
		p.errorf("%s: %d levels, scenario lists %d", d.path, len(d.doc.Levels), len(s.Levels))
		return
	}

	cells := d.doc.Size.Cells()
	for i, lg := range d.doc.Levels {
		if lg.Level != s.Levels[i] {
			p.errorf("%s: level %d is %s, scenario lists %s", d.path, i, lg.Level, s.Levels[i])
		}
		if want := s.BaseSeed + int64(2*i); lg.Seed != want {
			p.errorf("%s: level %s seed %d, expected %d", d.path, lg.Level, lg.Seed, want)
		}
		if len(lg.U) != cells || len(lg.V) != cells {
			p.errorf("%s: level %s has %d/%d values, expected %d", d.path, lg.Level, len(lg.U), len(lg.V), cells)
			continue
		}
		if !allFinite(lg.U) || !allFinite(lg.V) {
			p.errorf("%s: level %s has non-finite values", d.path, lg.Level)
		}
		// u and v come from separate seeds, so they only coincide when the
		// spread is zero.
		if d.doc.StdDev > 0 && cells > 0 && slices.Equal(lg.U, lg.V) {
			p.errorf("%s: level %s has identical u and v", d.path, lg.Level)
		}
	}
}

// ── Phase 4: Request Coverage ──

func loadRequests(path string) ([]domain.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reqs []domain.Scenario
	if err := json.Unmarshal(data, &reqs); err != nil {
		return nil, err
	}
	return reqs, nil
}

func validateRequestCoverage(reqs []domain.Scenario, docs []document) *phase {
	p := &phase{name: "Phase 4: Request Coverage (fixtures)"}

	byKey := make(map[string]codec.Document, len(docs))
	for _, d := range docs {
		byKey[d.doc.Scenario.Key()] = d.doc
	}

	for i, r := range reqs {
		doc, ok := byKey[r.Key()]
		if !ok {
			p.errorf("request %d (%s): no document", i, r.Key())
			continue
		}
		if doc.Scenario.LeadIndex != r.LeadIndex {
			p.errorf("request %d (%s): lead %d, document has %d", i, r.Key(), r.LeadIndex, doc.Scenario.LeadIndex)
		}
		if doc.Scenario.BaseSeed != r.BaseSeed {
			p.errorf("request %d (%s): base seed %d, document has %d", i, r.Key(), r.BaseSeed, doc.Scenario.BaseSeed)
		}
		if doc.Scenario.Region != r.Region {
			p.errorf("request %d (%s): region mismatch", i, r.Key())
		}
		if !slices.Equal(doc.Scenario.Levels, r.Levels) {
			p.errorf("request %d (%s): level list mismatch", i, r.Key())
		}
	}
	if len(reqs) != len(docs) {
		p.errorf("%d requests, %d documents", len(reqs), len(docs))
	}
	return p
}

// ── Helpers ──

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
