package domain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DefaultTropopause is the approximate tropopause pressure altitude (hPa)
// over Vancouver Island.
const DefaultTropopause = 264.0

// Scenario is one request for a wind field: a region and level list at a
// forecast lead time, plus optional overrides and a perturbation step.
// Nil overrides fall back to the generator's Defaults.
type Scenario struct {
	ID         string      `json:"id,omitempty"`
	Region     BoundingBox `json:"region"`
	Levels     []Level     `json:"levels"`
	LeadIndex  int         `json:"lead_index"`
	BaseSeed   int64       `json:"base_seed"`
	StdDev     *float64    `json:"std_dev,omitempty"`
	Tropopause *float64    `json:"tropopause,omitempty"`
	Bias       *Bias       `json:"bias,omitempty"`

	Perturbation      Perturbation `json:"perturbation,omitempty"`
	PerturbationSigma float64      `json:"perturbation_sigma,omitempty"`
	PerturbationSeed  int64        `json:"perturbation_seed,omitempty"`
}

// Defaults fill in whatever a Scenario leaves unset. Bias is the run-scoped
// bias drawn once per process.
type Defaults struct {
	Schedule   StdDevSchedule
	Tropopause float64
	Bias       Bias
}

// Resolve returns a copy of s with every override filled from d.
func (s Scenario) Resolve(d Defaults) (Scenario, error) {
	if s.StdDev == nil {
		std, err := d.Schedule.ForStep(s.LeadIndex)
		if err != nil {
			return Scenario{}, err
		}
		s.StdDev = &std
	} else if s.LeadIndex < 0 {
		return Scenario{}, inputError(ErrInvalidLeadIndex, "lead_index", s.LeadIndex)
	}
	if s.Tropopause == nil {
		t := d.Tropopause
		s.Tropopause = &t
	}
	if s.Bias == nil {
		b := d.Bias
		s.Bias = &b
	}
	s.Levels = append([]Level(nil), s.Levels...)
	return s, nil
}

// Build resolves s against d, builds the field and applies the requested
// perturbation. Nothing is returned unless every step succeeds.
func (s Scenario) Build(d Defaults) (*WindField3D, error) {
	r, err := s.Resolve(d)
	if err != nil {
		return nil, err
	}
	field, err := BuildWindField3D(FieldSpec{
		BBox:       r.Region,
		StdDev:     *r.StdDev,
		Levels:     r.Levels,
		BaseSeed:   r.BaseSeed,
		Tropopause: *r.Tropopause,
		Bias:       *r.Bias,
	})
	if err != nil {
		return nil, err
	}
	if r.Perturbation == PerturbNone {
		return field, nil
	}
	return field.Perturbed(r.Perturbation, r.PerturbationSigma, r.PerturbationSeed)
}

// Fingerprint is a SHA-256 over the scenario's parameters, excluding ID.
// Equal fingerprints under the same Defaults yield identical fields.
func (s Scenario) Fingerprint() string {
	s.ID = ""
	data, err := json.Marshal(s)
	if err != nil {
		// Unknown enum tags and non-finite numbers do not marshal. Hash the
		// values behind the pointers instead of the pointers themselves.
		data = fmt.Appendf(nil, "%#v", s.fingerprintFields())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

type fingerprintFields struct {
	Region            BoundingBox
	Levels            []Level
	LeadIndex         int
	BaseSeed          int64
	StdDev            []float64
	Tropopause        []float64
	Bias              []Bias
	Perturbation      Perturbation
	PerturbationSigma float64
	PerturbationSeed  int64
}

func (s Scenario) fingerprintFields() fingerprintFields {
	f := fingerprintFields{
		Region:            s.Region,
		Levels:            s.Levels,
		LeadIndex:         s.LeadIndex,
		BaseSeed:          s.BaseSeed,
		Perturbation:      s.Perturbation,
		PerturbationSigma: s.PerturbationSigma,
		PerturbationSeed:  s.PerturbationSeed,
	}
	if s.StdDev != nil {
		f.StdDev = []float64{*s.StdDev}
	}
	if s.Tropopause != nil {
		f.Tropopause = []float64{*s.Tropopause}
	}
	if s.Bias != nil {
		f.Bias = []Bias{*s.Bias}
	}
	return f
}

// Key returns the scenario ID, or its fingerprint when no ID is set.
func (s Scenario) Key() string {
	if s.ID != "" {
		return s.ID
	}
	return s.Fingerprint()
}

// ParseScenario decodes a JSON scenario request.
func ParseScenario(data []byte) (Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return Scenario{}, fmt.Errorf("parse scenario: %w", err)
	}
	return s, nil
}

// FieldGenerator builds the wind field for a scenario.
type FieldGenerator interface {
	Generate(ctx context.Context, s Scenario) (*WindField3D, error)
}

// Generator builds fields synchronously against fixed Defaults.
type Generator struct {
	defaults Defaults
}

// NewGenerator returns a Generator using d for unset scenario fields.
func NewGenerator(d Defaults) *Generator {
	return &Generator{defaults: d}
}

// Defaults returns the generator's run-scoped defaults.
func (g *Generator) Defaults() Defaults { return g.defaults }

// Generate builds the field for s. The build itself is bounded and is not
// interrupted; ctx is only checked before starting.
func (g *Generator) Generate(ctx context.Context, s Scenario) (*WindField3D, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Build(g.defaults)
}
