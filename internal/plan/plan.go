// Package plan describes offline generation runs as TOML files.
//
// A plan names one region, one level list and a set of lead indexes; each
// lead index becomes one scenario. Example:
//
//	name       = "vancouver-island"
//	base_seed  = 1234
//	tropopause = 264.0
//	levels     = [540, 382, 265, 177]
//	leads      = [0, 1, 2, 7]
//
//	[region]
//	south = 48.5
//	north = 50.75
//	east = -123.0
//	west = -128.5
//	resolution = 0.25
//
//	[bias]
//	policy = "additive"
//	strength = 3.0
//	seed = 1234
//
//	[schedule]
//	base = 2.0
//	increment = 0.05
//
//	[perturbation]
//	kind = "gradient_scale"
//	sigma = 0.5
//	seed = 99
package plan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/couchcryptid/storm-data-windfield/internal/domain"
)

// Plan is a decoded generation plan.
type Plan struct {
	Name         string                `toml:"name"`
	Region       domain.BoundingBox    `toml:"region"`
	Levels       []any                 `toml:"levels"`
	BaseSeed     int64                 `toml:"base_seed"`
	Tropopause   float64               `toml:"tropopause"`
	Leads        []int                 `toml:"leads"`
	Schedule     domain.StdDevSchedule `toml:"schedule"`
	Bias         Bias                  `toml:"bias"`
	Perturbation Perturbation          `toml:"perturbation"`
}

// Bias configures the run bias. For the additive policy the direction is
// drawn from Seed unless Direction (radians) is given.
type Bias struct {
	Policy    domain.BiasPolicy `toml:"policy"`
	Strength  float64           `toml:"strength"`
	Seed      int64             `toml:"seed"`
	Direction *float64          `toml:"direction,omitempty"`
	UFactor   float64           `toml:"u_factor"`
	VFactor   float64           `toml:"v_factor"`
}

// Perturbation is applied to every scenario of the plan.
type Perturbation struct {
	Kind  domain.Perturbation `toml:"kind"`
	Sigma float64             `toml:"sigma"`
	Seed  int64               `toml:"seed"`
}

// Pressure altitudes (hPa) for 5-35 km in 2.5 km steps.
var defaultLevels = []float64{540, 382, 265, 177, 115, 72, 43, 24, 13, 6.2, 2.7, 0.97, 0.28}

// Default returns the Vancouver Island plan: the nowcast plus leads 1, 2
// and 7 over 13 pressure levels.
func Default() Plan {
	levels := make([]any, len(defaultLevels))
	for i, v := range defaultLevels {
		levels[i] = v
	}
	return Plan{
		Name:       "vancouver-island",
		Region:     domain.BoundingBox{South: 48.5, North: 50.75, East: -123.0, West: -128.5, Resolution: 0.25},
		Levels:     levels,
		BaseSeed:   1234,
		Tropopause: domain.DefaultTropopause,
		Leads:      []int{0, 1, 2, 7},
		Schedule:   domain.DefaultSchedule(),
		Bias:       Bias{Policy: domain.BiasAdditive, Strength: 3.0, Seed: 1234},
	}
}

// Load reads a plan file. Keys missing from the file keep their Default
// values; unknown keys are an error.
func Load(path string) (Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return Plan{}, fmt.Errorf("open plan: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a plan from r on top of Default.
func Parse(r io.Reader) (Plan, error) {
	p := Default()
	md, err := toml.NewDecoder(r).Decode(&p)
	if err != nil {
		return Plan{}, fmt.Errorf("decode plan: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Plan{}, fmt.Errorf("decode plan: unknown keys %s", strings.Join(keys, ", "))
	}
	if err := p.Validate(); err != nil {
		return Plan{}, err
	}
	return p, nil
}

// Encode writes p as TOML.
func (p Plan) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(p)
}

// Validate checks the plan-level settings. Per-scenario inputs are checked
// when the fields are built.
func (p Plan) Validate() error {
	if p.Name == "" {
		return errors.New("plan name is required")
	}
	if len(p.Leads) == 0 {
		return errors.New("plan has no leads")
	}
	seen := make(map[int]bool, len(p.Leads))
	for _, l := range p.Leads {
		if l < 0 {
			return fmt.Errorf("lead %d: %w", l, domain.ErrInvalidLeadIndex)
		}
		if seen[l] {
			return fmt.Errorf("lead %d listed twice", l)
		}
		seen[l] = true
	}
	if _, err := p.LevelList(); err != nil {
		return err
	}
	if err := domain.CheckTropopause(p.Tropopause); err != nil {
		return err
	}
	return p.Region.Validate()
}

// LevelList converts the decoded level values. Integers and floats become
// pressure levels, strings become labels.
func (p Plan) LevelList() ([]domain.Level, error) {
	levels := make([]domain.Level, len(p.Levels))
	for i, v := range p.Levels {
		l, err := domain.LevelFromAny(v)
		if err != nil {
			return nil, fmt.Errorf("levels[%d]: %w", i, err)
		}
		levels[i] = l
	}
	return levels, nil
}

// RunBias returns the bias shared by every scenario of the plan.
func (p Plan) RunBias() domain.Bias {
	switch p.Bias.Policy {
	case domain.BiasMultiplicative:
		return domain.MultiplicativeBias(p.Bias.UFactor, p.Bias.VFactor)
	case domain.BiasNone:
		return domain.Bias{Policy: domain.BiasNone}
	}
	if p.Bias.Direction != nil {
		return domain.Bias{Policy: domain.BiasAdditive, Direction: *p.Bias.Direction, Strength: p.Bias.Strength}
	}
	return domain.NewRunBias(p.Bias.Seed, p.Bias.Strength)
}

// Defaults returns the generator defaults for the plan.
func (p Plan) Defaults() domain.Defaults {
	return domain.Defaults{
		Schedule:   p.Schedule,
		Tropopause: p.Tropopause,
		Bias:       p.RunBias(),
	}
}

// Scenarios returns one scenario per lead, in lead order as listed. Every
// scenario shares the plan's base seed, so leads differ only in spread.
func (p Plan) Scenarios() ([]domain.Scenario, error) {
	levels, err := p.LevelList()
	if err != nil {
		return nil, err
	}
	out := make([]domain.Scenario, 0, len(p.Leads))
	for _, lead := range p.Leads {
		out = append(out, domain.Scenario{
			ID:                ScenarioName(p.Name, lead),
			Region:            p.Region,
			Levels:            slices.Clone(levels),
			LeadIndex:         lead,
			BaseSeed:          p.BaseSeed,
			Perturbation:      p.Perturbation.Kind,
			PerturbationSigma: p.Perturbation.Sigma,
			PerturbationSeed:  p.Perturbation.Seed,
		})
	}
	return out, nil
}

// ScenarioName is "<plan>-nowcast" for lead 0 and "<plan>-lead-NN" otherwise.
func ScenarioName(plan string, lead int) string {
	if lead == 0 {
		return plan + "-nowcast"
	}
	return fmt.Sprintf("%s-lead-%02d", plan, lead)
}
