package domain

import (
	"fmt"
	"math"
	"strings"
)

// BiasPolicy selects how a directional bias is applied around the
// tropopause.
type BiasPolicy uint8

const (
	// BiasAdditive adds strength·(cos d, sin d) at or below the tropopause
	// and subtracts it above.
	BiasAdditive BiasPolicy = iota
	// BiasMultiplicative scales u and v by (UFactor, VFactor) at or below
	// the tropopause and by their negation above.
	BiasMultiplicative
	// BiasNone leaves grids untouched and skips the tropopause comparison.
	BiasNone
)

var biasPolicyNames = map[BiasPolicy]string{
	BiasAdditive:       "additive",
	BiasMultiplicative: "multiplicative",
	BiasNone:           "none",
}

func (p BiasPolicy) String() string {
	if s, ok := biasPolicyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("BiasPolicy(%d)", uint8(p))
}

// ParseBiasPolicy accepts "additive", "multiplicative" or "none". The empty
// string is the canonical additive policy.
func ParseBiasPolicy(s string) (BiasPolicy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return BiasAdditive, nil
	}
	for p, name := range biasPolicyNames {
		if name == s {
			return p, nil
		}
	}
	return 0, inputError(ErrUnknownBiasPolicy, "bias_policy", s)
}

func (p BiasPolicy) MarshalText() ([]byte, error) {
	if _, ok := biasPolicyNames[p]; !ok {
		return nil, inputError(ErrUnknownBiasPolicy, "bias_policy", uint8(p))
	}
	return []byte(p.String()), nil
}

func (p *BiasPolicy) UnmarshalText(text []byte) error {
	v, err := ParseBiasPolicy(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Bias is a run-scoped directional bias. Direction is in radians.
type Bias struct {
	Policy    BiasPolicy `json:"policy" toml:"policy"`
	Direction float64    `json:"direction" toml:"direction"`
	Strength  float64    `json:"strength" toml:"strength"`
	UFactor   float64    `json:"u_factor,omitempty" toml:"u_factor"`
	VFactor   float64    `json:"v_factor,omitempty" toml:"v_factor"`
}

// NewRunBias draws an additive bias direction uniformly from [0, 2π) with a
// source seeded by seed. Draw it once per run and pass it to every build.
func NewRunBias(seed int64, strength float64) Bias {
	return Bias{
		Policy:    BiasAdditive,
		Direction: NewRandomSource(seed).Uniform(0, 2*math.Pi),
		Strength:  strength,
	}
}

// MultiplicativeBias returns the fixed-factor bias variant.
func MultiplicativeBias(uFactor, vFactor float64) Bias {
	return Bias{Policy: BiasMultiplicative, UFactor: uFactor, VFactor: vFactor}
}

func (b Bias) validate() error {
	if _, ok := biasPolicyNames[b.Policy]; !ok {
		return inputError(ErrUnknownBiasPolicy, "bias_policy", uint8(b.Policy))
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"bias_direction", b.Direction},
		{"bias_strength", b.Strength},
		{"bias_u_factor", b.UFactor},
		{"bias_v_factor", b.VFactor},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("invalid %s: %v", f.name, f.value)
		}
	}
	return nil
}

// ApplyBias applies b to g in place. A level at or below tropopause takes
// the positive term, anything above takes the negated term. Label levels
// fail with ErrTypeMismatch and leave g unchanged.
func ApplyBias(g *WindGrid2D, tropopause float64, b Bias) error {
	if err := b.validate(); err != nil {
		return err
	}
	if b.Policy == BiasNone {
		return nil
	}
	if err := CheckTropopause(tropopause); err != nil {
		return err
	}
	if err := g.checkShape(); err != nil {
		return err
	}
	under, err := g.Level.AtOrBelow(tropopause)
	if err != nil {
		return fmt.Errorf("apply bias at tropopause %v: %w", tropopause, err)
	}
	sign := 1.0
	if !under {
		sign = -1.0
	}

	switch b.Policy {
	case BiasAdditive:
		g.addScalar(sign*b.Strength*math.Cos(b.Direction), sign*b.Strength*math.Sin(b.Direction))
	case BiasMultiplicative:
		g.scale(sign*b.UFactor, sign*b.VFactor)
	}
	return nil
}
