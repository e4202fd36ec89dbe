package plan

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-windfield/internal/domain"
)

const customPlan = `
name = "strait"
base_seed = 42
levels = ["40m", "80m"]
leads = [3]

[region]
south = 48.0
north = 49.0
east = -123.0
west = -124.0
resolution = 0.5

[bias]
policy = "none"

[schedule]
base = 1.0
increment = 0.5

[perturbation]
kind = "uniform_scale"
sigma = 0.25
seed = 9
`

func TestDefault(t *testing.T) {
	p := Default()
	require.NoError(t, p.Validate())

	levels, err := p.LevelList()
	require.NoError(t, err)
	require.Len(t, levels, 13)
	assert.Equal(t, domain.PressureLevel(540), levels[0])
	assert.Equal(t, domain.PressureLevel(0.28), levels[12])
	assert.Equal(t, domain.GridSize{Rows: 9, Cols: 22}, p.Region.Size())

	scenarios, err := p.Scenarios()
	require.NoError(t, err)
	require.Len(t, scenarios, 4)

	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.ID
		assert.Equal(t, int64(1234), s.BaseSeed)
	}
	assert.Equal(t, []string{
		"vancouver-island-nowcast",
		"vancouver-island-lead-01",
		"vancouver-island-lead-02",
		"vancouver-island-lead-07",
	}, names)

	d := p.Defaults()
	assert.Equal(t, domain.NewRunBias(1234, 3.0), d.Bias)
	assert.Equal(t, domain.DefaultTropopause, d.Tropopause)

	std, err := d.Schedule.ForStep(scenarios[3].LeadIndex)
	require.NoError(t, err)
	assert.InDelta(t, 2.35, std, 1e-12)
}

func TestParse_OverridesDefaults(t *testing.T) {
	p, err := Parse(strings.NewReader(customPlan))
	require.NoError(t, err)

	assert.Equal(t, "strait", p.Name)
	assert.Equal(t, int64(42), p.BaseSeed)
	assert.Equal(t, domain.DefaultTropopause, p.Tropopause, "unset keys keep the default")
	assert.Equal(t, domain.StdDevSchedule{Base: 1, Increment: 0.5}, p.Schedule)
	assert.Equal(t, domain.BiasNone, p.Bias.Policy)
	assert.Equal(t, domain.PerturbUniformScale, p.Perturbation.Kind)

	levels, err := p.LevelList()
	require.NoError(t, err)
	assert.Equal(t, []domain.Level{domain.LabelLevel("40m"), domain.LabelLevel("80m")}, levels)

	scenarios, err := p.Scenarios()
	require.NoError(t, err)
	require.Len(t, scenarios, 1)
	s := scenarios[0]
	assert.Equal(t, "strait-lead-03", s.ID)
	assert.Equal(t, 0.25, s.PerturbationSigma)
	assert.Equal(t, int64(9), s.PerturbationSeed)

	// Labels are fine without a bias, and the plan builds end to end.
	f, err := s.Build(p.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.Equal(t, 2.5, f.StdDev())
}

func TestParse_MixedLevelsFailAtBuild(t *testing.T) {
	p, err := Parse(strings.NewReader(`levels = [850, "40m"]`))
	require.NoError(t, err)

	scenarios, err := p.Scenarios()
	require.NoError(t, err)
	_, err = scenarios[0].Build(p.Defaults())
	require.ErrorIs(t, err, domain.ErrTypeMismatch)
}

func TestParse_FixedDirection(t *testing.T) {
	p, err := Parse(strings.NewReader("[bias]\ndirection = 0.5\nstrength = 2.0\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.Bias{Policy: domain.BiasAdditive, Direction: 0.5, Strength: 2}, p.RunBias())
}

func TestParse_Multiplicative(t *testing.T) {
	p, err := Parse(strings.NewReader("[bias]\npolicy = \"multiplicative\"\nu_factor = 1.1\nv_factor = 0.9\n"))
	require.NoError(t, err)
	assert.Equal(t, domain.MultiplicativeBias(1.1, 0.9), p.RunBias())
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"syntax", "name = ", "decode plan"},
		{"unknown key", "colour = \"blue\"", "unknown keys colour"},
		{"unknown policy", "[bias]\npolicy = \"sideways\"", "decode plan"},
		{"unknown perturbation", "[perturbation]\nkind = \"wobble\"", "decode plan"},
		{"empty name", "name = \"\"", "name is required"},
		{"no leads", "leads = []", "no leads"},
		{"negative lead", "leads = [-1]", "lead -1"},
		{"duplicate lead", "leads = [2, 2]", "listed twice"},
		{"bad level", "levels = [true]", "levels[0]"},
		{"bad resolution", "[region]\nresolution = 0.0", "resolution"},
		{"nan tropopause", "tropopause = nan", "invalid tropopause"},
		{"infinite tropopause", "tropopause = -inf", "invalid tropopause"},
		{"too many cells", "[region]\nsouth = -90.0\nnorth = 90.0\neast = -180.0\nwest = 180.0\nresolution = 1e-300", "invalid bounding box"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.toml")
	require.NoError(t, os.WriteFile(path, []byte(customPlan), 0o600))

	p, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "strait", p.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestEncode_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Default().Encode(&buf))

	p, err := Parse(&buf)
	require.NoError(t, err)

	want, err := Default().Scenarios()
	require.NoError(t, err)
	got, err := p.Scenarios()
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, Default().Defaults(), p.Defaults())
}
