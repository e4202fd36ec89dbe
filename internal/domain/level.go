package domain

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// LevelKind distinguishes numeric pressure levels from textual tags.
type LevelKind uint8

const (
	LevelPressure LevelKind = iota // pressure altitude in hPa
	LevelLabel                     // opaque tag such as "700hPa" or "40m"
)

func (k LevelKind) String() string {
	if k == LevelLabel {
		return "label"
	}
	return "pressure"
}

// Level identifies one atmospheric height level. It is comparable and can
// be used as a map key. Labels are never parsed or coerced into numbers.
type Level struct {
	Kind  LevelKind
	Value float64
	Label string
}

// PressureLevel returns a numeric level in hPa.
func PressureLevel(hPa float64) Level {
	return Level{Kind: LevelPressure, Value: hPa}
}

// LabelLevel returns a textual level.
func LabelLevel(tag string) Level {
	return Level{Kind: LevelLabel, Label: tag}
}

// PressureLevels is shorthand for a list of numeric levels.
func PressureLevels(hPa ...float64) []Level {
	levels := make([]Level, len(hPa))
	for i, v := range hPa {
		levels[i] = PressureLevel(v)
	}
	return levels
}

func (l Level) String() string {
	if l.Kind == LevelLabel {
		return l.Label
	}
	return strconv.FormatFloat(l.Value, 'g', -1, 64)
}

// Compare orders two levels of the same kind. Pressure levels compare
// numerically and labels lexically; mixing kinds is ErrTypeMismatch.
func (l Level) Compare(o Level) (int, error) {
	if l.Kind != o.Kind {
		return 0, inputError(ErrTypeMismatch, "level", fmt.Sprintf("%s vs %s", l, o))
	}
	if l.Kind == LevelLabel {
		return cmp.Compare(l.Label, o.Label), nil
	}
	return cmp.Compare(l.Value, o.Value), nil
}

// AtOrBelow reports whether a pressure level is <= threshold. Label levels
// cannot be compared with a numeric threshold.
func (l Level) AtOrBelow(threshold float64) (bool, error) {
	if l.Kind != LevelPressure {
		return false, inputError(ErrTypeMismatch, "level", l.Label)
	}
	return l.Value <= threshold, nil
}

func (l Level) validate() error {
	switch l.Kind {
	case LevelPressure:
		if math.IsNaN(l.Value) || math.IsInf(l.Value, 0) {
			return inputError(ErrTypeMismatch, "level", l.Value)
		}
	case LevelLabel:
		if l.Label == "" {
			return inputError(ErrTypeMismatch, "level", `""`)
		}
	default:
		return inputError(ErrTypeMismatch, "level_kind", l.Kind)
	}
	return nil
}

// MarshalJSON encodes pressure levels as numbers and labels as strings.
func (l Level) MarshalJSON() ([]byte, error) {
	if l.Kind == LevelLabel {
		return json.Marshal(l.Label)
	}
	return json.Marshal(l.Value)
}

// UnmarshalJSON accepts a number (pressure level) or a string (label).
func (l *Level) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("parse level: %w", err)
		}
		*l = LabelLevel(s)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("parse level: %w", err)
	}
	*l = PressureLevel(v)
	return nil
}

// LevelFromAny converts a decoded TOML/JSON value into a Level.
func LevelFromAny(v any) (Level, error) {
	switch x := v.(type) {
	case string:
		return LabelLevel(x), nil
	case float64:
		return PressureLevel(x), nil
	case float32:
		return PressureLevel(float64(x)), nil
	case int64:
		return PressureLevel(float64(x)), nil
	case int:
		return PressureLevel(float64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Level{}, fmt.Errorf("parse level %q: %w", x, err)
		}
		return PressureLevel(f), nil
	}
	return Level{}, inputError(ErrTypeMismatch, "level", v)
}
