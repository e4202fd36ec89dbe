package domain

// Default standard-deviation schedule: 2.0 for the nowcast, widening by 0.05
// per six-hour forecast step.
const (
	DefaultStdDevBase      = 2.0
	DefaultStdDevIncrement = 0.05
)

// StdDevSchedule computes the wind-strength standard deviation for a lead
// time. Lead index 0 is the nowcast; index n is n steps ahead.
type StdDevSchedule struct {
	Base      float64 `json:"base" toml:"base"`
	Increment float64 `json:"increment" toml:"increment"`
}

// DefaultSchedule returns the 2.0 + 0.05·n schedule.
func DefaultSchedule() StdDevSchedule {
	return StdDevSchedule{Base: DefaultStdDevBase, Increment: DefaultStdDevIncrement}
}

// ForStep returns Base + leadIndex·Increment.
func (s StdDevSchedule) ForStep(leadIndex int) (float64, error) {
	if leadIndex < 0 {
		return 0, inputError(ErrInvalidLeadIndex, "lead_index", leadIndex)
	}
	std := s.Base + float64(leadIndex)*s.Increment
	if err := checkStdDev("std", std); err != nil {
		return 0, err
	}
	return std, nil
}
