package xp

import "fmt"

// Outcome classifies how one step of an award finished.
type Outcome int

const (
	Succeeded Outcome = iota
	Skipped
	Recovered
	BestEffortFailed
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Skipped:
		return "skipped"
	case Recovered:
		return "recovered"
	case BestEffortFailed:
		return "best_effort_failed"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

const (
	StepProficiency = "proficiency"
	StepCalculate   = "calculate"
	StepBank        = "bank"
	StepStreak      = "streak"
)

type StepOutcome struct {
	Step    string  `json:"step"`
	Outcome Outcome `json:"outcome"`
	Err     error   `json:"-"`
}

// StepError is returned when a step classified as Fatal fails.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return "xp award: " + e.Step + ": " + e.Err.Error() }

func (e *StepError) Unwrap() error { return e.Err }
