package relay

import "fmt"

// Stage names the poll loop step that failed.
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageDecode Stage = "decode"
	StageNotify Stage = "notify"
)

// StepError is returned by each poll loop step. The loop logs it and moves on
// whatever the stage.
type StepError struct {
	Stage Stage
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
