package reservation

import (
	"fmt"
	"time"

	"github.com/gammadia/jeeves/g5k"
)

// ConfigurationError reports an invalid or conflicting Request field. It is
// raised before any network call.
type ConfigurationError struct {
	Option string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid reservation option '%s': %s", e.Option, e.Reason)
}

// JobFailedError reports that a job reached a terminal state while waiting
// for it to run.
type JobFailedError struct {
	Job   int
	State g5k.JobState
}

func (e *JobFailedError) Error() string {
	return fmt.Sprintf("job %d ended without running (state '%s')", e.Job, e.State)
}

// TimedOutError reports that a bounded wait elapsed. The remote job is left
// untouched: the caller may keep polling it or release it.
type TimedOutError struct {
	Job     int
	State   g5k.JobState
	Timeout time.Duration
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("job %d did not reach the expected state within %s (last state '%s')", e.Job, e.Timeout, e.State)
}

// DeploymentFailedError reports that an OS image deployment did not succeed
// on every node. Result maps each node to its reported state.
type DeploymentFailedError struct {
	Status g5k.DeploymentStatus
	Result map[string]string
}

func (e *DeploymentFailedError) Error() string {
	failed := 0
	for _, state := range e.Result {
		if state != "OK" {
			failed++
		}
	}
	return fmt.Sprintf("deployment finished with status '%s' (%d/%d nodes failed)", e.Status, failed, len(e.Result))
}
