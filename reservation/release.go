package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gammadia/jeeves/g5k"
)

// Release cancels a job. Releasing a job that already ended on its own is
// not an error, so Release is safe to call twice; any other server-side
// failure is surfaced unchanged.
func (c *Controller) Release(ctx context.Context, job *g5k.Job) error {
	if err := c.Client.DeleteJob(ctx, job); err != nil {
		if isAlreadyKilled(err) {
			c.Logger.Debug("Job was already terminated", "job", job.Uid)
			return nil
		}
		return fmt.Errorf("failed to release job %d: %w", job.Uid, err)
	}

	c.Logger.Info("Reservation released", "job", job.Uid)
	return nil
}

// ReleaseAll cancels every current job owned by user on the site, bounded by
// an overall deadline. A job whose release races with natural expiration
// does not abort the sweep: release is still attempted on all remaining
// jobs, and only genuine failures are reported.
func (c *Controller) ReleaseAll(ctx context.Context, site string, user string, deadline time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	jobs, err := c.Client.Jobs(ctx, site, g5k.JobsFilter{
		User:   user,
		States: []g5k.JobState{g5k.JobWaiting, g5k.JobLaunching, g5k.JobRunning},
	})
	if err != nil {
		return fmt.Errorf("failed to list jobs of '%s' on site '%s': %w", user, site, err)
	}

	var errs []error
	for i := range jobs {
		if err := c.Release(ctx, &jobs[i]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// isAlreadyKilled recognizes the server's complaint about a job that has
// already been killed or has expired.
func isAlreadyKilled(err error) bool {
	var requestErr *g5k.RequestError
	return errors.As(err, &requestErr) && strings.Contains(requestErr.Body, "already killed")
}
