package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gammadia/jeeves/g5k"
	"github.com/gammadia/jeeves/internal/poll"
	"github.com/samber/lo"
)

const (
	// DefaultPollInterval is how often job state is re-read while waiting.
	DefaultPollInterval = 5 * time.Second
	// DefaultWaitTimeout bounds WaitUntilRunning; generous because the job
	// may sit in the scheduling queue for a long time.
	DefaultWaitTimeout = 10 * time.Hour
	// DefaultDeployTimeout bounds a single deployment.
	DefaultDeployTimeout = 30 * time.Minute
)

// Controller drives reservations through their lifecycle on one platform.
// It holds no job state of its own: every poll re-reads the authoritative
// record from the service, so controllers are safe to share across
// concurrent reservation workflows.
type Controller struct {
	Client *g5k.Client
	Logger *slog.Logger

	// PollInterval overrides DefaultPollInterval when positive.
	PollInterval time.Duration
	// WaitTimeout overrides DefaultWaitTimeout when positive.
	WaitTimeout time.Duration
	// DeployTimeout overrides DefaultDeployTimeout when positive.
	DeployTimeout time.Duration

	// Progress, when set, receives short human-readable updates while a
	// wait is in flight (e.g. time left before a scheduled start).
	Progress func(message string)
}

func NewController(client *g5k.Client, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		Client: client,
		Logger: logger.With("component", "reservation"),
	}
}

// Submit compiles the request and creates the job on the given site,
// returning it in its initial (usually "waiting") state. Not idempotent:
// calling twice creates two jobs.
func (c *Controller) Submit(ctx context.Context, site string, request Request) (*g5k.Job, error) {
	spec, err := Compile(request)
	if err != nil {
		return nil, err
	}
	request = request.withDefaults()

	payload := g5k.JobRequest{
		Resources:  spec.Resources,
		Name:       request.Name,
		Command:    request.Command,
		Properties: spec.Properties,
		Types:      []string{string(request.Mode)},
	}
	if !request.StartAt.IsZero() {
		payload.Reservation = request.StartAt.Unix()
	}

	job, err := c.Client.SubmitJob(ctx, site, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to submit reservation '%s' on site '%s': %w", request.Name, site, err)
	}

	c.Logger.Info("Reservation submitted", "site", site, "job", job.Uid, "state", job.State, "resources", spec.Resources)
	return job, nil
}

// Reserve submits the request and, unless it is asynchronous, blocks until
// the job is running.
func (c *Controller) Reserve(ctx context.Context, site string, request Request) (*g5k.Job, error) {
	job, err := c.Submit(ctx, site, request)
	if err != nil || request.Async {
		return job, err
	}
	return c.WaitUntilRunning(ctx, job, c.WaitTimeout)
}

// WaitUntilRunning polls the job until the service reports it running and
// returns the refreshed job. A job observed in a terminal state fails with
// JobFailedError; an elapsed timeout fails with TimedOutError and leaves the
// remote job untouched.
func (c *Controller) WaitUntilRunning(ctx context.Context, job *g5k.Job, timeout time.Duration) (*g5k.Job, error) {
	timeout = lo.Must(lo.Coalesce(timeout, DefaultWaitTimeout))
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	log := c.Logger.With("job", job.Uid)
	log.Info("Waiting for reservation to run", "state", job.State, "timeout", timeout)

	last, err := poll.UntilResult(waitCtx, c.pollInterval(), func(ctx context.Context) (*g5k.Job, bool, error) {
		fresh, err := c.Client.RefreshJob(ctx, job)
		if err != nil {
			return job, false, fmt.Errorf("failed to refresh job %d: %w", job.Uid, err)
		}

		switch {
		case fresh.State == g5k.JobRunning:
			return fresh, true, nil
		case fresh.State.Terminal():
			// A terminal state is authoritative: stop right away, even if
			// an earlier poll looked healthier.
			return fresh, false, &JobFailedError{Job: fresh.Uid, State: fresh.State}
		}

		if start := fresh.ScheduledStart(); !start.IsZero() {
			if remaining := time.Until(start); remaining > 0 {
				log.Info("Reservation is scheduled", "state", fresh.State, "starts-in", remaining.Round(time.Second))
				if c.Progress != nil {
					c.Progress(fmt.Sprintf("Reservation %d starts in %s", fresh.Uid, remaining.Round(time.Second)))
				}
				return fresh, false, nil
			}
		}
		log.Debug("Reservation is not running yet", "state", fresh.State)
		return fresh, false, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return last, &TimedOutError{Job: last.Uid, State: last.State, Timeout: timeout}
		}
		return last, err
	}

	log.Info("Reservation is running", "nodes", last.AssignedNodes)
	return last, nil
}

// DeployOptions tunes a single deployment.
type DeployOptions struct {
	// Nodes restricts the deployment to a subset of the job's assigned
	// nodes; all of them when empty.
	Nodes []string
	// Key is a public SSH key installed on the deployed nodes.
	Key string
	// Timeout overrides the controller's deploy timeout when positive.
	Timeout time.Duration
}

// Deploy installs an OS image on the job's nodes and polls the deployment
// until it completes. It fails with DeploymentFailedError when the service
// reports an error status or any node's result is not "OK".
func (c *Controller) Deploy(ctx context.Context, site string, job *g5k.Job, environment string, options DeployOptions) (map[string]string, error) {
	nodes := options.Nodes
	if len(nodes) == 0 {
		nodes = job.AssignedNodes
	}
	if len(nodes) == 0 {
		return nil, &ConfigurationError{Option: "nodes", Reason: fmt.Sprintf("job %d has no assigned nodes to deploy on", job.Uid)}
	}

	deployment, err := c.Client.CreateDeployment(ctx, site, g5k.DeploymentRequest{
		Nodes:       nodes,
		Environment: environment,
		Key:         options.Key,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to trigger deployment of '%s' for job %d: %w", environment, job.Uid, err)
	}

	log := c.Logger.With("job", job.Uid, "deployment", deployment.Uid)
	log.Info("Deployment started", "environment", environment, "nodes", len(nodes))

	timeout := lo.Must(lo.Coalesce(options.Timeout, c.DeployTimeout, DefaultDeployTimeout))
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	last, err := poll.UntilResult(waitCtx, c.pollInterval(), func(ctx context.Context) (*g5k.Deployment, bool, error) {
		fresh, err := c.Client.RefreshDeployment(ctx, deployment)
		if err != nil {
			return deployment, false, fmt.Errorf("failed to refresh deployment '%s': %w", deployment.Uid, err)
		}
		log.Debug("Deployment in progress", "status", fresh.Status)
		return fresh, fresh.Status.Terminal(), nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, &TimedOutError{Job: job.Uid, State: job.State, Timeout: timeout}
		}
		return nil, err
	}

	outcome := make(map[string]string, len(last.Result))
	failed := false
	for node, result := range last.Result {
		outcome[node] = result.State
		failed = failed || result.State != "OK"
	}

	if last.Status != g5k.DeploymentTerminated || failed {
		return outcome, &DeploymentFailedError{Status: last.Status, Result: outcome}
	}

	log.Info("Deployment complete", "nodes", len(outcome))
	return outcome, nil
}

func (c *Controller) pollInterval() time.Duration {
	return lo.Must(lo.Coalesce(c.PollInterval, DefaultPollInterval))
}
