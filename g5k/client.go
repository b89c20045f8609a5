package g5k

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/samber/lo"
)

// Client is an explicit handle on the platform's REST API. It owns its own
// connection pool; construct one per API endpoint and pass it around.
type Client struct {
	endpoint string
	username string
	password string
	http     *retryablehttp.Client
	log      *slog.Logger
}

func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("API endpoint is required")
	}
	if _, err := url.Parse(config.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid API endpoint '%s': %w", config.Endpoint, err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.HTTPClient.Timeout = lo.Must(lo.Coalesce(config.Timeout, defaultTimeout))
	rc.RetryMax = lo.Must(lo.Coalesce(config.RetryAttempts, defaultRetryAttempts)) - 1
	rc.RetryWaitMin = lo.Must(lo.Coalesce(config.RetryDelay, defaultRetryDelay))
	rc.RetryWaitMax = rc.RetryWaitMin
	rc.Logger = nil
	rc.CheckRetry = retryOnTimeout

	return &Client{
		endpoint: strings.TrimRight(config.Endpoint, "/"),
		username: config.Username,
		password: config.Password,
		http:     rc,
		log:      logger.With("component", "g5k"),
	}, nil
}

// retryOnTimeout retries network timeouts only. Any other failure, including
// HTTP error statuses, is surfaced immediately.
func retryOnTimeout(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		var netErr net.Error
		return errors.As(err, &netErr) && netErr.Timeout(), nil
	}
	return false, nil
}

// Get fetches an API record into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Post creates an API record from body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

// Delete requests removal of an API record.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method string, path string, body any, out any) error {
	var payload any
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body for '%s': %w", path, err)
		}
		payload = buf
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.url(path), payload)
	if err != nil {
		return fmt.Errorf("failed to build request for '%s': %w", path, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response of %s %s: %w", method, path, err)
	}

	c.log.Debug("API exchange", "method", method, "path", path, "status", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return &AuthenticationError{Path: path}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Path: path}
	case resp.StatusCode >= 400:
		return &RequestError{Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(buf))}
	}

	if out != nil && len(buf) > 0 {
		if err := json.Unmarshal(buf, out); err != nil {
			return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
		}
	}
	return nil
}

// url resolves an API-root-relative path against the endpoint, which is the
// form every link href takes.
func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.endpoint + path
}

// Sites lists every site of the platform.
func (c *Client) Sites(ctx context.Context) ([]Site, error) {
	var sites collection[Site]
	if err := c.Get(ctx, "/sites", &sites); err != nil {
		return nil, err
	}
	return sites.Items, nil
}

// Clusters lists the clusters of a site.
func (c *Client) Clusters(ctx context.Context, site string) ([]Cluster, error) {
	var clusters collection[Cluster]
	if err := c.Get(ctx, fmt.Sprintf("/sites/%s/clusters", site), &clusters); err != nil {
		return nil, err
	}
	return clusters.Items, nil
}

// Jobs lists the jobs of a site matching the filter.
func (c *Client) Jobs(ctx context.Context, site string, filter JobsFilter) ([]Job, error) {
	query := url.Values{}
	if filter.User != "" {
		query.Set("user", filter.User)
	}
	if len(filter.States) > 0 {
		query.Set("state", strings.Join(lo.Map(filter.States, func(s JobState, _ int) string { return string(s) }), ","))
	}

	path := fmt.Sprintf("/sites/%s/jobs", site)
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var jobs collection[Job]
	if err := c.Get(ctx, path, &jobs); err != nil {
		return nil, err
	}
	return jobs.Items, nil
}

// Job fetches a single job by uid.
func (c *Client) Job(ctx context.Context, site string, uid int) (*Job, error) {
	var job Job
	if err := c.Get(ctx, fmt.Sprintf("/sites/%s/jobs/%d", site, uid), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// SubmitJob creates a new job on a site. This is not idempotent: calling it
// twice creates two jobs.
func (c *Client) SubmitJob(ctx context.Context, site string, request JobRequest) (*Job, error) {
	var job Job
	if err := c.Post(ctx, fmt.Sprintf("/sites/%s/jobs", site), request, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// RefreshJob re-fetches the authoritative state of a job through its self
// link. The given job is left untouched.
func (c *Client) RefreshJob(ctx context.Context, job *Job) (*Job, error) {
	self, ok := job.SelfLink()
	if !ok {
		return nil, fmt.Errorf("job %d carries no self link", job.Uid)
	}
	var fresh Job
	if err := c.Get(ctx, self, &fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}

// DeleteJob asks the platform to cancel a job.
func (c *Client) DeleteJob(ctx context.Context, job *Job) error {
	self, ok := job.SelfLink()
	if !ok {
		return fmt.Errorf("job %d carries no self link", job.Uid)
	}
	return c.Delete(ctx, self)
}

// CreateDeployment triggers an OS image installation on a site.
func (c *Client) CreateDeployment(ctx context.Context, site string, request DeploymentRequest) (*Deployment, error) {
	var deployment Deployment
	if err := c.Post(ctx, fmt.Sprintf("/sites/%s/deployments", site), request, &deployment); err != nil {
		return nil, err
	}
	return &deployment, nil
}

// RefreshDeployment re-fetches the authoritative state of a deployment.
func (c *Client) RefreshDeployment(ctx context.Context, deployment *Deployment) (*Deployment, error) {
	self, ok := deployment.SelfLink()
	if !ok {
		return nil, fmt.Errorf("deployment '%s' carries no self link", deployment.Uid)
	}
	var fresh Deployment
	if err := c.Get(ctx, self, &fresh); err != nil {
		return nil, err
	}
	return &fresh, nil
}
