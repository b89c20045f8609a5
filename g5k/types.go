package g5k

import "time"

// Link is a hypermedia reference carried by every API record.
// Hrefs are paths relative to the API root.
type Link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type Site struct {
	Uid   string `json:"uid"`
	Links []Link `json:"links"`
}

type Cluster struct {
	Uid   string `json:"uid"`
	Links []Link `json:"links"`
}

// JobState is reported by the platform and treated as opaque, except for the
// few states the reservation workflow gives meaning to.
type JobState string

const (
	JobWaiting    JobState = "waiting"
	JobLaunching  JobState = "launching"
	JobRunning    JobState = "running"
	JobError      JobState = "error"
	JobFinishing  JobState = "finishing"
	JobTerminated JobState = "terminated"
)

// Terminal reports whether the platform will never move the job to "running".
func (s JobState) Terminal() bool {
	switch s {
	case JobError, JobFinishing, JobTerminated:
		return true
	}
	return false
}

// Job is a resource reservation on a site. Instances are never mutated
// locally; fresh state is always re-read from the service.
type Job struct {
	Uid           int          `json:"uid"`
	State         JobState     `json:"state"`
	ScheduledAt   int64        `json:"scheduled_at,omitempty"`
	AssignedNodes []string     `json:"assigned_nodes,omitempty"`
	Deploy        []Deployment `json:"deploy,omitempty"`
	Links         []Link       `json:"links"`
}

// ScheduledStart returns the time the platform has scheduled the job to
// start, or the zero time if no start has been decided yet.
func (j *Job) ScheduledStart() time.Time {
	if j.ScheduledAt == 0 {
		return time.Time{}
	}
	return time.Unix(j.ScheduledAt, 0)
}

func (j *Job) link(rel string) (string, bool) {
	for _, l := range j.Links {
		if l.Rel == rel {
			return l.Href, true
		}
	}
	return "", false
}

// SelfLink returns the canonical path of the job, used for refresh and delete.
func (j *Job) SelfLink() (string, bool) {
	return j.link("self")
}

// ParentLink returns the path of the site owning the job.
func (j *Job) ParentLink() (string, bool) {
	return j.link("parent")
}

// Deployment is one OS image installation attempt on a set of nodes.
type Deployment struct {
	Uid    string                  `json:"uid"`
	Status DeploymentStatus        `json:"status"`
	Result map[string]DeployResult `json:"result,omitempty"`
	Links  []Link                  `json:"links"`
}

type DeploymentStatus string

const (
	DeploymentWaiting    DeploymentStatus = "waiting"
	DeploymentProcessing DeploymentStatus = "processing"
	DeploymentTerminated DeploymentStatus = "terminated"
	DeploymentCanceled   DeploymentStatus = "canceled"
	DeploymentError      DeploymentStatus = "error"
)

func (s DeploymentStatus) Terminal() bool {
	switch s {
	case DeploymentTerminated, DeploymentCanceled, DeploymentError:
		return true
	}
	return false
}

// DeployResult is the per-node outcome of a deployment, "OK" on success.
type DeployResult struct {
	State string `json:"state"`
}

func (d *Deployment) SelfLink() (string, bool) {
	for _, l := range d.Links {
		if l.Rel == "self" {
			return l.Href, true
		}
	}
	return "", false
}

// JobRequest is the submission payload for a new job.
type JobRequest struct {
	Resources   string   `json:"resources"`
	Name        string   `json:"name"`
	Command     string   `json:"command"`
	Properties  string   `json:"properties,omitempty"`
	Types       []string `json:"types,omitempty"`
	Reservation int64    `json:"reservation,omitempty"`
}

// DeploymentRequest asks the platform to install an OS image on nodes.
type DeploymentRequest struct {
	Nodes       []string `json:"nodes"`
	Environment string   `json:"environment"`
	Key         string   `json:"key,omitempty"`
}

// JobsFilter narrows a job listing.
type JobsFilter struct {
	User   string
	States []JobState
}

// collection is the paginated wrapper the API puts around every listing.
type collection[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}
