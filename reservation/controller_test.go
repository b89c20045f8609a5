package reservation

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gammadia/jeeves/g5k"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Fake platform API ---

type fakeAPI struct {
	mux *http.ServeMux
	srv *httptest.Server

	mu    sync.Mutex
	calls []string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	api := &fakeAPI{mux: http.NewServeMux()}
	api.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		api.mu.Lock()
		api.calls = append(api.calls, r.Method+" "+r.URL.Path)
		api.mu.Unlock()
		api.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(api.srv.Close)
	return api
}

func (api *fakeAPI) countCalls(call string) int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return lo.Count(api.calls, call)
}

// jobStates serves a job whose state advances through the given sequence,
// one step per poll, sticking on the last one.
func (api *fakeAPI) jobStates(uid int, states ...g5k.JobState) {
	polls := 0
	api.mux.HandleFunc(fmt.Sprintf("GET /sites/rennes/jobs/%d", uid), func(w http.ResponseWriter, r *http.Request) {
		job := testJob(uid, states[min(polls, len(states)-1)])
		polls++
		if job.State == g5k.JobRunning {
			job.AssignedNodes = []string{"paravance-1.rennes.grid5000.fr"}
		}
		_ = json.NewEncoder(w).Encode(job)
	})
}

func testJob(uid int, state g5k.JobState) *g5k.Job {
	return &g5k.Job{
		Uid:   uid,
		State: state,
		Links: []g5k.Link{
			{Rel: "self", Href: fmt.Sprintf("/sites/rennes/jobs/%d", uid)},
			{Rel: "parent", Href: "/sites/rennes"},
		},
	}
}

func newTestController(t *testing.T, api *fakeAPI) *Controller {
	client, err := g5k.NewClient(g5k.Config{
		Endpoint: api.srv.URL,
		Username: "jdoe",
		Password: "secret",
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	controller := NewController(client, slog.New(slog.NewTextHandler(io.Discard, nil)))
	controller.PollInterval = 5 * time.Millisecond
	return controller
}

// --- Submit ---

func TestSubmitPostsCompiledPayload(t *testing.T) {
	api := newFakeAPI(t)

	var payload g5k.JobRequest
	api.mux.HandleFunc("POST /sites/rennes/jobs", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(testJob(42, g5k.JobWaiting))
	})

	controller := newTestController(t, api)
	job, err := controller.Submit(t.Context(), "rennes", Request{
		Cluster:  "paravance",
		Nodes:    2,
		Walltime: 30 * time.Minute,
		Mode:     ModeDeploy,
		Name:     "experiment",
		Command:  "sleep 1800",
	})
	require.NoError(t, err)

	assert.Equal(t, 42, job.Uid)
	assert.Equal(t, g5k.JobWaiting, job.State)
	assert.Equal(t, "{cluster='paravance'}/nodes=2,walltime=0:30:00", payload.Resources)
	assert.Equal(t, "experiment", payload.Name)
	assert.Equal(t, "sleep 1800", payload.Command)
	assert.Equal(t, []string{"deploy"}, payload.Types)
	assert.Empty(t, payload.Properties)
	assert.Zero(t, payload.Reservation)
}

func TestSubmitAdvanceReservation(t *testing.T) {
	api := newFakeAPI(t)

	var payload g5k.JobRequest
	api.mux.HandleFunc("POST /sites/rennes/jobs", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_ = json.NewEncoder(w).Encode(testJob(43, g5k.JobWaiting))
	})

	startAt := time.Now().Add(2 * time.Hour).Truncate(time.Second)
	controller := newTestController(t, api)
	_, err := controller.Submit(t.Context(), "rennes", Request{StartAt: startAt})
	require.NoError(t, err)

	assert.Equal(t, startAt.Unix(), payload.Reservation)
}

func TestSubmitRejectsInvalidRequestWithoutNetworkCall(t *testing.T) {
	api := newFakeAPI(t)
	controller := newTestController(t, api)

	_, err := controller.Submit(t.Context(), "rennes", Request{Nodes: 1, Hosts: []string{"nodeA"}})
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Empty(t, api.calls)
}

// --- WaitUntilRunning ---

func TestWaitUntilRunningPollsUntilRunning(t *testing.T) {
	api := newFakeAPI(t)
	api.jobStates(42, g5k.JobWaiting, g5k.JobWaiting, g5k.JobRunning)

	controller := newTestController(t, api)
	job, err := controller.WaitUntilRunning(t.Context(), testJob(42, g5k.JobWaiting), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, g5k.JobRunning, job.State)
	assert.Equal(t, []string{"paravance-1.rennes.grid5000.fr"}, job.AssignedNodes)
	assert.Equal(t, 3, api.countCalls("GET /sites/rennes/jobs/42"))
}

func TestWaitUntilRunningFailsOnFinishing(t *testing.T) {
	api := newFakeAPI(t)
	api.jobStates(42, g5k.JobWaiting, g5k.JobFinishing)

	controller := newTestController(t, api)
	job, err := controller.WaitUntilRunning(t.Context(), testJob(42, g5k.JobWaiting), time.Minute)

	var jobErr *JobFailedError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, 42, jobErr.Job)
	assert.Equal(t, g5k.JobFinishing, jobErr.State)
	assert.Equal(t, g5k.JobFinishing, job.State)
	assert.Equal(t, 2, api.countCalls("GET /sites/rennes/jobs/42"))
}

func TestWaitUntilRunningFailsOnError(t *testing.T) {
	api := newFakeAPI(t)
	api.jobStates(42, g5k.JobError)

	controller := newTestController(t, api)
	_, err := controller.WaitUntilRunning(t.Context(), testJob(42, g5k.JobWaiting), time.Minute)

	var jobErr *JobFailedError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, g5k.JobError, jobErr.State)
}

func TestWaitUntilRunningTimesOut(t *testing.T) {
	api := newFakeAPI(t)
	api.jobStates(42, g5k.JobWaiting)

	controller := newTestController(t, api)
	job, err := controller.WaitUntilRunning(t.Context(), testJob(42, g5k.JobWaiting), 30*time.Millisecond)

	var timedOut *TimedOutError
	require.ErrorAs(t, err, &timedOut)
	assert.Equal(t, 42, timedOut.Job)
	assert.Equal(t, g5k.JobWaiting, timedOut.State)
	// The last observed job is still usable; timing out must not touch the
	// remote job.
	assert.Equal(t, g5k.JobWaiting, job.State)
	assert.Zero(t, api.countCalls("DELETE /sites/rennes/jobs/42"))
}

func TestWaitUntilRunningReportsScheduledStart(t *testing.T) {
	api := newFakeAPI(t)
	polls := 0
	api.mux.HandleFunc("GET /sites/rennes/jobs/42", func(w http.ResponseWriter, r *http.Request) {
		job := testJob(42, g5k.JobWaiting)
		job.ScheduledAt = time.Now().Add(time.Hour).Unix()
		if polls > 0 {
			job.State = g5k.JobRunning
		}
		polls++
		_ = json.NewEncoder(w).Encode(job)
	})

	controller := newTestController(t, api)
	job, err := controller.WaitUntilRunning(t.Context(), testJob(42, g5k.JobWaiting), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, g5k.JobRunning, job.State)
}

func TestWaitUntilRunningRelaysScheduledProgress(t *testing.T) {
	api := newFakeAPI(t)
	polls := 0
	api.mux.HandleFunc("GET /sites/rennes/jobs/42", func(w http.ResponseWriter, r *http.Request) {
		job := testJob(42, g5k.JobWaiting)
		job.ScheduledAt = time.Now().Add(time.Hour).Unix()
		if polls > 0 {
			job.State = g5k.JobRunning
		}
		polls++
		_ = json.NewEncoder(w).Encode(job)
	})

	controller := newTestController(t, api)
	var updates []string
	controller.Progress = func(message string) { updates = append(updates, message) }

	_, err := controller.WaitUntilRunning(t.Context(), testJob(42, g5k.JobWaiting), time.Minute)
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Contains(t, updates[0], "Reservation 42 starts in")
}

// --- Reserve ---

func TestReserveAsyncReturnsImmediately(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /sites/rennes/jobs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(testJob(42, g5k.JobWaiting))
	})

	controller := newTestController(t, api)
	job, err := controller.Reserve(t.Context(), "rennes", Request{Async: true})
	require.NoError(t, err)

	assert.Equal(t, g5k.JobWaiting, job.State)
	assert.Zero(t, api.countCalls("GET /sites/rennes/jobs/42"))
}

func TestReserveBlocksUntilRunning(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /sites/rennes/jobs", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(testJob(42, g5k.JobWaiting))
	})
	api.jobStates(42, g5k.JobLaunching, g5k.JobRunning)

	controller := newTestController(t, api)
	job, err := controller.Reserve(t.Context(), "rennes", Request{})
	require.NoError(t, err)
	assert.Equal(t, g5k.JobRunning, job.State)
}

// --- Deploy ---

func testDeployment(status g5k.DeploymentStatus, result map[string]g5k.DeployResult) *g5k.Deployment {
	return &g5k.Deployment{
		Uid:    "D-1",
		Status: status,
		Result: result,
		Links:  []g5k.Link{{Rel: "self", Href: "/sites/rennes/deployments/D-1"}},
	}
}

func TestDeploySucceeds(t *testing.T) {
	api := newFakeAPI(t)

	var payload g5k.DeploymentRequest
	api.mux.HandleFunc("POST /sites/rennes/deployments", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(testDeployment(g5k.DeploymentWaiting, nil))
	})
	polls := 0
	api.mux.HandleFunc("GET /sites/rennes/deployments/D-1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			_ = json.NewEncoder(w).Encode(testDeployment(g5k.DeploymentProcessing, nil))
			return
		}
		_ = json.NewEncoder(w).Encode(testDeployment(g5k.DeploymentTerminated, map[string]g5k.DeployResult{
			"paravance-1.rennes.grid5000.fr": {State: "OK"},
			"paravance-2.rennes.grid5000.fr": {State: "OK"},
		}))
	})

	job := testJob(42, g5k.JobRunning)
	job.AssignedNodes = []string{"paravance-1.rennes.grid5000.fr", "paravance-2.rennes.grid5000.fr"}

	controller := newTestController(t, api)
	outcome, err := controller.Deploy(t.Context(), "rennes", job, "debian11-x64-base", DeployOptions{Key: "ssh-rsa AAAA"})
	require.NoError(t, err)

	assert.Equal(t, job.AssignedNodes, payload.Nodes)
	assert.Equal(t, "debian11-x64-base", payload.Environment)
	assert.Equal(t, "ssh-rsa AAAA", payload.Key)
	assert.Equal(t, map[string]string{
		"paravance-1.rennes.grid5000.fr": "OK",
		"paravance-2.rennes.grid5000.fr": "OK",
	}, outcome)
}

func TestDeployFailsWhenANodeIsNotOK(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /sites/rennes/deployments", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(testDeployment(g5k.DeploymentWaiting, nil))
	})
	api.mux.HandleFunc("GET /sites/rennes/deployments/D-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(testDeployment(g5k.DeploymentTerminated, map[string]g5k.DeployResult{
			"paravance-1.rennes.grid5000.fr": {State: "OK"},
			"paravance-2.rennes.grid5000.fr": {State: "KO"},
		}))
	})

	job := testJob(42, g5k.JobRunning)
	job.AssignedNodes = []string{"paravance-1.rennes.grid5000.fr", "paravance-2.rennes.grid5000.fr"}

	controller := newTestController(t, api)
	_, err := controller.Deploy(t.Context(), "rennes", job, "debian11-x64-base", DeployOptions{})

	var deployErr *DeploymentFailedError
	require.ErrorAs(t, err, &deployErr)
	assert.Equal(t, "KO", deployErr.Result["paravance-2.rennes.grid5000.fr"])
}

func TestDeployFailsOnErrorStatus(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /sites/rennes/deployments", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(testDeployment(g5k.DeploymentWaiting, nil))
	})
	api.mux.HandleFunc("GET /sites/rennes/deployments/D-1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(testDeployment(g5k.DeploymentError, nil))
	})

	job := testJob(42, g5k.JobRunning)
	job.AssignedNodes = []string{"paravance-1.rennes.grid5000.fr"}

	controller := newTestController(t, api)
	_, err := controller.Deploy(t.Context(), "rennes", job, "debian11-x64-base", DeployOptions{})

	var deployErr *DeploymentFailedError
	require.ErrorAs(t, err, &deployErr)
	assert.Equal(t, g5k.DeploymentError, deployErr.Status)
}

func TestDeployRequiresAssignedNodes(t *testing.T) {
	api := newFakeAPI(t)
	controller := newTestController(t, api)

	_, err := controller.Deploy(t.Context(), "rennes", testJob(42, g5k.JobRunning), "debian11-x64-base", DeployOptions{})
	var configErr *ConfigurationError
	require.ErrorAs(t, err, &configErr)
	assert.Empty(t, api.calls)
}
