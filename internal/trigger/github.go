package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/oauth2"

	"github.com/swap357/cirunner/internal/watcher"
	"github.com/swap357/cirunner/pkg/types"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"

	apiVersion     = "2022-11-28"
	acceptHeader   = "application/vnd.github+json"
	defaultTimeout = 30 * time.Second

	// maxPollErrors is how many consecutive transient status errors a watch
	// tolerates before giving up.
	maxPollErrors = 5
)

// GitHub drives GitHub Actions through the REST API.
type GitHub struct {
	baseURL  string
	api      *http.Client
	download *http.Client
	breaker  *gobreaker.CircuitBreaker
	poller   *watcher.Poller
	logger   *slog.Logger
}

var _ ControlPlane = (*GitHub)(nil)

// NewGitHub creates a REST control plane authenticated with token.
func NewGitHub(baseURL, token string, opts ...Option) *GitHub {
	o := newOptions(opts)
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	base := o.httpClient
	if base == nil {
		base = &http.Client{}
	}
	timeout := o.timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	// The token rides on every request made through api, so redirects that
	// leave the API host are handed back to the caller instead of followed.
	api := &http.Client{
		Timeout: timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   base.Transport,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			if req.URL.Host != via[0].URL.Host {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	download := o.downloadClient
	if download == nil {
		download = &http.Client{Transport: base.Transport}
	}

	g := &GitHub{
		baseURL:  strings.TrimRight(baseURL, "/"),
		api:      api,
		download: download,
		poller:   watcher.New(o.pollInterval, o.logger),
		logger:   o.logger,
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "github",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || ClassifyFailure(err) == types.FailurePermanent
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return g
}

type dispatchBody struct {
	Ref              string            `json:"ref"`
	Inputs           map[string]string `json:"inputs,omitempty"`
	ReturnRunDetails bool              `json:"return_run_details"`
}

type dispatchResult struct {
	WorkflowRunID int64  `json:"workflow_run_id"`
	RunURL        string `json:"run_url"`
	HTMLURL       string `json:"html_url"`
}

type apiRun struct {
	ID         int64            `json:"id"`
	Status     string           `json:"status"`
	Conclusion types.Conclusion `json:"conclusion"`
	CreatedAt  time.Time        `json:"created_at"`
	HTMLURL    string           `json:"html_url"`
}

// Dispatch triggers a workflow_dispatch event. Servers that answer 204 do
// not report the run; the returned RunID is then zero.
func (g *GitHub) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResponse, error) {
	path := fmt.Sprintf("/repos/%s/actions/workflows/%s/dispatches", req.Repo, url.PathEscape(req.Workflow))
	body := dispatchBody{Ref: req.Branch, Inputs: req.Inputs, ReturnRunDetails: true}

	var out dispatchResult
	if err := g.call(ctx, http.MethodPost, path, body, &out); err != nil {
		return DispatchResponse{}, fmt.Errorf("dispatching %s on %s@%s: %w", req.Workflow, req.Repo, req.Branch, err)
	}

	resp := DispatchResponse{RunID: out.WorkflowRunID, Output: out.HTMLURL}
	if resp.RunID == 0 {
		if id, ok := ParseRunID(out.HTMLURL + " " + out.RunURL); ok {
			resp.RunID = id
		}
	}
	return resp, nil
}

// ListRecentRuns returns the newest runs of a workflow on a branch.
func (g *GitHub) ListRecentRuns(ctx context.Context, repo, workflow, branch string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 1
	}
	q := url.Values{}
	q.Set("branch", branch)
	q.Set("event", "workflow_dispatch")
	q.Set("per_page", strconv.Itoa(limit))
	path := fmt.Sprintf("/repos/%s/actions/workflows/%s/runs?%s", repo, url.PathEscape(workflow), q.Encode())

	var out struct {
		WorkflowRuns []apiRun `json:"workflow_runs"`
	}
	if err := g.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("listing runs of %s on %s@%s: %w", workflow, repo, branch, err)
	}

	runs := make([]RunSummary, 0, len(out.WorkflowRuns))
	for _, r := range out.WorkflowRuns {
		runs = append(runs, RunSummary{ID: r.ID, Status: r.Status, Conclusion: r.Conclusion, CreatedAt: r.CreatedAt})
	}
	return runs, nil
}

// WatchUntilTerminal polls the run until its status is completed.
func (g *GitHub) WatchUntilTerminal(ctx context.Context, repo string, runID int64) error {
	g.logger.Debug("watching run", "repo", repo, "run_id", runID, "interval", g.poller.Interval())
	failures := 0
	return g.poller.Until(ctx, func(ctx context.Context) (bool, error) {
		run, err := g.getRun(ctx, repo, runID)
		if err != nil {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			failures++
			if ClassifyFailure(err) == types.FailurePermanent || failures >= maxPollErrors {
				return false, err
			}
			g.logger.Warn("run status check failed", "repo", repo, "run_id", runID, "error", err, "attempt", failures)
			return false, nil
		}
		failures = 0

		res := NormalizeRun(run.Status, run.Conclusion)
		g.logger.Debug("run status", "repo", repo, "run_id", runID, "status", res.Message)
		if res.State == RunCheckFailed {
			g.logger.Warn("run finished unsuccessfully", "repo", repo, "run_id", runID,
				"conclusion", res.Conclusion, "category", res.FailureCategory)
		}
		return res.State != RunCheckRunning, nil
	})
}

// GetConclusion returns the conclusion of a completed run.
func (g *GitHub) GetConclusion(ctx context.Context, repo string, runID int64) (types.Conclusion, error) {
	run, err := g.getRun(ctx, repo, runID)
	if err != nil {
		return "", err
	}
	if run.Status != statusCompleted {
		return "", fmt.Errorf("run %d on %s is not completed (status %q)", runID, repo, run.Status)
	}
	return run.Conclusion, nil
}

func (g *GitHub) getRun(ctx context.Context, repo string, runID int64) (apiRun, error) {
	var run apiRun
	path := fmt.Sprintf("/repos/%s/actions/runs/%d", repo, runID)
	if err := g.call(ctx, http.MethodGet, path, nil, &run); err != nil {
		return apiRun{}, fmt.Errorf("fetching run %d on %s: %w", runID, repo, err)
	}
	return run, nil
}

// call performs one JSON API request through the circuit breaker. out may be
// nil; an empty response body leaves it untouched.
func (g *GitHub) call(ctx context.Context, method, path string, in, out interface{}) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, g.doJSON(ctx, method, g.baseURL+path, in, out)
	})
	return err
}

func (g *GitHub) doJSON(ctx context.Context, method, target string, in, out interface{}) error {
	var body io.Reader = http.NoBody
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	setHeaders(req)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.api.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func setHeaders(req *http.Request) {
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	req.Header.Set("User-Agent", "cirunner")
}
