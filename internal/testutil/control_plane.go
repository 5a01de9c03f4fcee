package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/swap357/cirunner/internal/trigger"
	"github.com/swap357/cirunner/pkg/types"
)

var _ trigger.ControlPlane = (*FakeControlPlane)(nil)

// DownloadCall records one DownloadArtifacts invocation.
type DownloadCall struct {
	Repo  string
	RunID int64
	Dest  string
}

// FakeControlPlane is an in-memory control plane that records every call.
// Dispatched runs get sequential ids starting at 1000 and conclude with
// success unless Conclusions says otherwise.
type FakeControlPlane struct {
	mu sync.Mutex

	nextID int64
	runs   map[string][]trigger.RunSummary // repo|workflow|branch, newest first

	Dispatches []trigger.DispatchRequest
	Watches    []int64
	Downloads  []DownloadCall
	ListCalls  int

	// Conclusions overrides the conclusion reported for a run id.
	Conclusions map[int64]types.Conclusion
	// OmitRunID makes Dispatch report no run id; the run only becomes
	// visible through ListRecentRuns after HiddenLists listings.
	OmitRunID   bool
	HiddenLists int

	DispatchErr error
	DownloadErr error
	// WatchFunc, when set, replaces the default immediate return of
	// WatchUntilTerminal.
	WatchFunc func(ctx context.Context, runID int64) error
}

// NewFakeControlPlane creates an empty fake.
func NewFakeControlPlane() *FakeControlPlane {
	return &FakeControlPlane{
		nextID:      1000,
		runs:        make(map[string][]trigger.RunSummary),
		Conclusions: make(map[int64]types.Conclusion),
	}
}

func runsKey(repo, workflow, branch string) string {
	return repo + "|" + workflow + "|" + branch
}

func (f *FakeControlPlane) Dispatch(_ context.Context, req trigger.DispatchRequest) (trigger.DispatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DispatchErr != nil {
		return trigger.DispatchResponse{}, f.DispatchErr
	}

	inputs := make(map[string]string, len(req.Inputs))
	for k, v := range req.Inputs {
		inputs[k] = v
	}
	req.Inputs = inputs
	f.Dispatches = append(f.Dispatches, req)

	id := f.nextID
	f.nextID++
	key := runsKey(req.Repo, req.Workflow, req.Branch)
	run := trigger.RunSummary{ID: id, Status: "queued", CreatedAt: time.Now()}
	f.runs[key] = append([]trigger.RunSummary{run}, f.runs[key]...)

	if f.OmitRunID {
		return trigger.DispatchResponse{Output: "Created workflow_dispatch event"}, nil
	}
	return trigger.DispatchResponse{
		RunID:  id,
		Output: fmt.Sprintf("https://github.com/%s/actions/runs/%d", req.Repo, id),
	}, nil
}

// AddRun registers a pre-existing run that ListRecentRuns will report.
func (f *FakeControlPlane) AddRun(repo, workflow, branch string, run trigger.RunSummary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := runsKey(repo, workflow, branch)
	f.runs[key] = append([]trigger.RunSummary{run}, f.runs[key]...)
}

func (f *FakeControlPlane) ListRecentRuns(_ context.Context, repo, workflow, branch string, limit int) ([]trigger.RunSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCalls++
	if f.ListCalls <= f.HiddenLists {
		return nil, nil
	}
	runs := f.runs[runsKey(repo, workflow, branch)]
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	out := make([]trigger.RunSummary, len(runs))
	copy(out, runs)
	return out, nil
}

func (f *FakeControlPlane) WatchUntilTerminal(ctx context.Context, _ string, runID int64) error {
	f.mu.Lock()
	f.Watches = append(f.Watches, runID)
	fn := f.WatchFunc
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, runID)
	}
	return ctx.Err()
}

func (f *FakeControlPlane) GetConclusion(_ context.Context, _ string, runID int64) (types.Conclusion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.Conclusions[runID]; ok {
		return c, nil
	}
	return types.ConclusionSuccess, nil
}

// DownloadArtifacts writes a marker file named after the run into dest.
func (f *FakeControlPlane) DownloadArtifacts(_ context.Context, repo string, runID int64, dest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DownloadErr != nil {
		return f.DownloadErr
	}
	f.Downloads = append(f.Downloads, DownloadCall{Repo: repo, RunID: runID, Dest: dest})
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dest, fmt.Sprintf("run-%d.txt", runID)), []byte(repo), 0o644)
}

// DispatchCount returns how many dispatches were recorded.
func (f *FakeControlPlane) DispatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Dispatches)
}

// WatchCount returns how many watches were recorded.
func (f *FakeControlPlane) WatchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Watches)
}
