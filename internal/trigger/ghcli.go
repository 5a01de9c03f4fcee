package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"

	"github.com/swap357/cirunner/pkg/types"
)

// CommandFunc runs an external program and returns its standard output.
type CommandFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// GHCLI drives GitHub Actions through the gh command-line tool.
type GHCLI struct {
	path         string
	run          CommandFunc
	stream       CommandFunc // long-running commands whose progress is shown live
	pollInterval int // seconds, passed to gh run watch
	logger       *slog.Logger
}

var _ ControlPlane = (*GHCLI)(nil)

// NewGHCLI creates a control plane backed by the gh binary at path. A
// non-empty token is exported to gh as GH_TOKEN.
func NewGHCLI(path, token string, opts ...Option) *GHCLI {
	o := newOptions(opts)
	if path == "" {
		path = "gh"
	}
	run, stream := o.command, o.command
	if run == nil {
		run = execCommand(token)
		out := o.output
		if out == nil {
			out = os.Stderr
		}
		stream = streamCommand(token, out)
	}
	return &GHCLI{
		path:         path,
		run:          run,
		stream:       stream,
		pollInterval: int(o.pollInterval.Seconds()),
		logger:       o.logger,
	}
}

func command(ctx context.Context, token, name string, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	if token != "" {
		cmd.Env = append(os.Environ(), "GH_TOKEN="+token)
	}
	return cmd
}

func commandError(ctx context.Context, name string, args []string, err error, stderr string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr))
}

func execCommand(token string) CommandFunc {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmd := command(ctx, token, name, args)
		var out, stderr bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return out.Bytes(), commandError(ctx, name, args, err, stderr.String())
		}
		return out.Bytes(), nil
	}
}

// streamCommand copies the program's output to w as it is produced and
// returns no output of its own. The tail of stderr is kept for the error.
func streamCommand(token string, w io.Writer) CommandFunc {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmd := command(ctx, token, name, args)
		stderr := &tailBuffer{max: 4096}
		cmd.Stdout = w
		cmd.Stderr = io.MultiWriter(w, stderr)
		if err := cmd.Run(); err != nil {
			return nil, commandError(ctx, name, args, err, stderr.String())
		}
		return nil, nil
	}
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }

// Dispatch runs gh workflow run and scans its output for the new run's URL.
func (c *GHCLI) Dispatch(ctx context.Context, req DispatchRequest) (DispatchResponse, error) {
	args := []string{"workflow", "run", req.Workflow, "--repo", req.Repo, "--ref", req.Branch}
	keys := make([]string, 0, len(req.Inputs))
	for k := range req.Inputs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		args = append(args, "-f", k+"="+req.Inputs[k])
	}

	out, err := c.run(ctx, c.path, args...)
	if err != nil {
		return DispatchResponse{}, fmt.Errorf("dispatching %s on %s@%s: %w", req.Workflow, req.Repo, req.Branch, err)
	}
	resp := DispatchResponse{Output: string(out)}
	if id, ok := ParseRunID(resp.Output); ok {
		resp.RunID = id
	}
	return resp, nil
}

// ListRecentRuns runs gh run list for the workflow and branch.
func (c *GHCLI) ListRecentRuns(ctx context.Context, repo, workflow, branch string, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 1
	}
	out, err := c.run(ctx, c.path, "run", "list",
		"--repo", repo,
		"--workflow", workflow,
		"--branch", branch,
		"--limit", strconv.Itoa(limit),
		"--json", "databaseId,status,conclusion,createdAt")
	if err != nil {
		return nil, fmt.Errorf("listing runs of %s on %s@%s: %w", workflow, repo, branch, err)
	}

	var runs []RunSummary
	if err := json.Unmarshal(out, &runs); err != nil {
		return nil, fmt.Errorf("parsing run list: %w", err)
	}
	return runs, nil
}

// WatchUntilTerminal runs gh run watch, which returns once the run completes.
func (c *GHCLI) WatchUntilTerminal(ctx context.Context, repo string, runID int64) error {
	args := []string{"run", "watch", strconv.FormatInt(runID, 10), "--repo", repo}
	if c.pollInterval > 0 {
		args = append(args, "--interval", strconv.Itoa(c.pollInterval))
	}
	if _, err := c.stream(ctx, c.path, args...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("watching run %d on %s: %w", runID, repo, err)
	}
	return nil
}

// GetConclusion runs gh run view and reads the conclusion field.
func (c *GHCLI) GetConclusion(ctx context.Context, repo string, runID int64) (types.Conclusion, error) {
	out, err := c.run(ctx, c.path, "run", "view", strconv.FormatInt(runID, 10), "--repo", repo, "--json", "conclusion")
	if err != nil {
		return "", fmt.Errorf("viewing run %d on %s: %w", runID, repo, err)
	}
	var view struct {
		Conclusion types.Conclusion `json:"conclusion"`
	}
	if err := json.Unmarshal(out, &view); err != nil {
		return "", fmt.Errorf("parsing run view: %w", err)
	}
	return view.Conclusion, nil
}

// DownloadArtifacts runs gh run download into dest.
func (c *GHCLI) DownloadArtifacts(ctx context.Context, repo string, runID int64, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	c.logger.Info("downloading artifacts", "repo", repo, "run_id", runID, "dest", dest)
	if _, err := c.stream(ctx, c.path, "run", "download", strconv.FormatInt(runID, 10), "--repo", repo, "--dir", dest); err != nil {
		return fmt.Errorf("downloading artifacts of run %d on %s: %w", runID, repo, err)
	}
	return nil
}
