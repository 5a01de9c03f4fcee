package trigger

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/swap357/cirunner/pkg/types"
)

func newTestGitHub(t *testing.T, h http.Handler) (*GitHub, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	g := NewGitHub(srv.URL, "test-token",
		WithHTTPClient(srv.Client()),
		WithPollInterval(5*time.Millisecond),
	)
	return g, srv
}

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestGitHubDispatch_ReturnsRunDetails(t *testing.T) {
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/repos/o/r/actions/workflows/build.yml/dispatches", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, acceptHeader, r.Header.Get("Accept"))
		assert.Equal(t, apiVersion, r.Header.Get("X-GitHub-Api-Version"))

		var body dispatchBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "main", body.Ref)
		assert.Equal(t, map[string]string{"platform": "all"}, body.Inputs)
		assert.True(t, body.ReturnRunDetails)

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"workflow_run_id": 777,
			"html_url":        "https://github.com/o/r/actions/runs/777",
		})
	}))

	resp, err := g.Dispatch(context.Background(), DispatchRequest{
		Repo: "o/r", Workflow: "build.yml", Branch: "main",
		Inputs: map[string]string{"platform": "all"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(777), resp.RunID)
}

func TestGitHubDispatch_NoContent(t *testing.T) {
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	resp, err := g.Dispatch(context.Background(), DispatchRequest{Repo: "o/r", Workflow: "build.yml", Branch: "main"})
	require.NoError(t, err)
	assert.Zero(t, resp.RunID)
}

func TestGitHubDispatch_NotFound(t *testing.T) {
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"Not Found"}`))
	}))

	_, err := g.Dispatch(context.Background(), DispatchRequest{Repo: "o/r", Workflow: "missing.yml", Branch: "main"})
	require.Error(t, err)
	assert.Equal(t, types.FailurePermanent, ClassifyFailure(err))
	assert.Contains(t, err.Error(), "status 404")
}

func TestGitHubListRecentRuns(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/o/r/actions/workflows/build.yml/runs", r.URL.Path)
		assert.Equal(t, "dev", r.URL.Query().Get("branch"))
		assert.Equal(t, "3", r.URL.Query().Get("per_page"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"workflow_runs": []map[string]interface{}{
				{"id": 9, "status": "queued", "conclusion": nil, "created_at": created.Format(time.RFC3339)},
				{"id": 8, "status": "completed", "conclusion": "success", "created_at": created.Add(-time.Hour).Format(time.RFC3339)},
			},
		})
	}))

	runs, err := g.ListRecentRuns(context.Background(), "o/r", "build.yml", "dev", 3)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, int64(9), runs[0].ID)
	assert.Equal(t, types.Conclusion(""), runs[0].Conclusion)
	assert.True(t, runs[0].CreatedAt.Equal(created))
	assert.Equal(t, types.ConclusionSuccess, runs[1].Conclusion)
}

func TestGitHubWatchUntilTerminal(t *testing.T) {
	var polls atomic.Int32
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/o/r/actions/runs/55", r.URL.Path)
		status := "in_progress"
		if polls.Add(1) >= 3 {
			status = "completed"
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 55, "status": status, "conclusion": nil})
	}))

	require.NoError(t, g.WatchUntilTerminal(context.Background(), "o/r", 55))
	assert.Equal(t, int32(3), polls.Load())
}

func TestGitHubWatchUntilTerminal_LogsFailureCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 55, "status": "completed", "conclusion": "timed_out"})
	}))
	t.Cleanup(srv.Close)

	var logs bytes.Buffer
	g := NewGitHub(srv.URL, "test-token",
		WithHTTPClient(srv.Client()),
		WithPollInterval(5*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)

	require.NoError(t, g.WatchUntilTerminal(context.Background(), "o/r", 55))
	assert.Contains(t, logs.String(), "run finished unsuccessfully")
	assert.Contains(t, logs.String(), "category="+string(types.FailureTimeout))
}

func TestGitHubWatchUntilTerminal_Cancelled(t *testing.T) {
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 55, "status": "in_progress"})
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	err := g.WatchUntilTerminal(ctx, "o/r", 55)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGitHubWatchUntilTerminal_TransientErrorsTolerated(t *testing.T) {
	var polls atomic.Int32
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 55, "status": "completed", "conclusion": "failure"})
	}))

	require.NoError(t, g.WatchUntilTerminal(context.Background(), "o/r", 55))
	assert.Equal(t, int32(2), polls.Load())
}

func TestGitHubGetConclusion(t *testing.T) {
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 55, "status": "completed", "conclusion": "failure"})
	}))

	c, err := g.GetConclusion(context.Background(), "o/r", 55)
	require.NoError(t, err)
	assert.Equal(t, types.ConclusionFailure, c)
}

func TestGitHubGetConclusion_NotCompleted(t *testing.T) {
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": 55, "status": "queued"})
	}))

	_, err := g.GetConclusion(context.Background(), "o/r", 55)
	assert.ErrorContains(t, err, "not completed")
}

func TestGitHubDownloadArtifacts_RedirectWithoutToken(t *testing.T) {
	archive := zipBytes(t, map[string]string{"pkg/numba-0.1.conda": "conda", "README": "hi"})

	blob := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"), "token must not reach blob storage")
		_, _ = w.Write(archive)
	}))
	defer blob.Close()

	mux := http.NewServeMux()
	var apiURL string
	mux.HandleFunc("/repos/o/r/actions/runs/55/artifacts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"total_count": 1,
			"artifacts": []map[string]interface{}{
				{"id": 1, "name": "numba-linux-64", "archive_download_url": apiURL + "/repos/o/r/actions/artifacts/1/zip"},
			},
		})
	})
	mux.HandleFunc("/repos/o/r/actions/artifacts/1/zip", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		http.Redirect(w, r, blob.URL+"/blob/1.zip", http.StatusFound)
	})
	g, srv := newTestGitHub(t, mux)
	apiURL = srv.URL

	dest := filepath.Join(t.TempDir(), "artifacts")
	require.NoError(t, g.DownloadArtifacts(context.Background(), "o/r", 55, dest))

	b, err := os.ReadFile(filepath.Join(dest, "pkg", "numba-0.1.conda"))
	require.NoError(t, err)
	assert.Equal(t, "conda", string(b))
	assert.FileExists(t, filepath.Join(dest, "README"))
}

func TestGitHubDownloadArtifacts_SeveralIntoSubdirs(t *testing.T) {
	mux := http.NewServeMux()
	var apiURL string
	mux.HandleFunc("/repos/o/r/actions/runs/55/artifacts", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"total_count": 2,
			"artifacts": []map[string]interface{}{
				{"id": 1, "name": "a", "archive_download_url": apiURL + "/zip/1"},
				{"id": 2, "name": "b", "archive_download_url": apiURL + "/zip/2"},
			},
		})
	})
	mux.HandleFunc("/zip/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes(t, map[string]string{"file.txt": r.URL.Path}))
	})
	g, srv := newTestGitHub(t, mux)
	apiURL = srv.URL

	dest := t.TempDir()
	require.NoError(t, g.DownloadArtifacts(context.Background(), "o/r", 55, dest))

	for i, name := range []string{"a", "b"} {
		b, err := os.ReadFile(filepath.Join(dest, name, "file.txt"))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("/zip/%d", i+1), string(b))
	}
}

func TestGitHubDownloadArtifacts_None(t *testing.T) {
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"total_count": 0, "artifacts": []interface{}{}})
	}))

	err := g.DownloadArtifacts(context.Background(), "o/r", 55, t.TempDir())
	assert.ErrorContains(t, err, "no artifacts")
}

func TestGitHubDownloadArtifacts_FollowsPages(t *testing.T) {
	mux := http.NewServeMux()
	var apiURL string
	var pages []string
	mux.HandleFunc("/repos/o/r/actions/runs/55/artifacts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))
		page := r.URL.Query().Get("page")
		pages = append(pages, page)
		var artifacts []map[string]interface{}
		switch page {
		case "1":
			for i := 1; i <= 100; i++ {
				artifacts = append(artifacts, map[string]interface{}{
					"id": i, "name": fmt.Sprintf("a%03d", i), "archive_download_url": fmt.Sprintf("%s/zip/%d", apiURL, i),
				})
			}
		case "2":
			artifacts = append(artifacts, map[string]interface{}{
				"id": 101, "name": "a101", "archive_download_url": apiURL + "/zip/101",
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"total_count": 101, "artifacts": artifacts})
	})
	mux.HandleFunc("/zip/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(zipBytes(t, map[string]string{"file.txt": r.URL.Path}))
	})
	g, srv := newTestGitHub(t, mux)
	apiURL = srv.URL

	dest := t.TempDir()
	require.NoError(t, g.DownloadArtifacts(context.Background(), "o/r", 55, dest))

	assert.Equal(t, []string{"1", "2"}, pages)
	b, err := os.ReadFile(filepath.Join(dest, "a101", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "/zip/101", string(b))
}

func TestGitHubDownloadArtifacts_ShortListing(t *testing.T) {
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var artifacts []map[string]interface{}
		if r.URL.Query().Get("page") == "1" {
			artifacts = append(artifacts, map[string]interface{}{"id": 1, "name": "a", "archive_download_url": "http://unused/zip/1"})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"total_count": 3, "artifacts": artifacts})
	}))

	err := g.DownloadArtifacts(context.Background(), "o/r", 55, t.TempDir())
	assert.ErrorContains(t, err, "stopped at 1 of 3")
}

func TestExtractZip_RejectsEscapingEntries(t *testing.T) {
	archive := zipBytes(t, map[string]string{"../evil.txt": "x"})
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		require.ErrorIs(t, err, zip.ErrInsecurePath)
	}
	require.NotNil(t, zr)

	dir := t.TempDir()
	err = extractZip(zr, filepath.Join(dir, "dest"))
	assert.ErrorContains(t, err, "escapes destination")
	assert.NoFileExists(t, filepath.Join(dir, "evil.txt"))
}

func TestGitHubBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	g, _ := newTestGitHub(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	for i := 0; i < 7; i++ {
		_, _ = g.GetConclusion(context.Background(), "o/r", 1)
	}
	assert.Equal(t, int32(5), hits.Load())
}
