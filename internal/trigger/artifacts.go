package trigger

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// artifactsPerPage is the largest page the artifacts endpoint serves.
const artifactsPerPage = 100

type apiArtifact struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Expired            bool   `json:"expired"`
	ArchiveDownloadURL string `json:"archive_download_url"`
}

// DownloadArtifacts fetches every artifact of a run. A single artifact is
// extracted directly into dest; several are extracted into dest/<name>.
func (g *GitHub) DownloadArtifacts(ctx context.Context, repo string, runID int64, dest string) error {
	artifacts, err := g.listArtifacts(ctx, repo, runID)
	if err != nil {
		return err
	}
	if len(artifacts) == 0 {
		return fmt.Errorf("no artifacts found for run %d on %s", runID, repo)
	}

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	for _, a := range artifacts {
		if a.Expired {
			return fmt.Errorf("artifact %q of run %d has expired", a.Name, runID)
		}
		target := dest
		if len(artifacts) > 1 {
			if a.Name == "" || a.Name != filepath.Base(a.Name) || a.Name == ".." {
				return fmt.Errorf("artifact name %q is not a valid directory name", a.Name)
			}
			target = filepath.Join(dest, a.Name)
		}

		g.logger.Info("downloading artifact", "repo", repo, "run_id", runID, "artifact", a.Name, "dest", target)
		if err := g.fetchArtifact(ctx, a.ArchiveDownloadURL, target); err != nil {
			return fmt.Errorf("downloading artifact %q of run %d: %w", a.Name, runID, err)
		}
	}
	return nil
}

// listArtifacts pages through the run's artifacts until total_count is
// reached.
func (g *GitHub) listArtifacts(ctx context.Context, repo string, runID int64) ([]apiArtifact, error) {
	var all []apiArtifact
	for page := 1; ; page++ {
		var out struct {
			TotalCount int           `json:"total_count"`
			Artifacts  []apiArtifact `json:"artifacts"`
		}
		path := fmt.Sprintf("/repos/%s/actions/runs/%d/artifacts?per_page=%d&page=%d", repo, runID, artifactsPerPage, page)
		if err := g.call(ctx, http.MethodGet, path, nil, &out); err != nil {
			return nil, fmt.Errorf("listing artifacts of run %d on %s: %w", runID, repo, err)
		}
		all = append(all, out.Artifacts...)
		if len(all) >= out.TotalCount {
			return all, nil
		}
		if len(out.Artifacts) == 0 {
			return nil, fmt.Errorf("artifact listing of run %d on %s stopped at %d of %d", runID, repo, len(all), out.TotalCount)
		}
	}
}

func (g *GitHub) fetchArtifact(ctx context.Context, archiveURL, target string) error {
	body, err := g.openArchive(ctx, archiveURL)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	tmp, err := os.CreateTemp("", "cirunner-artifact-*.zip")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	size, err := io.Copy(tmp, body)
	if err != nil {
		return fmt.Errorf("reading archive: %w", err)
	}

	// Insecure entry names are reported per entry by extractZip.
	zr, err := zip.NewReader(tmp, size)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("opening archive: %w", err)
	}
	return extractZip(zr, target)
}

// openArchive requests the archive with credentials and, when the API answers
// with a redirect to blob storage, follows it with the unauthenticated client.
func (g *GitHub) openArchive(ctx context.Context, archiveURL string) (io.ReadCloser, error) {
	res, err := g.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		setHeaders(req)
		resp, err := g.api.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		if resp.StatusCode >= 400 {
			defer func() { _ = resp.Body.Close() }()
			b, _ := io.ReadAll(resp.Body)
			return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	resp := res.(*http.Response)

	if resp.StatusCode < 300 {
		return resp.Body, nil
	}
	_ = resp.Body.Close()

	location := resp.Header.Get("Location")
	if location == "" {
		return nil, fmt.Errorf("archive redirect (status %d) without location", resp.StatusCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating download request: %w", err)
	}
	blob, err := g.download.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if blob.StatusCode >= 400 {
		defer func() { _ = blob.Body.Close() }()
		b, _ := io.ReadAll(blob.Body)
		return nil, &StatusError{StatusCode: blob.StatusCode, Body: string(b)}
	}
	return blob.Body, nil
}

// extractZip writes the archive's entries under dest, rejecting any entry
// whose path would land outside it.
func extractZip(zr *zip.Reader, dest string) error {
	root, err := filepath.Abs(dest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", root, err)
	}

	for _, f := range zr.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := writeEntry(f, target); err != nil {
			return fmt.Errorf("extracting %s: %w", f.Name, err)
		}
	}
	return nil
}

func writeEntry(f *zip.File, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}
