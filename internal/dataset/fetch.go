package dataset

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gomlx/go-huggingface/hub"
)

// DefaultRepo is the Romanian STS dataset on the Hugging Face hub.
const DefaultRepo = "dumitrescustefan/ro_sts"

// FetchOptions selects dataset files to download from the hub.
type FetchOptions struct {
	Repo     string
	Files    []string
	OutDir   string
	Token    string
	CacheDir string
}

// Fetch downloads dataset files and copies them into OutDir, returning the
// local paths in request order.
func Fetch(opts FetchOptions) ([]string, error) {
	if opts.Repo == "" {
		opts.Repo = DefaultRepo
	}

	if len(opts.Files) == 0 {
		return nil, fmt.Errorf("dataset: no files requested from %s", opts.Repo)
	}

	repo := hub.New(opts.Repo).WithType(hub.RepoTypeDataset)
	if opts.Token != "" {
		repo = repo.WithAuth(opts.Token)
	}

	if opts.CacheDir != "" {
		repo = repo.WithCacheDir(opts.CacheDir)
	}

	slog.Info("fetching dataset", "repo", opts.Repo, "files", opts.Files)

	downloaded, err := repo.DownloadFiles(opts.Files...)
	if err != nil {
		return nil, fmt.Errorf("dataset: download from %s: %w", opts.Repo, err)
	}

	if len(downloaded) != len(opts.Files) {
		return nil, fmt.Errorf("dataset: downloaded %d of %d files", len(downloaded), len(opts.Files))
	}

	if opts.OutDir == "" {
		return downloaded, nil
	}

	out := make([]string, len(downloaded))
	for i, src := range downloaded {
		dst := filepath.Join(opts.OutDir, filepath.FromSlash(opts.Files[i]))
		if err := copyFile(src, dst); err != nil {
			return nil, err
		}

		out[i] = dst
	}

	return out, nil
}

func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("dataset: create %s: %w", filepath.Dir(dst), err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("dataset: open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("dataset: create %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("dataset: copy to %s: %w", dst, err)
	}

	return out.Close()
}
