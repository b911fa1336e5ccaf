package index

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v6"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/quartz-build/quartz/internal/msg"
)

const (
	IndexFilename = "quartz_index.json"
	indexRepoURL  = "https://github.com/quartz-build/index.git"
	indexBranch   = "main"
)

// Index maps dependency URLs to package paths inside the index checkout.
// The global copy lives under the user cache dir (%LocalAppData%/quartz/index
// on windows, ~/.cache/quartz/index elsewhere).
type Index struct {
	basePath string
	Deps     map[string]string
}

// Entry is one resolved index record, as returned by Search.
type Entry struct {
	URL  string
	Path string
}

func ParseIndex(rdr io.Reader, basePath string) (*Index, error) {
	var deps map[string]string
	if err := json.NewDecoder(bufio.NewReader(rdr)).Decode(&deps); err != nil {
		return nil, err
	}
	return &Index{Deps: deps, basePath: basePath}, nil
}

func ParseIndexInPath(basePath string) (*Index, error) {
	f, err := os.Open(filepath.Join(basePath, IndexFilename))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseIndex(f, basePath)
}

// Save writes the index file atomically so a killed process cannot leave a
// truncated quartz_index.json behind.
func (idx Index) Save(basePath string) error {
	data, err := json.MarshalIndent(idx.Deps, "", "  ")
	if err != nil {
		return err
	}

	path := filepath.Join(basePath, IndexFilename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func globalIndexPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, "quartz", "index"), nil
}

// FetchIndex clones the index repository into basePath, or pulls when a
// checkout already exists there, and parses the result.
func FetchIndex(basePath string) (*Index, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, err
	}

	branch := plumbing.NewBranchReferenceName(indexBranch)
	progress := &msg.IndentWriter{Indent: "    ", W: os.Stdout}

	if _, err := os.Stat(filepath.Join(basePath, ".git")); errors.Is(err, os.ErrNotExist) {
		msg.Info("fetching the quartz index")
		_, err := git.PlainClone(basePath, &git.CloneOptions{
			URL:           indexRepoURL,
			ReferenceName: branch,
			SingleBranch:  true,
			Depth:         1,
			Progress:      progress,
		})
		if err != nil {
			return nil, err
		}
		return ParseIndexInPath(basePath)
	}

	repo, err := git.PlainOpen(basePath)
	if err != nil {
		return nil, err
	}
	w, err := repo.Worktree()
	if err != nil {
		return nil, err
	}
	err = w.Pull(&git.PullOptions{
		RemoteName:    "origin",
		ReferenceName: branch,
		SingleBranch:  true,
		Depth:         1,
		Progress:      progress,
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return nil, err
	}

	return ParseIndexInPath(basePath)
}

func LoadOrFetchIndex(basePath string) (*Index, error) {
	if _, err := os.Stat(filepath.Join(basePath, IndexFilename)); err == nil {
		return ParseIndexInPath(basePath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	return FetchIndex(basePath)
}

var globalIndex *Index

// GetIndexAnyhow returns the cached global index, loading or fetching it on
// first use.
func GetIndexAnyhow() (*Index, error) {
	if globalIndex != nil {
		return globalIndex, nil
	}
	basePath, err := globalIndexPath()
	if err != nil {
		return nil, err
	}
	idx, err := LoadOrFetchIndex(basePath)
	if err != nil {
		return nil, err
	}
	globalIndex = idx
	return idx, nil
}

// UpdateGlobalIndex force-refreshes the global index checkout.
func UpdateGlobalIndex() (*Index, error) {
	basePath, err := globalIndexPath()
	if err != nil {
		return nil, err
	}
	globalIndex = nil
	return FetchIndex(basePath)
}

// Copy materializes the index entry for url into destPath.
func (idx Index) Copy(destPath, url string) error {
	path, ok := idx.Deps[url]
	if !ok {
		return errors.New("dependency not found in index")
	}
	return os.CopyFS(destPath, os.DirFS(filepath.Join(idx.basePath, path)))
}

func (idx *Index) SetDep(url, path string) {
	if idx.Deps == nil {
		idx.Deps = make(map[string]string)
	}
	idx.Deps[url] = path
}

func (idx *Index) HasDep(url string) bool {
	_, ok := idx.Deps[url]
	return ok
}

func (idx *Index) RemoveDep(url string) bool {
	if _, ok := idx.Deps[url]; ok {
		delete(idx.Deps, url)
		return true
	}
	return false
}

// Search returns every entry whose URL or path contains term, case
// insensitively, sorted by URL.
func (idx *Index) Search(term string) []Entry {
	term = strings.ToLower(term)
	var matches []Entry
	for url, path := range idx.Deps {
		if strings.Contains(strings.ToLower(url), term) ||
			strings.Contains(strings.ToLower(path), term) {
			matches = append(matches, Entry{URL: url, Path: path})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].URL < matches[j].URL })
	return matches
}
