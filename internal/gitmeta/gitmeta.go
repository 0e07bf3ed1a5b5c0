// Package gitmeta populates a project's provenance (commit hash, remote
// URL) from a local git worktree using go-git, so the pipeline never
// shells out to the git binary.
package gitmeta

import (
	"github.com/go-git/go-git/v5"
)

// Info is the git provenance for a project root, zero-valued when the
// root is not inside a git worktree.
type Info struct {
	CommitHash string
	RemoteURL  string
}

// Lookup opens root as a git repository and reads HEAD and the first
// configured remote. A non-git root is not an error: Info is returned
// zero-valued.
func Lookup(root string) (Info, error) {
	repo, err := git.PlainOpenWithOptions(root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return Info{}, nil
	}

	var info Info
	if head, err := repo.Head(); err == nil {
		info.CommitHash = head.Hash().String()
	}

	remotes, err := repo.Remotes()
	if err == nil && len(remotes) > 0 {
		cfg := remotes[0].Config()
		if len(cfg.URLs) > 0 {
			info.RemoteURL = cfg.URLs[0]
		}
	}
	return info, nil
}
