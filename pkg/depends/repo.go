// Package depends installs Pawn plugins and includes from git hosting
// archives into the project.
package depends

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klantle/watchdogs-sub000/pkg/models"
)

// ErrInvalidRepo is returned when a dependency string cannot be parsed
var ErrInvalidRepo = errors.New("invalid repo format")

const (
	hostGithub   = "github"
	hostCustom   = "custom"
	domainGithub = "github.com"
)

// ParseRepo parses a dependency reference. Accepted forms:
//
//	user/repo
//	user/repo?tag  user/repo:tag
//	https://github.com/user/repo(.git)
//	github/user/repo
//	gitlab.com/user/repo
func ParseRepo(input string) (models.Dependency, error) {
	dep := models.Dependency{Host: hostGithub, Domain: domainGithub}

	path := strings.TrimSpace(input)
	path = strings.TrimPrefix(path, "https://")
	path = strings.TrimPrefix(path, "http://")

	if i := strings.LastIndexAny(path, "?:"); i >= 0 {
		dep.Tag = path[i+1:]
		path = path[:i]
	}

	if rest, ok := strings.CutPrefix(path, "github/"); ok {
		path = rest
	} else if slash := strings.IndexByte(path, '/'); slash > 0 {
		if dot := strings.IndexByte(path, '.'); dot >= 0 && dot < slash {
			domain := path[:slash]
			if !strings.Contains(domain, "github") {
				dep.Host = hostCustom
				dep.Domain = domain
			}
			path = path[slash+1:]
		}
	}

	user, repo, ok := strings.Cut(path, "/")
	repo = strings.TrimSuffix(strings.TrimSuffix(repo, "/"), ".git")
	if !ok || user == "" || repo == "" || strings.Contains(repo, "/") {
		return models.Dependency{}, fmt.Errorf("%w: %s", ErrInvalidRepo, input)
	}
	dep.User = user
	dep.Repo = repo
	return dep, nil
}

// SplitSpecs splits a whitespace separated dependency list
func SplitSpecs(s string) []string {
	return strings.Fields(s)
}
