package depends

import (
	"errors"
	"fmt"
	"sort"

	version "github.com/hashicorp/go-version"
	lru "github.com/hashicorp/golang-lru/v2"
	latest "github.com/tcnksm/go-latest"

	"github.com/klantle/watchdogs-sub000/pkg/models"
)

// ErrNoTags means the repository has no tag that parses as a version
var ErrNoTags = errors.New("no version tags found")

const tagCacheSize = 64

// TagLister returns the raw tag names of a repository
type TagLister interface {
	ListTags(dep models.Dependency) ([]string, error)
}

// GithubTags lists tags through the GitHub API
type GithubTags struct{}

func (GithubTags) ListTags(dep models.Dependency) ([]string, error) {
	src := &latest.GithubTag{
		Owner:      dep.User,
		Repository: dep.Repo,
		// keep the original tag text, the archive URL needs it verbatim
		FixVersionStrFunc: func(s string) string { return s },
	}
	res, err := src.Fetch()
	if err != nil {
		return nil, fmt.Errorf("failed to list tags of %s/%s: %w", dep.User, dep.Repo, err)
	}
	tags := make([]string, 0, len(res.Versions))
	for _, v := range res.Versions {
		tags = append(tags, v.Original())
	}
	return tags, nil
}

// Resolver picks the newest tag of a repository and caches the answer for
// the lifetime of the process.
type Resolver struct {
	lister TagLister
	cache  *lru.Cache[string, string]
}

// NewResolver creates a resolver backed by lister
func NewResolver(lister TagLister) *Resolver {
	cache, err := lru.New[string, string](tagCacheSize)
	if err != nil {
		panic(err) // only fails for a non-positive size
	}
	return &Resolver{lister: lister, cache: cache}
}

// Resolve returns the highest version tag of dep
func (r *Resolver) Resolve(dep models.Dependency) (string, error) {
	key := dep.Domain + "/" + dep.User + "/" + dep.Repo
	if tag, ok := r.cache.Get(key); ok {
		return tag, nil
	}
	tags, err := r.lister.ListTags(dep)
	if err != nil {
		return "", err
	}
	tag, err := Newest(tags)
	if err != nil {
		return "", fmt.Errorf("%s/%s: %w", dep.User, dep.Repo, err)
	}
	r.cache.Add(key, tag)
	return tag, nil
}

// Newest returns the highest version among tags, preferring stable releases
// over pre-releases. Tags that are not versions are ignored.
func Newest(tags []string) (string, error) {
	var stable, pre version.Collection
	for _, t := range tags {
		v, err := version.NewVersion(t)
		if err != nil {
			continue
		}
		if v.Prerelease() != "" {
			pre = append(pre, v)
		} else {
			stable = append(stable, v)
		}
	}
	pick := stable
	if len(pick) == 0 {
		pick = pre
	}
	if len(pick) == 0 {
		return "", ErrNoTags
	}
	sort.Sort(pick)
	return pick[len(pick)-1].Original(), nil
}

// Check reports whether current is older than the newest tag of dep
func (r *Resolver) Check(dep models.Dependency, current string) (*latest.CheckResponse, error) {
	tag, err := r.Resolve(dep)
	if err != nil {
		return nil, err
	}
	return latest.Check(fixedTag(tag), current)
}

// fixedTag is a latest.Source that always answers with one version
type fixedTag string

func (f fixedTag) Validate() error { return nil }

func (f fixedTag) Fetch() (*latest.FetchResponse, error) {
	v, err := version.NewVersion(string(f))
	if err != nil {
		return nil, err
	}
	return &latest.FetchResponse{Versions: []*version.Version{v}}, nil
}
