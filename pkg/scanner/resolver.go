// Package scanner locates the project root and discovers running game server
// processes.
package scanner

import (
	"os"
	"path/filepath"
	"sync"
)

// ProjectResolver finds project roots by walking directory tree
type ProjectResolver struct {
	cache map[string]string
	mu    sync.RWMutex
}

// NewProjectResolver creates a new resolver instance
func NewProjectResolver() *ProjectResolver {
	return &ProjectResolver{
		cache: make(map[string]string),
	}
}

// ProjectMarkers are files/dirs that indicate a server project root, most
// specific first
var ProjectMarkers = []string{
	"watchdogs.toml",
	"server.cfg",
	"config.json",
	"samp03svr",
	"samp-server.exe",
	"omp-server",
	"omp-server.exe",
}

// FindProjectRoot searches up the directory tree for a project root.
// It returns "" when no marker is found.
func (pr *ProjectResolver) FindProjectRoot(startPath string) string {
	if startPath == "" {
		return ""
	}

	pr.mu.RLock()
	if cached, ok := pr.cache[startPath]; ok {
		pr.mu.RUnlock()
		return cached
	}
	pr.mu.RUnlock()

	current := startPath
	for {
		for _, marker := range ProjectMarkers {
			if _, err := os.Stat(filepath.Join(current, marker)); err == nil {
				pr.store(startPath, current)
				return current
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			pr.store(startPath, "")
			return ""
		}
		current = parent
	}
}

// ResolveOrSelf returns the project root of dir, or dir itself
func (pr *ProjectResolver) ResolveOrSelf(dir string) string {
	if root := pr.FindProjectRoot(dir); root != "" {
		return root
	}
	return dir
}

func (pr *ProjectResolver) store(start, root string) {
	pr.mu.Lock()
	pr.cache[start] = root
	pr.mu.Unlock()
}

// clearCache forgets every cached root
func (pr *ProjectResolver) clearCache() {
	pr.mu.Lock()
	pr.cache = make(map[string]string)
	pr.mu.Unlock()
}
