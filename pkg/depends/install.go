package depends

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/klantle/watchdogs-sub000/pkg/archive"
	"github.com/klantle/watchdogs-sub000/pkg/hashutil"
	"github.com/klantle/watchdogs-sub000/pkg/models"
	"github.com/klantle/watchdogs-sub000/pkg/serverconfig"
	"github.com/klantle/watchdogs-sub000/pkg/ui"
)

var defaultBranches = []string{"main", "master"}

var archiveExts = []string{".tar.gz", ".zip"}

// Recorder persists successfully installed dependencies
type Recorder interface {
	RecordInstall(dep models.Dependency) error
}

// Installer downloads dependency archives and places their plugins and
// includes where the server and compiler look for them.
type Installer struct {
	Server     models.ServerType
	OS         string
	Paths      models.ConfigPaths
	ServerCfg  string
	Gamemode   string
	Resolver   *Resolver
	Downloader *Downloader
	// BaseURL replaces "https://<domain>" when set
	BaseURL  string
	Recorder Recorder
	Printer  *ui.Printer
	Logger   *slog.Logger
}

// Report describes one installed dependency
type Report struct {
	Dependency models.Dependency
	Ref        string
	URL        string
	Plugins    []string
	Components []string
	Includes   []string
	Registered []string
	Duration   time.Duration
}

type ref struct {
	name string
	tag  bool
}

func (i *Installer) logger() *slog.Logger {
	if i.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return i.Logger
}

func (i *Installer) goos() string {
	if i.OS == "" {
		return runtime.GOOS
	}
	return i.OS
}

// Install installs one dependency. branch is tried first when no tag can be
// resolved.
func (i *Installer) Install(ctx context.Context, spec, branch string) error {
	_, err := i.InstallOne(ctx, spec, branch)
	return err
}

// InstallAll installs every spec, continuing past failures
func (i *Installer) InstallAll(ctx context.Context, specs []string) ([]*Report, error) {
	if len(specs) == 0 {
		return nil, errors.New("no valid dependencies to install")
	}
	var (
		reports []*Report
		errs    []error
	)
	for _, spec := range specs {
		rep, err := i.InstallOne(ctx, spec, "")
		if err != nil {
			i.Printer.Errorf("%v", err)
			errs = append(errs, err)
			continue
		}
		reports = append(reports, rep)
	}
	return reports, errors.Join(errs...)
}

// InstallOne parses spec, downloads its archive and places its files
func (i *Installer) InstallOne(ctx context.Context, spec, branch string) (*Report, error) {
	start := time.Now()
	dep, err := ParseRepo(spec)
	if err != nil {
		return nil, err
	}

	archivePath, rf, url, err := i.fetch(ctx, dep, branch)
	if err != nil {
		return nil, err
	}
	defer os.Remove(archivePath)

	extractDir := strings.TrimSuffix(strings.TrimSuffix(archivePath, ".zip"), ".tar.gz")
	if err := os.RemoveAll(extractDir); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", extractDir, err)
	}
	defer os.RemoveAll(extractDir)

	files, err := archive.Extract(archivePath, extractDir)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", filepath.Base(archivePath), err)
	}

	rep := &Report{Dependency: dep, Ref: rf.name, URL: url}
	if err := i.place(extractDir, files, rep); err != nil {
		return rep, err
	}
	if err := i.register(rep); err != nil {
		return rep, err
	}
	i.addIncludeDirectives(rep)

	if rf.tag {
		rep.Dependency.Tag = rf.name
	} else {
		rep.Dependency.Tag = ""
	}
	if i.Recorder != nil {
		if err := i.Recorder.RecordInstall(rep.Dependency); err != nil {
			i.logger().Warn("failed to record install", "dependency", rep.Dependency.String(), "error", err)
		}
	}

	rep.Duration = time.Since(start)
	i.Printer.Infof("%s installed [finished at %.3fs]", dep.User+"/"+dep.Repo, rep.Duration.Seconds())
	return rep, nil
}

// refs lists what to download, most specific first
func (i *Installer) refs(dep models.Dependency, branch string) []ref {
	if !dep.WantsLatest() {
		return []ref{{name: dep.Tag, tag: true}}
	}
	var out []ref
	if i.Resolver != nil && dep.Host == hostGithub {
		tag, err := i.Resolver.Resolve(dep)
		if err == nil {
			i.Printer.Infof("using latest tag %s for %s/%s", tag, dep.User, dep.Repo)
			out = append(out, ref{name: tag, tag: true})
		} else {
			i.Printer.Warnf("failed to get latest tag for %s/%s, falling back to branch archive", dep.User, dep.Repo)
			i.logger().Debug("tag resolution failed", "error", err)
		}
	}
	if branch != "" {
		out = append(out, ref{name: branch})
	}
	for _, b := range defaultBranches {
		if b != branch {
			out = append(out, ref{name: b})
		}
	}
	return out
}

// ArchiveURL builds the source archive URL of dep at rf
func (i *Installer) ArchiveURL(dep models.Dependency, name string, tag bool, ext string) string {
	base := i.BaseURL
	if base == "" {
		base = "https://" + dep.Domain
	}
	base = strings.TrimSuffix(base, "/")
	if strings.Contains(dep.Domain, "gitlab") {
		return fmt.Sprintf("%s/%s/%s/-/archive/%s/%s-%s%s", base, dep.User, dep.Repo, name, dep.Repo, name, ext)
	}
	kind := "heads"
	if tag {
		kind = "tags"
	}
	return fmt.Sprintf("%s/%s/%s/archive/refs/%s/%s%s", base, dep.User, dep.Repo, kind, name, ext)
}

func (i *Installer) fetch(ctx context.Context, dep models.Dependency, branch string) (string, ref, string, error) {
	if err := i.Paths.EnsureDirs(); err != nil {
		return "", ref{}, "", fmt.Errorf("failed to create download directory: %w", err)
	}
	for _, rf := range i.refs(dep, branch) {
		for _, ext := range archiveExts {
			url := i.ArchiveURL(dep, rf.name, rf.tag, ext)
			dst := filepath.Join(i.Paths.DownloadDir, dep.Repo+"-"+strings.ReplaceAll(rf.name, "/", "_")+ext)
			i.logger().Debug("downloading", "url", url, "dst", dst)
			err := i.Downloader.Download(ctx, url, dst)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return "", ref{}, "", err
			}
			i.Printer.Infof("downloaded %s", url)
			return dst, rf, url, nil
		}
	}
	return "", ref{}, "", fmt.Errorf("repo not found: %s", dep.String())
}

func hasSegment(parts []string, seg string) bool {
	for _, p := range parts {
		if strings.EqualFold(p, seg) {
			return true
		}
	}
	return false
}

// includeSubpath keeps the part of an include path below its last "include"
// directory so nested include trees survive placement
func includeSubpath(parts []string) string {
	for j := len(parts) - 2; j >= 0; j-- {
		if strings.EqualFold(parts[j], "include") {
			return filepath.Join(parts[j+1:]...)
		}
	}
	return parts[len(parts)-1]
}

func (i *Installer) place(root string, files []string, rep *Report) error {
	for _, f := range files {
		rel, err := filepath.Rel(root, f)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		name := filepath.Base(f)

		var dest string
		switch strings.ToLower(filepath.Ext(name)) {
		case ".so", ".dll":
			if i.Server == models.ServerOpenMP && hasSegment(parts, "components") {
				dest = i.Paths.Resolve(filepath.Join("components", name))
				rep.Components = append(rep.Components, dest)
			} else {
				dest = i.Paths.Resolve(filepath.Join("plugins", name))
				rep.Plugins = append(rep.Plugins, dest)
			}
		case ".inc":
			dest = i.Paths.Resolve(filepath.Join(i.Server.IncludeDir(), includeSubpath(parts)))
			rep.Includes = append(rep.Includes, dest)
		default:
			continue
		}

		if err := moveFile(f, dest); err != nil {
			return fmt.Errorf("failed to move %s: %w", rel, err)
		}
		i.Printer.Muted(fmt.Sprintf(" [MOVING] %s -> %s", rel, dest))
		if sum, err := hashutil.SumFile(hashutil.AlgoBLAKE3, dest); err == nil {
			i.logger().Debug("placed file", "path", dest, "blake3", sum)
		}
	}
	return nil
}

// pluginEntry is the name written to the server config for a plugin file,
// or "" when the file is not for this platform
func (i *Installer) pluginEntry(path string) string {
	name := filepath.Base(path)
	ext := strings.ToLower(filepath.Ext(name))
	if i.goos() == "windows" {
		if ext != ".dll" {
			return ""
		}
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	if ext != ".so" {
		return ""
	}
	return name
}

func (i *Installer) register(rep *Report) error {
	var names []string
	for _, p := range rep.Plugins {
		if entry := i.pluginEntry(p); entry != "" {
			names = append(names, entry)
		}
	}
	if len(names) == 0 || i.ServerCfg == "" {
		return nil
	}
	changed, err := serverconfig.RegisterPlugins(i.ServerCfg, names)
	if err != nil {
		return err
	}
	if changed {
		rep.Registered = names
		i.Printer.Infof("added %s to %s", strings.Join(names, ", "), filepath.Base(i.ServerCfg))
	}
	return nil
}

func (i *Installer) includeAnchor() string {
	if i.Server == models.ServerOpenMP {
		return "#include <open.mp>"
	}
	return "#include <a_samp>"
}

func (i *Installer) addIncludeDirectives(rep *Report) {
	if i.Gamemode == "" {
		return
	}
	if _, err := os.Stat(i.Gamemode); err != nil {
		i.Printer.Warnf("can't find %s, skipping include directive", i.Gamemode)
		return
	}
	incRoot := i.Paths.Resolve(i.Server.IncludeDir())
	for _, inc := range rep.Includes {
		if filepath.Dir(inc) != incRoot {
			continue
		}
		name := strings.TrimSuffix(filepath.Base(inc), filepath.Ext(inc))
		changed, err := AddIncludeDirective(i.Gamemode, name, i.includeAnchor())
		if err != nil {
			i.Printer.Warnf("%v", err)
			continue
		}
		if changed {
			i.Printer.Infof("added #include <%s> to %s", name, filepath.Base(i.Gamemode))
		}
	}
}

// AddIncludeDirective inserts "#include <name>" after anchor in the Pawn
// source at path, or prepends both when anchor is absent. It is a no-op when
// the directive is already present.
func AddIncludeDirective(path, name, anchor string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	src := string(data)
	directive := "#include <" + name + ">"
	if strings.Contains(src, directive) || directive == anchor {
		return false, nil
	}
	nl := "\n"
	if strings.Contains(src, "\r\n") {
		nl = "\r\n"
	}
	var out string
	if idx := strings.Index(src, anchor); idx >= 0 {
		end := idx + len(anchor)
		out = src[:end] + nl + directive + src[end:]
	} else {
		out = anchor + nl + directive + nl + src
	}
	if err := os.WriteFile(path, []byte(out), info.Mode().Perm()); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
