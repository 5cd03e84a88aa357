package depends

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/klantle/watchdogs-sub000/pkg/archive"
	"github.com/klantle/watchdogs-sub000/pkg/models"
	"github.com/klantle/watchdogs-sub000/pkg/ui"
)

func TestParseRepo(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want models.Dependency
	}{
		{"Y-Less/samp-plugin-crashdetect", models.Dependency{Host: "github", Domain: "github.com", User: "Y-Less", Repo: "samp-plugin-crashdetect"}},
		{"CyberMor/sampvoice?v3.0-alpha", models.Dependency{Host: "github", Domain: "github.com", User: "CyberMor", Repo: "sampvoice", Tag: "v3.0-alpha"}},
		{"pBlueG/SA-MP-MySQL:R41-4", models.Dependency{Host: "github", Domain: "github.com", User: "pBlueG", Repo: "SA-MP-MySQL", Tag: "R41-4"}},
		{"https://github.com/katursis/Pawn.RakNet.git", models.Dependency{Host: "github", Domain: "github.com", User: "katursis", Repo: "Pawn.RakNet"}},
		{"github/oscar-broman/sscanf", models.Dependency{Host: "github", Domain: "github.com", User: "oscar-broman", Repo: "sscanf"}},
		{"gitlab.com/someone/pawn-lib?v1.0.0", models.Dependency{Host: "custom", Domain: "gitlab.com", User: "someone", Repo: "pawn-lib", Tag: "v1.0.0"}},
	}
	for _, tt := range tests {
		got, err := ParseRepo(tt.in)
		if err != nil {
			t.Fatalf("ParseRepo(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("ParseRepo(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}

	for _, bad := range []string{"", "justrepo", "/repo", "user/", "a/b/c"} {
		if _, err := ParseRepo(bad); !errors.Is(err, ErrInvalidRepo) {
			t.Fatalf("ParseRepo(%q) expected ErrInvalidRepo, got %v", bad, err)
		}
	}
}

func TestNewestPrefersStable(t *testing.T) {
	t.Parallel()

	tag, err := Newest([]string{"v4.19", "nightly", "v4.22", "v4.23-rc1", "v4.9"})
	require.NoError(t, err)
	require.Equal(t, "v4.22", tag)

	tag, err = Newest([]string{"v3.0-alpha", "v2.0-alpha"})
	require.NoError(t, err)
	require.Equal(t, "v3.0-alpha", tag)

	_, err = Newest([]string{"nightly"})
	require.ErrorIs(t, err, ErrNoTags)
}

type countingLister struct {
	mu    sync.Mutex
	calls int
	tags  []string
	err   error
}

func (c *countingLister) ListTags(models.Dependency) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.tags, c.err
}

func TestResolverCaches(t *testing.T) {
	t.Parallel()

	lister := &countingLister{tags: []string{"v1.0.0", "v1.2.0"}}
	r := NewResolver(lister)
	dep := models.Dependency{Domain: "github.com", User: "u", Repo: "r"}

	for range 3 {
		tag, err := r.Resolve(dep)
		require.NoError(t, err)
		require.Equal(t, "v1.2.0", tag)
	}
	require.Equal(t, 1, lister.calls)

	res, err := r.Check(dep, "1.0.0")
	require.NoError(t, err)
	require.True(t, res.Outdated)
}

type memRecorder struct {
	deps []models.Dependency
}

func (m *memRecorder) RecordInstall(dep models.Dependency) error {
	m.deps = append(m.deps, dep)
	return nil
}

// pluginArchive builds a source archive shaped like a GitHub tag download
func pluginArchive(t *testing.T, top string, files map[string]string) []byte {
	t.Helper()
	src := filepath.Join(t.TempDir(), top)
	for name, body := range files {
		path := filepath.Join(src, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
	dst := filepath.Join(t.TempDir(), "a.tar.gz")
	require.NoError(t, archive.Create(src, dst, archive.FormatTarGz))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	return data
}

func serve(t *testing.T, routes map[string][]byte) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu   sync.Mutex
		hits []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits = append(hits, r.URL.Path)
		mu.Unlock()
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newProject(t *testing.T, server models.ServerType, cfgName, cfgBody, gamemode string) (*Installer, *memRecorder) {
	t.Helper()
	dir := t.TempDir()
	paths, err := models.GetConfigPaths(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, cfgName), []byte(cfgBody), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "gamemodes"), 0755))
	gm := filepath.Join(dir, "gamemodes", "bare.pwn")
	require.NoError(t, os.WriteFile(gm, []byte(gamemode), 0644))

	rec := &memRecorder{}
	dl := NewDownloader(5*time.Second, []string{"ghp_test"}, nil)
	dl.Backoff = time.Millisecond
	return &Installer{
		Server:     server,
		OS:         "linux",
		Paths:      paths,
		ServerCfg:  filepath.Join(dir, cfgName),
		Gamemode:   gm,
		Downloader: dl,
		Recorder:   rec,
		Printer:    ui.NewPrinter(&bytes.Buffer{}),
	}, rec
}

func TestInstallTaggedSAMP(t *testing.T) {
	t.Parallel()

	body := pluginArchive(t, "samp-plugin-crashdetect-4.22", map[string]string{
		"crashdetect.so":          "ELF",
		"crashdetect.dll":         "MZ",
		"include/crashdetect.inc": "native GetAmxBacktrace();",
		"README.md":               "docs",
	})
	srv, _ := serve(t, map[string][]byte{
		"/Y-Less/samp-plugin-crashdetect/archive/refs/tags/v4.22.tar.gz": body,
	})

	inst, rec := newProject(t, models.ServerSAMP, "server.cfg", "echo Executing\nplugins mysql.so\n", "#include <a_samp>\n\nmain() {}\n")
	inst.BaseURL = srv.URL
	inst.Resolver = NewResolver(&countingLister{tags: []string{"v4.21", "v4.22"}})

	rep, err := inst.InstallOne(context.Background(), "Y-Less/samp-plugin-crashdetect?newer", "master")
	require.NoError(t, err)
	require.Equal(t, "v4.22", rep.Ref)
	require.Equal(t, []string{"crashdetect.so"}, rep.Registered)

	dir := inst.Paths.ProjectDir
	require.FileExists(t, filepath.Join(dir, "plugins", "crashdetect.so"))
	require.FileExists(t, filepath.Join(dir, "plugins", "crashdetect.dll"))
	require.FileExists(t, filepath.Join(dir, "pawno", "include", "crashdetect.inc"))
	require.NoFileExists(t, filepath.Join(dir, "README.md"))

	cfg, err := os.ReadFile(inst.ServerCfg)
	require.NoError(t, err)
	require.Equal(t, "echo Executing\nplugins mysql.so crashdetect.so\n", string(cfg))

	gm, err := os.ReadFile(inst.Gamemode)
	require.NoError(t, err)
	require.Equal(t, "#include <a_samp>\n#include <crashdetect>\n\nmain() {}\n", string(gm))

	require.Len(t, rec.deps, 1)
	require.Equal(t, "v4.22", rec.deps[0].Tag)

	entries, err := os.ReadDir(inst.Paths.DownloadDir)
	require.NoError(t, err)
	require.Empty(t, entries, "download directory must be cleaned up")
}

func TestInstallFallsBackToBranch(t *testing.T) {
	t.Parallel()

	body := pluginArchive(t, "sscanf-master", map[string]string{"sscanf.so": "ELF"})
	srv, hits := serve(t, map[string][]byte{
		"/oscar-broman/sscanf/archive/refs/heads/master.tar.gz": body,
	})

	inst, rec := newProject(t, models.ServerSAMP, "server.cfg", "gamemode0 bare 1\n", "main() {}\n")
	inst.BaseURL = srv.URL
	inst.Resolver = NewResolver(&countingLister{err: errors.New("rate limited")})

	rep, err := inst.InstallOne(context.Background(), "oscar-broman/sscanf", "")
	require.NoError(t, err)
	require.Equal(t, "master", rep.Ref)
	require.Equal(t, "", rec.deps[0].Tag)
	require.Equal(t, []string{
		"/oscar-broman/sscanf/archive/refs/heads/main.tar.gz",
		"/oscar-broman/sscanf/archive/refs/heads/main.zip",
		"/oscar-broman/sscanf/archive/refs/heads/master.tar.gz",
	}, *hits)

	cfg, err := os.ReadFile(inst.ServerCfg)
	require.NoError(t, err)
	require.Equal(t, "gamemode0 bare 1\nplugins sscanf.so\n", string(cfg))
}

func TestInstallOpenMPComponentsAndJSON(t *testing.T) {
	t.Parallel()

	body := pluginArchive(t, "Pawn.RakNet-1.6.0", map[string]string{
		"components/Pawn.RakNet.so":     "ELF component",
		"plugins/legacy.so":             "ELF plugin",
		"pawno/include/Pawn.RakNet.inc": "native PR_Init();",
	})
	srv, _ := serve(t, map[string][]byte{
		"/katursis/Pawn.RakNet/archive/refs/tags/1.6.0.tar.gz": body,
	})

	cfg := "{\n  \"pawn\": {\n    \"main_scripts\": [\"bare 1\"],\n    \"legacy_plugins\": []\n  }\n}\n"
	inst, _ := newProject(t, models.ServerOpenMP, "config.json", cfg, "#include <open.mp>\n")
	inst.BaseURL = srv.URL

	rep, err := inst.InstallOne(context.Background(), "katursis/Pawn.RakNet:1.6.0", "")
	require.NoError(t, err)
	require.Len(t, rep.Components, 1)

	dir := inst.Paths.ProjectDir
	require.FileExists(t, filepath.Join(dir, "components", "Pawn.RakNet.so"))
	require.FileExists(t, filepath.Join(dir, "plugins", "legacy.so"))
	require.FileExists(t, filepath.Join(dir, "qawno", "include", "Pawn.RakNet.inc"))

	data, err := os.ReadFile(inst.ServerCfg)
	require.NoError(t, err)
	require.Contains(t, string(data), "\"legacy.so\"")
	require.NotContains(t, string(data), "\"Pawn.RakNet.so\"")

	gm, err := os.ReadFile(inst.Gamemode)
	require.NoError(t, err)
	require.Equal(t, "#include <open.mp>\n#include <Pawn.RakNet>\n", string(gm))
}

func TestInstallNotFound(t *testing.T) {
	t.Parallel()

	srv, _ := serve(t, nil)
	inst, rec := newProject(t, models.ServerSAMP, "server.cfg", "", "")
	inst.BaseURL = srv.URL

	_, err := inst.InstallOne(context.Background(), "nobody/nothing?v1.0.0", "")
	require.ErrorContains(t, err, "repo not found: nobody/nothing?v1.0.0")
	require.Empty(t, rec.deps)

	_, err = inst.InstallOne(context.Background(), "not-a-repo", "")
	require.ErrorIs(t, err, ErrInvalidRepo)
}

func TestDownloadRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token: %q", r.Header.Get("Authorization"))
		}
		if calls.Add(1) < 3 {
			http.Error(w, "busy", http.StatusBadGateway)
			return
		}
		w.Write([]byte("payload"))
	}))
	defer srv.Close()

	d := NewDownloader(5*time.Second, []string{"", "tok"}, nil)
	d.Backoff = time.Millisecond
	dst := filepath.Join(t.TempDir(), "out.tar.gz")
	require.NoError(t, d.Download(context.Background(), srv.URL+"/x.tar.gz", dst))
	require.Equal(t, int32(3), calls.Load())

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "payload", string(data))

	calls.Store(-10)
	err = d.Download(context.Background(), srv.URL+"/x.tar.gz", dst)
	require.ErrorContains(t, err, "after 3 attempts")
}

func TestAddIncludeDirectiveWithoutAnchor(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "gm.pwn")
	require.NoError(t, os.WriteFile(path, []byte("main() {}\r\n"), 0644))

	changed, err := AddIncludeDirective(path, "sscanf2", "#include <a_samp>")
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = AddIncludeDirective(path, "sscanf2", "#include <a_samp>")
	require.NoError(t, err)
	require.False(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "#include <a_samp>\r\n#include <sscanf2>\r\nmain() {}\r\n", string(data))
}
