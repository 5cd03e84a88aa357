package scanner

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"time"

	"github.com/klantle/watchdogs-sub000/pkg/models"
)

// Detection is the guessed runtime of a project directory
type Detection struct {
	Server     models.ServerType
	Evidence   string
	Confidence string // "high", "medium", "low"
}

// DetectServerType guesses SA-MP or open.mp from the files in projectDir
func DetectServerType(projectDir string) Detection {
	exists := func(name string) bool {
		_, err := os.Stat(filepath.Join(projectDir, name))
		return err == nil
	}

	for _, bin := range []string{"omp-server", "omp-server.exe"} {
		if exists(bin) {
			return Detection{Server: models.ServerOpenMP, Evidence: bin, Confidence: "high"}
		}
	}
	for _, bin := range []string{"samp03svr", "samp-server.exe"} {
		if exists(bin) {
			return Detection{Server: models.ServerSAMP, Evidence: bin, Confidence: "high"}
		}
	}
	if exists("config.json") || exists("components") || exists("qawno") {
		return Detection{Server: models.ServerOpenMP, Evidence: "config.json", Confidence: "medium"}
	}
	if exists("server.cfg") || exists("pawno") {
		return Detection{Server: models.ServerSAMP, Evidence: "server.cfg", Confidence: "medium"}
	}
	return Detection{Server: models.ServerSAMP, Confidence: "low"}
}

var compilerVersionRe = regexp.MustCompile(`(?i)pawn compiler\s+([0-9][0-9A-Za-z.\-]*)`)

// DetectCompilerVersion runs pawncc without arguments and extracts the
// version from its banner. It returns "" when the banner is missing.
func DetectCompilerVersion(bin string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, bin)
	cmd.Env = append(os.Environ(), "LD_LIBRARY_PATH="+filepath.Dir(bin))
	// pawncc exits non-zero when called without input
	out, _ := cmd.CombinedOutput()
	return ParseCompilerVersion(string(out))
}

// ParseCompilerVersion extracts the version from a pawncc banner
func ParseCompilerVersion(banner string) string {
	m := compilerVersionRe.FindStringSubmatch(banner)
	if m == nil {
		return ""
	}
	return m[1]
}
