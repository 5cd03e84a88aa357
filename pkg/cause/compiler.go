package cause

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/klantle/watchdogs-sub000/pkg/hashutil"
	"github.com/klantle/watchdogs-sub000/pkg/models"
	"github.com/klantle/watchdogs-sub000/pkg/ui"
)

// ErrLogUnavailable means the compiler log could not be opened. It does not
// imply the compile succeeded.
var ErrLogUnavailable = errors.New("compiler log unavailable")

var noiseMarkers = []string{"warnings.", "warning.", "errors.", "error."}

type sizeLabel struct {
	label string
	field func(*models.CompilerRunSummary) *int64
}

var sizeLabels = []sizeLabel{
	{"header size:", func(s *models.CompilerRunSummary) *int64 { return &s.HeaderSize }},
	{"code size:", func(s *models.CompilerRunSummary) *int64 { return &s.CodeSize }},
	{"data size:", func(s *models.CompilerRunSummary) *int64 { return &s.DataSize }},
	{"stack/heap size:", func(s *models.CompilerRunSummary) *int64 { return &s.StackSize }},
	{"total requirements:", func(s *models.CompilerRunSummary) *int64 { return &s.TotalSize }},
}

const versionLabel = "pawn compiler "

// Explainer annotates a compiler log and summarises the run
type Explainer struct {
	Catalogue   Catalogue
	Printer     *ui.Printer
	HelpDocPath string
	Debug       bool
}

// NewExplainer uses the built-in catalogue
func NewExplainer(p *ui.Printer, helpDocPath string, debug bool) *Explainer {
	return &Explainer{
		Catalogue:   Default(),
		Printer:     p,
		HelpDocPath: helpDocPath,
		Debug:       debug,
	}
}

// ExplainCompilerLog streams logPath, prints every diagnostic with its
// explanation, and renders the pass/fail report for artifactPath.
func (e *Explainer) ExplainCompilerLog(logPath, artifactPath string) (*models.CompilerRunSummary, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLogUnavailable, err)
	}
	defer f.Close()

	summary := &models.CompilerRunSummary{}
	helpWritten := false

	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, 1024*1024)

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		lower := strings.ToLower(line)

		if containsAny(lower, noiseMarkers) {
			continue
		}
		if parseSizeLine(lower, line, summary) {
			continue
		}
		if idx := indexFold(line, versionLabel); idx >= 0 {
			fields := strings.Fields(line[idx+len(versionLabel):])
			if len(fields) > 0 {
				summary.CompilerVersion = truncate(fields[0], 63)
			}
			continue
		}

		e.Printer.Highlight(line)

		if strings.Contains(lower, "warning") {
			summary.WarningCount++
		}
		if strings.Contains(lower, "error") {
			summary.ErrorCount++
		}

		m, ok := e.Catalogue.LookupFirstMatch(line)
		if !ok {
			continue
		}
		if m.HelpDoc && e.HelpDocPath != "" {
			if !helpWritten {
				if err := WriteHelpDoc(e.HelpDocPath); err != nil {
					e.Printer.Warnf("failed to write help document: %v", err)
				} else {
					helpWritten = true
				}
			}
			if helpWritten {
				e.Printer.Caret(runewidth.StringWidth(line[:m.Offset]), "cannot read from file: see "+e.HelpDocPath)
				continue
			}
		}
		e.Printer.Caret(runewidth.StringWidth(line[:m.Offset]), m.Explanation)
	}
	if err := scanner.Err(); err != nil {
		e.Printer.Warnf("compiler log truncated: %v", err)
	}

	e.render(summary, artifactPath)
	return summary, nil
}

func (e *Explainer) render(s *models.CompilerRunSummary, artifactPath string) {
	p := e.Printer
	p.Println("")
	status := "OK"
	if !s.OK() {
		status = "Fail"
	}
	p.Printf("Compile Complete - %s | %d pass (warning) | %d fail (error)\n", status, s.WarningCount, s.ErrorCount)
	p.Rule()

	if e.Debug && s.HasSizes() {
		if _, err := os.Stat(artifactPath); err == nil {
			e.renderDetail(s, artifactPath)
		}
	}

	if s.CompilerVersion != "" {
		p.Println("")
		p.Printf("* Pawn Compiler %s - Copyright (c) 1997-2006, ITB CompuPhase\n", s.CompilerVersion)
	}
}

func (e *Explainer) renderDetail(s *models.CompilerRunSummary, artifactPath string) {
	p := e.Printer
	hash, err := hashutil.DJB2File(artifactPath)
	if err != nil {
		p.Warnf("failed to hash %s: %v", artifactPath, err)
	}
	p.Printf("Output path: %s\n", artifactPath)
	p.Printf("Header : %dB  |  Total        : %dB\n", s.HeaderSize, s.TotalSize)
	p.Printf("Code (static mem)   : %dB  |  hash (djb2)  : %#x\n", s.CodeSize, hash)
	p.Printf("Data (static mem)   : %dB\n", s.DataSize)
	p.Printf("Stack (dynamic mem)  : %dB\n", s.StackSize)

	st, err := statFile(artifactPath)
	if err != nil {
		return
	}
	p.Printf("ino    : %d   |  File   : %dB\n", st.Inode, st.Size)
	p.Printf("dev    : %d\n", st.Device)
	p.Printf("read   : %s   |  write  : %s\n", yesNo(st.Mode&0400 != 0), yesNo(st.Mode&0200 != 0))
	p.Printf("execute: %s   |  mode   : %020o\n", yesNo(st.Mode&0100 != 0), st.Mode)
	p.Printf("atime  : %d\n", st.Atime)
	p.Printf("mtime  : %d\n", st.Mtime)
	p.Printf("ctime  : %d\n", st.Ctime)
}

// parseSizeLine fills a size field when line carries a metadata label.
// Unparseable values leave the field at zero.
func parseSizeLine(lower, line string, s *models.CompilerRunSummary) bool {
	for _, sl := range sizeLabels {
		if !strings.Contains(lower, sl.label) {
			continue
		}
		if idx := strings.IndexByte(line, ':'); idx >= 0 {
			*sl.field(s) = leadingInt(line[idx+1:])
		}
		return true
	}
	return false
}

// leadingInt parses an optionally signed decimal prefix, ignoring the rest
func leadingInt(s string) int64 {
	s = strings.TrimLeft(s, " \t")
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// indexFold is a case-insensitive strings.Index over ASCII labels
func indexFold(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if strings.EqualFold(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}
